package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/repository"
)

// ExportJobRepository is the in-memory export job table.
type ExportJobRepository struct {
	s *Store
}

// Create stores a copy of job.
func (r *ExportJobRepository) Create(_ context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.s.now()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *job
	r.s.exportJobs[job.ID] = &cp
	return nil
}

// FindByID returns a copy of the job.
func (r *ExportJobRepository) FindByID(_ context.Context, id string) (*models.ExportJob, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	job, ok := r.s.exportJobs[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *job
	return &cp, nil
}

// Update applies the non-nil fields of params.
func (r *ExportJobRepository) Update(_ context.Context, id string, params repository.ExportJobUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.exportJobs[id]
	if !ok {
		return errNotFound
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		v := *params.ResultURL
		job.ResultURL = &v
	}
	if params.ErrorMessage != nil {
		v := *params.ErrorMessage
		job.ErrorMessage = &v
	}
	if params.FinishedAt != nil {
		v := *params.FinishedAt
		job.FinishedAt = &v
	}
	if params.StartedAt != nil {
		v := *params.StartedAt
		job.StartedAt = &v
	}
	return nil
}

// ListQueued returns queued jobs, oldest first.
func (r *ExportJobRepository) ListQueued(_ context.Context, limit int) ([]models.ExportJob, error) {
	return r.filter(limit, func(j *models.ExportJob) bool { return j.Status == models.ExportStatusQueued }), nil
}

// ListStalled returns jobs processing since before cutoff.
func (r *ExportJobRepository) ListStalled(_ context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return r.filter(limit, func(j *models.ExportJob) bool {
		if j.Status != models.ExportStatusProcessing {
			return false
		}
		started := j.CreatedAt
		if j.StartedAt != nil {
			started = *j.StartedAt
		}
		return started.Before(cutoff)
	}), nil
}

// ListFinishedBefore returns finished jobs older than cutoff.
func (r *ExportJobRepository) ListFinishedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return r.filter(limit, func(j *models.ExportJob) bool {
		return j.Status == models.ExportStatusFinished && j.FinishedAt != nil && j.FinishedAt.Before(cutoff)
	}), nil
}

func (r *ExportJobRepository) filter(limit int, keep func(*models.ExportJob) bool) []models.ExportJob {
	r.s.mu.RLock()
	out := make([]models.ExportJob, 0)
	for _, job := range r.s.exportJobs {
		if keep(job) {
			out = append(out, *job)
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
