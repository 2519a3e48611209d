package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/repository"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
	"github.com/noah-isme/coursehub-api/pkg/jobs"
	"github.com/noah-isme/coursehub-api/pkg/storage"
)

const exportJobType = "course_progress"

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.ExportJobUpdate) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

// ExportJobService manages the lifecycle of progress export jobs.
type ExportJobService struct {
	repo      exportJobStore
	courses   courseReader
	queue     jobDispatcher
	exporter  *ExportService
	validator *validator.Validate
	logger    *zap.Logger
	resultTTL time.Duration
}

// ExportDownload is a resolved download ready to stream.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// NewExportJobService constructs the service.
func NewExportJobService(repo exportJobStore, courses courseReader, queue jobDispatcher, exporter *ExportService, resultTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ExportJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	return &ExportJobService{
		repo:      repo,
		courses:   courses,
		queue:     queue,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
		resultTTL: resultTTL,
	}
}

// CreateExport persists a queued job for the course and hands it to the
// worker queue. Only the course instructor or an admin may export.
func (s *ExportJobService) CreateExport(ctx context.Context, courseID string, actor *models.JWTClaims, req dto.ExportRequest) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid export request")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, mapCourseError(err, "failed to load course")
	}
	if !canManage(actor, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor can export progress")
	}

	job := &models.ExportJob{
		CourseID:  course.ID,
		Params:    models.ExportJobParams{Format: req.Format, CompletedOnly: req.CompletedOnly},
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Internal(err, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Internal(err, "failed to enqueue export job")
	}
	s.logger.Info("export queued", zap.String("job_id", job.ID), zap.String("course_id", course.ID), zap.String("format", string(req.Format)))
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetExport reports job status. Non-admins only see their own jobs.
func (s *ExportJobService) GetExport(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ExportStatusResponse, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || (actor.Role != models.RoleAdmin && job.CreatedBy != actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	resp := &dto.ExportStatusResponse{
		ID:        job.ID,
		CourseID:  job.CourseID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates token and opens the stored file.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	claims, err := s.exporter.ParseToken(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	job, err := s.load(ctx, claims.ResourceID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match export")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export not ready")
	}
	file, err := s.exporter.Open(claims.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
		}
		return nil, appErrors.Internal(err, "failed to open export file")
	}
	return &ExportDownload{
		File:        file,
		Filename:    filepath.Base(claims.Path),
		ContentType: s.exporter.ContentType(job.Params.Format),
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// RecoverPendingJobs re-enqueues jobs left queued by a previous process and
// jobs that have been processing for longer than stallTimeout.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context, stallTimeout time.Duration) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	if stallTimeout > 0 {
		stalled, err := s.repo.ListStalled(ctx, time.Now().UTC().Add(-stallTimeout), 50)
		if err != nil {
			s.logger.Warn("failed to list stalled export jobs", zap.Error(err))
		}
		queued := models.ExportStatusQueued
		reset := 0
		for _, job := range stalled {
			if err := s.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &queued, Progress: &reset}); err != nil {
				s.logger.Warn("failed to reset stalled export job", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			pending = append(pending, job)
		}
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType}); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered queued export jobs", zap.Int("count", len(pending)))
	}
}

// CleanupExpired deletes files of finished jobs older than the result TTL
// and sweeps orphaned files from storage.
func (s *ExportJobService) CleanupExpired(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.resultTTL)
	const batch = 100
	removed := 0
	for pass := 0; pass < 20; pass++ {
		finished, err := s.repo.ListFinishedBefore(ctx, cutoff, batch)
		if err != nil {
			return err
		}
		for _, job := range finished {
			s.expire(ctx, job)
			removed++
		}
		if len(finished) < batch {
			break
		}
	}
	swept, err := s.exporter.Cleanup(s.resultTTL)
	if err != nil {
		return err
	}
	s.logger.Info("export cleanup finished", zap.Int("jobs", removed), zap.Int("files", len(swept)))
	return nil
}

func (s *ExportJobService) expire(ctx context.Context, job models.ExportJob) {
	if job.ResultURL != nil {
		token := (*job.ResultURL)[strings.LastIndex(*job.ResultURL, "/")+1:]
		if claims, err := s.exporter.ParseToken(token, true); err == nil {
			if err := s.exporter.Delete(claims.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("export delete failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}
	failed := models.ExportStatusFailed
	msg := "export expired"
	empty := ""
	if err := s.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &failed, ErrorMessage: &msg, ResultURL: &empty}); err != nil {
		s.logger.Warn("failed to expire export job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *ExportJobService) markFailed(ctx context.Context, id, msg string) {
	failed := models.ExportStatusFailed
	progress := 100
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.ExportJobUpdate{Status: &failed, Progress: &progress, ErrorMessage: &msg, FinishedAt: &now}); err != nil {
		s.logger.Warn("failed to mark export job failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *ExportJobService) load(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Internal(err, "failed to load export job")
	}
	return job, nil
}

// ExportWorker runs queued export jobs.
type ExportWorker struct {
	repo       exportJobStore
	exporter   exportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker. maxRetries must match the queue's.
func NewExportWorker(repo exportJobStore, exporter exportGenerator, maxRetries int, metrics *MetricsService, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ExportWorker{repo: repo, exporter: exporter, metrics: metrics, logger: logger, maxRetries: maxRetries}
}

// Handle processes one queue job. A returned error lets the queue retry.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.FindByID(ctx, job.ID)
	if err != nil {
		if isNotFound(err) {
			w.logger.Warn("export job vanished", zap.String("job_id", job.ID))
			return nil
		}
		return err
	}
	if record.Status == models.ExportStatusFinished || record.Status == models.ExportStatusFailed {
		return nil
	}
	processing := models.ExportStatusProcessing
	progress := 10
	started := time.Now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{Status: &processing, Progress: &progress, StartedAt: &started}); err != nil {
		return err
	}

	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ExportStatusFailed
			done := 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{
				Status: &failed, Progress: &done, ErrorMessage: &msg, FinishedAt: &now,
			}); updateErr != nil {
				w.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
			w.metrics.RecordExportJob(models.ExportStatusFailed)
		} else {
			queued := models.ExportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{
				Status: &queued, Progress: &reset, ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}

	finished := models.ExportStatusFinished
	done := 100
	now := time.Now().UTC()
	noError := ""
	if err := w.repo.Update(ctx, job.ID, repository.ExportJobUpdate{
		Status: &finished, Progress: &done, ResultURL: &result.URL, ErrorMessage: &noError, FinishedAt: &now,
	}); err != nil {
		return err
	}
	w.metrics.RecordExportJob(models.ExportStatusFinished)
	w.logger.Info("export finished", zap.String("job_id", job.ID), zap.String("path", result.RelativePath))
	return nil
}
