package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/coursehub-api/internal/models"
)

// SubmissionRepository is the in-memory, append-only submission table.
type SubmissionRepository struct {
	s *Store
}

// Create appends a submission.
func (r *SubmissionRepository) Create(_ context.Context, submission *models.CodeSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = r.s.now()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.submissions = append(r.s.submissions, *submission)
	return nil
}

// List returns matching submissions newest first.
func (r *SubmissionRepository) List(_ context.Context, filter models.SubmissionFilter) ([]models.CodeSubmission, error) {
	r.s.mu.RLock()
	out := make([]models.CodeSubmission, 0)
	for i := len(r.s.submissions) - 1; i >= 0; i-- {
		sub := r.s.submissions[i]
		if filter.LessonID != "" && sub.LessonID != filter.LessonID {
			continue
		}
		if filter.UserID != "" && sub.UserID != filter.UserID {
			continue
		}
		out = append(out, sub)
	}
	r.s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
