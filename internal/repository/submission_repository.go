package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursehub-api/internal/models"
)

// SubmissionRepository stores graded code submissions. Rows are never updated.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create appends a submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.CodeSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO code_submissions (id, lesson_id, user_id, code, language, result, submitted_at)
VALUES (:id, :lesson_id, :user_id, :code, :language, :result, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create code submission: %w", err)
	}
	return nil
}

// List returns submissions newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.CodeSubmission, error) {
	var conditions []string
	var args []interface{}
	if filter.LessonID != "" {
		args = append(args, filter.LessonID)
		conditions = append(conditions, fmt.Sprintf("lesson_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	query := fmt.Sprintf(`SELECT id, lesson_id, user_id, code, language, result, submitted_at FROM code_submissions%s
ORDER BY submitted_at DESC, id LIMIT %d`, clause, limit)
	var out []models.CodeSubmission
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list code submissions: %w", err)
	}
	return out, nil
}
