package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

// Grader produces a verdict for submitted code.
type Grader interface {
	Grade(ctx context.Context, code, language string) (models.SubmissionResult, error)
}

type lessonReader interface {
	FindLesson(ctx context.Context, id string) (*models.Lesson, error)
}

type submissionRepository interface {
	Create(ctx context.Context, submission *models.CodeSubmission) error
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.CodeSubmission, error)
}

// SubmissionService grades code for coding lessons and keeps the append-only
// submission log.
type SubmissionService struct {
	lessons   lessonReader
	repo      submissionRepository
	grader    Grader
	timeout   time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmissionService constructs SubmissionService. A non-positive timeout
// defaults to ten seconds.
func NewSubmissionService(lessons lessonReader, repo submissionRepository, grader Grader, timeout time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SubmissionService{
		lessons:   lessons,
		repo:      repo,
		grader:    grader,
		timeout:   timeout,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitCode grades code against a coding lesson and records the verdict.
// Nothing is written when grading fails or times out.
func (s *SubmissionService) SubmitCode(ctx context.Context, lessonID, userID string, req dto.SubmitCodeRequest) (*models.CodeSubmission, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid submission payload")
	}
	lesson, err := s.lessons.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, mapLessonError(err)
	}
	if lesson.Type != models.LessonTypeCoding {
		return nil, appErrors.Clone(appErrors.ErrInvalidLessonType, "lesson "+lesson.ID+" is a "+string(lesson.Type)+" lesson")
	}
	if s.grader == nil {
		return nil, appErrors.ErrGradingUnavailable
	}

	start := time.Now()
	gradeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := s.grader.Grade(gradeCtx, req.Code, req.Language)
	cancel()
	if err == nil && !result.Valid() {
		err = fmt.Errorf("unknown verdict %q", result)
	}
	if err != nil {
		s.metrics.RecordGradingFailure(time.Since(start))
		s.logger.Warn("grading failed", zap.String("lesson_id", lessonID), zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrGradingUnavailable.Code, appErrors.ErrGradingUnavailable.Status, appErrors.ErrGradingUnavailable.Message)
	}

	submission := &models.CodeSubmission{
		LessonID:    lesson.ID,
		UserID:      userID,
		Code:        req.Code,
		Language:    req.Language,
		Result:      result,
		SubmittedAt: s.now(),
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, appErrors.Internal(err, "failed to store submission")
	}
	s.metrics.RecordSubmission(result, time.Since(start))
	s.logger.Info("submission graded",
		zap.String("submission_id", submission.ID),
		zap.String("lesson_id", lesson.ID),
		zap.String("result", string(result)),
	)
	return submission, nil
}

// ListSubmissions returns the newest submissions for a lesson, optionally
// narrowed to one user.
func (s *SubmissionService) ListSubmissions(ctx context.Context, lessonID, userID string, limit int) ([]models.CodeSubmission, error) {
	if _, err := s.lessons.FindLesson(ctx, lessonID); err != nil {
		return nil, mapLessonError(err)
	}
	items, err := s.repo.List(ctx, models.SubmissionFilter{LessonID: lessonID, UserID: userID, Limit: limit})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list submissions")
	}
	return items, nil
}

func mapLessonError(err error) error {
	if isNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	return appErrors.Internal(err, "failed to load lesson")
}
