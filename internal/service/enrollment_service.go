package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/repository"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	Update(ctx context.Context, id string, fn func(course *models.Course, enrollment *models.Enrollment) error) (*models.Enrollment, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EnrollmentService records enrollments, lesson progress and payment
// outcomes, and issues certificates once a learner qualifies.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		courses:   courses,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enroll registers user in a published course. The price is captured so
// later price edits do not affect the payment check.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID string, user models.UserSnapshot) (*models.Enrollment, error) {
	if user.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, mapCourseError(err, "failed to load course")
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrNotAvailable, "course is not open for enrollment")
	}

	now := s.now()
	enrollment := &models.Enrollment{
		CourseID:    course.ID,
		User:        user,
		CoursePrice: course.Price,
		EnrolledAt:  now,
		Progress:    []models.LessonProgress{},
		Payment:     models.Payment{Status: models.PaymentStatusPending, CreatedAt: now},
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "user already enrolled in course")
		}
		return nil, appErrors.Internal(err, "failed to create enrollment")
	}
	s.metrics.RecordEnrollment()
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("course_id", course.ID),
		zap.String("user_id", user.UserID),
	)
	return enrollment, nil
}

// RecordProgress marks a lesson completed or not completed and issues the
// certificate in the same write when the learner becomes eligible.
func (s *EnrollmentService) RecordProgress(ctx context.Context, enrollmentID, lessonID string, completed bool) (*models.Enrollment, error) {
	if lessonID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson id is required")
	}
	var issued bool
	updated, err := s.repo.Update(ctx, enrollmentID, func(course *models.Course, e *models.Enrollment) error {
		if _, ok := course.Lesson(lessonID); !ok {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found in course")
		}
		now := s.now()
		entry, ok := e.ProgressFor(lessonID)
		if !ok {
			e.Progress = append(e.Progress, models.LessonProgress{LessonID: lessonID})
			entry = &e.Progress[len(e.Progress)-1]
		}
		switch {
		case completed && !entry.Completed:
			completedAt := now
			entry.Completed = true
			entry.CompletedAt = &completedAt
		case !completed:
			entry.Completed = false
			entry.CompletedAt = nil
		}
		entry.UpdatedAt = now
		issued = issueCertificate(course, e, now)
		return nil
	})
	if err != nil {
		return nil, mapEnrollmentError(err, "failed to record progress")
	}
	s.metrics.RecordProgressUpdate()
	s.afterWrite(updated, issued)
	return updated, nil
}

// RecordPayment stores the gateway's outcome. Completed and failed are
// terminal. A completed payment must cover the price captured at enrollment.
func (s *EnrollmentService) RecordPayment(ctx context.Context, enrollmentID string, req dto.PaymentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payment payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}
	amount := *req.Amount
	if amount < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment amount must not be negative")
	}

	var issued bool
	updated, err := s.repo.Update(ctx, enrollmentID, func(course *models.Course, e *models.Enrollment) error {
		if e.Payment.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "payment is already "+string(e.Payment.Status))
		}
		if req.Status == models.PaymentStatusCompleted && amount < e.CoursePrice {
			return appErrors.Clone(appErrors.ErrValidation, "payment amount is below the course price")
		}
		now := s.now()
		processedAt := now
		e.Payment.Amount = amount
		e.Payment.Provider = req.Provider
		e.Payment.Status = req.Status
		e.Payment.ProcessedAt = &processedAt
		issued = issueCertificate(course, e, now)
		return nil
	})
	if err != nil {
		return nil, mapEnrollmentError(err, "failed to record payment")
	}
	s.metrics.RecordPayment(req.Status)
	s.logger.Info("payment recorded",
		zap.String("enrollment_id", enrollmentID),
		zap.String("status", string(req.Status)),
		zap.Float64("amount", amount),
	)
	s.afterWrite(updated, issued)
	return updated, nil
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapEnrollmentError(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	page, size := pageBounds(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Progress summarises completion against the current course tree.
func (s *EnrollmentService) Progress(ctx context.Context, id string) (*dto.EnrollmentProgress, error) {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		return nil, mapCourseError(err, "failed to load course")
	}
	summary := summarizeProgress(course, enrollment)
	return &summary, nil
}

func (s *EnrollmentService) afterWrite(e *models.Enrollment, issued bool) {
	if !issued {
		return
	}
	s.metrics.RecordCertificate()
	s.logger.Info("certificate issued",
		zap.String("enrollment_id", e.ID),
		zap.String("course_id", e.CourseID),
		zap.String("user_id", e.User.UserID),
	)
}

func summarizeProgress(course *models.Course, e *models.Enrollment) dto.EnrollmentProgress {
	done := e.CompletedLessons()
	ids := course.LessonIDs()
	completed := 0
	for _, id := range ids {
		if _, ok := done[id]; ok {
			completed++
		}
	}
	out := dto.EnrollmentProgress{CompletedLessons: completed, TotalLessons: len(ids)}
	if len(ids) > 0 {
		out.Percent = float64(completed) * 100 / float64(len(ids))
	}
	return out
}
