package repository

import (
	"context"
	"time"

	"github.com/noah-isme/coursehub-api/internal/models"
)

// CourseStore persists course trees. Update loads the course under lock and
// replaces it with whatever fn returns; an error from fn leaves it untouched.
type CourseStore interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindLesson(ctx context.Context, id string) (*models.Lesson, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Update(ctx context.Context, id string, fn func(current *models.Course, usage models.LessonUsage) (*models.Course, error)) (*models.Course, error)
	SetPublished(ctx context.Context, id string, published bool, at time.Time) error
}

// EnrollmentStore persists enrollments. Create returns ErrDuplicate when the
// user is already enrolled. Update serializes mutations per enrollment and
// commits only when fn returns nil.
type EnrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
	Update(ctx context.Context, id string, fn func(course *models.Course, enrollment *models.Enrollment) error) (*models.Enrollment, error)
}

// SubmissionStore appends and lists graded code submissions.
type SubmissionStore interface {
	Create(ctx context.Context, submission *models.CodeSubmission) error
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.CodeSubmission, error)
}

// ExportJobStore persists export job state.
type ExportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params ExportJobUpdate) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

// Stores bundles one driver's repositories.
type Stores struct {
	Courses     CourseStore
	Enrollments EnrollmentStore
	Submissions SubmissionStore
	ExportJobs  ExportJobStore
}

var (
	_ CourseStore     = (*CourseRepository)(nil)
	_ EnrollmentStore = (*EnrollmentRepository)(nil)
	_ SubmissionStore = (*SubmissionRepository)(nil)
	_ ExportJobStore  = (*ExportJobRepository)(nil)
)
