// Package memory is a process-local store driver. It mirrors the PostgreSQL
// repositories' semantics and is used for local runs and tests.
package memory

import (
	"database/sql"
	"sync"
	"time"

	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/repository"
)

// Store holds every table of the catalog and progress store. The store-wide
// RWMutex guards the maps; each enrollment additionally carries its own
// mutex so updates to different enrollments proceed in parallel.
type Store struct {
	mu sync.RWMutex

	courses     map[string]*models.Course
	enrollments map[string]*enrollmentSlot
	byCourse    map[string]map[string]string // course id -> user id -> enrollment id
	submissions []models.CodeSubmission
	exportJobs  map[string]*models.ExportJob

	now func() time.Time
}

type enrollmentSlot struct {
	mu sync.Mutex
	e  *models.Enrollment
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		courses:     make(map[string]*models.Course),
		enrollments: make(map[string]*enrollmentSlot),
		byCourse:    make(map[string]map[string]string),
		exportJobs:  make(map[string]*models.ExportJob),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Courses exposes the course table.
func (s *Store) Courses() *CourseRepository { return &CourseRepository{s: s} }

// Enrollments exposes the enrollment table.
func (s *Store) Enrollments() *EnrollmentRepository { return &EnrollmentRepository{s: s} }

// Submissions exposes the code submission table.
func (s *Store) Submissions() *SubmissionRepository { return &SubmissionRepository{s: s} }

// ExportJobs exposes the export job table.
func (s *Store) ExportJobs() *ExportJobRepository { return &ExportJobRepository{s: s} }

func (s *Store) findLesson(id string) (*models.Lesson, bool) {
	for _, c := range s.courses {
		if l, ok := c.Lesson(id); ok {
			return l, true
		}
	}
	return nil, false
}

func cloneCourse(c *models.Course) *models.Course {
	out := *c
	out.Modules = make([]models.Module, len(c.Modules))
	for i, m := range c.Modules {
		out.Modules[i] = m
		out.Modules[i].Lessons = append([]models.Lesson(nil), m.Lessons...)
	}
	return &out
}

func page(total, pageNum, size int) (int, int) {
	if pageNum < 1 {
		pageNum = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (pageNum - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return start, end
}

var errNotFound = sql.ErrNoRows

// Stores returns the store's repositories behind the driver-neutral interfaces.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Courses:     s.Courses(),
		Enrollments: s.Enrollments(),
		Submissions: s.Submissions(),
		ExportJobs:  s.ExportJobs(),
	}
}
