package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/repository"
)

// EnrollmentRepository is the in-memory enrollment table.
type EnrollmentRepository struct {
	s *Store
}

// Create inserts enrollment unless the (course, user) pair exists. The check
// and the insert happen under one write lock.
func (r *EnrollmentRepository) Create(_ context.Context, enrollment *models.Enrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := r.s.byCourse[enrollment.CourseID]
	if _, exists := users[enrollment.User.UserID]; exists {
		return repository.ErrDuplicate
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if users == nil {
		users = make(map[string]string)
		r.s.byCourse[enrollment.CourseID] = users
	}
	users[enrollment.User.UserID] = enrollment.ID
	r.s.enrollments[enrollment.ID] = &enrollmentSlot{e: enrollment.Clone()}
	return nil
}

// FindByID returns a copy of the enrollment.
func (r *EnrollmentRepository) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	slot, ok := r.s.enrollments[id]
	if !ok {
		return nil, errNotFound
	}
	return slot.snapshot(), nil
}

// List returns enrollments matching filter, newest first.
func (r *EnrollmentRepository) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	all := r.collect(func(e *models.Enrollment) bool {
		return (filter.CourseID == "" || e.CourseID == filter.CourseID) && (filter.UserID == "" || e.User.UserID == filter.UserID)
	})
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].EnrolledAt.Equal(all[j].EnrolledAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].EnrolledAt.After(all[j].EnrolledAt)
	})
	start, end := page(len(all), filter.Page, filter.PageSize)
	return all[start:end], len(all), nil
}

// ListByCourse returns every enrollment of a course, oldest first.
func (r *EnrollmentRepository) ListByCourse(_ context.Context, courseID string) ([]models.Enrollment, error) {
	all := r.collect(func(e *models.Enrollment) bool { return e.CourseID == courseID })
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].EnrolledAt.Equal(all[j].EnrolledAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].EnrolledAt.Before(all[j].EnrolledAt)
	})
	return all, nil
}

// Update runs fn on copies of the enrollment and its course while holding
// the enrollment's mutex. The store read lock is held throughout so the
// course tree cannot change underneath. The copy replaces the stored value
// only when fn succeeds.
func (r *EnrollmentRepository) Update(_ context.Context, id string, fn func(course *models.Course, enrollment *models.Enrollment) error) (*models.Enrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	slot, ok := r.s.enrollments[id]
	if !ok {
		return nil, errNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()

	course, ok := r.s.courses[slot.e.CourseID]
	if !ok {
		return nil, errNotFound
	}
	next := slot.e.Clone()
	if err := fn(cloneCourse(course), next); err != nil {
		return nil, err
	}
	next.ID, next.CourseID, next.User = slot.e.ID, slot.e.CourseID, slot.e.User
	slot.e = next.Clone()
	return next, nil
}

func (r *EnrollmentRepository) collect(keep func(*models.Enrollment) bool) []models.Enrollment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Enrollment, 0)
	for _, slot := range r.s.enrollments {
		e := slot.snapshot()
		if keep(e) {
			out = append(out, *e)
		}
	}
	return out
}

func (s *enrollmentSlot) snapshot() *models.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.e.Clone()
}
