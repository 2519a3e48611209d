package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/coursehub-api/internal/models"
)

// CourseRepository is the in-memory course table.
type CourseRepository struct {
	s *Store
}

// Create stores a copy of course, generating missing ids.
func (r *CourseRepository) Create(_ context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := r.s.now()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	if course.UpdatedAt.IsZero() {
		course.UpdatedAt = course.CreatedAt
	}
	assignTreeIDs(course)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.courses[course.ID] = cloneCourse(course)
	return nil
}

// FindByID returns a copy of the course tree.
func (r *CourseRepository) FindByID(_ context.Context, id string) (*models.Course, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.courses[id]
	if !ok {
		return nil, errNotFound
	}
	return cloneCourse(c), nil
}

// List returns course summaries matching filter.
func (r *CourseRepository) List(_ context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	r.s.mu.RLock()
	matched := make([]models.Course, 0, len(r.s.courses))
	search := strings.ToLower(filter.Search)
	for _, c := range r.s.courses {
		if filter.PublishedOnly && !c.Published {
			continue
		}
		if filter.InstructorID != "" && c.Instructor.ID != filter.InstructorID {
			continue
		}
		if filter.Level != "" && c.Level != filter.Level {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Title), search) && !strings.Contains(strings.ToLower(c.Description), search) {
			continue
		}
		summary := *c
		summary.Modules = nil
		matched = append(matched, summary)
	}
	r.s.mu.RUnlock()

	asc := strings.EqualFold(filter.SortOrder, "asc")
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less, equal bool
		switch filter.SortBy {
		case "title":
			less, equal = a.Title < b.Title, a.Title == b.Title
		case "price":
			less, equal = a.Price < b.Price, a.Price == b.Price
		default:
			less, equal = a.CreatedAt.Before(b.CreatedAt), a.CreatedAt.Equal(b.CreatedAt)
		}
		if equal {
			return a.ID < b.ID
		}
		if asc {
			return less
		}
		return !less
	})
	start, end := page(len(matched), filter.Page, filter.PageSize)
	return matched[start:end], len(matched), nil
}

// Update applies fn to a copy of the course under the store write lock.
func (r *CourseRepository) Update(_ context.Context, id string, fn func(current *models.Course, usage models.LessonUsage) (*models.Course, error)) (*models.Course, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.courses[id]
	if !ok {
		return nil, errNotFound
	}
	next, err := fn(cloneCourse(current), r.usage(current))
	if err != nil {
		return nil, err
	}
	next.ID = current.ID
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = r.s.now()
	}
	assignTreeIDs(next)
	r.s.courses[id] = cloneCourse(next)
	return next, nil
}

// SetPublished toggles publication.
func (r *CourseRepository) SetPublished(_ context.Context, id string, published bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.courses[id]
	if !ok {
		return errNotFound
	}
	c.Published = published
	c.UpdatedAt = at
	return nil
}

// FindLesson returns a copy of a lesson.
func (r *CourseRepository) FindLesson(_ context.Context, id string) (*models.Lesson, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.findLesson(id)
	if !ok {
		return nil, errNotFound
	}
	lesson := *l
	return &lesson, nil
}

// usage must run under the write lock, which excludes enrollment updates.
func (r *CourseRepository) usage(c *models.Course) models.LessonUsage {
	usage := models.LessonUsage{}
	for _, slot := range r.s.enrollments {
		if slot.e.CourseID != c.ID {
			continue
		}
		for _, p := range slot.e.Progress {
			usage[p.LessonID] = true
		}
	}
	for _, sub := range r.s.submissions {
		if _, ok := c.Lesson(sub.LessonID); ok {
			usage[sub.LessonID] = true
		}
	}
	return usage
}

func assignTreeIDs(c *models.Course) {
	for mi := range c.Modules {
		m := &c.Modules[mi]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.CourseID = c.ID
		for li := range m.Lessons {
			l := &m.Lessons[li]
			if l.ID == "" {
				l.ID = uuid.NewString()
			}
			if l.CreatedAt.IsZero() {
				l.CreatedAt = c.UpdatedAt
			}
			l.ModuleID = m.ID
			l.CourseID = c.ID
		}
		sort.SliceStable(m.Lessons, func(i, j int) bool { return m.Lessons[i].Order < m.Lessons[j].Order })
	}
	sort.SliceStable(c.Modules, func(i, j int) bool { return c.Modules[i].Order < c.Modules[j].Order })
}
