package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/repository"
)

func seedCourse(t *testing.T, s *Store) *models.Course {
	t.Helper()
	course := &models.Course{
		Title: "Go", Price: 10, Level: models.LevelBeginner, Published: true,
		Instructor: models.Instructor{ID: "ins-1", FullName: "Rob"},
		Modules: []models.Module{
			{Title: "Second", Order: 2, Lessons: []models.Lesson{{Title: "B", Type: models.LessonTypeCoding, Order: 1}}},
			{Title: "First", Order: 1, Lessons: []models.Lesson{
				{Title: "A2", Type: models.LessonTypeVideo, Order: 2},
				{Title: "A1", Type: models.LessonTypeArticle, Order: 1},
			}},
		},
	}
	require.NoError(t, s.Courses().Create(context.Background(), course))
	return course
}

func TestCourseCreateAssignsIDsAndOrdersTree(t *testing.T) {
	s := NewStore()
	course := seedCourse(t, s)

	got, err := s.Courses().FindByID(context.Background(), course.ID)
	require.NoError(t, err)
	require.Len(t, got.Modules, 2)
	assert.Equal(t, "First", got.Modules[0].Title)
	assert.Equal(t, "A1", got.Modules[0].Lessons[0].Title)
	for _, m := range got.Modules {
		assert.NotEmpty(t, m.ID)
		for _, l := range m.Lessons {
			assert.Equal(t, m.ID, l.ModuleID)
			assert.Equal(t, course.ID, l.CourseID)
		}
	}

	got.Modules[0].Title = "mutated"
	again, err := s.Courses().FindByID(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", again.Modules[0].Title)

	_, err = s.Courses().FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCourseListFiltersAndPaginates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c := &models.Course{Title: fmt.Sprintf("Course %d", i), Level: models.LevelBeginner, Published: i%2 == 0,
			CreatedAt: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC)}
		require.NoError(t, s.Courses().Create(ctx, c))
	}

	items, total, err := s.Courses().List(ctx, models.CourseFilter{PublishedOnly: true, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Course 4", items[0].Title)

	items, _, err = s.Courses().List(ctx, models.CourseFilter{Search: "course 1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestEnrollmentCreateRejectsDuplicatePair(t *testing.T) {
	s := NewStore()
	course := seedCourse(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, dup := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Enrollments().Create(ctx, &models.Enrollment{CourseID: course.ID, User: models.UserSnapshot{UserID: "u-1"}})
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, repository.ErrDuplicate) {
				dup++
			} else if err == nil {
				created++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, 19, dup)
}

func TestEnrollmentUpdateIsAllOrNothing(t *testing.T) {
	s := NewStore()
	course := seedCourse(t, s)
	ctx := context.Background()
	e := &models.Enrollment{CourseID: course.ID, User: models.UserSnapshot{UserID: "u-1"}, Progress: []models.LessonProgress{}}
	require.NoError(t, s.Enrollments().Create(ctx, e))

	boom := errors.New("boom")
	_, err := s.Enrollments().Update(ctx, e.ID, func(c *models.Course, en *models.Enrollment) error {
		en.Progress = append(en.Progress, models.LessonProgress{LessonID: c.LessonIDs()[0], Completed: true})
		en.Payment.Status = models.PaymentStatusCompleted
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := s.Enrollments().FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Progress)
	assert.Equal(t, models.PaymentStatus(""), stored.Payment.Status)

	_, err = s.Enrollments().Update(ctx, "missing", func(*models.Course, *models.Enrollment) error { return nil })
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentConcurrentUpdatesLoseNothing(t *testing.T) {
	s := NewStore()
	course := seedCourse(t, s)
	ctx := context.Background()
	e := &models.Enrollment{CourseID: course.ID, User: models.UserSnapshot{UserID: "u-1"}}
	require.NoError(t, s.Enrollments().Create(ctx, e))

	lessons := course.LessonIDs()
	var wg sync.WaitGroup
	for _, id := range lessons {
		for n := 0; n < 10; n++ {
			wg.Add(1)
			go func(lessonID string) {
				defer wg.Done()
				_, err := s.Enrollments().Update(ctx, e.ID, func(_ *models.Course, en *models.Enrollment) error {
					if _, ok := en.ProgressFor(lessonID); !ok {
						en.Progress = append(en.Progress, models.LessonProgress{LessonID: lessonID, Completed: true})
					}
					return nil
				})
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	stored, err := s.Enrollments().FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Progress, len(lessons))
}

func TestCourseUsageReportsProgressAndSubmissions(t *testing.T) {
	s := NewStore()
	course := seedCourse(t, s)
	ctx := context.Background()
	ids := course.LessonIDs()

	e := &models.Enrollment{CourseID: course.ID, User: models.UserSnapshot{UserID: "u-1"}}
	require.NoError(t, s.Enrollments().Create(ctx, e))
	_, err := s.Enrollments().Update(ctx, e.ID, func(_ *models.Course, en *models.Enrollment) error {
		en.Progress = append(en.Progress, models.LessonProgress{LessonID: ids[0]})
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Submissions().Create(ctx, &models.CodeSubmission{LessonID: ids[2], UserID: "u-2", Result: models.SubmissionPass}))

	var seen models.LessonUsage
	_, err = s.Courses().Update(ctx, course.ID, func(current *models.Course, usage models.LessonUsage) (*models.Course, error) {
		seen = usage
		return current, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.LessonUsage{ids[0]: true, ids[2]: true}, seen)
}

func TestExportJobLifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	job := &models.ExportJob{CourseID: "c-1", CreatedBy: "u-1"}
	require.NoError(t, s.ExportJobs().Create(ctx, job))

	queued, err := s.ExportJobs().ListQueued(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	processing := models.ExportStatusProcessing
	started := time.Now().Add(-time.Hour)
	require.NoError(t, s.ExportJobs().Update(ctx, job.ID, repository.ExportJobUpdate{Status: &processing, StartedAt: &started}))
	stalled, err := s.ExportJobs().ListStalled(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	stalled, err = s.ExportJobs().ListStalled(ctx, started.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stalled)

	status := models.ExportStatusFinished
	finished := time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.ExportJobs().Update(ctx, job.ID, repository.ExportJobUpdate{Status: &status, FinishedAt: &finished}))

	old, err := s.ExportJobs().ListFinishedBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, job.ID, old[0].ID)
}
