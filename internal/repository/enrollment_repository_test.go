package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/models"
)

var (
	enrollmentCols = []string{"id", "course_id", "user_id", "user_name", "user_email", "course_price", "enrolled_at",
		"certificate_issued", "certificate_issued_at", "payment_amount", "payment_status", "payment_provider",
		"payment_created_at", "payment_processed_at"}
	progressCols = []string{"enrollment_id", "lesson_id", "completed", "completed_at", "updated_at"}
)

func TestEnrollmentRepositoryCreate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (course_id, user_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := &models.Enrollment{CourseID: "course-1", User: models.UserSnapshot{UserID: "u-1"}}
	require.NoError(t, repo.Create(context.Background(), e))
	assert.NotEmpty(t, e.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), &models.Enrollment{CourseID: "course-1", User: models.UserSnapshot{UserID: "u-1"}})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows(enrollmentCols).
			AddRow("enr-1", "course-1", "u-1", "Ada", "ada@example.com", 10.0, now, false, nil, 0.0, "pending", "", now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM lesson_progress WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows(progressCols).AddRow("enr-1", "les-1", true, now, now))

	e, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", e.User.FullName)
	assert.Equal(t, models.PaymentStatusPending, e.Payment.Status)
	require.Len(t, e.Progress, 1)
	assert.True(t, e.Progress[0].Completed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectLockedEnrollment(mock sqlmock.Sqlmock, now time.Time) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows(enrollmentCols).
			AddRow("enr-1", "course-1", "u-1", "Ada", "ada@example.com", 49.5, now, false, nil, 0.0, "pending", "", now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM lesson_progress WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows(progressCols).AddRow("enr-1", "les-1", true, now, now))
	expectCourseTree(mock, " FOR SHARE", now)
}

func TestEnrollmentRepositoryUpdateWritesOnlyChanges(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)
	now := time.Now()

	expectLockedEnrollment(mock, now)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET certificate_issued")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_progress")).
		WithArgs("enr-1", "les-2", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Update(context.Background(), "enr-1", func(course *models.Course, e *models.Enrollment) error {
		require.Len(t, course.LessonIDs(), 3)
		ts := now.Add(time.Minute)
		e.Progress = append(e.Progress, models.LessonProgress{LessonID: "les-2", Completed: true, CompletedAt: &ts, UpdatedAt: ts})
		e.Payment.Status = models.PaymentStatusCompleted
		e.Payment.Amount = 49.5
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, updated.Payment.Status)
	require.Len(t, updated.Progress, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateRollsBackOnCallbackError(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	expectLockedEnrollment(mock, time.Now())
	mock.ExpectRollback()

	invalid := errors.New("invalid transition")
	_, err := repo.Update(context.Background(), "enr-1", func(_ *models.Course, e *models.Enrollment) error {
		e.Payment.Status = models.PaymentStatusFailed
		return invalid
	})
	require.ErrorIs(t, err, invalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListAttachesProgress(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE course_id = $1 ORDER BY enrolled_at DESC, id LIMIT 20 OFFSET 0")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows(enrollmentCols).
			AddRow("enr-1", "course-1", "u-1", "Ada", "a@x", 10.0, now, false, nil, 0.0, "pending", "", now, nil).
			AddRow("enr-2", "course-1", "u-2", "Bob", "b@x", 10.0, now, false, nil, 0.0, "pending", "", now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE enrollment_id = ANY($1::uuid[])")).
		WillReturnRows(sqlmock.NewRows(progressCols).AddRow("enr-2", "les-1", false, nil, now))

	items, total, err := repo.List(context.Background(), models.EnrollmentFilter{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Empty(t, items[0].Progress)
	require.Len(t, items[1].Progress, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
