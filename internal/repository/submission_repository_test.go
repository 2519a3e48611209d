package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/models"
)

func TestSubmissionRepositoryCreateAndList(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSubmissionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO code_submissions")).
		WithArgs(sqlmock.AnyArg(), "les-1", "u-1", "fmt.Println()", "go", models.SubmissionPass, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sub := &models.CodeSubmission{LessonID: "les-1", UserID: "u-1", Code: "fmt.Println()", Language: "go", Result: models.SubmissionPass}
	require.NoError(t, repo.Create(context.Background(), sub))
	assert.NotEmpty(t, sub.ID)
	assert.False(t, sub.SubmittedAt.IsZero())

	mock.ExpectQuery(regexp.QuoteMeta("FROM code_submissions WHERE lesson_id = $1 AND user_id = $2")).
		WithArgs("les-1", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "lesson_id", "user_id", "code", "language", "result", "submitted_at"}).
			AddRow(sub.ID, "les-1", "u-1", "fmt.Println()", "go", "pass", time.Now()))

	items, err := repo.List(context.Background(), models.SubmissionFilter{LessonID: "les-1", UserID: "u-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.SubmissionPass, items[0].Result)
	require.NoError(t, mock.ExpectationsWereMet())
}
