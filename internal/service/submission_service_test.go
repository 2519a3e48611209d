package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/repository/memory"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

type stubGrader struct {
	result models.SubmissionResult
	err    error
	block  bool
	calls  int
}

func (g *stubGrader) Grade(ctx context.Context, code, language string) (models.SubmissionResult, error) {
	g.calls++
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.result, g.err
}

func newSubmissionFixture(t *testing.T, grader Grader) (*SubmissionService, *memory.Store, *models.Course, *MetricsService) {
	t.Helper()
	store := memory.NewStore()
	course, err := newCatalog(store).CreateCourse(context.Background(), instructor, sampleCourseInput())
	require.NoError(t, err)
	metrics := NewMetricsService()
	svc := NewSubmissionService(store.Courses(), store.Submissions(), grader, 50*time.Millisecond, metrics, nil, nil)
	return svc, store, course, metrics
}

var goCode = dto.SubmitCodeRequest{Code: "package main", Language: "go"}

func TestSubmitCodeRecordsVerdict(t *testing.T) {
	grader := &stubGrader{result: models.SubmissionFail}
	svc, _, course, metrics := newSubmissionFixture(t, grader)
	ctx := context.Background()
	coding := course.Modules[0].Lessons[0].ID

	sub, err := svc.SubmitCode(ctx, coding, "u-1", goCode)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionFail, sub.Result)
	assert.NotEmpty(t, sub.ID)

	grader.result = models.SubmissionPass
	_, err = svc.SubmitCode(ctx, coding, "u-1", goCode)
	require.NoError(t, err)

	items, err := svc.ListSubmissions(ctx, coding, "u-1", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, uint64(2), metrics.Snapshot().Submissions)
}

func TestSubmitCodeRejectsNonCodingLesson(t *testing.T) {
	grader := &stubGrader{result: models.SubmissionPass}
	svc, store, course, _ := newSubmissionFixture(t, grader)
	video := course.Modules[0].Lessons[1].ID

	_, err := svc.SubmitCode(context.Background(), video, "u-1", goCode)
	assertCode(t, err, appErrors.ErrInvalidLessonType)
	assert.Zero(t, grader.calls)

	items, err := store.Submissions().List(context.Background(), models.SubmissionFilter{LessonID: video})
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.SubmitCode(context.Background(), "missing", "u-1", goCode)
	assertCode(t, err, appErrors.ErrNotFound)
	_, err = svc.SubmitCode(context.Background(), video, "u-1", dto.SubmitCodeRequest{Language: "go"})
	assertCode(t, err, appErrors.ErrValidation)
}

func TestSubmitCodeGradingFailuresWriteNothing(t *testing.T) {
	cases := map[string]*stubGrader{
		"error":   {err: errors.New("connection refused")},
		"timeout": {block: true},
		"verdict": {result: "maybe"},
	}
	for name, grader := range cases {
		t.Run(name, func(t *testing.T) {
			svc, store, course, metrics := newSubmissionFixture(t, grader)
			coding := course.Modules[0].Lessons[0].ID

			_, err := svc.SubmitCode(context.Background(), coding, "u-1", goCode)
			assertCode(t, err, appErrors.ErrGradingUnavailable)

			items, err := store.Submissions().List(context.Background(), models.SubmissionFilter{LessonID: coding})
			require.NoError(t, err)
			assert.Empty(t, items)
			assert.Equal(t, uint64(1), metrics.Snapshot().GradingFailures)
		})
	}
}

func TestSubmitCodeWithoutGrader(t *testing.T) {
	svc, _, course, _ := newSubmissionFixture(t, nil)
	_, err := svc.SubmitCode(context.Background(), course.Modules[0].Lessons[0].ID, "u-1", goCode)
	assertCode(t, err, appErrors.ErrGradingUnavailable)
}
