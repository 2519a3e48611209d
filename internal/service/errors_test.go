package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

var malformedID = fmt.Errorf("load: %w", &pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})

func TestErrorMappersTreatMalformedIDsAsMissing(t *testing.T) {
	assertCode(t, mapCourseError(malformedID, "failed"), appErrors.ErrNotFound)
	assertCode(t, mapEnrollmentError(malformedID, "failed"), appErrors.ErrNotFound)
	assertCode(t, mapLessonError(malformedID), appErrors.ErrNotFound)
}

func TestErrorMappersKeepOtherFailuresInternal(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	assertCode(t, mapCourseError(unique, "failed"), appErrors.ErrInternal)
	assertCode(t, mapEnrollmentError(errors.New("boom"), "failed"), appErrors.ErrInternal)
	assertCode(t, mapLessonError(unique), appErrors.ErrInternal)
	assertCode(t, mapEnrollmentError(appErrors.ErrInvalidTransition, "failed"), appErrors.ErrInvalidTransition)
}

type failingEnrollmentRepo struct {
	err error
}

func (r failingEnrollmentRepo) Create(context.Context, *models.Enrollment) error { return r.err }

func (r failingEnrollmentRepo) FindByID(context.Context, string) (*models.Enrollment, error) {
	return nil, r.err
}

func (r failingEnrollmentRepo) List(context.Context, models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	return nil, 0, r.err
}

func (r failingEnrollmentRepo) Update(context.Context, string, func(*models.Course, *models.Enrollment) error) (*models.Enrollment, error) {
	return nil, r.err
}

func TestEnrollmentLookupsWithMalformedIDReturnNotFound(t *testing.T) {
	svc := NewEnrollmentService(failingEnrollmentRepo{err: malformedID}, nil, nil, nil, nil)

	_, err := svc.Get(context.Background(), "abc")
	assertCode(t, err, appErrors.ErrNotFound)

	_, err = svc.RecordPayment(context.Background(), "abc", payment(10, models.PaymentStatusCompleted))
	assertCode(t, err, appErrors.ErrNotFound)
	require.Equal(t, 404, appErrors.FromError(err).Status)
	assert.Equal(t, "NOT_FOUND", appErrors.FromError(err).Code)
}
