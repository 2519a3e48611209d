package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

func TestSubmissionHandlerSubmit(t *testing.T) {
	svc := &submissionMock{submission: &models.CodeSubmission{ID: "s-1", Result: models.SubmissionPass}}
	h := NewSubmissionHandler(svc)

	c, w := newGinContext(http.MethodPost, "/lessons/l-1/submissions", []byte(`{"code":"package main","language":"go"}`))
	c.Params = gin.Params{{Key: "id", Value: "l-1"}}
	withClaims(c, studentClaims)
	h.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "stu-1", svc.lastUser)
	assert.Contains(t, w.Body.String(), `"result":"pass"`)
}

func TestSubmissionHandlerGraderDown(t *testing.T) {
	svc := &submissionMock{err: appErrors.Wrap(context.DeadlineExceeded, appErrors.ErrGradingUnavailable.Code, appErrors.ErrGradingUnavailable.Status, "grading failed")}
	h := NewSubmissionHandler(svc)

	c, w := newGinContext(http.MethodPost, "/lessons/l-1/submissions", []byte(`{"code":"x","language":"go"}`))
	c.Params = gin.Params{{Key: "id", Value: "l-1"}}
	withClaims(c, studentClaims)
	h.Submit(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "GRADING_UNAVAILABLE")
}

func TestSubmissionHandlerListScopesToCaller(t *testing.T) {
	svc := &submissionMock{}
	h := NewSubmissionHandler(svc)

	c, w := newGinContext(http.MethodGet, "/lessons/l-1/submissions?user_id=stu-2&limit=5", nil)
	c.Params = gin.Params{{Key: "id", Value: "l-1"}}
	withClaims(c, studentClaims)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", svc.lastUser)
	assert.Equal(t, 5, svc.lastLimit)

	c, _ = newGinContext(http.MethodGet, "/lessons/l-1/submissions?user_id=stu-2", nil)
	c.Params = gin.Params{{Key: "id", Value: "l-1"}}
	withClaims(c, adminClaims)
	h.List(c)
	assert.Equal(t, "stu-2", svc.lastUser)
	assert.Equal(t, 50, svc.lastLimit)
}
