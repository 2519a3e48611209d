package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), Handlers{
		Courses:     NewCourseHandler(&catalogMock{course: &models.Course{ID: "c-1"}}),
		Enrollments: NewEnrollmentHandler(&enrollmentMock{enrollment: ownedEnrollment()}, &certificateMock{}),
		Submissions: NewSubmissionHandler(&submissionMock{}),
		Payments:    NewPaymentWebhookHandler(&enrollmentMock{}, webhookSecret, nil),
		Exports:     NewExportHandler(&exportMock{}),
		Metrics:     NewMetricsHandler(nil),
	}, tokenTable{"student": studentClaims, "instructor": instructorClaims, "admin": adminClaims})
	return r
}

func TestRoutesEnforceAuthentication(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		method string
		path   string
		token  string
		body   string
		status int
	}{
		{method: http.MethodGet, path: "/api/v1/courses", status: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/courses/c-1", status: http.StatusOK},
		{method: http.MethodPost, path: "/api/v1/courses", body: `{}`, status: http.StatusUnauthorized},
		{method: http.MethodPost, path: "/api/v1/courses", token: "student", body: `{}`, status: http.StatusForbidden},
		{method: http.MethodPost, path: "/api/v1/courses", token: "instructor", body: `{}`, status: http.StatusCreated},
		{method: http.MethodPost, path: "/api/v1/courses/c-1/enroll", status: http.StatusUnauthorized},
		{method: http.MethodGet, path: "/api/v1/enrollments/enr-1", token: "student", status: http.StatusOK},
		{method: http.MethodPost, path: "/api/v1/enrollments/enr-1/payment", token: "student", body: `{}`, status: http.StatusForbidden},
		{method: http.MethodPost, path: "/api/v1/payments/webhook", body: `{}`, status: http.StatusUnauthorized},
		{method: http.MethodGet, path: "/api/v1/exports/job-1", status: http.StatusUnauthorized},
		{method: http.MethodGet, path: "/api/v1/system/metrics", token: "student", status: http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "%s %s as %q", tc.method, tc.path, tc.token)
	}
}
