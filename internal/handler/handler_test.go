package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/middleware"
	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/service"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

var (
	studentClaims    = &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent, FullName: "Ada", Email: "ada@example.com"}
	otherStudent     = &models.JWTClaims{UserID: "stu-2", Role: models.RoleStudent}
	instructorClaims = &models.JWTClaims{UserID: "ins-1", Role: models.RoleInstructor, FullName: "Grace"}
	adminClaims      = &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withClaims(c *gin.Context, claims *models.JWTClaims) {
	c.Set(middleware.ContextUserKey, claims)
}

type catalogMock struct {
	course     *models.Course
	courses    []models.Course
	err        error
	lastActor  *models.JWTClaims
	lastQuery  dto.CourseListQuery
	lastInput  dto.CourseInput
	lastPublic *bool
}

func (m *catalogMock) CreateCourse(_ context.Context, actor *models.JWTClaims, req dto.CourseInput) (*models.Course, error) {
	m.lastActor, m.lastInput = actor, req
	return m.course, m.err
}

func (m *catalogMock) UpdateCourse(_ context.Context, actor *models.JWTClaims, _ string, req dto.CourseInput) (*models.Course, error) {
	m.lastActor, m.lastInput = actor, req
	return m.course, m.err
}

func (m *catalogMock) SetPublished(_ context.Context, actor *models.JWTClaims, _ string, published bool) (*models.Course, error) {
	m.lastActor, m.lastPublic = actor, &published
	return m.course, m.err
}

func (m *catalogMock) GetCourse(_ context.Context, actor *models.JWTClaims, _ string) (*models.Course, error) {
	m.lastActor = actor
	return m.course, m.err
}

func (m *catalogMock) ListCourses(_ context.Context, actor *models.JWTClaims, query dto.CourseListQuery) ([]models.Course, *models.Pagination, error) {
	m.lastActor, m.lastQuery = actor, query
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.courses, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.courses)}, nil
}

type enrollmentMock struct {
	enrollment  *models.Enrollment
	err         error
	progress    *dto.EnrollmentProgress
	lastUser    models.UserSnapshot
	lastFilter  models.EnrollmentFilter
	lastLesson  string
	lastDone    bool
	lastPayment dto.PaymentRequest
	writes      int
}

func (m *enrollmentMock) Enroll(_ context.Context, _ string, user models.UserSnapshot) (*models.Enrollment, error) {
	m.lastUser = user
	return m.enrollment, m.err
}

func (m *enrollmentMock) RecordProgress(_ context.Context, _ string, lessonID string, completed bool) (*models.Enrollment, error) {
	m.writes++
	m.lastLesson, m.lastDone = lessonID, completed
	return m.enrollment, m.err
}

func (m *enrollmentMock) RecordPayment(_ context.Context, _ string, req dto.PaymentRequest) (*models.Enrollment, error) {
	m.writes++
	m.lastPayment = req
	return m.enrollment, m.err
}

func (m *enrollmentMock) Get(_ context.Context, _ string) (*models.Enrollment, error) {
	if m.enrollment == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return m.enrollment, nil
}

func (m *enrollmentMock) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	m.lastFilter = filter
	return nil, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func (m *enrollmentMock) Progress(_ context.Context, _ string) (*dto.EnrollmentProgress, error) {
	return m.progress, m.err
}

type certificateMock struct {
	doc *service.CertificateDocument
	err error
}

func (m *certificateMock) Render(_ context.Context, _ string, _ *models.JWTClaims) (*service.CertificateDocument, error) {
	return m.doc, m.err
}

type submissionMock struct {
	submission *models.CodeSubmission
	err        error
	lastUser   string
	lastLimit  int
}

func (m *submissionMock) SubmitCode(_ context.Context, _ string, userID string, _ dto.SubmitCodeRequest) (*models.CodeSubmission, error) {
	m.lastUser = userID
	return m.submission, m.err
}

func (m *submissionMock) ListSubmissions(_ context.Context, _ string, userID string, limit int) ([]models.CodeSubmission, error) {
	m.lastUser, m.lastLimit = userID, limit
	return nil, m.err
}

type exportMock struct {
	job      *dto.ExportJobResponse
	status   *dto.ExportStatusResponse
	download *service.ExportDownload
	err      error
}

func (m *exportMock) CreateExport(_ context.Context, _ string, _ *models.JWTClaims, _ dto.ExportRequest) (*dto.ExportJobResponse, error) {
	return m.job, m.err
}

func (m *exportMock) GetExport(_ context.Context, _ string, _ *models.JWTClaims) (*dto.ExportStatusResponse, error) {
	return m.status, m.err
}

func (m *exportMock) ResolveDownload(_ context.Context, _ string) (*service.ExportDownload, error) {
	return m.download, m.err
}
