package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/service"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
	"github.com/noah-isme/coursehub-api/pkg/response"
)

type enrollmentManager interface {
	Enroll(ctx context.Context, courseID string, user models.UserSnapshot) (*models.Enrollment, error)
	RecordProgress(ctx context.Context, enrollmentID, lessonID string, completed bool) (*models.Enrollment, error)
	RecordPayment(ctx context.Context, enrollmentID string, req dto.PaymentRequest) (*models.Enrollment, error)
	Get(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error)
	Progress(ctx context.Context, id string) (*dto.EnrollmentProgress, error)
}

type certificateRenderer interface {
	Render(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*service.CertificateDocument, error)
}

// EnrollmentHandler exposes enrollment, progress and payment endpoints.
type EnrollmentHandler struct {
	enrollments  enrollmentManager
	certificates certificateRenderer
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentManager, certificates certificateRenderer) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, certificates: certificates}
}

// Enroll godoc
// @Summary Enroll the caller in a published course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), c.Param("id"), claims.Snapshot())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// List godoc
// @Summary List enrollments
// @Description Admins may filter by any user; everyone else sees their own enrollments.
// @Tags Enrollments
// @Produce json
// @Param course_id query string false "Course ID"
// @Param user_id query string false "User ID (admin only)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.EnrollmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid query"))
		return
	}
	filter := models.EnrollmentFilter{
		CourseID: query.CourseID,
		UserID:   query.UserID,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if claims.Role != models.RoleAdmin {
		filter.UserID = claims.UserID
	}
	items, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	enrollment, ok := h.owned(c, claims)
	if !ok {
		return
	}
	response.OK(c, enrollment)
}

// RecordProgress godoc
// @Summary Mark a lesson completed or not
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.ProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/progress [post]
func (h *EnrollmentHandler) RecordProgress(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if req.LessonID == "" || req.Completed == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "lesson_id and completed are required"))
		return
	}
	if _, ok := h.owned(c, claims); !ok {
		return
	}
	enrollment, err := h.enrollments.RecordProgress(c.Request.Context(), c.Param("id"), req.LessonID, *req.Completed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Progress godoc
// @Summary Completion summary of an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/progress [get]
func (h *EnrollmentHandler) Progress(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if _, ok := h.owned(c, claims); !ok {
		return
	}
	summary, err := h.enrollments.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// RecordPayment godoc
// @Summary Record a payment outcome
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.PaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/payment [post]
func (h *EnrollmentHandler) RecordPayment(c *gin.Context) {
	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	enrollment, err := h.enrollments.RecordPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Certificate godoc
// @Summary Download the completion certificate
// @Tags Enrollments
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Success 200 {file} file
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/certificate [get]
func (h *EnrollmentHandler) Certificate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	doc, err := h.certificates.Render(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}

// owned loads the enrollment and hides it from anyone but its learner or an
// admin.
func (h *EnrollmentHandler) owned(c *gin.Context, claims *models.JWTClaims) (*models.Enrollment, bool) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if claims.Role != models.RoleAdmin && enrollment.User.UserID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found"))
		return nil, false
	}
	return enrollment, true
}
