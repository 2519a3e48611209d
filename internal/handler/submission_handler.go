package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/pkg/response"
)

type submissionManager interface {
	SubmitCode(ctx context.Context, lessonID, userID string, req dto.SubmitCodeRequest) (*models.CodeSubmission, error)
	ListSubmissions(ctx context.Context, lessonID, userID string, limit int) ([]models.CodeSubmission, error)
}

// SubmissionHandler exposes code submission endpoints for coding lessons.
type SubmissionHandler struct {
	submissions submissionManager
}

// NewSubmissionHandler constructs SubmissionHandler.
func NewSubmissionHandler(submissions submissionManager) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// Submit godoc
// @Summary Submit code for grading
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body dto.SubmitCodeRequest true "Code"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	submission, err := h.submissions.SubmitCode(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// List godoc
// @Summary List the caller's submissions for a lesson
// @Tags Submissions
// @Produce json
// @Param id path string true "Lesson ID"
// @Param user_id query string false "User ID (admin only)"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	userID := claims.UserID
	if claims.Role == models.RoleAdmin && c.Query("user_id") != "" {
		userID = c.Query("user_id")
	}
	items, err := h.submissions.ListSubmissions(c.Request.Context(), c.Param("id"), userID, queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
