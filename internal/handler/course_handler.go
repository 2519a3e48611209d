package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
	"github.com/noah-isme/coursehub-api/pkg/response"
)

type courseCatalog interface {
	CreateCourse(ctx context.Context, actor *models.JWTClaims, req dto.CourseInput) (*models.Course, error)
	UpdateCourse(ctx context.Context, actor *models.JWTClaims, id string, req dto.CourseInput) (*models.Course, error)
	SetPublished(ctx context.Context, actor *models.JWTClaims, id string, published bool) (*models.Course, error)
	GetCourse(ctx context.Context, actor *models.JWTClaims, id string) (*models.Course, error)
	ListCourses(ctx context.Context, actor *models.JWTClaims, query dto.CourseListQuery) ([]models.Course, *models.Pagination, error)
}

// CourseHandler exposes course authoring and catalog endpoints.
type CourseHandler struct {
	catalog courseCatalog
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(catalog courseCatalog) *CourseHandler {
	return &CourseHandler{catalog: catalog}
}

// List godoc
// @Summary List published courses
// @Tags Courses
// @Produce json
// @Param level query string false "beginner, intermediate or advanced"
// @Param q query string false "Search in title"
// @Param mine query bool false "Only courses authored by the caller, drafts included"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var query dto.CourseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid query"))
		return
	}
	courses, pagination, err := h.catalog.ListCourses(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.CourseSummary, 0, len(courses))
	for _, course := range courses {
		items = append(items, dto.NewCourseSummary(course))
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get course with modules and lessons
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.catalog.GetCourse(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CourseInput true "Course tree"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CourseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	course, err := h.catalog.CreateCourse(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Replace course tree
// @Description Lessons and modules keep their identity when their id is sent back.
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CourseInput true "Course tree"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CourseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	course, err := h.catalog.UpdateCourse(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Publish godoc
// @Summary Publish or unpublish a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.PublishRequest true "Publication flag"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/publish [patch]
func (h *CourseHandler) Publish(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if req.Published == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "is_published is required"))
		return
	}
	course, err := h.catalog.SetPublished(c.Request.Context(), claims, c.Param("id"), *req.Published)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}
