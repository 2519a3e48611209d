package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursehub-api/internal/middleware"
	"github.com/noah-isme/coursehub-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix. Exports
// may be nil when the export pipeline is disabled.
type Handlers struct {
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
	Submissions *SubmissionHandler
	Payments    *PaymentWebhookHandler
	Exports     *ExportHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the API on group.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	authed := middleware.JWT(tokens)
	authors := middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin)
	admins := middleware.RequireRoles(models.RoleAdmin)

	courses := api.Group("/courses")
	courses.GET("", middleware.OptionalJWT(tokens), h.Courses.List)
	courses.GET("/:id", middleware.OptionalJWT(tokens), h.Courses.Get)
	courses.POST("", authed, authors, h.Courses.Create)
	courses.PUT("/:id", authed, authors, h.Courses.Update)
	courses.PATCH("/:id/publish", authed, authors, h.Courses.Publish)
	courses.POST("/:id/enroll", authed, h.Enrollments.Enroll)

	enrollments := api.Group("/enrollments", authed)
	enrollments.GET("", h.Enrollments.List)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.GET("/:id/progress", h.Enrollments.Progress)
	enrollments.POST("/:id/progress", h.Enrollments.RecordProgress)
	enrollments.POST("/:id/payment", admins, h.Enrollments.RecordPayment)
	enrollments.GET("/:id/certificate", h.Enrollments.Certificate)

	lessons := api.Group("/lessons", authed)
	lessons.POST("/:id/submissions", h.Submissions.Submit)
	lessons.GET("/:id/submissions", h.Submissions.List)

	api.POST("/payments/webhook", h.Payments.Receive)

	if h.Exports != nil {
		courses.POST("/:id/exports", authed, authors, h.Exports.Create)
		api.GET("/exports/download/:token", h.Exports.Download)
		api.GET("/exports/:id", authed, h.Exports.Status)
	}

	if h.Metrics != nil {
		api.GET("/system/metrics", authed, admins, h.Metrics.Snapshot)
	}
}
