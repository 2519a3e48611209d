package dto

import "github.com/noah-isme/coursehub-api/internal/models"

// ProgressRequest marks a lesson completed or not.
type ProgressRequest struct {
	LessonID  string `json:"lesson_id" validate:"required"`
	Completed *bool  `json:"completed" validate:"required"`
}

// PaymentRequest records the outcome reported by the payment gateway.
type PaymentRequest struct {
	Amount   *float64             `json:"amount" validate:"required"`
	Provider string               `json:"provider" validate:"max=100"`
	Status   models.PaymentStatus `json:"status" validate:"required"`
}

// PaymentWebhook is the signed notification body sent by the gateway.
type PaymentWebhook struct {
	EventID      string               `json:"event_id"`
	EnrollmentID string               `json:"enrollment_id" validate:"required"`
	Amount       *float64             `json:"amount" validate:"required"`
	Provider     string               `json:"provider"`
	Status       models.PaymentStatus `json:"status" validate:"required"`
}

// PaymentRequest converts the webhook body into a payment record request.
func (w PaymentWebhook) PaymentRequest() PaymentRequest {
	return PaymentRequest{Amount: w.Amount, Provider: w.Provider, Status: w.Status}
}

// EnrollmentListQuery binds enrollment listing query parameters.
type EnrollmentListQuery struct {
	CourseID string `form:"course_id"`
	UserID   string `form:"user_id"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// SubmitCodeRequest is a code submission for a coding lesson.
type SubmitCodeRequest struct {
	Code     string `json:"code" validate:"required,max=65536"`
	Language string `json:"language" validate:"required,max=32"`
}

// EnrollmentProgress summarises how far a learner got through a course.
type EnrollmentProgress struct {
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	Percent          float64 `json:"percent"`
}
