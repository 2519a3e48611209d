package dto

import "github.com/noah-isme/coursehub-api/internal/models"

// ExportRequest asks for a progress export of one course.
type ExportRequest struct {
	Format        models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	CompletedOnly bool                `json:"completed_only"`
}

// ExportJobResponse is returned when an export is queued.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse reports export progress and the download link.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	CourseID  string              `json:"course_id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
