package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
	"github.com/noah-isme/coursehub-api/pkg/export"
)

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type certificateRenderer interface {
	Render(data export.CertificateData) ([]byte, error)
}

// CertificateDocument is a rendered certificate ready to send.
type CertificateDocument struct {
	Filename string
	Content  []byte
}

// CertificateService renders completion certificates for issued enrollments.
type CertificateService struct {
	enrollments enrollmentReader
	courses     courseReader
	renderer    certificateRenderer
	logger      *zap.Logger
}

// NewCertificateService constructs the service.
func NewCertificateService(enrollments enrollmentReader, courses courseReader, renderer certificateRenderer, logger *zap.Logger) *CertificateService {
	if renderer == nil {
		renderer = export.NewCertificateRenderer("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{enrollments: enrollments, courses: courses, renderer: renderer, logger: logger}
}

// Render produces the PDF certificate of an enrollment. The learner, the
// course instructor and admins may download it.
func (s *CertificateService) Render(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*CertificateDocument, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, mapEnrollmentError(err, "failed to load enrollment")
	}
	course, err := s.courses.FindByID(ctx, enrollment.CourseID)
	if err != nil {
		return nil, mapCourseError(err, "failed to load course")
	}
	if actor == nil || (actor.UserID != enrollment.User.UserID && !canManage(actor, course)) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if !enrollment.Certificate.Issued || enrollment.Certificate.IssuedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate not issued yet")
	}

	content, err := s.renderer.Render(export.CertificateData{
		CertificateID:  enrollment.ID,
		RecipientName:  enrollment.User.FullName,
		CourseTitle:    course.Title,
		InstructorName: course.Instructor.FullName,
		IssuedAt:       *enrollment.Certificate.IssuedAt,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render certificate")
	}
	return &CertificateDocument{
		Filename: fmt.Sprintf("certificate_%s.pdf", sanitizeFilename(course.Title)),
		Content:  content,
	}, nil
}
