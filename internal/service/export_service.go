package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/pkg/export"
	"github.com/noah-isme/coursehub-api/pkg/storage"
)

type courseEnrollmentLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders course progress reports and stores them behind
// signed download links.
type ExportService struct {
	courses     courseReader
	enrollments courseEnrollmentLister
	storage     fileStorage
	renderers   map[models.ExportFormat]export.Renderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(courses courseReader, enrollments courseEnrollmentLister, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		courses:     courses,
		enrollments: enrollments,
		storage:     files,
		renderers: map[models.ExportFormat]export.Renderer{
			models.ExportFormatCSV: export.NewCSVRenderer(),
			models.ExportFormatPDF: export.NewPDFRenderer(),
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Generate renders the job's course progress and saves the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("export job is nil")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}

	name := fmt.Sprintf("progress_%s_%s.%s", sanitizeFilename(dataset.Title), s.now().Format("20060102_150405"), renderer.Extension())
	relPath, err := s.storage.Save(name, payload)
	if err != nil {
		return nil, fmt.Errorf("save export: %w", err)
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, fmt.Errorf("sign export: %w", err)
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ContentType returns the MIME type of a format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.DownloadClaims, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to a stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

var progressColumns = []export.Column{
	{Key: "name", Title: "Learner", Width: 50},
	{Key: "email", Title: "Email", Width: 60},
	{Key: "enrolled_at", Title: "Enrolled At", Width: 40},
	{Key: "completed", Title: "Completed", Width: 25},
	{Key: "percent", Title: "Progress (%)", Width: 25},
	{Key: "payment", Title: "Payment", Width: 25},
	{Key: "certificate", Title: "Certificate", Width: 30},
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, error) {
	course, err := s.courses.FindByID(ctx, job.CourseID)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load course: %w", err)
	}
	enrollments, err := s.enrollments.ListByCourse(ctx, job.CourseID)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load enrollments: %w", err)
	}

	rows := make([]map[string]string, 0, len(enrollments))
	for i := range enrollments {
		e := &enrollments[i]
		if job.Params.CompletedOnly && !e.Certificate.Issued {
			continue
		}
		summary := summarizeProgress(course, e)
		certificate := "no"
		if e.Certificate.Issued && e.Certificate.IssuedAt != nil {
			certificate = e.Certificate.IssuedAt.UTC().Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"name":        e.User.FullName,
			"email":       e.User.Email,
			"enrolled_at": e.EnrolledAt.UTC().Format(time.RFC3339),
			"completed":   fmt.Sprintf("%d/%d", summary.CompletedLessons, summary.TotalLessons),
			"percent":     fmt.Sprintf("%.1f", summary.Percent),
			"payment":     string(e.Payment.Status),
			"certificate": certificate,
		})
	}
	return export.Dataset{Title: course.Title, Columns: progressColumns, Rows: rows}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "course"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 60 {
		return result[:60]
	}
	return result
}
