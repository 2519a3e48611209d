package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData is the content printed on a completion certificate.
type CertificateData struct {
	CertificateID  string
	RecipientName  string
	CourseTitle    string
	InstructorName string
	IssuedAt       time.Time
}

// CertificateRenderer produces single page landscape certificates.
type CertificateRenderer struct {
	Issuer string
}

// NewCertificateRenderer builds a renderer that signs certificates as issuer.
func NewCertificateRenderer(issuer string) *CertificateRenderer {
	if issuer == "" {
		issuer = "CourseHub"
	}
	return &CertificateRenderer{Issuer: issuer}
}

// Render draws the certificate and returns the PDF bytes.
func (r *CertificateRenderer) Render(data CertificateData) ([]byte, error) {
	if data.RecipientName == "" || data.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires recipient and course title")
	}
	if data.IssuedAt.IsZero() {
		return nil, fmt.Errorf("certificate requires issue date")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetLineWidth(1.2)
	pdf.SetDrawColor(40, 70, 120)
	pdf.Rect(10, 10, 277, 190, "D")

	pdf.SetY(40)
	pdf.SetFont("Arial", "B", 30)
	pdf.CellFormat(0, 14, "Certificate of Completion", "", 1, "C", false, 0, "")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(0, 12, data.RecipientName, "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 8, "has successfully completed", "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 20)
	pdf.MultiCell(0, 10, data.CourseTitle, "", "C", false)

	pdf.SetY(160)
	pdf.SetFont("Arial", "", 11)
	issued := fmt.Sprintf("Issued %s by %s", data.IssuedAt.UTC().Format("2 January 2006"), r.Issuer)
	pdf.CellFormat(0, 6, issued, "", 1, "C", false, 0, "")
	if data.InstructorName != "" {
		pdf.CellFormat(0, 6, "Instructor: "+data.InstructorName, "", 1, "C", false, 0, "")
	}
	if data.CertificateID != "" {
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, "Certificate ID "+data.CertificateID, "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
