package service

import (
	"time"

	"github.com/noah-isme/coursehub-api/internal/models"
)

// certificateEligible reports whether payment is completed and every lesson
// reachable from the course tree has a completed progress entry.
func certificateEligible(course *models.Course, e *models.Enrollment) bool {
	if e.Payment.Status != models.PaymentStatusCompleted {
		return false
	}
	done := e.CompletedLessons()
	for _, id := range course.LessonIDs() {
		if _, ok := done[id]; !ok {
			return false
		}
	}
	return true
}

// issueCertificate flips the certificate to issued when eligible. It reports
// true only on the flip; an issued certificate is never re-stamped or revoked.
func issueCertificate(course *models.Course, e *models.Enrollment, now time.Time) bool {
	if e.Certificate.Issued || !certificateEligible(course, e) {
		return false
	}
	issuedAt := now
	e.Certificate = models.Certificate{Issued: true, IssuedAt: &issuedAt}
	return true
}
