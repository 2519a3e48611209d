package models

import "time"

// PaymentStatus tracks the recorded outcome of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Valid reports whether the status belongs to the enumerated set.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// UserSnapshot is the denormalized identity copied at enrollment time.
type UserSnapshot struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// LessonProgress records completion of one lesson within one enrollment.
// CompletedAt is set iff Completed is true.
type LessonProgress struct {
	LessonID    string     `json:"lesson_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Certificate is issued at most once. IssuedAt is set iff Issued is true.
type Certificate struct {
	Issued   bool       `json:"issued"`
	IssuedAt *time.Time `json:"issued_at,omitempty"`
}

// Payment holds the latest outcome reported by the payment gateway.
type Payment struct {
	Amount      float64       `json:"amount"`
	Status      PaymentStatus `json:"status"`
	Provider    string        `json:"provider,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

// Enrollment is a user's registration in a course. At most one exists per
// (CourseID, User.UserID).
type Enrollment struct {
	ID          string           `json:"id"`
	CourseID    string           `json:"course_id"`
	User        UserSnapshot     `json:"user"`
	CoursePrice float64          `json:"course_price"`
	EnrolledAt  time.Time        `json:"enrolled_at"`
	Progress    []LessonProgress `json:"lesson_progress"`
	Certificate Certificate      `json:"certificate"`
	Payment     Payment          `json:"payment"`
}

// ProgressFor returns the progress entry for a lesson if present.
func (e *Enrollment) ProgressFor(lessonID string) (*LessonProgress, bool) {
	for i := range e.Progress {
		if e.Progress[i].LessonID == lessonID {
			return &e.Progress[i], true
		}
	}
	return nil, false
}

// CompletedLessons returns the set of lesson ids marked completed.
func (e *Enrollment) CompletedLessons() map[string]struct{} {
	done := make(map[string]struct{}, len(e.Progress))
	for _, p := range e.Progress {
		if p.Completed {
			done[p.LessonID] = struct{}{}
		}
	}
	return done
}

// Clone returns a deep copy so callers may mutate it without aliasing.
func (e *Enrollment) Clone() *Enrollment {
	if e == nil {
		return nil
	}
	out := *e
	out.Progress = make([]LessonProgress, len(e.Progress))
	for i, p := range e.Progress {
		out.Progress[i] = p
		if p.CompletedAt != nil {
			ts := *p.CompletedAt
			out.Progress[i].CompletedAt = &ts
		}
	}
	if e.Certificate.IssuedAt != nil {
		ts := *e.Certificate.IssuedAt
		out.Certificate.IssuedAt = &ts
	}
	if e.Payment.ProcessedAt != nil {
		ts := *e.Payment.ProcessedAt
		out.Payment.ProcessedAt = &ts
	}
	return &out
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	CourseID string
	UserID   string
	Page     int
	PageSize int
}
