package models

import "time"

// SubmissionResult is the verdict returned by the grading service.
type SubmissionResult string

const (
	SubmissionPass SubmissionResult = "pass"
	SubmissionFail SubmissionResult = "fail"
)

// Valid reports whether the result belongs to the enumerated set.
func (r SubmissionResult) Valid() bool {
	return r == SubmissionPass || r == SubmissionFail
}

// CodeSubmission is an immutable record of graded code for a coding lesson.
type CodeSubmission struct {
	ID          string           `db:"id" json:"id"`
	LessonID    string           `db:"lesson_id" json:"lesson_id"`
	UserID      string           `db:"user_id" json:"user_id"`
	Code        string           `db:"code" json:"code"`
	Language    string           `db:"language" json:"language"`
	Result      SubmissionResult `db:"result" json:"result"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	LessonID string
	UserID   string
	Limit    int
}
