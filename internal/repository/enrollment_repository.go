package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coursehub-api/internal/models"
)

const enrollmentColumns = `id, course_id, user_id, user_name, user_email, course_price, enrolled_at,
certificate_issued, certificate_issued_at, payment_amount, payment_status, payment_provider,
payment_created_at, payment_processed_at`

type enrollmentRow struct {
	ID                  string               `db:"id"`
	CourseID            string               `db:"course_id"`
	UserID              string               `db:"user_id"`
	UserName            string               `db:"user_name"`
	UserEmail           string               `db:"user_email"`
	CoursePrice         float64              `db:"course_price"`
	EnrolledAt          time.Time            `db:"enrolled_at"`
	CertificateIssued   bool                 `db:"certificate_issued"`
	CertificateIssuedAt *time.Time           `db:"certificate_issued_at"`
	PaymentAmount       float64              `db:"payment_amount"`
	PaymentStatus       models.PaymentStatus `db:"payment_status"`
	PaymentProvider     string               `db:"payment_provider"`
	PaymentCreatedAt    time.Time            `db:"payment_created_at"`
	PaymentProcessedAt  *time.Time           `db:"payment_processed_at"`
}

type progressRow struct {
	EnrollmentID string     `db:"enrollment_id"`
	LessonID     string     `db:"lesson_id"`
	Completed    bool       `db:"completed"`
	CompletedAt  *time.Time `db:"completed_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func newEnrollmentRow(e *models.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:                  e.ID,
		CourseID:            e.CourseID,
		UserID:              e.User.UserID,
		UserName:            e.User.FullName,
		UserEmail:           e.User.Email,
		CoursePrice:         e.CoursePrice,
		EnrolledAt:          e.EnrolledAt,
		CertificateIssued:   e.Certificate.Issued,
		CertificateIssuedAt: e.Certificate.IssuedAt,
		PaymentAmount:       e.Payment.Amount,
		PaymentStatus:       e.Payment.Status,
		PaymentProvider:     e.Payment.Provider,
		PaymentCreatedAt:    e.Payment.CreatedAt,
		PaymentProcessedAt:  e.Payment.ProcessedAt,
	}
}

func (r enrollmentRow) toModel(progress []models.LessonProgress) models.Enrollment {
	if progress == nil {
		progress = []models.LessonProgress{}
	}
	return models.Enrollment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		User:        models.UserSnapshot{UserID: r.UserID, FullName: r.UserName, Email: r.UserEmail},
		CoursePrice: r.CoursePrice,
		EnrolledAt:  r.EnrolledAt,
		Progress:    progress,
		Certificate: models.Certificate{Issued: r.CertificateIssued, IssuedAt: r.CertificateIssuedAt},
		Payment: models.Payment{
			Amount:      r.PaymentAmount,
			Status:      r.PaymentStatus,
			Provider:    r.PaymentProvider,
			CreatedAt:   r.PaymentCreatedAt,
			ProcessedAt: r.PaymentProcessedAt,
		},
	}
}

func (p progressRow) toModel() models.LessonProgress {
	return models.LessonProgress{LessonID: p.LessonID, Completed: p.Completed, CompletedAt: p.CompletedAt, UpdatedAt: p.UpdatedAt}
}

// EnrollmentRepository persists enrollments and their lesson progress.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts the enrollment unless one exists for the same course and
// user, in which case ErrDuplicate is returned.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	const query = `INSERT INTO enrollments (` + enrollmentColumns + `)
VALUES (:id, :course_id, :user_id, :user_name, :user_email, :course_price, :enrolled_at,
:certificate_issued, :certificate_issued_at, :payment_amount, :payment_status, :payment_provider,
:payment_created_at, :payment_processed_at)
ON CONFLICT (course_id, user_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, newEnrollmentRow(enrollment))
	if err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}
	return nil
}

// FindByID loads an enrollment with its progress. Missing rows surface as
// sql.ErrNoRows.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return loadEnrollment(ctx, r.db, id, "")
}

// List returns a page of enrollments filtered by course and user.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var conditions []string
	var args []interface{}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM enrollments%s ORDER BY enrolled_at DESC, id LIMIT %d OFFSET %d", enrollmentColumns, clause, size, offset)
	var rows []enrollmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	out, err := r.attachProgress(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByCourse returns every enrollment of a course with progress.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	var rows []enrollmentRow
	if err := r.db.SelectContext(ctx, &rows,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE course_id = $1 ORDER BY enrolled_at, id", courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return r.attachProgress(ctx, rows)
}

// Update serialises mutations of one enrollment. Inside a transaction it
// locks the enrollment row, share-locks the course, and passes copies of
// both to fn. Changes fn makes to the enrollment are written back; an error
// from fn rolls everything back.
func (r *EnrollmentRepository) Update(ctx context.Context, id string, fn func(course *models.Course, enrollment *models.Enrollment) error) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := loadEnrollment(ctx, tx, id, "FOR UPDATE")
	if err != nil {
		return nil, err
	}
	course, err := loadCourseTree(ctx, tx, current.CourseID, "FOR SHARE")
	if err != nil {
		return nil, fmt.Errorf("load enrollment course: %w", err)
	}

	next := current.Clone()
	if err := fn(course, next); err != nil {
		return nil, err
	}
	next.ID, next.CourseID, next.User = current.ID, current.CourseID, current.User

	if headerChanged(current, next) {
		const query = `UPDATE enrollments SET certificate_issued = :certificate_issued, certificate_issued_at = :certificate_issued_at,
payment_amount = :payment_amount, payment_status = :payment_status, payment_provider = :payment_provider,
payment_processed_at = :payment_processed_at WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, query, newEnrollmentRow(next)); err != nil {
			return nil, fmt.Errorf("update enrollment: %w", err)
		}
	}

	const upsertProgress = `INSERT INTO lesson_progress (enrollment_id, lesson_id, completed, completed_at, updated_at)
VALUES (:enrollment_id, :lesson_id, :completed, :completed_at, :updated_at)
ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET completed = EXCLUDED.completed,
completed_at = EXCLUDED.completed_at, updated_at = EXCLUDED.updated_at`
	for _, p := range next.Progress {
		if prev, ok := current.ProgressFor(p.LessonID); ok && sameProgress(*prev, p) {
			continue
		}
		row := progressRow{EnrollmentID: next.ID, LessonID: p.LessonID, Completed: p.Completed, CompletedAt: p.CompletedAt, UpdatedAt: p.UpdatedAt}
		if _, err := tx.NamedExecContext(ctx, upsertProgress, row); err != nil {
			return nil, fmt.Errorf("upsert lesson progress: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update enrollment: %w", err)
	}
	return next, nil
}

func loadEnrollment(ctx context.Context, q sqlx.QueryerContext, id, lock string) (*models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments WHERE id = $1"
	if lock != "" {
		query += " " + lock
	}
	var row enrollmentRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		return nil, err
	}
	var progress []progressRow
	if err := sqlx.SelectContext(ctx, q, &progress,
		`SELECT enrollment_id, lesson_id, completed, completed_at, updated_at FROM lesson_progress WHERE enrollment_id = $1 ORDER BY updated_at, lesson_id`, id); err != nil {
		return nil, fmt.Errorf("load lesson progress: %w", err)
	}
	items := make([]models.LessonProgress, len(progress))
	for i, p := range progress {
		items[i] = p.toModel()
	}
	e := row.toModel(items)
	return &e, nil
}

func (r *EnrollmentRepository) attachProgress(ctx context.Context, rows []enrollmentRow) ([]models.Enrollment, error) {
	out := make([]models.Enrollment, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var progress []progressRow
	if err := r.db.SelectContext(ctx, &progress,
		`SELECT enrollment_id, lesson_id, completed, completed_at, updated_at FROM lesson_progress WHERE enrollment_id = ANY($1::uuid[]) ORDER BY updated_at, lesson_id`,
		pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load lesson progress: %w", err)
	}
	byEnrollment := make(map[string][]models.LessonProgress, len(rows))
	for _, p := range progress {
		byEnrollment[p.EnrollmentID] = append(byEnrollment[p.EnrollmentID], p.toModel())
	}
	for _, row := range rows {
		out = append(out, row.toModel(byEnrollment[row.ID]))
	}
	return out, nil
}

func headerChanged(a, b *models.Enrollment) bool {
	return a.Certificate.Issued != b.Certificate.Issued ||
		!sameTime(a.Certificate.IssuedAt, b.Certificate.IssuedAt) ||
		a.Payment.Amount != b.Payment.Amount ||
		a.Payment.Status != b.Payment.Status ||
		a.Payment.Provider != b.Payment.Provider ||
		!sameTime(a.Payment.ProcessedAt, b.Payment.ProcessedAt)
}

func sameProgress(a, b models.LessonProgress) bool {
	return a.Completed == b.Completed && a.UpdatedAt.Equal(b.UpdatedAt) && sameTime(a.CompletedAt, b.CompletedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
