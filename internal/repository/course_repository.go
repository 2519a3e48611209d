package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/coursehub-api/internal/models"
)

const courseColumns = `id, title, description, price, level, is_published, instructor_id, instructor_name, instructor_email, created_at, updated_at`

// courseRow flattens the instructor snapshot for scanning.
type courseRow struct {
	ID              string             `db:"id"`
	Title           string             `db:"title"`
	Description     string             `db:"description"`
	Price           float64            `db:"price"`
	Level           models.CourseLevel `db:"level"`
	Published       bool               `db:"is_published"`
	InstructorID    string             `db:"instructor_id"`
	InstructorName  string             `db:"instructor_name"`
	InstructorEmail string             `db:"instructor_email"`
	CreatedAt       time.Time          `db:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at"`
}

func (r courseRow) toModel() models.Course {
	return models.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Level:       r.Level,
		Published:   r.Published,
		Instructor:  models.Instructor{ID: r.InstructorID, FullName: r.InstructorName, Email: r.InstructorEmail},
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func newCourseRow(c *models.Course) courseRow {
	return courseRow{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		Price:           c.Price,
		Level:           c.Level,
		Published:       c.Published,
		InstructorID:    c.Instructor.ID,
		InstructorName:  c.Instructor.FullName,
		InstructorEmail: c.Instructor.Email,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// CourseRepository persists courses with their module and lesson tree.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts the course and its whole tree in one transaction. Missing
// ids are generated.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	if course.UpdatedAt.IsZero() {
		course.UpdatedAt = course.CreatedAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertCourse = `INSERT INTO courses (` + courseColumns + `)
VALUES (:id, :title, :description, :price, :level, :is_published, :instructor_id, :instructor_name, :instructor_email, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertCourse, newCourseRow(course)); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	if err := upsertTree(ctx, tx, course); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create course: %w", err)
	}
	return nil
}

// FindByID loads a course with its ordered tree. Missing rows surface as
// sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return loadCourseTree(ctx, r.db, id, "")
}

// List returns course summaries without their tree.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.PublishedOnly {
		conditions = append(conditions, "is_published = TRUE")
	}
	if filter.InstructorID != "" {
		args = append(args, filter.InstructorID)
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)))
	}
	if filter.Level != "" {
		args = append(args, filter.Level)
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	sortColumns := map[string]string{
		"created_at": "created_at",
		"title":      "title",
		"price":      "price",
	}
	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	_, size, offset := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM courses%s ORDER BY %s %s, id LIMIT %d OFFSET %d", courseColumns, clause, orderBy, order, size, offset)
	var rows []courseRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	courses := make([]models.Course, len(rows))
	for i, row := range rows {
		courses[i] = row.toModel()
	}
	return courses, total, nil
}

// Update locks the course row, hands the current tree and lesson usage to
// fn and persists the tree fn returns. Modules and lessons absent from the
// result are deleted. Dropped modules go last so lessons moved out of them
// are re-parented before the cascade. An error from fn aborts without
// writing.
func (r *CourseRepository) Update(ctx context.Context, id string, fn func(current *models.Course, usage models.LessonUsage) (*models.Course, error)) (*models.Course, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update course: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := loadCourseTree(ctx, tx, id, "FOR UPDATE")
	if err != nil {
		return nil, err
	}
	usage, err := lessonUsage(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(current, usage)
	if err != nil {
		return nil, err
	}
	next.ID = current.ID

	const updateCourse = `UPDATE courses SET title = :title, description = :description, price = :price, level = :level,
is_published = :is_published, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateCourse, newCourseRow(next)); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	if err := pruneLessons(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := upsertTree(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := pruneModules(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update course: %w", err)
	}
	return next, nil
}

// SetPublished toggles the publication flag.
func (r *CourseRepository) SetPublished(ctx context.Context, id string, published bool, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE courses SET is_published = $1, updated_at = $2 WHERE id = $3`, published, at, id)
	if err != nil {
		return fmt.Errorf("set course published: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindLesson loads a single lesson by id.
func (r *CourseRepository) FindLesson(ctx context.Context, id string) (*models.Lesson, error) {
	const query = `SELECT id, module_id, course_id, title, lesson_type, content, lesson_order, created_at FROM lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// loadCourseTree reads a course and its ordered modules and lessons. lock is
// appended to the course row select, e.g. FOR UPDATE or FOR SHARE.
func loadCourseTree(ctx context.Context, q sqlx.QueryerContext, id, lock string) (*models.Course, error) {
	query := "SELECT " + courseColumns + " FROM courses WHERE id = $1"
	if lock != "" {
		query += " " + lock
	}
	var row courseRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		return nil, err
	}
	course := row.toModel()

	var modules []models.Module
	if err := sqlx.SelectContext(ctx, q, &modules,
		`SELECT id, course_id, title, module_order FROM course_modules WHERE course_id = $1 ORDER BY module_order`, id); err != nil {
		return nil, fmt.Errorf("load course modules: %w", err)
	}
	var lessons []models.Lesson
	if err := sqlx.SelectContext(ctx, q, &lessons,
		`SELECT id, module_id, course_id, title, lesson_type, content, lesson_order, created_at FROM lessons WHERE course_id = $1 ORDER BY lesson_order`, id); err != nil {
		return nil, fmt.Errorf("load course lessons: %w", err)
	}

	index := make(map[string]int, len(modules))
	for i := range modules {
		index[modules[i].ID] = i
	}
	for _, l := range lessons {
		if i, ok := index[l.ModuleID]; ok {
			modules[i].Lessons = append(modules[i].Lessons, l)
		}
	}
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Order < modules[j].Order })
	course.Modules = modules
	return &course, nil
}

func lessonUsage(ctx context.Context, q sqlx.QueryerContext, courseID string) (models.LessonUsage, error) {
	const query = `SELECT lp.lesson_id FROM lesson_progress lp JOIN lessons l ON l.id = lp.lesson_id WHERE l.course_id = $1
UNION
SELECT cs.lesson_id FROM code_submissions cs JOIN lessons l ON l.id = cs.lesson_id WHERE l.course_id = $1`
	var ids []string
	if err := sqlx.SelectContext(ctx, q, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("load lesson usage: %w", err)
	}
	usage := make(models.LessonUsage, len(ids))
	for _, id := range ids {
		usage[id] = true
	}
	return usage, nil
}

func pruneLessons(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	lessonIDs := make([]string, 0)
	for _, m := range course.Modules {
		for _, l := range m.Lessons {
			if l.ID != "" {
				lessonIDs = append(lessonIDs, l.ID)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE course_id = $1 AND NOT (id = ANY($2::uuid[]))`, course.ID, pq.Array(lessonIDs)); err != nil {
		return fmt.Errorf("prune lessons: %w", err)
	}
	return nil
}

// pruneModules runs after upsertTree, when every module id is assigned.
func pruneModules(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	moduleIDs := make([]string, 0, len(course.Modules))
	for _, m := range course.Modules {
		moduleIDs = append(moduleIDs, m.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_modules WHERE course_id = $1 AND NOT (id = ANY($2::uuid[]))`, course.ID, pq.Array(moduleIDs)); err != nil {
		return fmt.Errorf("prune modules: %w", err)
	}
	return nil
}

func upsertTree(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	const upsertModule = `INSERT INTO course_modules (id, course_id, title, module_order)
VALUES (:id, :course_id, :title, :module_order)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, module_order = EXCLUDED.module_order`
	const upsertLesson = `INSERT INTO lessons (id, module_id, course_id, title, lesson_type, content, lesson_order, created_at)
VALUES (:id, :module_id, :course_id, :title, :lesson_type, :content, :lesson_order, :created_at)
ON CONFLICT (id) DO UPDATE SET module_id = EXCLUDED.module_id, title = EXCLUDED.title, lesson_type = EXCLUDED.lesson_type,
content = EXCLUDED.content, lesson_order = EXCLUDED.lesson_order`

	for mi := range course.Modules {
		m := &course.Modules[mi]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.CourseID = course.ID
		if _, err := tx.NamedExecContext(ctx, upsertModule, m); err != nil {
			return fmt.Errorf("upsert module: %w", err)
		}
		for li := range m.Lessons {
			l := &m.Lessons[li]
			if l.ID == "" {
				l.ID = uuid.NewString()
			}
			if l.CreatedAt.IsZero() {
				l.CreatedAt = course.UpdatedAt
			}
			l.ModuleID = m.ID
			l.CourseID = course.ID
			if _, err := tx.NamedExecContext(ctx, upsertLesson, l); err != nil {
				return fmt.Errorf("upsert lesson: %w", err)
			}
		}
	}
	return nil
}
