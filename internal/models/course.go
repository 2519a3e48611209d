package models

import "time"

// CourseLevel is the closed set of difficulty levels.
type CourseLevel string

const (
	LevelBeginner     CourseLevel = "beginner"
	LevelIntermediate CourseLevel = "intermediate"
	LevelAdvanced     CourseLevel = "advanced"
)

// Valid reports whether the level belongs to the enumerated set.
func (l CourseLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// LessonType is the closed set of lesson kinds.
type LessonType string

const (
	LessonTypeVideo   LessonType = "video"
	LessonTypeArticle LessonType = "article"
	LessonTypeCoding  LessonType = "coding"
)

// Valid reports whether the lesson type belongs to the enumerated set.
func (t LessonType) Valid() bool {
	switch t {
	case LessonTypeVideo, LessonTypeArticle, LessonTypeCoding:
		return true
	}
	return false
}

// Instructor is a denormalized snapshot of the owning instructor taken when
// the course is created. It is never re-synchronised with the profile source.
type Instructor struct {
	ID       string `db:"instructor_id" json:"id"`
	FullName string `db:"instructor_name" json:"full_name"`
	Email    string `db:"instructor_email" json:"email"`
}

// Course is the top-level purchasable learning unit.
type Course struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	Price       float64     `db:"price" json:"price"`
	Level       CourseLevel `db:"level" json:"level"`
	Published   bool        `db:"is_published" json:"is_published"`
	Instructor  Instructor  `db:"-" json:"instructor"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
	Modules     []Module    `db:"-" json:"modules,omitempty"`
}

// Module groups lessons inside a course. Order is unique within the course.
type Module struct {
	ID       string   `db:"id" json:"id"`
	CourseID string   `db:"course_id" json:"course_id"`
	Title    string   `db:"title" json:"title"`
	Order    int      `db:"module_order" json:"module_order"`
	Lessons  []Lesson `db:"-" json:"lessons,omitempty"`
}

// Lesson is the atomic learning unit. Order is unique within the module.
type Lesson struct {
	ID        string     `db:"id" json:"id"`
	ModuleID  string     `db:"module_id" json:"module_id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Title     string     `db:"title" json:"title"`
	Type      LessonType `db:"lesson_type" json:"lesson_type"`
	Content   string     `db:"content" json:"content"`
	Order     int        `db:"lesson_order" json:"lesson_order"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// LessonIDs returns every lesson id reachable from the module tree.
func (c *Course) LessonIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0)
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// Lesson looks up a lesson of this course by id.
func (c *Course) Lesson(id string) (*Lesson, bool) {
	if c == nil {
		return nil, false
	}
	for mi := range c.Modules {
		for li := range c.Modules[mi].Lessons {
			if c.Modules[mi].Lessons[li].ID == id {
				return &c.Modules[mi].Lessons[li], true
			}
		}
	}
	return nil, false
}

// CourseFilter narrows catalog listings.
type CourseFilter struct {
	InstructorID  string
	Level         CourseLevel
	PublishedOnly bool
	Search        string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// LessonUsage marks lessons referenced by enrollment progress or code
// submissions. Such lessons cannot be removed from a course.
type LessonUsage map[string]bool
