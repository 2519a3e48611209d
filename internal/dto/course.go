package dto

import "github.com/noah-isme/coursehub-api/internal/models"

// LessonInput describes a lesson inside a course authoring request. A lesson
// carrying an id updates the existing lesson; an empty id creates one.
type LessonInput struct {
	ID      string            `json:"id,omitempty" yaml:"id,omitempty"`
	Title   string            `json:"title" yaml:"title" validate:"required,max=200"`
	Type    models.LessonType `json:"lesson_type" yaml:"type" validate:"required,oneof=video article coding"`
	Content string            `json:"content" yaml:"content"`
	Order   int               `json:"order" yaml:"order" validate:"gte=1"`
}

// ModuleInput describes a module and its lessons.
type ModuleInput struct {
	ID      string        `json:"id,omitempty" yaml:"id,omitempty"`
	Title   string        `json:"title" yaml:"title" validate:"required,max=200"`
	Order   int           `json:"order" yaml:"order" validate:"gte=1"`
	Lessons []LessonInput `json:"lessons" yaml:"lessons" validate:"dive"`
}

// CourseInput is the payload for creating or replacing a course tree.
type CourseInput struct {
	Title       string             `json:"title" yaml:"title" validate:"required,max=200"`
	Description string             `json:"description" yaml:"description" validate:"max=5000"`
	Price       *float64           `json:"price" yaml:"price" validate:"required,gte=0"`
	Level       models.CourseLevel `json:"level" yaml:"level" validate:"required,oneof=beginner intermediate advanced"`
	Published   bool               `json:"is_published" yaml:"published"`
	Modules     []ModuleInput      `json:"modules" yaml:"modules" validate:"dive"`
}

// PublishRequest toggles course publication.
type PublishRequest struct {
	Published *bool `json:"is_published" validate:"required"`
}

// CourseListQuery binds catalog listing query parameters.
type CourseListQuery struct {
	Level     string `form:"level"`
	Search    string `form:"q"`
	Mine      bool   `form:"mine"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// CourseSummary is the catalog listing shape.
type CourseSummary struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Price      float64            `json:"price"`
	Level      models.CourseLevel `json:"level"`
	Published  bool               `json:"is_published"`
	Instructor string             `json:"instructor"`
}

// NewCourseSummary projects a course into its listing shape.
func NewCourseSummary(c models.Course) CourseSummary {
	return CourseSummary{
		ID:         c.ID,
		Title:      c.Title,
		Price:      c.Price,
		Level:      c.Level,
		Published:  c.Published,
		Instructor: c.Instructor.FullName,
	}
}
