package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LessonOutlineItem is one entry of the planner's upfront outline. The outline
// is the expected lesson count; the realized lessons collection may be shorter
// while generation is incomplete or failed.
type LessonOutlineItem struct {
	Order              int    `json:"order"`
	PlannedTitle       string `json:"planned_title"`
	PlannedDescription string `json:"planned_description,omitempty"`
}

type Course struct {
	ID                uuid.UUID              `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title             string                 `gorm:"column:title;not null" json:"title"`
	Subject           string                 `gorm:"column:subject;not null" json:"subject"`
	Description       string                 `gorm:"column:description" json:"description"`
	Icon              string                 `gorm:"column:icon" json:"icon,omitempty"`
	Difficulty        string                 `gorm:"column:difficulty" json:"difficulty,omitempty"` // easy|medium|hard
	Level             string                 `gorm:"column:level" json:"level,omitempty"`           // beginner|intermediate|advanced
	GenerationStatus  CourseGenerationStatus `gorm:"column:generation_status;not null;default:'draft';index" json:"generation_status"`
	UserStatus        UserCourseStatus       `gorm:"column:user_status;not null;default:'not_started'" json:"status"`
	LessonOutlinePlan datatypes.JSON         `gorm:"column:lesson_outline_plan;type:jsonb" json:"lesson_outline_plan,omitempty"`
	Lessons           []*Lesson              `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"lessons,omitempty"`
	CreatedAt         time.Time              `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time              `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt         `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }

// GenerationActive reports whether the pipeline currently owns this course.
// While active, retry must never be offered and lesson navigation is inert.
func (c *Course) GenerationActive() bool {
	return c != nil && c.GenerationStatus == CourseStatusGenerating
}

// OutlineItems decodes lesson_outline_plan. A missing or malformed plan decodes
// to nil; absence of a plan is not itself a failure signal.
func (c *Course) OutlineItems() []LessonOutlineItem {
	if c == nil || len(c.LessonOutlinePlan) == 0 {
		return nil
	}
	var items []LessonOutlineItem
	if err := json.Unmarshal(c.LessonOutlinePlan, &items); err != nil {
		return nil
	}
	return items
}

// SetOutlineItems encodes the plan into the jsonb column.
func (c *Course) SetOutlineItems(items []LessonOutlineItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	c.LessonOutlinePlan = datatypes.JSON(raw)
	return nil
}
