package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lesson rows are created as planned placeholders from the course outline and
// filled in by the generation pipeline. generation_status is pipeline-owned,
// user_status is learner-owned; the two fields have independent writers and
// updates are last-write-wins per field.
type Lesson struct {
	ID                 uuid.UUID              `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID           uuid.UUID              `gorm:"type:uuid;not null;index" json:"course_id"`
	Course             *Course                `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Title              string                 `gorm:"column:title;not null" json:"title"`
	PlannedDescription string                 `gorm:"column:planned_description" json:"planned_description,omitempty"`
	ContentMD          string                 `gorm:"column:content_md;type:text" json:"content_md,omitempty"`
	ExternalLinks      datatypes.JSON         `gorm:"column:external_links;type:jsonb" json:"external_links,omitempty"`
	OrderInCourse      int                    `gorm:"column:order_in_course;not null;default:0" json:"order_in_course"`
	GenerationStatus   LessonGenerationStatus `gorm:"column:generation_status;not null;default:'planned';index" json:"generation_status"`
	UserStatus         UserLessonStatus       `gorm:"column:user_status;not null;default:'not_started'" json:"status"`
	HasQuiz            bool                   `gorm:"column:has_quiz;not null;default:false" json:"has_quiz"`
	CreatedAt          time.Time              `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time              `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt         `gorm:"index" json:"deleted_at,omitempty"`
}

func (Lesson) TableName() string { return "lesson" }
