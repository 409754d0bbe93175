package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Quiz holds a generated quiz payload for a lesson, or a course-wide final
// quiz when LessonID is nil. Passed is three-valued: nil means not attempted.
// Quiz starts optimistically write Passed=false as an "attempted" marker before
// a real completion overwrites it; LastScorePercent is written only on a real
// completion, so a non-nil score is what distinguishes completed from merely
// attempted.
type Quiz struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	Course           *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	LessonID         *uuid.UUID     `gorm:"type:uuid;index" json:"lesson_id,omitempty"`
	Lesson           *Lesson        `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"lesson,omitempty"`
	QuizData         datatypes.JSON `gorm:"column:quiz_data;type:jsonb" json:"quiz_data"`
	TimeLimitSeconds int            `gorm:"column:time_limit_seconds;not null;default:300" json:"time_limit_seconds"`
	PassingScore     int            `gorm:"column:passing_score;not null;default:70" json:"passing_score"` // percent
	IsFinalQuiz      bool           `gorm:"column:is_final_quiz;not null;default:false" json:"is_final_quiz"`
	Passed           *bool          `gorm:"column:passed" json:"passed"`
	LastScorePercent *float64       `gorm:"column:last_score_percent" json:"last_score_percent,omitempty"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Quiz) TableName() string { return "quiz" }
