package llm

import (
	"context"
	"fmt"
	"time"
)

// OutlineItem mirrors one entry of the planner's lesson_outline_plan.
type OutlineItem struct {
	Order              int    `json:"order"`
	PlannedTitle       string `json:"planned_title"`
	PlannedDescription string `json:"planned_description,omitempty"`
}

// CoursePlan is the planner's structured output.
type CoursePlan struct {
	CourseTitle       string        `json:"courseTitle"`
	CourseDescription string        `json:"courseDescription"`
	CourseIcon        string        `json:"courseIcon"`
	CourseField       string        `json:"courseField"`
	LessonOutlinePlan []OutlineItem `json:"lesson_outline_plan"`
}

type PlanRequest struct {
	Title      string
	Subject    string
	Difficulty string
	// Simplified asks for a stripped-down plan; used on the one re-prompt
	// after an unparseable planner response.
	Simplified bool
}

type LessonRequest struct {
	Title              string
	PlannedDescription string
	Subject            string
	Difficulty         string
}

// QuizQuestion follows the react-quiz-component schema the content frontend
// renders. Point is a stringified integer ("10" or "20") per that schema.
type QuizQuestion struct {
	Question                  string   `json:"question"`
	QuestionType              string   `json:"questionType"`
	AnswerSelectionType       string   `json:"answerSelectionType"`
	Answers                   []string `json:"answers"`
	CorrectAnswer             string   `json:"correctAnswer"`
	MessageForCorrectAnswer   string   `json:"messageForCorrectAnswer,omitempty"`
	MessageForIncorrectAnswer string   `json:"messageForIncorrectAnswer,omitempty"`
	Explanation               string   `json:"explanation,omitempty"`
	Point                     string   `json:"point"`
}

type QuizPayload struct {
	QuizTitle        string         `json:"quizTitle"`
	QuizSynopsis     string         `json:"quizSynopsis,omitempty"`
	ProgressBarColor string         `json:"progressBarColor,omitempty"`
	NrOfQuestions    string         `json:"nrOfQuestions,omitempty"`
	Questions        []QuizQuestion `json:"questions"`
}

type QuizRequest struct {
	CourseTitle   string
	Subject       string
	Difficulty    string
	LessonTitle   string
	LessonContent string
	// Final requests a course-wide final quiz synthesizing all lessons.
	Final bool
}

// Provider generates course plans, lesson content and quizzes. Implementations
// must be safe for concurrent use.
type Provider interface {
	GenerateCoursePlan(ctx context.Context, req PlanRequest) (*CoursePlan, error)
	GenerateLessonContent(ctx context.Context, req LessonRequest) (string, error)
	GenerateQuiz(ctx context.Context, req QuizRequest) (*QuizPayload, error)
	ModelID() string
}

// ErrInvalidResponse means the model answered but the payload could not be
// parsed into the expected structure. It gets exactly one retry.
type ErrInvalidResponse struct {
	Cause error
	Raw   string
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid model response: %v", e.Cause)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Cause }

// RetryConfig controls the retry decorator.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	Multiplier  float64
	MaxWait     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		InitialWait: 2 * time.Second,
		Multiplier:  2.0,
		MaxWait:     20 * time.Second,
	}
}
