package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a scriptable Provider for tests and local development
// without an API key. Zero value returns deterministic canned output.
type MockProvider struct {
	mu sync.Mutex

	PlanFn   func(ctx context.Context, req PlanRequest) (*CoursePlan, error)
	LessonFn func(ctx context.Context, req LessonRequest) (string, error)
	QuizFn   func(ctx context.Context, req QuizRequest) (*QuizPayload, error)

	PlanCalls   int
	LessonCalls int
	QuizCalls   int
}

func (m *MockProvider) ModelID() string { return "mock" }

func (m *MockProvider) GenerateCoursePlan(ctx context.Context, req PlanRequest) (*CoursePlan, error) {
	m.mu.Lock()
	m.PlanCalls++
	fn := m.PlanFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	plan := &CoursePlan{
		CourseTitle:       req.Title,
		CourseDescription: fmt.Sprintf("An introduction to %s.", req.Title),
		CourseIcon:        "📘",
		CourseField:       req.Subject,
	}
	for i := 1; i <= 4; i++ {
		plan.LessonOutlinePlan = append(plan.LessonOutlinePlan, OutlineItem{
			Order:              i,
			PlannedTitle:       fmt.Sprintf("%s, part %d", req.Title, i),
			PlannedDescription: fmt.Sprintf("Part %d of %s.", i, req.Title),
		})
	}
	return plan, nil
}

func (m *MockProvider) GenerateLessonContent(ctx context.Context, req LessonRequest) (string, error) {
	m.mu.Lock()
	m.LessonCalls++
	fn := m.LessonFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return fmt.Sprintf("# %s\n\n%s\n", req.Title, req.PlannedDescription), nil
}

func (m *MockProvider) GenerateQuiz(ctx context.Context, req QuizRequest) (*QuizPayload, error) {
	m.mu.Lock()
	m.QuizCalls++
	fn := m.QuizFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &QuizPayload{
		QuizTitle: fmt.Sprintf("Quiz: %s", req.LessonTitle),
		Questions: []QuizQuestion{
			{
				Question:            fmt.Sprintf("What does %q cover?", req.LessonTitle),
				QuestionType:        "text",
				AnswerSelectionType: "single",
				Answers:             []string{"Everything above", "Nothing"},
				CorrectAnswer:       "1",
				Point:               "10",
			},
		},
	}, nil
}
