package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/utils"
)

const plannerSystemPrompt = `You are an expert curriculum designer. Given a course request,
produce a JSON object with fields: courseTitle, courseDescription, courseIcon
(a single emoji), courseField, and lesson_outline_plan, an ordered array of
objects with fields order (1-based integer), planned_title and
planned_description. Plan between 4 and 10 lessons that build on each other.
Return only the JSON object.`

const plannerSimplifiedPrompt = `You are a curriculum designer. Return a JSON object with
courseTitle, courseDescription, courseIcon, courseField and
lesson_outline_plan (array of {order, planned_title, planned_description}).
Keep every value short and plain. Return only the JSON object.`

const lessonSystemPrompt = `You are an expert teacher writing a self-contained lesson in
Markdown. Use headings, short paragraphs, worked examples and a closing
summary. Write for the stated difficulty level. Return only the Markdown
body, no surrounding commentary and no code fences around the whole document.`

const quizSystemPrompt = `You are an assessment author. Produce a JSON object in the
react-quiz-component format: quizTitle, quizSynopsis, and questions, an array
of objects with question, questionType ("text"), answerSelectionType
("single"), answers (array of option strings), correctAnswer (1-based index
as a string), messageForCorrectAnswer, messageForIncorrectAnswer,
explanation, and point (a stringified integer, "10" for standard questions or
"20" for harder ones). Return only the JSON object.`

type openAIProvider struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewOpenAIProvider builds a Provider backed by the OpenAI chat completions
// API. Model and key come from the environment when not set by the caller.
func NewOpenAIProvider(log *logger.Logger) (Provider, error) {
	key := utils.GetEnv("OPENAI_API_KEY", "", log)
	if key == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	model := utils.GetEnv("OPENAI_MODEL", openai.GPT4oMini, log)
	return &openAIProvider{
		client: openai.NewClient(key),
		model:  model,
		log:    log.With("component", "openai_provider", "model", model),
	}, nil
}

func (p *openAIProvider) ModelID() string { return p.model }

func (p *openAIProvider) GenerateCoursePlan(ctx context.Context, req PlanRequest) (*CoursePlan, error) {
	system := plannerSystemPrompt
	if req.Simplified {
		system = plannerSimplifiedPrompt
	}
	user := fmt.Sprintf("Course request: %q. Subject: %s. Difficulty: %s.",
		req.Title, req.Subject, req.Difficulty)

	raw, err := p.completeJSON(ctx, system, user)
	if err != nil {
		return nil, err
	}
	var plan CoursePlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, &ErrInvalidResponse{Cause: err, Raw: raw}
	}
	if len(plan.LessonOutlinePlan) == 0 {
		return nil, &ErrInvalidResponse{Cause: fmt.Errorf("plan has no lessons"), Raw: raw}
	}
	return &plan, nil
}

func (p *openAIProvider) GenerateLessonContent(ctx context.Context, req LessonRequest) (string, error) {
	user := fmt.Sprintf("Lesson: %q.\nPlanned scope: %s\nCourse subject: %s. Difficulty: %s.",
		req.Title, req.PlannedDescription, req.Subject, req.Difficulty)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: lessonSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("lesson completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", &ErrInvalidResponse{Cause: fmt.Errorf("no choices returned")}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &ErrInvalidResponse{Cause: fmt.Errorf("empty lesson body")}
	}
	return content, nil
}

func (p *openAIProvider) GenerateQuiz(ctx context.Context, req QuizRequest) (*QuizPayload, error) {
	var user string
	if req.Final {
		user = fmt.Sprintf("Write a final quiz of 8-12 questions covering the whole course %q (subject %s, difficulty %s). Course material follows:\n%s",
			req.CourseTitle, req.Subject, req.Difficulty, req.LessonContent)
	} else {
		user = fmt.Sprintf("Write a quiz of 4-6 questions for the lesson %q (subject %s, difficulty %s). Lesson content follows:\n%s",
			req.LessonTitle, req.Subject, req.Difficulty, req.LessonContent)
	}

	raw, err := p.completeJSON(ctx, quizSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var payload QuizPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, &ErrInvalidResponse{Cause: err, Raw: raw}
	}
	if len(payload.Questions) == 0 {
		return nil, &ErrInvalidResponse{Cause: fmt.Errorf("quiz has no questions"), Raw: raw}
	}
	return &payload, nil
}

func (p *openAIProvider) completeJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", &ErrInvalidResponse{Cause: fmt.Errorf("no choices returned")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
