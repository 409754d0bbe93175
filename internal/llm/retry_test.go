package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"

	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/observability"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		InitialWait: time.Millisecond,
		Multiplier:  2.0,
		MaxWait:     5 * time.Millisecond,
	}
}

func TestWithRetryRecoversFromRateLimit(t *testing.T) {
	calls := 0
	mock := &MockProvider{
		LessonFn: func(ctx context.Context, req LessonRequest) (string, error) {
			calls++
			if calls < 3 {
				return "", &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}
			}
			return "# Lesson\n", nil
		},
	}
	p := WithRetry(mock, fastRetryConfig(), testLogger(t), nil)

	content, err := p.GenerateLessonContent(context.Background(), LessonRequest{Title: "Maps"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content == "" {
		t.Fatal("empty content after recovery")
	}
	if calls != 3 {
		t.Fatalf("provider called %d times, want 3", calls)
	}
}

func TestWithRetryStopsOnClientError(t *testing.T) {
	calls := 0
	mock := &MockProvider{
		QuizFn: func(ctx context.Context, req QuizRequest) (*QuizPayload, error) {
			calls++
			return nil, &openai.APIError{HTTPStatusCode: 400, Message: "bad request"}
		},
	}
	p := WithRetry(mock, fastRetryConfig(), testLogger(t), nil)

	_, err := p.GenerateQuiz(context.Background(), QuizRequest{LessonTitle: "Maps"})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("provider called %d times, want 1", calls)
	}
}

func TestWithRetryGivesInvalidResponseOneMoreTry(t *testing.T) {
	calls := 0
	mock := &MockProvider{
		PlanFn: func(ctx context.Context, req PlanRequest) (*CoursePlan, error) {
			calls++
			return nil, &ErrInvalidResponse{Cause: errors.New("not json")}
		},
	}
	p := WithRetry(mock, fastRetryConfig(), testLogger(t), nil)

	_, err := p.GenerateCoursePlan(context.Background(), PlanRequest{Title: "Go"})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
	if calls != 2 {
		t.Fatalf("provider called %d times, want 2", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	mock := &MockProvider{
		LessonFn: func(ctx context.Context, req LessonRequest) (string, error) {
			calls++
			return "", &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}
		},
	}
	cfg := fastRetryConfig()
	p := WithRetry(mock, cfg, testLogger(t), nil)

	_, err := p.GenerateLessonContent(context.Background(), LessonRequest{Title: "Maps"})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != cfg.MaxAttempts {
		t.Fatalf("provider called %d times, want %d", calls, cfg.MaxAttempts)
	}
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	mock := &MockProvider{
		LessonFn: func(ctx context.Context, req LessonRequest) (string, error) {
			return "", &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}
		},
	}
	cfg := fastRetryConfig()
	cfg.InitialWait = time.Minute
	p := WithRetry(mock, cfg, testLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.GenerateLessonContent(ctx, LessonRequest{Title: "Maps"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestWithRetryRecordsEveryAttempt(t *testing.T) {
	calls := 0
	mock := &MockProvider{
		LessonFn: func(ctx context.Context, req LessonRequest) (string, error) {
			calls++
			if calls < 3 {
				return "", &openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}
			}
			return "# Lesson\n", nil
		},
	}
	reg := prometheus.NewRegistry()
	p := WithRetry(mock, fastRetryConfig(), testLogger(t), observability.NewMetrics(reg))

	if _, err := p.GenerateLessonContent(context.Background(), LessonRequest{Title: "Maps"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != "lumen_llm_requests_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			var op, status string
			for _, l := range m.GetLabel() {
				switch l.GetName() {
				case "op":
					op = l.GetValue()
				case "status":
					status = l.GetValue()
				}
			}
			if op != "lesson_content" {
				t.Fatalf("unexpected op label %q", op)
			}
			counts[status] = m.GetCounter().GetValue()
		}
	}
	if counts["error"] != 2 || counts["ok"] != 1 {
		t.Fatalf("request counts = %v, want error=2 ok=1", counts)
	}
}

func TestRequestStatus(t *testing.T) {
	if got := requestStatus(nil); got != "ok" {
		t.Fatalf("status for nil = %q", got)
	}
	if got := requestStatus(&ErrInvalidResponse{Raw: "{"}); got != "invalid_response" {
		t.Fatalf("status for invalid response = %q", got)
	}
	if got := requestStatus(errors.New("boom")); got != "error" {
		t.Fatalf("status for transport error = %q", got)
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 1000; i++ {
		d := jitter(base)
		if d < 75*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("jitter(%v) = %v outside [75ms, 125ms]", base, d)
		}
	}
	if jitter(0) != 0 {
		t.Fatal("jitter(0) != 0")
	}
}
