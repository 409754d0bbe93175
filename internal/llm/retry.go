package llm

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/observability"
)

// retryingProvider wraps a Provider with exponential backoff on transient
// failures. Invalid-response errors get at most one extra attempt; rate
// limits and server errors retry up to the configured maximum. Every attempt
// is recorded as one LLM request sample, including the failed ones.
type retryingProvider struct {
	inner   Provider
	cfg     RetryConfig
	log     *logger.Logger
	metrics *observability.Metrics
}

func WithRetry(inner Provider, cfg RetryConfig, log *logger.Logger, metrics *observability.Metrics) Provider {
	if cfg.MaxAttempts < 1 {
		cfg = DefaultRetryConfig()
	}
	return &retryingProvider{
		inner:   inner,
		cfg:     cfg,
		log:     log.With("component", "llm_retry"),
		metrics: metrics,
	}
}

func (r *retryingProvider) ModelID() string { return r.inner.ModelID() }

func (r *retryingProvider) GenerateCoursePlan(ctx context.Context, req PlanRequest) (*CoursePlan, error) {
	var out *CoursePlan
	err := r.do(ctx, "course_plan", func() error {
		var err error
		out, err = r.inner.GenerateCoursePlan(ctx, req)
		return err
	})
	return out, err
}

func (r *retryingProvider) GenerateLessonContent(ctx context.Context, req LessonRequest) (string, error) {
	var out string
	err := r.do(ctx, "lesson_content", func() error {
		var err error
		out, err = r.inner.GenerateLessonContent(ctx, req)
		return err
	})
	return out, err
}

func (r *retryingProvider) GenerateQuiz(ctx context.Context, req QuizRequest) (*QuizPayload, error) {
	var out *QuizPayload
	err := r.do(ctx, "quiz", func() error {
		var err error
		out, err = r.inner.GenerateQuiz(ctx, req)
		return err
	})
	return out, err
}

func (r *retryingProvider) do(ctx context.Context, op string, fn func() error) error {
	wait := r.cfg.InitialWait
	invalidSeen := false

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		began := time.Now()
		lastErr = fn()
		r.metrics.LLMRequest(op, requestStatus(lastErr), time.Since(began).Seconds())
		if lastErr == nil {
			return nil
		}

		var inv *ErrInvalidResponse
		if errors.As(lastErr, &inv) {
			if invalidSeen {
				return lastErr
			}
			invalidSeen = true
		} else if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		sleep := jitter(wait)
		r.log.Warn("llm call failed, backing off",
			"op", op, "attempt", attempt, "wait", sleep.String(), "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		wait = time.Duration(float64(wait) * r.cfg.Multiplier)
		if wait > r.cfg.MaxWait {
			wait = r.cfg.MaxWait
		}
	}
	return lastErr
}

// jitter spreads a wait by +/-25% so parallel generations don't synchronize
// their retries.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	f := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * f)
}

func requestStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var inv *ErrInvalidResponse
	if errors.As(err, &inv) {
		return "invalid_response"
	}
	return "error"
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 408, 409, 429:
			return true
		}
		return apiErr.HTTPStatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	// Unclassified transport errors (connection reset, EOF) are worth one
	// more round trip.
	return true
}
