package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-backend/internal/handlers"
	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/retry"
	"github.com/lumenlabs/lumen-backend/internal/server"
	"github.com/lumenlabs/lumen-backend/internal/services"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

// stubCourseService serves a retry session: the trigger flips the course to
// generating, every later Get reports it completed.
type stubCourseService struct {
	courseID uuid.UUID
	triggers atomic.Int32
	fetches  atomic.Int32
}

func (s *stubCourseService) snapshot(status types.CourseGenerationStatus, lessonStatus types.LessonGenerationStatus) *types.Course {
	return &types.Course{
		ID:               s.courseID,
		Title:            "Go Fundamentals",
		GenerationStatus: status,
		Lessons: []*types.Lesson{
			{CourseID: s.courseID, OrderInCourse: 1, GenerationStatus: lessonStatus},
			{CourseID: s.courseID, OrderInCourse: 2, GenerationStatus: lessonStatus},
		},
	}
}

func (s *stubCourseService) Get(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	s.fetches.Add(1)
	return s.snapshot(types.CourseStatusCompleted, types.LessonStatusCompleted), nil
}

func (s *stubCourseService) RetryGeneration(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	s.triggers.Add(1)
	return s.snapshot(types.CourseStatusGenerating, types.LessonStatusGenerating), nil
}

func (s *stubCourseService) Create(ctx context.Context, in services.CreateCourseInput) (*types.Course, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubCourseService) List(ctx context.Context, offset, limit int) ([]*types.Course, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubCourseService) Update(ctx context.Context, id uuid.UUID, in services.UpdateCourseInput) (*types.Course, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubCourseService) Archive(ctx context.Context, id uuid.UUID) error {
	return fmt.Errorf("not implemented")
}

func (s *stubCourseService) Publish(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubCourseService) RetryEligibility(ctx context.Context, id uuid.UUID) (retry.Decision, error) {
	return retry.Decision{}, fmt.Errorf("not implemented")
}

func newTestServer(t *testing.T, stub *stubCourseService) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	retrySvc := services.NewRetrySessionManager(context.Background(), log, stub, retry.Config{
		PollInterval: 2 * time.Millisecond,
		PollTimeout:  2 * time.Second,
	}, nil)
	router := server.NewRouter(server.RouterConfig{
		HealthHandler: handlers.NewHealthcheckHandler(nil),
		CourseHandler: handlers.NewCourseHandler(log, stub, retrySvc),
		LessonHandler: handlers.NewLessonHandler(log, nil),
		QuizHandler:   handlers.NewQuizHandler(log, nil),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// A retry session must keep polling after the POST that started it has been
// answered; the session's lifetime is the process, not the request.
func TestRetryGenerationSessionSurvivesRequest(t *testing.T) {
	stub := &stubCourseService{courseID: uuid.New()}
	srv := newTestServer(t, stub)

	resp, err := http.Post(
		srv.URL+"/api/courses/"+stub.courseID.String()+"/retry-generation",
		"application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("retry-generation: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("retry-generation status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var view services.RetryProgressView
	deadline := time.After(time.Second)
	for view.State != retry.StateDone {
		select {
		case <-deadline:
			t.Fatalf("session never completed: state=%s, want=%s", view.State, retry.StateDone)
		case <-time.After(5 * time.Millisecond):
		}
		progResp, err := http.Get(srv.URL + "/api/courses/" + stub.courseID.String() + "/retry-progress")
		if err != nil {
			t.Fatalf("retry-progress: %v", err)
		}
		if err := json.NewDecoder(progResp.Body).Decode(&view); err != nil {
			t.Fatalf("decode progress: %v", err)
		}
		progResp.Body.Close()
	}

	if got := stub.triggers.Load(); got != 1 {
		t.Fatalf("trigger called %d times, want 1", got)
	}
	if view.Progress.Completed != 2 || view.Progress.Total != 2 {
		t.Fatalf("progress = %+v, want 2/2 completed", view.Progress)
	}
}
