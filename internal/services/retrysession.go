package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/observability"
	"github.com/lumenlabs/lumen-backend/internal/retry"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

// RetryProgressView is the polled snapshot returned to clients while a retry
// session runs.
type RetryProgressView struct {
	CourseID uuid.UUID      `json:"course_id"`
	State    retry.State    `json:"state"`
	Progress retry.Progress `json:"progress"`
	Error    string         `json:"error,omitempty"`
}

// RetrySessionManager owns one polling orchestrator per course. Starting a
// session for a course that already has one in flight is a no-op on the
// existing session.
type RetrySessionManager interface {
	// StartSession starts (or reuses) the course's orchestrator. The bool
	// reports whether this call started a new run.
	StartSession(courseID uuid.UUID) (RetryProgressView, bool, error)
	Progress(courseID uuid.UUID) (RetryProgressView, bool)
}

type retrySessionManager struct {
	log     *logger.Logger
	courses CourseService
	cfg     retry.Config
	metrics *observability.Metrics

	// Sessions outlive the request that started them, so they run on the
	// process context rather than the caller's.
	baseCtx context.Context

	mu       sync.Mutex
	sessions map[uuid.UUID]*retry.Orchestrator
}

func NewRetrySessionManager(
	baseCtx context.Context,
	baseLog *logger.Logger,
	courses CourseService,
	cfg retry.Config,
	metrics *observability.Metrics,
) RetrySessionManager {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &retrySessionManager{
		log:      baseLog.With("service", "RetrySessionManager"),
		courses:  courses,
		cfg:      cfg,
		metrics:  metrics,
		baseCtx:  baseCtx,
		sessions: map[uuid.UUID]*retry.Orchestrator{},
	}
}

func (m *retrySessionManager) StartSession(courseID uuid.UUID) (RetryProgressView, bool, error) {
	m.mu.Lock()
	orch, ok := m.sessions[courseID]
	if !ok {
		gw := courseGateway{courses: m.courses}
		orch = retry.NewOrchestrator(m.log, gw, gw, courseID, m.cfg)
		m.sessions[courseID] = orch
	}
	m.mu.Unlock()

	started := orch.Start(m.baseCtx)
	if started {
		go func() {
			<-orch.Done()
			m.metrics.RetrySession(string(orch.State()))
		}()
	}
	return m.view(courseID, orch), started, nil
}

func (m *retrySessionManager) Progress(courseID uuid.UUID) (RetryProgressView, bool) {
	m.mu.Lock()
	orch, ok := m.sessions[courseID]
	m.mu.Unlock()
	if !ok {
		return RetryProgressView{CourseID: courseID, State: retry.StateIdle}, false
	}
	return m.view(courseID, orch), true
}

func (m *retrySessionManager) view(courseID uuid.UUID, orch *retry.Orchestrator) RetryProgressView {
	v := RetryProgressView{
		CourseID: courseID,
		State:    orch.State(),
		Progress: orch.Progress(),
	}
	if err := orch.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

// courseGateway adapts CourseService to the orchestrator's fetch and trigger
// ports.
type courseGateway struct {
	courses CourseService
}

func (g courseGateway) FetchCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	return g.courses.Get(ctx, courseID)
}

func (g courseGateway) TriggerRegeneration(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	return g.courses.RetryGeneration(ctx, courseID)
}
