package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-backend/internal/apperr"
	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func snapshot(status types.CourseGenerationStatus, lessonStatuses ...types.LessonGenerationStatus) *types.Course {
	c := &types.Course{GenerationStatus: status}
	for i, s := range lessonStatuses {
		c.Lessons = append(c.Lessons, &types.Lesson{
			OrderInCourse:    i + 1,
			GenerationStatus: s,
		})
	}
	return c
}

// fakeBackend plays both ports: the trigger result, then a scripted sequence
// of fetch results. The last entry repeats once the script runs out.
type fakeBackend struct {
	mu           sync.Mutex
	triggerErr   error
	triggerOut   *types.Course
	triggerGate  chan struct{}
	triggerCalls int
	fetches      []fetchResult
	fetchCalls   int
}

type fetchResult struct {
	course *types.Course
	err    error
}

func (f *fakeBackend) TriggerRegeneration(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	f.mu.Lock()
	f.triggerCalls++
	gate := f.triggerGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.triggerOut, f.triggerErr
}

func (f *fakeBackend) FetchCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fetches) == 0 {
		return nil, fmt.Errorf("no scripted fetches")
	}
	i := f.fetchCalls
	if i >= len(f.fetches) {
		i = len(f.fetches) - 1
	}
	f.fetchCalls++
	r := f.fetches[i]
	return r.course, r.err
}

func (f *fakeBackend) TriggerCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggerCalls
}

func (f *fakeBackend) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func fastConfig() Config {
	return Config{PollInterval: 2 * time.Millisecond, PollTimeout: 2 * time.Second}
}

func waitDone(t *testing.T, o *Orchestrator) {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not finish, state=%s", o.State())
	}
}

func TestOrchestratorRunsToDone(t *testing.T) {
	backend := &fakeBackend{
		triggerOut: snapshot(types.CourseStatusGenerating,
			types.LessonStatusGenerating, types.LessonStatusPlanned),
		fetches: []fetchResult{
			{course: snapshot(types.CourseStatusGenerating,
				types.LessonStatusCompleted, types.LessonStatusGenerating)},
			{course: snapshot(types.CourseStatusCompleted,
				types.LessonStatusCompleted, types.LessonStatusCompleted)},
		},
	}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), fastConfig())

	if !o.Start(context.Background()) {
		t.Fatal("Start returned false on idle orchestrator")
	}
	waitDone(t, o)

	if got := o.State(); got != StateDone {
		t.Fatalf("state = %s, want %s", got, StateDone)
	}
	if err := o.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Progress{Completed: 2, Total: 2}
	if got := o.Progress(); got != want {
		t.Fatalf("progress = %+v, want %+v", got, want)
	}
}

func TestStartIsNoOpWhileActive(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{
		triggerGate: gate,
		triggerOut:  snapshot(types.CourseStatusCompleted, types.LessonStatusCompleted),
		fetches:     []fetchResult{{course: snapshot(types.CourseStatusCompleted)}},
	}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), fastConfig())

	if !o.Start(context.Background()) {
		t.Fatal("first Start returned false")
	}
	for i := 0; i < 5; i++ {
		if o.Start(context.Background()) {
			t.Fatal("Start returned true while a session was active")
		}
	}
	close(gate)
	waitDone(t, o)

	if got := backend.TriggerCalls(); got != 1 {
		t.Fatalf("trigger called %d times, want 1", got)
	}
}

func TestGenerationFailedIsTerminalAndRestartable(t *testing.T) {
	backend := &fakeBackend{
		triggerOut: snapshot(types.CourseStatusGenerating, types.LessonStatusGenerating),
		fetches: []fetchResult{
			{course: snapshot(types.CourseStatusGenerationFailed,
				types.LessonStatusGenerationFailed, types.LessonStatusCompleted)},
		},
	}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), fastConfig())

	o.Start(context.Background())
	waitDone(t, o)

	if got := o.State(); got != StateFailed {
		t.Fatalf("state = %s, want %s", got, StateFailed)
	}
	if !errors.Is(o.Err(), apperr.ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", o.Err())
	}
	fetchesAfterFail := backend.FetchCalls()
	time.Sleep(20 * time.Millisecond)
	if got := backend.FetchCalls(); got != fetchesAfterFail {
		t.Fatalf("polling continued after terminal state: %d -> %d", fetchesAfterFail, got)
	}

	// Failed is terminal for the session, not the orchestrator.
	if !o.Start(context.Background()) {
		t.Fatal("Start returned false after a failed session")
	}
	waitDone(t, o)
}

func TestTransientFetchErrorsAreSkipped(t *testing.T) {
	backend := &fakeBackend{
		triggerOut: snapshot(types.CourseStatusGenerating, types.LessonStatusGenerating),
		fetches: []fetchResult{
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{course: snapshot(types.CourseStatusCompleted, types.LessonStatusCompleted)},
		},
	}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), fastConfig())

	o.Start(context.Background())
	waitDone(t, o)

	if got := o.State(); got != StateDone {
		t.Fatalf("state = %s, want %s", got, StateDone)
	}
	if got := backend.FetchCalls(); got < 3 {
		t.Fatalf("fetch called %d times, want at least 3", got)
	}
}

func TestFetchNotFoundIsTerminal(t *testing.T) {
	backend := &fakeBackend{
		triggerOut: snapshot(types.CourseStatusGenerating, types.LessonStatusGenerating),
		fetches: []fetchResult{
			{err: fmt.Errorf("course gone: %w", apperr.ErrNotFound)},
		},
	}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), fastConfig())

	o.Start(context.Background())
	waitDone(t, o)

	if got := o.State(); got != StateFailed {
		t.Fatalf("state = %s, want %s", got, StateFailed)
	}
	if !apperr.IsNotFound(o.Err()) {
		t.Fatalf("err = %v, want not-found", o.Err())
	}
}

func TestTriggerErrorFailsSession(t *testing.T) {
	backend := &fakeBackend{
		triggerErr: errors.New("enqueue rejected"),
		fetches:    []fetchResult{{course: snapshot(types.CourseStatusCompleted)}},
	}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), fastConfig())

	o.Start(context.Background())
	waitDone(t, o)

	if got := o.State(); got != StateFailed {
		t.Fatalf("state = %s, want %s", got, StateFailed)
	}
	if !errors.Is(o.Err(), apperr.ErrTriggerFailed) {
		t.Fatalf("err = %v, want ErrTriggerFailed", o.Err())
	}
	if backend.FetchCalls() != 0 {
		t.Fatal("polled after trigger failure")
	}
	if !o.Start(context.Background()) {
		t.Fatal("Start returned false after trigger failure")
	}
	waitDone(t, o)
}

func TestPollTimeout(t *testing.T) {
	backend := &fakeBackend{
		triggerOut: snapshot(types.CourseStatusGenerating, types.LessonStatusGenerating),
		fetches: []fetchResult{
			{course: snapshot(types.CourseStatusGenerating, types.LessonStatusGenerating)},
		},
	}
	cfg := Config{PollInterval: 2 * time.Millisecond, PollTimeout: 30 * time.Millisecond}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), cfg)

	o.Start(context.Background())
	waitDone(t, o)

	if got := o.State(); got != StateTimedOut {
		t.Fatalf("state = %s, want %s", got, StateTimedOut)
	}
	if !errors.Is(o.Err(), ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", o.Err())
	}
}

func TestCancellationReturnsToIdle(t *testing.T) {
	backend := &fakeBackend{
		triggerOut: snapshot(types.CourseStatusGenerating, types.LessonStatusGenerating),
		fetches: []fetchResult{
			{course: snapshot(types.CourseStatusGenerating, types.LessonStatusGenerating)},
		},
	}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()
	waitDone(t, o)

	if got := o.State(); got != StateIdle {
		t.Fatalf("state = %s, want %s", got, StateIdle)
	}
	if !o.Start(context.Background()) {
		t.Fatal("Start returned false after cancellation")
	}
	waitDone(t, o)
}

func TestDoneClosedBeforeFirstStart(t *testing.T) {
	backend := &fakeBackend{}
	o := NewOrchestrator(testLogger(t), backend, backend, uuid.New(), fastConfig())
	select {
	case <-o.Done():
	default:
		t.Fatal("Done not closed for a never-started orchestrator")
	}
	if got := o.State(); got != StateIdle {
		t.Fatalf("state = %s, want %s", got, StateIdle)
	}
}
