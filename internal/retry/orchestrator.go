package retry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-backend/internal/apperr"
	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

// ErrPollTimeout is set on the orchestrator when polling exceeds PollTimeout
// without the course reaching a terminal generation status.
var ErrPollTimeout = errors.New("generation polling timed out")

// State of a retry session.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StatePolling  State = "polling"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateTimedOut State = "timed_out"
)

func (s State) active() bool { return s == StateStarting || s == StatePolling }

// Progress partitions the course's lessons by generation status for display.
type Progress struct {
	Completed  int `json:"completed"`
	Generating int `json:"generating"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// CourseFetcher reads the current course snapshot, including lessons.
// Implementations must return apperr.ErrNotFound (wrapped is fine) when the
// course does not exist; that is terminal for the orchestrator.
type CourseFetcher interface {
	FetchCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error)
}

// RegenerationTrigger kicks off regeneration for a course. The protocol is
// not assumed idempotent; the orchestrator enforces at-most-one-in-flight.
type RegenerationTrigger interface {
	TriggerRegeneration(ctx context.Context, courseID uuid.UUID) (*types.Course, error)
}

type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 10 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	return c
}

// Orchestrator drives one course's retry session:
// Idle → Starting → Polling → Done | Failed | TimedOut.
//
// It issues the regeneration trigger exactly once per session, then re-fetches
// the course on a fixed interval until a terminal generation status, timeout
// or cancellation. Fetches are serialized on the session goroutine, so poll
// results are applied in issuance order; a session counter guards every state
// mutation so a cancelled or superseded session can never apply a stale fetch.
type Orchestrator struct {
	log      *logger.Logger
	fetcher  CourseFetcher
	trigger  RegenerationTrigger
	courseID uuid.UUID
	cfg      Config

	mu       sync.Mutex
	state    State
	progress Progress
	err      error
	session  int
	done     chan struct{}
}

func NewOrchestrator(log *logger.Logger, fetcher CourseFetcher, trigger RegenerationTrigger, courseID uuid.UUID, cfg Config) *Orchestrator {
	closed := make(chan struct{})
	close(closed)
	return &Orchestrator{
		log:      log.With("component", "RetryOrchestrator", "course_id", courseID),
		fetcher:  fetcher,
		trigger:  trigger,
		courseID: courseID,
		cfg:      cfg.withDefaults(),
		state:    StateIdle,
		done:     closed,
	}
}

// Start begins a retry session. While a session is Starting or Polling,
// further Start calls are no-ops and report started=false; at most one
// trigger call is ever in flight per orchestrator.
func (o *Orchestrator) Start(ctx context.Context) (started bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.active() {
		return false
	}
	o.session++
	o.state = StateStarting
	o.progress = Progress{}
	o.err = nil
	o.done = make(chan struct{})
	go o.run(ctx, o.session)
	return true
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Progress returns the latest lesson partition counters.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Err returns the terminal error for Failed or TimedOut sessions.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Done is closed when the current session reaches a terminal state or is
// cancelled. For an orchestrator that never started it is already closed.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

func (o *Orchestrator) run(ctx context.Context, sess int) {
	course, err := o.trigger.TriggerRegeneration(ctx, o.courseID)
	if err != nil {
		if apperr.IsNotFound(err) {
			o.end(sess, StateFailed, err)
			return
		}
		o.log.Warn("regeneration trigger failed", "error", err)
		o.end(sess, StateFailed, apperr.New(0, "trigger_failed", errors.Join(apperr.ErrTriggerFailed, err)))
		return
	}
	if !o.toPolling(sess) {
		return
	}
	if course != nil && o.applySnapshot(sess, course) {
		return
	}

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(o.cfg.PollTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			o.cancel(sess)
			return
		case <-deadline.C:
			o.end(sess, StateTimedOut, ErrPollTimeout)
			return
		case <-ticker.C:
			course, err := o.fetcher.FetchCourse(ctx, o.courseID)
			if ctx.Err() != nil {
				// Do not apply an in-flight fetch that raced cancellation.
				o.cancel(sess)
				return
			}
			if err != nil {
				if apperr.IsNotFound(err) {
					o.end(sess, StateFailed, err)
					return
				}
				// Transient fetch errors are invisible: skip the tick and
				// keep polling.
				o.log.Debug("poll fetch failed, skipping tick", "error", err)
				continue
			}
			if o.applySnapshot(sess, course) {
				return
			}
		}
	}
}

func (o *Orchestrator) toPolling(sess int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != sess {
		return false
	}
	o.state = StatePolling
	return true
}

// applySnapshot replaces the previous snapshot's counters and resolves the
// session if the course reached a terminal generation status. It reports
// whether the session ended (or was superseded).
func (o *Orchestrator) applySnapshot(sess int, course *types.Course) (terminal bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != sess {
		return true
	}
	o.progress = partitionLessons(course.Lessons)
	switch course.GenerationStatus {
	case types.CourseStatusCompleted:
		o.state = StateDone
		close(o.done)
		return true
	case types.CourseStatusGenerationFailed:
		o.state = StateFailed
		o.err = apperr.ErrGenerationFailed
		close(o.done)
		return true
	}
	return false
}

func (o *Orchestrator) end(sess int, st State, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != sess {
		return
	}
	o.state = st
	o.err = err
	close(o.done)
}

// cancel returns the session to Idle without touching progress. The polling
// loop holds no resources that need flushing, so cancellation is immediate.
func (o *Orchestrator) cancel(sess int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != sess {
		return
	}
	o.state = StateIdle
	close(o.done)
}

func partitionLessons(lessons []*types.Lesson) Progress {
	p := Progress{Total: len(lessons)}
	for _, l := range lessons {
		switch l.GenerationStatus {
		case types.LessonStatusCompleted:
			p.Completed++
		case types.LessonStatusGenerating:
			p.Generating++
		case types.LessonStatusGenerationFailed:
			p.Failed++
		}
	}
	return p
}
