package retry

import (
	"time"

	"github.com/lumenlabs/lumen-backend/internal/types"
)

// StuckThreshold is how long a lesson may sit in generating before it is
// considered a likely pipeline failure. Lessons carry no per-lesson start
// timestamp, so staleness is inferred from course age.
const StuckThreshold = 5 * time.Minute

// Reason is a diagnostic code explaining an eligibility decision. It is for
// logs and metrics, not user-facing copy.
type Reason string

const (
	ReasonActiveGeneration  Reason = "active_generation"
	ReasonActionableLessons Reason = "actionable_lessons"
	ReasonStuckLessons      Reason = "stuck_lessons"
	ReasonOutlineShortfall  Reason = "outline_shortfall"
	ReasonNothingToRetry    Reason = "nothing_to_retry"
	ReasonStatusNotEligible Reason = "status_not_eligible"
)

// Decision is the evaluator's verdict for one course snapshot.
type Decision struct {
	OfferRetry bool   `json:"offer_retry"`
	Reason     Reason `json:"reason"`
}

// Evaluate decides whether a retry affordance should be offered for the given
// course snapshot. It is pure: all predicates are computed from the snapshot
// and the injected clock, with no I/O. Calling it twice on the same snapshot
// yields the same result.
func Evaluate(course *types.Course, now time.Time) Decision {
	// Never interrupt an in-flight run.
	if course.GenerationActive() {
		return Decision{OfferRetry: false, Reason: ReasonActiveGeneration}
	}

	var (
		actionable     bool
		stuck          bool
		completedCount int
	)
	courseAge := now.Sub(course.CreatedAt)
	for _, l := range course.Lessons {
		switch l.GenerationStatus {
		case types.LessonStatusGenerationFailed, types.LessonStatusPlanned:
			actionable = true
		case types.LessonStatusGenerating:
			if courseAge > StuckThreshold {
				stuck = true
			}
		case types.LessonStatusCompleted:
			completedCount++
		}
	}

	// Outline shortfall: the course claims completion but realized lessons fall
	// short of the plan. An empty outline disables the check entirely.
	outlineLen := len(course.OutlineItems())
	shortfall := course.GenerationStatus == types.CourseStatusCompleted &&
		outlineLen > 0 &&
		(len(course.Lessons) < outlineLen || completedCount < outlineLen)

	statusEligible := course.GenerationStatus == types.CourseStatusGenerationFailed ||
		course.GenerationStatus == types.CourseStatusCompleted ||
		course.GenerationStatus == types.CourseStatusDraft

	if (actionable || stuck) && statusEligible {
		if actionable {
			return Decision{OfferRetry: true, Reason: ReasonActionableLessons}
		}
		return Decision{OfferRetry: true, Reason: ReasonStuckLessons}
	}
	if shortfall {
		return Decision{OfferRetry: true, Reason: ReasonOutlineShortfall}
	}

	if !actionable && !stuck {
		return Decision{OfferRetry: false, Reason: ReasonNothingToRetry}
	}
	return Decision{OfferRetry: false, Reason: ReasonStatusNotEligible}
}
