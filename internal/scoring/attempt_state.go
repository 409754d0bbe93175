package scoring

// AttemptPhase distinguishes not-attempted, in-progress and completed
// attempts. The persisted quiz row collapses this into a nullable passed
// flag (nil = not attempted, false doubles as the optimistic "attempted"
// marker), so readers use FromPassedFlag to recover the phase instead of
// interpreting the boolean ad hoc.
type AttemptPhase string

const (
	PhaseNotAttempted AttemptPhase = "not_attempted"
	PhaseInProgress   AttemptPhase = "in_progress"
	PhaseCompleted    AttemptPhase = "completed"
)

// AttemptState is the three-state view of a quiz attempt. Outcome is set only
// for completed attempts.
type AttemptState struct {
	Phase   AttemptPhase `json:"phase"`
	Outcome *Outcome     `json:"outcome,omitempty"`
}

// FromPassedFlag maps the stored tri-valued passed flag to an AttemptState.
// completed reports whether a real completion event has been recorded; until
// then a false flag only means "attempted".
func FromPassedFlag(passed *bool, completed bool, outcome *Outcome) AttemptState {
	switch {
	case passed == nil:
		return AttemptState{Phase: PhaseNotAttempted}
	case !completed:
		return AttemptState{Phase: PhaseInProgress}
	default:
		return AttemptState{Phase: PhaseCompleted, Outcome: outcome}
	}
}
