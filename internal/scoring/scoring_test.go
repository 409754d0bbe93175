package scoring

import (
	"math"
	"testing"
)

func defWithPoints(passing float64, points ...int) QuizDefinition {
	def := QuizDefinition{PassingScorePercent: passing}
	for _, p := range points {
		def.Questions = append(def.Questions, Question{Points: p})
	}
	return def
}

func TestExpectedTotalPoints(t *testing.T) {
	tests := []struct {
		name string
		def  QuizDefinition
		want float64
	}{
		{"explicit points", defWithPoints(70, 10, 20, 10), 40},
		{"missing points default", defWithPoints(70, 0, 0, 0), 30},
		{"mixed explicit and missing", defWithPoints(70, 20, 0), 30},
		{"no questions", defWithPoints(70), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpectedTotalPoints(tt.def); got != tt.want {
				t.Fatalf("ExpectedTotalPoints() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		def        QuizDefinition
		res        AttemptResult
		wantPct    float64
		wantPassed bool
	}{
		{
			name:       "two of three with a hard question",
			def:        defWithPoints(70, 10, 10, 10),
			res:        AttemptResult{CorrectPoints: 20, TotalPointsReported: 30, CorrectCount: 2, TotalCount: 3},
			wantPct:    200.0 / 3.0,
			wantPassed: false,
		},
		{
			name:       "passing on the nose",
			def:        defWithPoints(70, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10),
			res:        AttemptResult{CorrectPoints: 70, TotalPointsReported: 100, CorrectCount: 7, TotalCount: 10},
			wantPct:    70,
			wantPassed: true,
		},
		{
			name: "reported total disagreeing with the quiz is ignored",
			def:  defWithPoints(70, 10, 10, 10, 10),
			// Grader claims the quiz is worth 30; its own questions say 40.
			res:        AttemptResult{CorrectPoints: 30, TotalPointsReported: 30, CorrectCount: 3, TotalCount: 4},
			wantPct:    75,
			wantPassed: true,
		},
		{
			name:       "uneven point weights pass a 60 percent bar",
			def:        defWithPoints(60, 10, 20),
			res:        AttemptResult{CorrectPoints: 20, TotalPointsReported: 30, CorrectCount: 1, TotalCount: 2},
			wantPct:    200.0 / 3.0,
			wantPassed: true,
		},
		{
			name:       "count basis when quiz has no questions",
			def:        defWithPoints(70),
			res:        AttemptResult{CorrectCount: 3, TotalCount: 4},
			wantPct:    75,
			wantPassed: true,
		},
		{
			name:       "expired with no answers",
			def:        defWithPoints(70, 10, 10),
			res:        AttemptResult{ExpiredNoAnswers: true, CorrectPoints: 20, TotalPointsReported: 20},
			wantPct:    0,
			wantPassed: false,
		},
		{
			name:       "no basis at all scores zero",
			def:        defWithPoints(70),
			res:        AttemptResult{},
			wantPct:    0,
			wantPassed: false,
		},
		{
			name:       "zero passing bar passes a zero score",
			def:        defWithPoints(0),
			res:        AttemptResult{},
			wantPct:    0,
			wantPassed: true,
		},
		{
			name:       "overreported correct points clamp to 100",
			def:        defWithPoints(70, 10, 10),
			res:        AttemptResult{CorrectPoints: 50, TotalPointsReported: 20, CorrectCount: 2, TotalCount: 2},
			wantPct:    100,
			wantPassed: true,
		},
		{
			name:       "negative correct points clamp to zero",
			def:        defWithPoints(70, 10, 10),
			res:        AttemptResult{CorrectPoints: -10, TotalPointsReported: 20, CorrectCount: 0, TotalCount: 2},
			wantPct:    0,
			wantPassed: false,
		},
		{
			name: "default points fill in for missing values",
			def:  defWithPoints(50, 0, 20),
			// Worth 30 total: a correct default question scores 10.
			res:        AttemptResult{CorrectPoints: 10, TotalPointsReported: 30, CorrectCount: 1, TotalCount: 2},
			wantPct:    100.0 / 3.0,
			wantPassed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.def, tt.res)
			if math.Abs(got.ScorePercent-tt.wantPct) > 1e-9 {
				t.Fatalf("ScorePercent = %v, want %v", got.ScorePercent, tt.wantPct)
			}
			if got.Passed != tt.wantPassed {
				t.Fatalf("Passed = %v, want %v", got.Passed, tt.wantPassed)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	def := defWithPoints(70, 10, 20, 0)
	res := AttemptResult{CorrectPoints: 20, TotalPointsReported: 40, CorrectCount: 2, TotalCount: 3}

	first := Score(def, res)
	for i := 0; i < 10; i++ {
		if got := Score(def, res); got != first {
			t.Fatalf("Score not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestFromPassedFlag(t *testing.T) {
	pass := true
	fail := false
	outcome := &Outcome{ScorePercent: 80, Passed: true}

	tests := []struct {
		name      string
		passed    *bool
		completed bool
		outcome   *Outcome
		wantPhase AttemptPhase
	}{
		{"nil flag means not attempted", nil, false, nil, PhaseNotAttempted},
		{"false flag without completion is in progress", &fail, false, nil, PhaseInProgress},
		{"false flag with completion is a real fail", &fail, true, nil, PhaseCompleted},
		{"true flag with completion", &pass, true, outcome, PhaseCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromPassedFlag(tt.passed, tt.completed, tt.outcome)
			if got.Phase != tt.wantPhase {
				t.Fatalf("Phase = %s, want %s", got.Phase, tt.wantPhase)
			}
			if tt.wantPhase == PhaseCompleted && tt.outcome != nil && got.Outcome == nil {
				t.Fatal("Outcome dropped for completed attempt")
			}
			if tt.wantPhase != PhaseCompleted && got.Outcome != nil {
				t.Fatal("Outcome set for non-completed attempt")
			}
		})
	}
}
