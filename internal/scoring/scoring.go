package scoring

// Package scoring reconciles the two scoring bases a quiz attempt can carry:
// the point-weighted tally from the grader and the question-count tally. The
// quiz definition is authoritative for total points; an externally-reported
// total is trusted only when it agrees with the definition.

// DefaultQuestionPoints is assumed for any question without an explicit
// point value.
const DefaultQuestionPoints = 10

// Question is the scoring-relevant slice of a quiz question. Points <= 0
// means the generator omitted the value.
type Question struct {
	Points int
}

// QuizDefinition is the scoring-relevant slice of a quiz.
type QuizDefinition struct {
	Questions           []Question
	PassingScorePercent float64
}

// AttemptResult is the raw tally from a completed attempt.
// CorrectPoints/TotalPointsReported and CorrectCount/TotalCount are two
// independent bases for the same score and may disagree.
type AttemptResult struct {
	CorrectPoints       float64
	TotalPointsReported float64
	CorrectCount        int
	TotalCount          int
	// ExpiredNoAnswers marks an attempt force-ended by the time limit with
	// zero submitted answers.
	ExpiredNoAnswers bool
}

// Outcome is the reconciled result. Identical inputs always produce an
// identical Outcome, so attempts can be re-scored idempotently.
type Outcome struct {
	ScorePercent float64 `json:"score_percent"`
	Passed       bool    `json:"passed"`
}

// ExpectedTotalPoints sums the quiz's own question point values, defaulting
// missing values to DefaultQuestionPoints.
func ExpectedTotalPoints(def QuizDefinition) float64 {
	var total float64
	for _, q := range def.Questions {
		if q.Points > 0 {
			total += float64(q.Points)
		} else {
			total += DefaultQuestionPoints
		}
	}
	return total
}

// Score computes the reconciled percentage and pass decision.
//
// The point basis wins whenever the quiz defines any points; the reported
// total is only accepted when it equals the quiz-derived sum, so a grader
// that miscounts cannot inflate or deflate the score. The count basis is the
// fallback when no point data exists at all.
func Score(def QuizDefinition, res AttemptResult) Outcome {
	if res.ExpiredNoAnswers {
		// Ran out the clock without answering anything: no reconciliation,
		// no division by a zero-answer set.
		return Outcome{ScorePercent: 0, Passed: false}
	}

	expected := ExpectedTotalPoints(def)
	effectiveTotal := expected
	if res.TotalPointsReported == expected {
		effectiveTotal = res.TotalPointsReported
	}

	var pct float64
	switch {
	case effectiveTotal > 0:
		pct = res.CorrectPoints / effectiveTotal * 100
	case res.TotalCount > 0:
		pct = float64(res.CorrectCount) / float64(res.TotalCount) * 100
	default:
		pct = 0
	}

	// Keep the invariant 0 <= score <= 100 even against a grader that
	// reports more correct points than the quiz is worth.
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	return Outcome{
		ScorePercent: pct,
		Passed:       pct >= def.PassingScorePercent,
	}
}
