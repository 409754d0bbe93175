package types

// CourseGenerationStatus is the pipeline-owned lifecycle field on a course.
// draft/published/archived are catalog states that predate generation; the
// pipeline overlays generating/completed/generation_failed on the same column.
type CourseGenerationStatus string

const (
	CourseStatusDraft            CourseGenerationStatus = "draft"
	CourseStatusGenerating       CourseGenerationStatus = "generating"
	CourseStatusCompleted        CourseGenerationStatus = "completed"
	CourseStatusGenerationFailed CourseGenerationStatus = "generation_failed"
	CourseStatusPublished        CourseGenerationStatus = "published"
	CourseStatusArchived         CourseGenerationStatus = "archived"
)

// LessonGenerationStatus tracks per-lesson generation progress.
type LessonGenerationStatus string

const (
	LessonStatusPlanned          LessonGenerationStatus = "planned"
	LessonStatusGenerating       LessonGenerationStatus = "generating"
	LessonStatusCompleted        LessonGenerationStatus = "completed"
	LessonStatusGenerationFailed LessonGenerationStatus = "generation_failed"
	LessonStatusNeedsReview      LessonGenerationStatus = "needs_review"
	// LessonStatusPending is legacy; rows created before the planned/generating
	// split still carry it.
	LessonStatusPending LessonGenerationStatus = "pending"
)

// Terminal reports whether no further automatic transition happens without
// external intervention. needs_review and legacy pending are NOT terminal.
func (s LessonGenerationStatus) Terminal() bool {
	return s == LessonStatusCompleted || s == LessonStatusGenerationFailed
}

// UserCourseStatus is the learner-owned progress field on a course,
// independent of generation status.
type UserCourseStatus string

const (
	UserCourseNotStarted UserCourseStatus = "not_started"
	UserCourseInProgress UserCourseStatus = "in_progress"
	UserCourseCompleted  UserCourseStatus = "completed"
)

// UserLessonStatus is the learner-owned progress field on a lesson. It is
// meaningful only once the lesson's generation status is completed; writers
// must reject transitions before that.
type UserLessonStatus string

const (
	UserLessonNotStarted UserLessonStatus = "not_started"
	UserLessonInProgress UserLessonStatus = "in_progress"
	UserLessonCompleted  UserLessonStatus = "completed"
)

func (s UserLessonStatus) Valid() bool {
	switch s {
	case UserLessonNotStarted, UserLessonInProgress, UserLessonCompleted:
		return true
	}
	return false
}
