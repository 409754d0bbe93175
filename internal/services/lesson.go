package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lumenlabs/lumen-backend/internal/apperr"
	"github.com/lumenlabs/lumen-backend/internal/llm"
	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/observability"
	"github.com/lumenlabs/lumen-backend/internal/repos"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

type LessonService interface {
	Get(ctx context.Context, id uuid.UUID) (*types.Lesson, error)
	GetByCourse(ctx context.Context, courseID uuid.UUID) ([]*types.Lesson, error)
	// UpdateUserStatus records learner progress on a lesson and rolls the
	// course-level user status up from its lessons. Progress writes are
	// rejected until the lesson's generation is completed.
	UpdateUserStatus(ctx context.Context, id uuid.UUID, status types.UserLessonStatus) (*types.Lesson, error)
	// Regenerate re-runs content generation for a single lesson in place.
	Regenerate(ctx context.Context, id uuid.UUID) (*types.Lesson, error)
}

type lessonService struct {
	db         *gorm.DB
	log        *logger.Logger
	courseRepo repos.CourseRepo
	lessonRepo repos.LessonRepo
	quizRepo   repos.QuizRepo
	provider   llm.Provider
	metrics    *observability.Metrics
}

func NewLessonService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	lessonRepo repos.LessonRepo,
	quizRepo repos.QuizRepo,
	provider llm.Provider,
	metrics *observability.Metrics,
) LessonService {
	return &lessonService{
		db:         db,
		log:        baseLog.With("service", "LessonService"),
		courseRepo: courseRepo,
		lessonRepo: lessonRepo,
		quizRepo:   quizRepo,
		provider:   provider,
		metrics:    metrics,
	}
}

func (s *lessonService) Get(ctx context.Context, id uuid.UUID) (*types.Lesson, error) {
	return s.lessonRepo.GetByID(ctx, nil, id)
}

func (s *lessonService) GetByCourse(ctx context.Context, courseID uuid.UUID) ([]*types.Lesson, error) {
	return s.lessonRepo.GetByCourseID(ctx, nil, courseID)
}

func (s *lessonService) UpdateUserStatus(ctx context.Context, id uuid.UUID, status types.UserLessonStatus) (*types.Lesson, error) {
	if !status.Valid() {
		return nil, apperr.New(http.StatusBadRequest, "invalid_status",
			fmt.Errorf("unknown lesson status %q", status))
	}
	lesson, err := s.lessonRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if lesson.GenerationStatus != types.LessonStatusCompleted {
		return nil, apperr.New(http.StatusConflict, "lesson_not_ready",
			fmt.Errorf("lesson %s has generation status %s", id, lesson.GenerationStatus))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lessonRepo.UpdateFields(ctx, tx, id, map[string]interface{}{
			"user_status": status,
		}); err != nil {
			return err
		}
		lessons, err := s.lessonRepo.GetByCourseID(ctx, tx, lesson.CourseID)
		if err != nil {
			return err
		}
		return s.courseRepo.UpdateFields(ctx, tx, lesson.CourseID, map[string]interface{}{
			"user_status": rollUpUserStatus(lessons),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.lessonRepo.GetByID(ctx, nil, id)
}

func (s *lessonService) Regenerate(ctx context.Context, id uuid.UUID) (*types.Lesson, error) {
	lesson, err := s.lessonRepo.GetWithCourse(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	course := lesson.Course
	if course == nil {
		return nil, fmt.Errorf("lesson %s: %w", id, apperr.ErrNotFound)
	}
	if course.GenerationActive() {
		return nil, apperr.New(http.StatusConflict, "generation_active",
			fmt.Errorf("course %s is generating", course.ID))
	}

	if err := s.lessonRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"generation_status": types.LessonStatusGenerating,
	}); err != nil {
		return nil, err
	}
	content, err := s.provider.GenerateLessonContent(ctx, llm.LessonRequest{
		Title:              lesson.Title,
		PlannedDescription: lesson.PlannedDescription,
		Subject:            course.Subject,
		Difficulty:         course.Difficulty,
	})
	if err != nil {
		s.metrics.LessonOutcome("generation_failed")
		if uerr := s.lessonRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
			"generation_status": types.LessonStatusGenerationFailed,
		}); uerr != nil {
			s.log.Error("failed to mark lesson failed", "lesson_id", id, "error", uerr)
		}
		return nil, apperr.New(0, "generation_failed",
			fmt.Errorf("%w: lesson %s: %v", apperr.ErrGenerationFailed, id, err))
	}

	if err := s.refreshQuiz(ctx, course, lesson, content); err != nil {
		s.log.Warn("quiz refresh failed after regeneration", "lesson_id", id, "error", err)
	}

	s.metrics.LessonOutcome("completed")
	if err := s.lessonRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"generation_status": types.LessonStatusCompleted,
		"content_md":        content,
	}); err != nil {
		return nil, err
	}
	return s.lessonRepo.GetByID(ctx, nil, id)
}

// refreshQuiz regenerates the lesson's quiz against the new content. The old
// quiz row keeps its identity so recorded attempts stay attached.
func (s *lessonService) refreshQuiz(ctx context.Context, course *types.Course, lesson *types.Lesson, content string) error {
	quiz, err := s.quizRepo.GetByLessonID(ctx, nil, lesson.ID)
	if err != nil {
		return err
	}
	payload, err := s.provider.GenerateQuiz(ctx, llm.QuizRequest{
		CourseTitle:   course.Title,
		Subject:       course.Subject,
		Difficulty:    course.Difficulty,
		LessonTitle:   lesson.Title,
		LessonContent: content,
	})
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if quiz == nil {
		lessonID := lesson.ID
		_, err = s.quizRepo.Create(ctx, nil, []*types.Quiz{{
			CourseID:         course.ID,
			LessonID:         &lessonID,
			QuizData:         raw,
			TimeLimitSeconds: 300,
			PassingScore:     70,
			IsActive:         true,
		}})
		return err
	}
	return s.quizRepo.UpdateFields(ctx, nil, quiz.ID, map[string]interface{}{
		"quiz_data":          datatypes.JSON(raw),
		"passed":             gorm.Expr("NULL"),
		"last_score_percent": gorm.Expr("NULL"),
	})
}

// rollUpUserStatus derives the course-level learner status from its lessons:
// completed when every lesson is completed, in_progress when any lesson has
// been started, otherwise not_started.
func rollUpUserStatus(lessons []*types.Lesson) types.UserCourseStatus {
	if len(lessons) == 0 {
		return types.UserCourseNotStarted
	}
	allCompleted := true
	anyProgress := false
	for _, l := range lessons {
		switch l.UserStatus {
		case types.UserLessonCompleted:
			anyProgress = true
		case types.UserLessonInProgress:
			anyProgress = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}
	switch {
	case allCompleted:
		return types.UserCourseCompleted
	case anyProgress:
		return types.UserCourseInProgress
	default:
		return types.UserCourseNotStarted
	}
}
