package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenlabs/lumen-backend/internal/llm"
	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/observability"
	"github.com/lumenlabs/lumen-backend/internal/repos"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

// GenerationService runs the content pipeline for a course: each planned or
// failed lesson is generated in outline order, then the course status is
// rolled up from the per-lesson outcomes. At most one run per course is in
// flight at a time; concurrent starts are no-ops.
type GenerationService interface {
	// StartAsync launches a background run for the course. It reports false
	// when a run for that course is already in flight.
	StartAsync(courseID uuid.UUID) bool
	// Generate runs the pipeline synchronously. Exposed for workers and tests.
	Generate(ctx context.Context, courseID uuid.UUID) error
	Running(courseID uuid.UUID) bool
	// Shutdown blocks until in-flight runs finish or the context expires.
	Shutdown(ctx context.Context)
}

type generationService struct {
	db         *gorm.DB
	log        *logger.Logger
	courseRepo repos.CourseRepo
	lessonRepo repos.LessonRepo
	quizRepo   repos.QuizRepo
	provider   llm.Provider
	metrics    *observability.Metrics

	baseCtx context.Context
	wg      sync.WaitGroup

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewGenerationService(
	baseCtx context.Context,
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	lessonRepo repos.LessonRepo,
	quizRepo repos.QuizRepo,
	provider llm.Provider,
	metrics *observability.Metrics,
) GenerationService {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &generationService{
		db:         db,
		log:        baseLog.With("service", "GenerationService"),
		courseRepo: courseRepo,
		lessonRepo: lessonRepo,
		quizRepo:   quizRepo,
		provider:   provider,
		metrics:    metrics,
		baseCtx:    baseCtx,
		inflight:   map[uuid.UUID]struct{}{},
	}
}

func (s *generationService) StartAsync(courseID uuid.UUID) bool {
	if !s.claim(courseID) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(courseID)
		if err := s.generate(s.baseCtx, courseID); err != nil {
			s.log.Error("generation run failed", "course_id", courseID, "error", err)
		}
	}()
	return true
}

func (s *generationService) Generate(ctx context.Context, courseID uuid.UUID) error {
	if !s.claim(courseID) {
		return fmt.Errorf("generation already in flight for course %s", courseID)
	}
	defer s.release(courseID)
	return s.generate(ctx, courseID)
}

func (s *generationService) Running(courseID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[courseID]
	return ok
}

func (s *generationService) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown timed out with generation runs in flight")
	}
}

func (s *generationService) claim(courseID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[courseID]; ok {
		return false
	}
	s.inflight[courseID] = struct{}{}
	return true
}

func (s *generationService) release(courseID uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, courseID)
	s.mu.Unlock()
}

func (s *generationService) generate(ctx context.Context, courseID uuid.UUID) error {
	started := time.Now()
	course, err := s.courseRepo.GetWithLessons(ctx, nil, courseID)
	if err != nil {
		return err
	}
	if err := s.courseRepo.UpdateFields(ctx, nil, courseID, map[string]interface{}{
		"generation_status": types.CourseStatusGenerating,
	}); err != nil {
		return err
	}
	s.log.Info("generation run started",
		"course_id", courseID, "lessons", len(course.Lessons), "model", s.provider.ModelID())

	anyFailed := false
	for _, lesson := range course.Lessons {
		if lesson.GenerationStatus == types.LessonStatusCompleted {
			continue
		}
		if ctx.Err() != nil {
			anyFailed = true
			break
		}
		if err := s.generateLesson(ctx, course, lesson); err != nil {
			anyFailed = true
			s.log.Error("lesson generation failed",
				"course_id", courseID, "lesson_id", lesson.ID, "error", err)
		}
	}

	final := types.CourseStatusCompleted
	if anyFailed {
		final = types.CourseStatusGenerationFailed
	}
	if err := s.courseRepo.UpdateFields(ctx, nil, courseID, map[string]interface{}{
		"generation_status": final,
	}); err != nil {
		return err
	}
	s.metrics.GenerationRun(string(final))

	if final == types.CourseStatusCompleted {
		if err := s.ensureFinalQuiz(ctx, course); err != nil {
			s.log.Warn("final quiz generation failed", "course_id", courseID, "error", err)
		}
	}
	s.log.Info("generation run finished",
		"course_id", courseID, "status", final, "took", time.Since(started).String())
	return nil
}

func (s *generationService) generateLesson(ctx context.Context, course *types.Course, lesson *types.Lesson) error {
	if err := s.lessonRepo.UpdateFields(ctx, nil, lesson.ID, map[string]interface{}{
		"generation_status": types.LessonStatusGenerating,
	}); err != nil {
		return err
	}

	content, err := s.provider.GenerateLessonContent(ctx, llm.LessonRequest{
		Title:              lesson.Title,
		PlannedDescription: lesson.PlannedDescription,
		Subject:            course.Subject,
		Difficulty:         course.Difficulty,
	})
	if err != nil {
		s.metrics.LessonOutcome("generation_failed")
		if uerr := s.lessonRepo.UpdateFields(ctx, nil, lesson.ID, map[string]interface{}{
			"generation_status": types.LessonStatusGenerationFailed,
		}); uerr != nil {
			s.log.Error("failed to mark lesson failed", "lesson_id", lesson.ID, "error", uerr)
		}
		return err
	}

	hasQuiz := false
	if err := s.ensureLessonQuiz(ctx, course, lesson, content); err != nil {
		// The lesson itself succeeded; a missing quiz is not a generation
		// failure and can be created on demand later.
		s.log.Warn("lesson quiz generation failed", "lesson_id", lesson.ID, "error", err)
	} else {
		hasQuiz = true
	}

	s.metrics.LessonOutcome("completed")
	return s.lessonRepo.UpdateFields(ctx, nil, lesson.ID, map[string]interface{}{
		"generation_status": types.LessonStatusCompleted,
		"content_md":        content,
		"has_quiz":          hasQuiz,
	})
}

func (s *generationService) ensureLessonQuiz(ctx context.Context, course *types.Course, lesson *types.Lesson, content string) error {
	existing, err := s.quizRepo.GetByLessonID(ctx, nil, lesson.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
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

func (s *generationService) ensureFinalQuiz(ctx context.Context, course *types.Course) error {
	existing, err := s.quizRepo.GetFinalByCourseID(ctx, nil, course.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	lessons, err := s.lessonRepo.GetByCourseID(ctx, nil, course.ID)
	if err != nil {
		return err
	}
	var material string
	for _, l := range lessons {
		if l.GenerationStatus == types.LessonStatusCompleted {
			material += fmt.Sprintf("## %s\n\n%s\n\n", l.Title, l.ContentMD)
		}
	}

	payload, err := s.provider.GenerateQuiz(ctx, llm.QuizRequest{
		CourseTitle:   course.Title,
		Subject:       course.Subject,
		Difficulty:    course.Difficulty,
		LessonContent: material,
		Final:         true,
	})
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	// Final quizzes get a longer limit and a stricter bar than lesson quizzes.
	_, err = s.quizRepo.Create(ctx, nil, []*types.Quiz{{
		CourseID:         course.ID,
		QuizData:         raw,
		TimeLimitSeconds: 600,
		PassingScore:     80,
		IsFinalQuiz:      true,
		IsActive:         true,
	}})
	return err
}
