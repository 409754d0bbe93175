package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenlabs/lumen-backend/internal/apperr"
	"github.com/lumenlabs/lumen-backend/internal/llm"
	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/observability"
	"github.com/lumenlabs/lumen-backend/internal/repos"
	"github.com/lumenlabs/lumen-backend/internal/retry"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

type CreateCourseInput struct {
	Title      string `json:"title" binding:"required"`
	Subject    string `json:"subject" binding:"required"`
	Difficulty string `json:"difficulty"`
	Level      string `json:"level"`
}

type UpdateCourseInput struct {
	Title       *string                   `json:"title"`
	Description *string                   `json:"description"`
	Difficulty  *string                   `json:"difficulty"`
	Level       *string                   `json:"level"`
	UserStatus  *types.UserCourseStatus   `json:"status"`
	Outline     []types.LessonOutlineItem `json:"lesson_outline_plan"`
}

type CourseService interface {
	// Create plans the course with the LLM, persists it with planned lesson
	// placeholders and kicks off background generation.
	Create(ctx context.Context, in CreateCourseInput) (*types.Course, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Course, error)
	List(ctx context.Context, offset, limit int) ([]*types.Course, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateCourseInput) (*types.Course, error)
	Archive(ctx context.Context, id uuid.UUID) error
	Publish(ctx context.Context, id uuid.UUID) (*types.Course, error)

	// RetryEligibility evaluates whether the retry affordance should be shown
	// for the current course snapshot.
	RetryEligibility(ctx context.Context, id uuid.UUID) (retry.Decision, error)
	// RetryGeneration re-triggers generation for the course's existing
	// lessons. Lessons are never deleted here: failed and planned ones are
	// reset, missing placeholders are recreated, completed ones are kept.
	RetryGeneration(ctx context.Context, id uuid.UUID) (*types.Course, error)
}

type courseService struct {
	db         *gorm.DB
	log        *logger.Logger
	courseRepo repos.CourseRepo
	lessonRepo repos.LessonRepo
	provider   llm.Provider
	generation GenerationService
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewCourseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	lessonRepo repos.LessonRepo,
	provider llm.Provider,
	generation GenerationService,
	metrics *observability.Metrics,
) CourseService {
	return &courseService{
		db:         db,
		log:        baseLog.With("service", "CourseService"),
		courseRepo: courseRepo,
		lessonRepo: lessonRepo,
		provider:   provider,
		generation: generation,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (s *courseService) Create(ctx context.Context, in CreateCourseInput) (*types.Course, error) {
	plan, err := s.plan(ctx, in)
	if err != nil {
		return nil, err
	}

	course := &types.Course{
		Title:            firstNonEmpty(plan.CourseTitle, in.Title),
		Subject:          firstNonEmpty(plan.CourseField, in.Subject),
		Description:      plan.CourseDescription,
		Icon:             plan.CourseIcon,
		Difficulty:       in.Difficulty,
		Level:            in.Level,
		GenerationStatus: types.CourseStatusDraft,
		UserStatus:       types.UserCourseNotStarted,
	}
	outline := make([]types.LessonOutlineItem, 0, len(plan.LessonOutlinePlan))
	for i, item := range plan.LessonOutlinePlan {
		order := item.Order
		if order <= 0 {
			order = i + 1
		}
		outline = append(outline, types.LessonOutlineItem{
			Order:              order,
			PlannedTitle:       item.PlannedTitle,
			PlannedDescription: item.PlannedDescription,
		})
	}
	if err := course.SetOutlineItems(outline); err != nil {
		return nil, fmt.Errorf("encode outline: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.courseRepo.Create(ctx, tx, []*types.Course{course})
		if err != nil {
			return err
		}
		course = created[0]
		_, err = s.lessonRepo.Create(ctx, tx, placeholdersFor(course.ID, outline, nil))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("persist course: %w", err)
	}

	s.generation.StartAsync(course.ID)
	return s.courseRepo.GetWithLessons(ctx, nil, course.ID)
}

// plan asks the planner for a course plan, re-prompting once with the
// simplified prompt when the first response does not parse.
func (s *courseService) plan(ctx context.Context, in CreateCourseInput) (*llm.CoursePlan, error) {
	req := llm.PlanRequest{Title: in.Title, Subject: in.Subject, Difficulty: in.Difficulty}
	plan, err := s.provider.GenerateCoursePlan(ctx, req)
	if err == nil {
		return plan, nil
	}
	var inv *llm.ErrInvalidResponse
	if !errors.As(err, &inv) {
		return nil, fmt.Errorf("plan course: %w", err)
	}
	s.log.Warn("course plan unparseable, re-prompting simplified", "title", in.Title, "error", err)
	req.Simplified = true
	plan, err = s.provider.GenerateCoursePlan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("plan course (simplified): %w", err)
	}
	return plan, nil
}

func (s *courseService) Get(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	return s.courseRepo.GetWithLessons(ctx, nil, id)
}

func (s *courseService) List(ctx context.Context, offset, limit int) ([]*types.Course, error) {
	return s.courseRepo.GetAll(ctx, nil, offset, limit)
}

func (s *courseService) Update(ctx context.Context, id uuid.UUID, in UpdateCourseInput) (*types.Course, error) {
	course, err := s.courseRepo.GetWithLessons(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if course.GenerationActive() && in.Outline != nil {
		return nil, apperr.New(http.StatusConflict, "generation_active",
			fmt.Errorf("course %s is generating", id))
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Difficulty != nil {
		updates["difficulty"] = *in.Difficulty
	}
	if in.Level != nil {
		updates["level"] = *in.Level
	}
	if in.UserStatus != nil {
		updates["user_status"] = *in.UserStatus
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Outline != nil {
			scratch := &types.Course{}
			if err := scratch.SetOutlineItems(in.Outline); err != nil {
				return err
			}
			updates["lesson_outline_plan"] = scratch.LessonOutlinePlan
			updates["generation_status"] = types.CourseStatusDraft
			// A replaced outline invalidates the realized lessons, so they
			// are rebuilt as planned placeholders.
			if err := s.lessonRepo.DeleteByCourseID(ctx, tx, id); err != nil {
				return err
			}
			if _, err := s.lessonRepo.Create(ctx, tx, placeholdersFor(id, in.Outline, nil)); err != nil {
				return err
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return s.courseRepo.UpdateFields(ctx, tx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	if in.Outline != nil {
		s.generation.StartAsync(id)
	}
	return s.courseRepo.GetWithLessons(ctx, nil, id)
}

func (s *courseService) Archive(ctx context.Context, id uuid.UUID) error {
	course, err := s.courseRepo.GetWithLessons(ctx, nil, id)
	if err != nil {
		return err
	}
	if course.GenerationActive() {
		return apperr.New(http.StatusConflict, "generation_active",
			fmt.Errorf("course %s is generating", id))
	}
	return s.courseRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"generation_status": types.CourseStatusArchived,
	})
}

func (s *courseService) Publish(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	course, err := s.courseRepo.GetWithLessons(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if course.GenerationStatus != types.CourseStatusCompleted {
		return nil, apperr.New(http.StatusConflict, "not_completed",
			fmt.Errorf("course %s has status %s", id, course.GenerationStatus))
	}
	if err := s.courseRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"generation_status": types.CourseStatusPublished,
	}); err != nil {
		return nil, err
	}
	return s.courseRepo.GetWithLessons(ctx, nil, id)
}

func (s *courseService) RetryEligibility(ctx context.Context, id uuid.UUID) (retry.Decision, error) {
	course, err := s.courseRepo.GetWithLessons(ctx, nil, id)
	if err != nil {
		return retry.Decision{}, err
	}
	decision := retry.Evaluate(course, s.now())
	s.metrics.RetryDecision(string(decision.Reason))
	return decision, nil
}

func (s *courseService) RetryGeneration(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	course, err := s.courseRepo.GetWithLessons(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if course.GenerationActive() {
		return nil, apperr.New(http.StatusConflict, "generation_active",
			fmt.Errorf("course %s is already generating", id))
	}

	outline := course.OutlineItems()
	if len(outline) == 0 && len(course.Lessons) == 0 {
		return nil, apperr.New(http.StatusConflict, "nothing_to_retry",
			fmt.Errorf("course %s has no outline and no lessons", id))
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, l := range course.Lessons {
			if l.GenerationStatus == types.LessonStatusCompleted {
				continue
			}
			if err := s.lessonRepo.UpdateFields(ctx, tx, l.ID, map[string]interface{}{
				"generation_status": types.LessonStatusPlanned,
			}); err != nil {
				return err
			}
		}
		missing := placeholdersFor(id, outline, course.Lessons)
		if len(missing) > 0 {
			if _, err := s.lessonRepo.Create(ctx, tx, missing); err != nil {
				return err
			}
		}
		return s.courseRepo.UpdateFields(ctx, tx, id, map[string]interface{}{
			"generation_status": types.CourseStatusGenerating,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reset lessons: %w", err)
	}

	if !s.generation.StartAsync(id) {
		return nil, apperr.New(http.StatusConflict, "trigger_failed",
			fmt.Errorf("%w: generation already in flight for %s", apperr.ErrTriggerFailed, id))
	}
	return s.courseRepo.GetWithLessons(ctx, nil, id)
}

// placeholdersFor builds planned lesson rows for outline entries that have no
// realized lesson yet, matching by order_in_course.
func placeholdersFor(courseID uuid.UUID, outline []types.LessonOutlineItem, existing []*types.Lesson) []*types.Lesson {
	have := make(map[int]bool, len(existing))
	for _, l := range existing {
		have[l.OrderInCourse] = true
	}
	var out []*types.Lesson
	for _, item := range outline {
		if have[item.Order] {
			continue
		}
		out = append(out, &types.Lesson{
			CourseID:           courseID,
			Title:              item.PlannedTitle,
			PlannedDescription: item.PlannedDescription,
			OrderInCourse:      item.Order,
			GenerationStatus:   types.LessonStatusPlanned,
			UserStatus:         types.UserLessonNotStarted,
		})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
