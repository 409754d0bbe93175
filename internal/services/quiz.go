package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lumenlabs/lumen-backend/internal/apperr"
	"github.com/lumenlabs/lumen-backend/internal/llm"
	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/observability"
	"github.com/lumenlabs/lumen-backend/internal/repos"
	"github.com/lumenlabs/lumen-backend/internal/scoring"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

// SubmitAttemptInput is the raw tally a client reports when an attempt ends.
type SubmitAttemptInput struct {
	CorrectPoints       float64 `json:"correct_points"`
	TotalPointsReported float64 `json:"total_points"`
	CorrectCount        int     `json:"correct_count"`
	TotalCount          int     `json:"total_count"`
	ExpiredNoAnswers    bool    `json:"expired_with_no_answers"`
}

// QuizAttemptView is the three-state attempt result returned to clients.
type QuizAttemptView struct {
	QuizID  uuid.UUID            `json:"quiz_id"`
	Attempt scoring.AttemptState `json:"attempt"`
}

// UpdateQuizInput carries the learner-facing quiz settings that can change
// after generation.
type UpdateQuizInput struct {
	TimeLimitSeconds *int  `json:"time_limit_seconds"`
	PassingScore     *int  `json:"passing_score"`
	IsActive         *bool `json:"is_active"`
}

type QuizService interface {
	Get(ctx context.Context, id uuid.UUID) (*types.Quiz, error)
	GetForLesson(ctx context.Context, lessonID uuid.UUID) (*types.Quiz, error)
	GetFinalForCourse(ctx context.Context, courseID uuid.UUID) (*types.Quiz, error)
	GetByCourse(ctx context.Context, courseID uuid.UUID) ([]*types.Quiz, error)
	CreateForLesson(ctx context.Context, lessonID uuid.UUID) (*types.Quiz, error)
	CreateFinalForCourse(ctx context.Context, courseID uuid.UUID) (*types.Quiz, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateQuizInput) (*types.Quiz, error)
	// Regenerate rebuilds the quiz payload against the current lesson (or
	// course) content, clearing any recorded attempt.
	Regenerate(ctx context.Context, id uuid.UUID) (*types.Quiz, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkAttempted writes the optimistic passed=false marker when a learner
	// starts a quiz, without touching any recorded completion.
	MarkAttempted(ctx context.Context, id uuid.UUID) error
	// SubmitAttempt scores a finished attempt against the quiz's own question
	// points and persists the outcome.
	SubmitAttempt(ctx context.Context, id uuid.UUID, in SubmitAttemptInput) (scoring.Outcome, error)
	AttemptState(ctx context.Context, id uuid.UUID) (QuizAttemptView, error)
}

type quizService struct {
	db         *gorm.DB
	log        *logger.Logger
	quizRepo   repos.QuizRepo
	lessonRepo repos.LessonRepo
	courseRepo repos.CourseRepo
	provider   llm.Provider
	metrics    *observability.Metrics
}

func NewQuizService(
	db *gorm.DB,
	baseLog *logger.Logger,
	quizRepo repos.QuizRepo,
	lessonRepo repos.LessonRepo,
	courseRepo repos.CourseRepo,
	provider llm.Provider,
	metrics *observability.Metrics,
) QuizService {
	return &quizService{
		db:         db,
		log:        baseLog.With("service", "QuizService"),
		quizRepo:   quizRepo,
		lessonRepo: lessonRepo,
		courseRepo: courseRepo,
		provider:   provider,
		metrics:    metrics,
	}
}

func (s *quizService) Get(ctx context.Context, id uuid.UUID) (*types.Quiz, error) {
	return s.quizRepo.GetByID(ctx, nil, id)
}

func (s *quizService) GetForLesson(ctx context.Context, lessonID uuid.UUID) (*types.Quiz, error) {
	quiz, err := s.quizRepo.GetByLessonID(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, fmt.Errorf("quiz for lesson %s: %w", lessonID, apperr.ErrNotFound)
	}
	return quiz, nil
}

func (s *quizService) GetFinalForCourse(ctx context.Context, courseID uuid.UUID) (*types.Quiz, error) {
	quiz, err := s.quizRepo.GetFinalByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, fmt.Errorf("final quiz for course %s: %w", courseID, apperr.ErrNotFound)
	}
	return quiz, nil
}

func (s *quizService) GetByCourse(ctx context.Context, courseID uuid.UUID) ([]*types.Quiz, error) {
	return s.quizRepo.GetByCourseID(ctx, nil, courseID)
}

func (s *quizService) CreateForLesson(ctx context.Context, lessonID uuid.UUID) (*types.Quiz, error) {
	lesson, err := s.lessonRepo.GetWithCourse(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.GenerationStatus != types.LessonStatusCompleted {
		return nil, apperr.New(http.StatusConflict, "lesson_not_ready",
			fmt.Errorf("lesson %s has generation status %s", lessonID, lesson.GenerationStatus))
	}
	existing, err := s.quizRepo.GetByLessonID(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	payload, err := s.provider.GenerateQuiz(ctx, llm.QuizRequest{
		CourseTitle:   lesson.Course.Title,
		Subject:       lesson.Course.Subject,
		Difficulty:    lesson.Course.Difficulty,
		LessonTitle:   lesson.Title,
		LessonContent: lesson.ContentMD,
	})
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var quiz *types.Quiz
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.quizRepo.Create(ctx, tx, []*types.Quiz{{
			CourseID:         lesson.CourseID,
			LessonID:         &lesson.ID,
			QuizData:         raw,
			TimeLimitSeconds: 300,
			PassingScore:     70,
			IsActive:         true,
		}})
		if err != nil {
			return err
		}
		quiz = created[0]
		return s.lessonRepo.UpdateFields(ctx, tx, lessonID, map[string]interface{}{
			"has_quiz": true,
		})
	})
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *quizService) CreateFinalForCourse(ctx context.Context, courseID uuid.UUID) (*types.Quiz, error) {
	course, err := s.courseRepo.GetWithLessons(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if course.GenerationStatus != types.CourseStatusCompleted &&
		course.GenerationStatus != types.CourseStatusPublished {
		return nil, apperr.New(http.StatusConflict, "course_not_ready",
			fmt.Errorf("course %s has status %s", courseID, course.GenerationStatus))
	}
	existing, err := s.quizRepo.GetFinalByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var material string
	for _, l := range course.Lessons {
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
		return nil, fmt.Errorf("generate final quiz: %w", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	created, err := s.quizRepo.Create(ctx, nil, []*types.Quiz{{
		CourseID:         courseID,
		QuizData:         raw,
		TimeLimitSeconds: 600,
		PassingScore:     80,
		IsFinalQuiz:      true,
		IsActive:         true,
	}})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *quizService) Update(ctx context.Context, id uuid.UUID, in UpdateQuizInput) (*types.Quiz, error) {
	if _, err := s.quizRepo.GetByID(ctx, nil, id); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.TimeLimitSeconds != nil {
		if *in.TimeLimitSeconds <= 0 {
			return nil, apperr.New(http.StatusBadRequest, "invalid_time_limit",
				fmt.Errorf("time limit must be positive, got %d", *in.TimeLimitSeconds))
		}
		updates["time_limit_seconds"] = *in.TimeLimitSeconds
	}
	if in.PassingScore != nil {
		if *in.PassingScore < 0 || *in.PassingScore > 100 {
			return nil, apperr.New(http.StatusBadRequest, "invalid_passing_score",
				fmt.Errorf("passing score must be within [0,100], got %d", *in.PassingScore))
		}
		updates["passing_score"] = *in.PassingScore
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := s.quizRepo.UpdateFields(ctx, nil, id, updates); err != nil {
			return nil, err
		}
	}
	return s.quizRepo.GetByID(ctx, nil, id)
}

func (s *quizService) Regenerate(ctx context.Context, id uuid.UUID) (*types.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	req := llm.QuizRequest{}
	if quiz.LessonID != nil {
		lesson, err := s.lessonRepo.GetWithCourse(ctx, nil, *quiz.LessonID)
		if err != nil {
			return nil, err
		}
		req = llm.QuizRequest{
			CourseTitle:   lesson.Course.Title,
			Subject:       lesson.Course.Subject,
			Difficulty:    lesson.Course.Difficulty,
			LessonTitle:   lesson.Title,
			LessonContent: lesson.ContentMD,
		}
	} else {
		course, err := s.courseRepo.GetWithLessons(ctx, nil, quiz.CourseID)
		if err != nil {
			return nil, err
		}
		var material string
		for _, l := range course.Lessons {
			if l.GenerationStatus == types.LessonStatusCompleted {
				material += fmt.Sprintf("## %s\n\n%s\n\n", l.Title, l.ContentMD)
			}
		}
		req = llm.QuizRequest{
			CourseTitle:   course.Title,
			Subject:       course.Subject,
			Difficulty:    course.Difficulty,
			LessonContent: material,
			Final:         true,
		}
	}

	payload, err := s.provider.GenerateQuiz(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("regenerate quiz: %w", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	// New questions invalidate the recorded attempt.
	if err := s.quizRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"quiz_data":          datatypes.JSON(raw),
		"passed":             gorm.Expr("NULL"),
		"last_score_percent": gorm.Expr("NULL"),
	}); err != nil {
		return nil, err
	}
	return s.quizRepo.GetByID(ctx, nil, id)
}

func (s *quizService) Delete(ctx context.Context, id uuid.UUID) error {
	quiz, err := s.quizRepo.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.quizRepo.Delete(ctx, tx, id); err != nil {
			return err
		}
		if quiz.LessonID == nil {
			return nil
		}
		return s.lessonRepo.UpdateFields(ctx, tx, *quiz.LessonID, map[string]interface{}{
			"has_quiz": false,
		})
	})
}

func (s *quizService) MarkAttempted(ctx context.Context, id uuid.UUID) error {
	quiz, err := s.quizRepo.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	// A recorded completion outranks the marker.
	if quiz.LastScorePercent != nil {
		return nil
	}
	return s.quizRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"passed": false,
	})
}

func (s *quizService) SubmitAttempt(ctx context.Context, id uuid.UUID, in SubmitAttemptInput) (scoring.Outcome, error) {
	quiz, err := s.quizRepo.GetByID(ctx, nil, id)
	if err != nil {
		return scoring.Outcome{}, err
	}
	def, err := definitionFromQuiz(quiz)
	if err != nil {
		return scoring.Outcome{}, apperr.New(http.StatusUnprocessableEntity, "malformed_quiz",
			fmt.Errorf("quiz %s: %w", id, err))
	}

	outcome := scoring.Score(def, scoring.AttemptResult{
		CorrectPoints:       in.CorrectPoints,
		TotalPointsReported: in.TotalPointsReported,
		CorrectCount:        in.CorrectCount,
		TotalCount:          in.TotalCount,
		ExpiredNoAnswers:    in.ExpiredNoAnswers,
	})

	if err := s.quizRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"passed":             outcome.Passed,
		"last_score_percent": outcome.ScorePercent,
	}); err != nil {
		return scoring.Outcome{}, err
	}

	label := "failed"
	if outcome.Passed {
		label = "passed"
	}
	if in.ExpiredNoAnswers {
		label = "expired"
	}
	s.metrics.QuizAttempt(label)
	s.log.Info("quiz attempt scored",
		"quiz_id", id, "score_percent", outcome.ScorePercent, "passed", outcome.Passed)
	return outcome, nil
}

func (s *quizService) AttemptState(ctx context.Context, id uuid.UUID) (QuizAttemptView, error) {
	quiz, err := s.quizRepo.GetByID(ctx, nil, id)
	if err != nil {
		return QuizAttemptView{}, err
	}
	completed := quiz.LastScorePercent != nil
	var outcome *scoring.Outcome
	if completed && quiz.Passed != nil {
		outcome = &scoring.Outcome{ScorePercent: *quiz.LastScorePercent, Passed: *quiz.Passed}
	}
	return QuizAttemptView{
		QuizID:  quiz.ID,
		Attempt: scoring.FromPassedFlag(quiz.Passed, completed, outcome),
	}, nil
}

// definitionFromQuiz extracts the scoring-relevant slice of the stored quiz
// payload. Question points arrive as stringified integers per the frontend
// quiz schema; unparseable or missing values fall back to the default inside
// the scoring package.
func definitionFromQuiz(quiz *types.Quiz) (scoring.QuizDefinition, error) {
	var payload llm.QuizPayload
	if err := json.Unmarshal(quiz.QuizData, &payload); err != nil {
		return scoring.QuizDefinition{}, fmt.Errorf("decode quiz payload: %w", err)
	}
	def := scoring.QuizDefinition{
		PassingScorePercent: float64(quiz.PassingScore),
		Questions:           make([]scoring.Question, 0, len(payload.Questions)),
	}
	for _, q := range payload.Questions {
		points, err := strconv.Atoi(q.Point)
		if err != nil {
			points = 0
		}
		def.Questions = append(def.Questions, scoring.Question{Points: points})
	}
	return def, nil
}
