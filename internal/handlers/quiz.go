package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/services"
)

type QuizHandler struct {
	log     *logger.Logger
	quizSvc services.QuizService
}

func NewQuizHandler(log *logger.Logger, quizSvc services.QuizService) *QuizHandler {
	return &QuizHandler{
		log:     log.With("handler", "QuizHandler"),
		quizSvc: quizSvc,
	}
}

// GET /api/quizzes/:id
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quiz, err := h.quizSvc.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, quiz)
}

// GET /api/lessons/:id/quiz
func (h *QuizHandler) GetLessonQuiz(c *gin.Context) {
	lessonID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quiz, err := h.quizSvc.GetForLesson(c.Request.Context(), lessonID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, quiz)
}

// POST /api/lessons/:id/quiz
func (h *QuizHandler) CreateLessonQuiz(c *gin.Context) {
	lessonID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quiz, err := h.quizSvc.CreateForLesson(c.Request.Context(), lessonID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, quiz)
}

// GET /api/courses/:id/final-quiz
func (h *QuizHandler) GetFinalQuiz(c *gin.Context) {
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quiz, err := h.quizSvc.GetFinalForCourse(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, quiz)
}

// POST /api/courses/:id/final-quiz
func (h *QuizHandler) CreateFinalQuiz(c *gin.Context) {
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quiz, err := h.quizSvc.CreateFinalForCourse(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, quiz)
}

// GET /api/courses/:id/quizzes
func (h *QuizHandler) ListCourseQuizzes(c *gin.Context) {
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quizzes, err := h.quizSvc.GetByCourse(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"quizzes": quizzes})
}

// PUT /api/quizzes/:id
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateQuizInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	quiz, err := h.quizSvc.Update(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, quiz)
}

// POST /api/quizzes/:id/regenerate
func (h *QuizHandler) RegenerateQuiz(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quiz, err := h.quizSvc.Regenerate(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, quiz)
}

// DELETE /api/quizzes/:id
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.quizSvc.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /api/quizzes/:id/status
// Records the optimistic "attempted" marker when a learner opens a quiz.
func (h *QuizHandler) MarkQuizAttempted(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.quizSvc.MarkAttempted(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	view, err := h.quizSvc.AttemptState(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

// POST /api/quizzes/:id/attempts
func (h *QuizHandler) SubmitQuizAttempt(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var in services.SubmitAttemptInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	outcome, err := h.quizSvc.SubmitAttempt(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, outcome)
}

// GET /api/quizzes/:id/attempt
func (h *QuizHandler) GetQuizAttempt(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	view, err := h.quizSvc.AttemptState(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}
