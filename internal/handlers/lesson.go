package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/services"
	"github.com/lumenlabs/lumen-backend/internal/types"
)

type LessonHandler struct {
	log       *logger.Logger
	lessonSvc services.LessonService
}

func NewLessonHandler(log *logger.Logger, lessonSvc services.LessonService) *LessonHandler {
	return &LessonHandler{
		log:       log.With("handler", "LessonHandler"),
		lessonSvc: lessonSvc,
	}
}

// GET /api/lessons/:id
func (h *LessonHandler) GetLesson(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	lesson, err := h.lessonSvc.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, lesson)
}

// GET /api/courses/:id/lessons
func (h *LessonHandler) ListCourseLessons(c *gin.Context) {
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	lessons, err := h.lessonSvc.GetByCourse(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"lessons": lessons})
}

// PUT /api/lessons/:id/user-status
func (h *LessonHandler) UpdateLessonUserStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Status types.UserLessonStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	lesson, err := h.lessonSvc.UpdateUserStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, lesson)
}

// POST /api/lessons/:id/regenerate
func (h *LessonHandler) RegenerateLesson(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	lesson, err := h.lessonSvc.Regenerate(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, lesson)
}
