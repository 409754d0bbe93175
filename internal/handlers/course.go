package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-backend/internal/logger"
	"github.com/lumenlabs/lumen-backend/internal/services"
)

type CourseHandler struct {
	log       *logger.Logger
	courseSvc services.CourseService
	retrySvc  services.RetrySessionManager
}

func NewCourseHandler(log *logger.Logger, courseSvc services.CourseService, retrySvc services.RetrySessionManager) *CourseHandler {
	return &CourseHandler{
		log:       log.With("handler", "CourseHandler"),
		courseSvc: courseSvc,
		retrySvc:  retrySvc,
	}
}

// POST /api/courses
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var in services.CreateCourseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	course, err := h.courseSvc.Create(c.Request.Context(), in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, course)
}

// GET /api/courses
func (h *CourseHandler) ListCourses(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	courses, err := h.courseSvc.List(c.Request.Context(), offset, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"courses": courses})
}

// GET /api/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	course, err := h.courseSvc.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, course)
}

// PATCH /api/courses/:id
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateCourseInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	course, err := h.courseSvc.Update(c.Request.Context(), id, in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, course)
}

// DELETE /api/courses/:id
func (h *CourseHandler) ArchiveCourse(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.courseSvc.Archive(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/courses/:id/publish
func (h *CourseHandler) PublishCourse(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	course, err := h.courseSvc.Publish(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, course)
}

// GET /api/courses/:id/retry-eligibility
func (h *CourseHandler) GetRetryEligibility(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	decision, err := h.courseSvc.RetryEligibility(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, decision)
}

// POST /api/courses/:id/retry-generation
func (h *CourseHandler) RetryGeneration(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	view, started, err := h.retrySvc.StartSession(id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	status := http.StatusOK
	if started {
		status = http.StatusAccepted
	}
	c.JSON(status, view)
}

// GET /api/courses/:id/retry-progress
func (h *CourseHandler) GetRetryProgress(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	view, _ := h.retrySvc.Progress(id)
	RespondOK(c, view)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return uuid.Nil, false
	}
	return id, true
}
