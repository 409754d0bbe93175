package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenlabs/lumen-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondServiceError maps service-layer errors to HTTP responses: not-found
// sentinels become 404, typed errors carry their own status, everything else
// is a 500.
func RespondServiceError(c *gin.Context, err error) {
	if apperr.IsNotFound(err) {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	var typed *apperr.Error
	if errors.As(err, &typed) && typed.Status != 0 {
		RespondError(c, typed.Status, typed.Code, typed)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal", err)
}
