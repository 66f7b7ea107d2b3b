// Package httpkit holds the JSON response helpers shared by every
// HTTP handler, so all endpoints emit the same error shape.
package httpkit

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kitportal_backend/platform/apperr"
)

// ErrorResponse is the wire shape of every error the API returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// OK writes payload with a 200.
func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// JSON writes payload with an explicit status code.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// Error writes an ErrorResponse with the given status.
func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// HandleError writes err as an HTTP response and reports whether it
// did. Typed apperr errors pick their status from the error Kind;
// anything else is treated as a caller mistake and written as a 400.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		Error(c, appErr.HTTPStatus(), appErr.Message, appErr.Details)
		return true
	}

	Error(c, http.StatusBadRequest, err.Error(), nil)
	return true
}
