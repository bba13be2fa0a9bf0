package postboard

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ApiError struct {
	Status    int    `json:"-"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

var (
	ErrBadRequest      = ApiError{Status: http.StatusBadRequest, ErrorCode: "BAD_REQUEST", Message: "%s"}
	ErrUnauthenticated = ApiError{Status: http.StatusUnauthorized, ErrorCode: "UNAUTHENTICATED", Message: "Unauthenticated."}
	ErrForbidden       = ApiError{Status: http.StatusForbidden, ErrorCode: "FORBIDDEN", Message: "This action is unauthorized."}
	ErrInvalidScope    = ApiError{Status: http.StatusForbidden, ErrorCode: "INVALID_SCOPE", Message: "Invalid scope(s) provided."}
	ErrNotFound        = ApiError{Status: http.StatusNotFound, ErrorCode: "NOT_FOUND", Message: "%s not found"}
)

func (e ApiError) New(messages ...string) ApiError {
	args := make([]any, len(messages))
	for i, msg := range messages {
		args[i] = msg
	}

	message := fmt.Sprintf(e.Message, args...)
	return ApiError{
		Status:    e.Status,
		ErrorCode: e.ErrorCode,
		Message:   message,
	}
}

func (e ApiError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// SendError writes err using its ApiError status, or 400 when the status is unset.
// Any other error becomes an opaque 500.
func SendError(c *gin.Context, err error) {
	var customErr ApiError
	if errors.As(err, &customErr) {
		status := customErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, ErrorResponse{
			ErrorCode: customErr.ErrorCode,
			Message:   customErr.Message,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		ErrorCode: "Internal Server Error",
		Message:   "An unknown error occurred",
	})
}
