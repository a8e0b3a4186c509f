package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse standard API response structure
type APIResponse struct {
	Data  interface{} `json:"data"`
	Meta  *Meta       `json:"meta,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
}

// Meta list metadata
type Meta struct {
	Limit   int   `json:"limit,omitempty"`
	Total   int64 `json:"total,omitempty"`
	Partial bool  `json:"partial,omitempty"`
}

// ErrorInfo error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse returns a successful JSON response
func SuccessResponse(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, APIResponse{
		Data: data,
		Meta: meta,
	})
}

// ErrorResponse returns an error JSON response
func ErrorResponse(c *gin.Context, status int, message string, err error) {
	errInfo := &ErrorInfo{
		Code:    getErrorCode(status),
		Message: message,
	}
	if err != nil && gin.Mode() == gin.DebugMode {
		errInfo.Details = err.Error()
	}

	c.JSON(status, gin.H{
		"error": errInfo,
	})
}

// HandleError maps a service error onto a status code and writes it
func HandleError(c *gin.Context, err error) {
	ErrorResponse(c, StatusFor(err), err.Error(), err)
}

// StatusFor maps the messenger error taxonomy to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case IsForbidden(err):
		return http.StatusForbidden
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateInvitation), errors.Is(err, ErrInvitationClosed):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// getErrorCode generates error code from HTTP status
func getErrorCode(status int) string {
	switch status {
	case 400:
		return "BAD_REQUEST"
	case 401:
		return "UNAUTHORIZED"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 409:
		return "CONFLICT"
	case 429:
		return "RATE_LIMITED"
	case 503:
		return "SERVICE_UNAVAILABLE"
	case 500:
		return "INTERNAL_SERVER_ERROR"
	default:
		return "ERROR"
	}
}
