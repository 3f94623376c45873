package server

import (
	stderrors "errors"
	"log"
	"net/http"

	"todolist/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

var (
	badRequestErrors = []error{
		errors.ErrValidationFailed,
		errors.ErrBadRequest,
		errors.ErrMissingFields,
		errors.ErrMissingCredentials,
		errors.ErrInvalidUsername,
		errors.ErrInvalidEmail,
		errors.ErrInvalidPassword,
		errors.ErrInvalidText,
		errors.ErrInvalidPriority,
		errors.ErrInvalidTags,
		errors.ErrInvalidFilter,
		errors.ErrUserAlreadyExists,
	}
	unauthorizedErrors = []error{
		errors.ErrInvalidCredentials,
		errors.ErrTokenRequired,
	}
	forbiddenErrors = []error{
		errors.ErrInvalidToken,
		errors.ErrUserNotFound,
	}
	notFoundErrors = []error{
		errors.ErrTodoNotFound,
		errors.ErrNotFound,
	}
)

// statusFor classifies a domain error. Anything unknown is a server error.
func statusFor(err error) int {
	switch {
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	case isAny(err, unauthorizedErrors):
		return http.StatusUnauthorized
	case isAny(err, forbiddenErrors):
		return http.StatusForbidden
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}

func respondError(ctx *gin.Context, err error) {
	status, msg := classify(ctx, err)
	ctx.JSON(status, gin.H{"error": msg})
}

func abortWithError(ctx *gin.Context, err error) {
	status, msg := classify(ctx, err)
	ctx.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bindJSON decodes the body into obj and answers the request itself on failure.
func bindJSON(ctx *gin.Context, obj any) bool {
	err := ctx.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errors.ErrRequestTooLarge.Error()})
		return false
	}
	respondError(ctx, errors.ErrBadRequest)
	return false
}

func classify(ctx *gin.Context, err error) (int, string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s: %v", ctx.Request.Method, ctx.Request.URL.Path, err)
		return status, errors.ErrInternalServer.Error()
	}
	return status, err.Error()
}
