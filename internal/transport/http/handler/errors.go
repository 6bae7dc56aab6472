package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	errInternalServer     = "Internal server error"
	errInvalidInput       = "Invalid input."
	errTokenInvalid       = "Invalid or expired token."
	errPermissionDenied   = "You do not have permission to perform this action."
	errAlreadyVerified    = "Email already verified."
	errUserNotFound       = "User not found."
	errNotFound           = "Not found."
	errInvalidCredentials = "Unable to log in with provided credentials."
	errAccountDisabled    = "User account is disabled."
	errInvalidTokenHeader = "Invalid token header."
	errNoCredentials      = "Authentication credentials were not provided."
)

// writeError maps domain errors to responses; anything unknown is logged and
// answered 500.
func writeError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFields(c, verr.Fields)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeFields(c, map[string][]string{domain.NonFieldErrors: {errInvalidCredentials}})
	case errors.Is(err, domain.ErrAccountDisabled):
		writeFields(c, map[string][]string{domain.NonFieldErrors: {errAccountDisabled}})
	case errors.Is(err, domain.ErrTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": errTokenInvalid})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": errPermissionDenied})
	case errors.Is(err, domain.ErrAlreadyVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": errAlreadyVerified})
	case errors.Is(err, domain.ErrFeatureDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": errNotFound})
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errUserNotFound})
	default:
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

func writeFields(c *gin.Context, fields map[string][]string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidInput, "fields": fields})
}

// writeBindError turns binding failures into field errors. Malformed JSON has
// no field and lands in non_field_errors.
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeFields(c, map[string][]string{domain.NonFieldErrors: {"Malformed request body."}})
		return
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	writeFields(c, fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}
