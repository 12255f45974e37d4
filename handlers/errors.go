package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// Report violations under their JSON names rather than Go field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// min counts whitespace, so a padded string can satisfy a length
		// bound while being effectively empty.
		v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, models.ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     message,
		Path:      c.Request.URL.Path,
	})
}

// bindJSON decodes and validates the request body. All validation violations
// are collected and reported together with 422; malformed payloads get 400.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var violations validator.ValidationErrors
	if errors.As(err, &violations) {
		fields := make([]models.FieldError, 0, len(violations))
		for _, violation := range violations {
			fields = append(fields, models.FieldError{
				Field:   violation.Field(),
				Message: violationMessage(violation),
			})
		}
		c.JSON(http.StatusUnprocessableEntity, models.ValidationErrorResponse{
			ErrorResponse: models.ErrorResponse{
				Timestamp: time.Now().UTC(),
				Status:    http.StatusUnprocessableEntity,
				Error:     "Invalid data",
				Path:      c.Request.URL.Path,
			},
			Errors: fields,
		})
		return false
	}

	writeError(c, http.StatusBadRequest, "Malformed request body")
	return false
}

func violationMessage(violation validator.FieldError) string {
	switch violation.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "gt":
		return fmt.Sprintf("must be greater than %s", violation.Param())
	case "min":
		if violation.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s item(s)", violation.Param())
		}
		return fmt.Sprintf("must be at least %s characters", violation.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", violation.Param())
	default:
		return fmt.Sprintf("failed %s validation", violation.Tag())
	}
}
