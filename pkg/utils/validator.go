package utils

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/turtacn/cakeys/pkg/errors"
)

// Validator holds the singleton instance of the validator.
var defaultValidator *validator.Validate

func init() {
	defaultValidator = validator.New()
	// Register custom validation functions
	defaultValidator.RegisterValidation("uuid", validateUUID)
	defaultValidator.RegisterValidation("power_of_two", validatePowerOfTwo)
}

// ValidateStruct validates a struct using the default validator.
// It returns an invalid_configuration CAError listing every failed field.
func ValidateStruct(s interface{}) errors.CAError {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ErrInvalidConfiguration(err.Error()).WithCause(err)
	}

	details := make([]string, 0, len(validationErrors))
	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		field := toSnakeCase(fe.Namespace())
		msg := formatValidationError(fe)
		details = append(details, fmt.Sprintf("%s %s", field, msg))
		fields[field] = msg
	}
	sort.Strings(details)

	caErr := errors.ErrInvalidConfiguration(strings.Join(details, "; ")).WithCause(err)
	for field, msg := range fields {
		caErr.WithMetadata(field, msg)
	}
	return caErr
}

// validateUUID is a custom validation function for UUIDs.
func validateUUID(fl validator.FieldLevel) bool {
	field := fl.Field().String()
	if _, err := uuid.Parse(field); err != nil {
		return false
	}
	return true
}

// validatePowerOfTwo accepts zero (unset) or a positive power of two.
func validatePowerOfTwo(fl validator.FieldLevel) bool {
	v := fl.Field().Int()
	return v == 0 || IsPowerOfTwo(int(v))
}

// formatValidationError creates a user-friendly error message for a validation error.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "power_of_two":
		return "must be a power of two"
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// toSnakeCase converts a dotted CamelCase namespace to snake_case segments.
func toSnakeCase(str string) string {
	segments := strings.Split(str, ".")
	for i, segment := range segments {
		snake := matchFirstCap.ReplaceAllString(segment, "${1}_${2}")
		snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
		segments[i] = strings.ToLower(snake)
	}
	return strings.Join(segments, ".")
}
