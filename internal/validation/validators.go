package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// report JSON field names in messages
	Validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	if err := Validate.RegisterValidation("language", validateLanguage); err != nil {
		panic(fmt.Sprintf("failed to register language validator: %v", err))
	}
	if err := Validate.RegisterValidation("plan", validatePlan); err != nil {
		panic(fmt.Sprintf("failed to register plan validator: %v", err))
	}
	if err := Validate.RegisterValidation("video_id", validateVideoID); err != nil {
		panic(fmt.Sprintf("failed to register video_id validator: %v", err))
	}
}

func validateLanguage(fl validator.FieldLevel) bool {
	return models.Language(fl.Field().String()).IsValid()
}

func validatePlan(fl validator.FieldLevel) bool {
	return models.Plan(fl.Field().String()).IsValid()
}

func validateVideoID(fl validator.FieldLevel) bool {
	return youtube.ValidVideoID(fl.Field().String())
}

// Struct validates s with the shared validator
func Struct(s any) error {
	return Validate.Struct(s)
}

// Messages turns a validation error into one readable message per failing field
func Messages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "language":
		return fmt.Sprintf("%s must be 'en' or 'id'", field)
	case "plan":
		return fmt.Sprintf("%s must be 'free', 'monthly' or 'yearly'", field)
	case "video_id":
		return fmt.Sprintf("%s is not a valid video ID", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// SanitizeText trims whitespace and removes control characters except newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateLanguage validates a Language string value
func ValidateLanguage(value string) error {
	if !models.Language(value).IsValid() {
		return fmt.Errorf("invalid language: %s (must be 'en' or 'id')", value)
	}
	return nil
}

// ValidatePlan validates a Plan string value
func ValidatePlan(value string) error {
	if !models.Plan(value).IsValid() {
		return fmt.Errorf("invalid plan: %s (must be 'free', 'monthly', or 'yearly')", value)
	}
	return nil
}
