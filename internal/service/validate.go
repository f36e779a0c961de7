package service

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"go-token-auth/internal/model"
	"go-token-auth/pkg/apierror"
)

// bcrypt ignores everything past 72 bytes; the validator's max counts runes.
const maxPasswordBytes = 72

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
		_ = validate.RegisterValidation("visible", visibleText)
	})
	return validate
}

// validateCredentials returns a 400 APIError wrapping model.ErrInvalidInput.
// Messages name the field and rule, never the submitted value.
func validateCredentials(creds model.Credentials) error {
	err := getValidator().Struct(creds)
	if err == nil {
		if len(creds.Password) > maxPasswordBytes {
			return apierror.BadRequest(model.ErrInvalidInput, "invalid credentials payload", "password: must be at most 72 bytes")
		}
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierror.BadRequest(model.ErrInvalidInput, "invalid credentials payload", "")
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fe.Field()+": "+describeRule(fe))
	}
	return apierror.BadRequest(model.ErrInvalidInput, "invalid credentials payload", strings.Join(messages, "; "))
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "visible":
		return "must not contain control or invisible characters"
	default:
		return "is invalid"
	}
}

// visibleText rejects control characters and zero-width or other format
// runes, which would let two usernames render identically.
func visibleText(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return false
		}
	}
	return true
}
