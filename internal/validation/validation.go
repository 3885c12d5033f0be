// Package validation holds the input rules shared by the service layer and the
// HTTP boundary.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"microblog/internal/models"

	"github.com/go-playground/validator/v10"
)

const (
	MaxUsernameLength = 32
	MaxEmailLength    = 128
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
	MaxContentLength = 1000
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Struct validates the `validate` tags of s and returns the first failure as a
// validation AppError.
func Struct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return translate("", err)
	}
	return nil
}

// ValidateUsername checks length and the allowed character set.
func ValidateUsername(username string) error {
	return check("username", username, fmt.Sprintf("required,max=%d,handle", MaxUsernameLength))
}

// ValidateEmail checks length and address shape.
func ValidateEmail(email string) error {
	return check("email", email, fmt.Sprintf("required,max=%d,email", MaxEmailLength))
}

// ValidatePassword enforces 1..72 bytes.
func ValidatePassword(password string) error {
	if password == "" {
		return models.NewValidationError("password is required")
	}
	if len(password) > MaxPasswordBytes {
		return models.NewValidationError(fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

// ValidateContent trims post content and checks it is non-empty and short.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", models.NewValidationError("content is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return "", models.NewValidationError(fmt.Sprintf("content must be at most %d characters", MaxContentLength))
	}
	return trimmed, nil
}

// OptionalID parses an optional reference id from raw form/query input.
// Empty or whitespace-only input means "no reference".
func OptionalID(raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 || n > uint64(^uint(0)) {
		return nil, models.NewValidationError(fmt.Sprintf("invalid id %q", raw))
	}
	id := uint(n)
	return &id, nil
}

func check(field string, value string, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return translate(field, err)
	}
	return nil
}

func translate(field string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return models.NewValidationError(err.Error())
	}
	fe := verrs[0]
	if field == "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return models.NewValidationError(field + " is required")
	case "max":
		return models.NewValidationError(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	case "email":
		return models.NewValidationError(field + " must be a valid email address")
	case "handle":
		return models.NewValidationError(field + " may only contain letters, numbers, underscores and hyphens")
	default:
		return models.NewValidationError(field + " is invalid")
	}
}
