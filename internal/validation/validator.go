package validation

import (
	"errors"
	"reflect"
	"strings"

	"vistagram/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Validator is the shared struct validator. Besides the built-in tags it knows
// notblank, username, password and vemail.
var Validator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("vemail", func(fl validator.FieldLevel) bool {
		return ValidateEmail(fl.Field().String()) == nil
	})

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct validates payload and returns a validation AppError describing the
// first failing field, or nil.
func Struct(payload any) error {
	err := Validator.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return models.NewValidationError("Invalid request body")
	}
	return models.NewValidationError(describe(payload, verrs[0]))
}

func describe(payload any, fe validator.FieldError) string {
	value, _ := fe.Value().(string)
	switch fe.Tag() {
	case "username":
		return capitalize(ValidateUsername(value).Error())
	case "password":
		return capitalize(ValidatePassword(value).Error())
	case "vemail":
		return capitalize(ValidateEmail(value).Error())
	}

	if msg := fieldMessage(payload, fe.StructField()); msg != "" {
		return msg
	}
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

// fieldMessage returns the msg tag of the named field, if any.
func fieldMessage(payload any, field string) string {
	t := reflect.TypeOf(payload)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return ""
	}
	f, ok := t.FieldByName(field)
	if !ok {
		return ""
	}
	return f.Tag.Get("msg")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
