package validation

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Validator plugs go-playground/validator into echo's c.Validate.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := time.Parse(DateLayout, value)
		return err == nil
	})

	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := time.Parse(ClockLayout, value)
		return err == nil && len(value) == len(ClockLayout)
	})

	// weekday accepts 0 (Monday) through 6 (Sunday).
	v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n := fl.Field().Int()
			return n >= 0 && n <= 6
		}
		return false
	})

	return &Validator{v: v}
}

// Error lists the failing fields and the rule each one broke.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, f+":"+tag)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *Error) Details() map[string]string { return e.Fields }

// Struct validates s and returns *Error for rule violations.
func (v *Validator) Struct(s interface{}) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fieldPath(fe)] = fe.Tag()
	}
	return &Error{Fields: fields}
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	if err := v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "validation error").SetInternal(err)
	}
	return nil
}

// Fail builds a 400 carrying a single field failure, for rules that span
// several fields and cannot be expressed as tags.
func Fail(message, field, rule string) error {
	return echo.NewHTTPError(http.StatusBadRequest, message).SetInternal(&Error{Fields: map[string]string{field: rule}})
}
