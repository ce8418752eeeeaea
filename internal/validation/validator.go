// Package validation registers the request validation rules used by gin
// binding and translates their failures into field-level violations.
package validation

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"tradestream/internal/errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^\w+$`)

var registerOnce sync.Once
var registerErr error

// RegisterRules adds the custom tags to v and makes violations report the
// json field name.
func RegisterRules(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}

// RegisterGinRules installs the rules on gin's binding validator once per
// process.
func RegisterGinRules() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
			return
		}
		registerErr = RegisterRules(v)
	})
	return registerErr
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// FieldViolations converts a binding error into per-field violations.
// Decoding errors that are not tied to a field are reported against "body".
func FieldViolations(err error) []errors.FieldViolation {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := make([]errors.FieldViolation, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, errors.FieldViolation{
				Field:      fe.Field(),
				Constraint: constraint(fe),
			})
		}
		return fields
	}

	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) && typeErr.Field != "" {
		return []errors.FieldViolation{{
			Field:      typeErr.Field,
			Constraint: "must be of type " + typeErr.Type.String(),
		}}
	}

	if stderrors.Is(err, io.EOF) {
		return []errors.FieldViolation{{Field: "body", Constraint: "is required"}}
	}
	return []errors.FieldViolation{{Field: "body", Constraint: "must be well-formed"}}
}

// BindError wraps a binding failure as an INVALID_INPUT application error.
func BindError(err error) *errors.AppError {
	fields := FieldViolations(err)
	appErr := errors.NewValidationError(fields, err)
	appErr.Details = summarize(fields)
	return appErr
}

func summarize(fields []errors.FieldViolation) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+" "+f.Constraint)
	}
	return "Invalid request: " + strings.Join(parts, "; ")
}

func constraint(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "username":
		return "must contain only letters, digits and underscores"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
