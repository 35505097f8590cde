package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/diagnosis/rsvp-events/internal/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		return utils.HasFullName(fl.Field().String())
	})
	return v
}

// validateStruct runs the tag rules on s and converts the first failure
// into a ValidationError with a readable message.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return NewValidationError(field, "%s is required", field)
	case "fullname":
		return NewValidationError(field, "%s must include a first and last name", field)
	case "email":
		return NewValidationError(field, "%s must be a valid email address", field)
	case "oneof":
		return NewValidationError(field, "%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return NewValidationError(field, "%s must be at least %s characters", field, fe.Param())
		}
		return NewValidationError(field, "%s must be at least %s", field, fe.Param())
	case "max":
		return NewValidationError(field, "%s must be at most %s", field, fe.Param())
	default:
		return NewValidationError(field, "%s is invalid", field)
	}
}
