// Package validation checks request DTOs with go-playground/validator and
// converts failures into a single user-facing validation error.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/redmonkez12/bookshelf/internal/apperr"
)

// Validator validates DTO structs tagged with `validate` and named by their `form` tag
type Validator struct {
	validate *validator.Validate
	policy   PasswordPolicy
}

func New(policy PasswordPolicy) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report form field names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// RegisterValidation only fails for an empty tag or nil func
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return policy.Allows(fl.Field().String())
	})

	return &Validator{validate: v, policy: policy}
}

// Policy returns the password policy enforced by the "password" tag
func (v *Validator) Policy() PasswordPolicy {
	return v.policy
}

// Struct validates s, returning an *apperr.Error of kind validation that
// lists every failing field
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, v.message(fe))
	}

	return apperr.Validations(messages)
}

// Password checks a single password against the policy
func (v *Validator) Password(password string) error {
	if !v.policy.Allows(password) {
		return apperr.Validation(v.policy.Describe())
	}
	return nil
}

func (v *Validator) message(fe validator.FieldError) string {
	field := fe.Field()
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		if fe.Param() == "0" {
			return fmt.Sprintf("%s must be a positive number", field)
		}
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, fe.Param())
	case "password":
		return v.policy.Describe()
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
