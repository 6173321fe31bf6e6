package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one failed validation rule
type FieldError struct {
	FailedField string
	Tag         string
	Param       string
}

func (e *FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s failed on %s=%s", e.FailedField, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s failed on %s", e.FailedField, e.Tag)
}

var growIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

var validate = validator.New()

func init() {
	validate.RegisterValidation("growid", func(fl validator.FieldLevel) bool {
		return growIDPattern.MatchString(fl.Field().String())
	})
}

// ValidateStruct runs the struct's validate tags and returns every failure
func ValidateStruct(data interface{}) []*FieldError {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []*FieldError{{FailedField: "-", Tag: err.Error()}}
	}

	fieldErrs := make([]*FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrs = append(fieldErrs, &FieldError{
			FailedField: fe.Field(),
			Tag:         fe.Tag(),
			Param:       fe.Param(),
		})
	}
	return fieldErrs
}

// JoinFieldErrors renders failures as one line
func JoinFieldErrors(errs []*FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}
