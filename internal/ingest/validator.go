package ingest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"inappkit/internal/types"
)

// ValidationError describes one field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator and reports failures as
// *types.AppError. Field names are taken from json tags so errors match the
// wire payload.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the payload-specific rules
// registered.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// inset_percentage bounds an edge inset to a share of the screen.
	_ = v.RegisterValidation("inset_percentage", func(fl validator.FieldLevel) bool {
		p := fl.Field().Int()
		return p >= 0 && p <= 100
	})
	return &Validator{validate: v}
}

// ValidateStruct validates s. All field failures are collected into
// Details["validation_errors"]; the error code follows the first failure.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidPayload, "payload could not be validated", err)
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Code:    string(codeFor(fe)),
			Message: messageFor(fe),
		})
	}

	first := out[0]
	return types.NewAppError(types.ErrorCode(first.Code), first.Message, err).
		WithDetails(map[string]any{"validation_errors": out})
}

// fieldPath drops the root struct name from the namespace, so
// "Payload.content.html" becomes "content.html".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func codeFor(fe validator.FieldError) types.ErrorCode {
	switch {
	case fe.Tag() == "required", fe.Tag() == "required_if", fe.Tag() == "required_without":
		return types.ErrCodeValidationMissingField
	case fieldPath(fe) == "expiresAt":
		return types.ErrCodeValidationInvalidExpiry
	case strings.HasPrefix(fieldPath(fe), "content."):
		return types.ErrCodeValidationInvalidContent
	default:
		return types.ErrCodeValidationInvalidPayload
	}
}

func messageFor(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "inset_percentage":
		return fmt.Sprintf("%s must be between 0 and 100", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
