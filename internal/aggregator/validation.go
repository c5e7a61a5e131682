package aggregator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/errors"
	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// validate checks requests against the same `binding` tags gin enforces at
// the HTTP boundary, so CLI and async callers get identical rules.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return v
}()

// ValidateRequest rejects requests that cannot be composed. Language is
// compared lower-cased and enums upper-cased, matching normalization.
func ValidateRequest(req *types.Request) error {
	if req == nil {
		return errors.NewValidationError("request is required")
	}

	candidate := *req
	candidate.Language = strings.ToLower(strings.TrimSpace(req.Language))
	candidate.PlanetType = types.PlanetType(strings.ToUpper(string(req.PlanetType)))
	candidate.Scope = types.GeographicalScope(strings.ToUpper(string(req.Scope)))

	return ValidationError(validate.Struct(candidate))
}

// ValidationError converts a validator failure, including one produced by
// gin binding, into a validation AppError. It returns nil for a nil err.
func ValidationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.NewValidationError("invalid request").WithCause(err)
	}

	appErr := errors.NewValidationError(describe(fieldErrs[0]))
	for _, fe := range fieldErrs {
		appErr = appErr.WithDetail(lowerFirst(fe.Field()), fe.Tag())
	}
	return appErr
}

func describe(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "alpha":
		return fmt.Sprintf("%s must contain only letters", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
