package api

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/follow-scanner/internal/errors"
)

// validate checks request structs; field names in errors come from the
// query/header tag so they match what the caller sent
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "header"} {
			if name := strings.Split(f.Tag.Get(tag), ",")[0]; name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// validateRequest turns the first validation failure into an invalid-parameter error
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewInternalError("request validation failed", err)
	}

	fe := fieldErrs[0]
	return apperrors.NewInvalidParameterError(fe.Field(), describeRule(fe))
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be a positive integer"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "eth_addr":
		return "must be a 20-byte hex address"
	case "boolean":
		return "must be true or false"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
