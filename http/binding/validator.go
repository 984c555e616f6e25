package binding

import (
	"fmt"

	validatorV10 "github.com/go-playground/validator/v10"
)

var validator = validatorV10.New(validatorV10.WithRequiredStructEnabled())

func getValidationMessage(fe validatorV10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "printascii":
		return "must contain printable ASCII only"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}
