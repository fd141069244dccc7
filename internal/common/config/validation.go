package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// DescribeValidationErrors rewrites the errors returned by validator into one readable error per failed field.
// Field names are given relative to the validated struct. Any other error is returned unchanged.
func DescribeValidationErrors(err error) error {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var result *multierror.Error
	for _, fieldErr := range fieldErrors {
		result = multierror.Append(result, describeFieldError(fieldErr))
	}
	return result.ErrorOrNil()
}

func describeFieldError(fieldErr validator.FieldError) error {
	field := fieldErr.Namespace()
	if _, rest, found := strings.Cut(field, "."); found {
		field = rest
	}
	switch fieldErr.Tag() {
	case "required":
		return fmt.Errorf("field %s is required", field)
	case "oneof":
		return fmt.Errorf("field %s is %v but must be one of [%s]", field, fieldErr.Value(), fieldErr.Param())
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Errorf("field %s is %v but must satisfy %s=%s", field, fieldErr.Value(), fieldErr.Tag(), fieldErr.Param())
	default:
		return fmt.Errorf("field %s has invalid value %v: %s", field, fieldErr.Value(), fieldErr.Tag())
	}
}
