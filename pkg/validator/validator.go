package validator

import (
	stderrors "errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hirosato/dues-ledger/internal/domain/errors"
)

// Validator provides validation functions for request data
type Validator interface {
	// Validate validates a struct based on its validate tags
	Validate(i interface{}) error
}

// New creates a new validator
func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Decimals are compared as numbers by gt/gte/lt/lte tags.
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	return &playgroundValidator{validate: v}
}

// decimalValue converts a decimal for numeric tags. Magnitudes below the
// float64 range keep their sign so gt=0 still sees them as non-zero.
func decimalValue(field reflect.Value) interface{} {
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f := d.InexactFloat64()
	if f == 0 && !d.IsZero() {
		return float64(d.Sign()) * math.SmallestNonzeroFloat64
	}
	return f
}

type playgroundValidator struct {
	validate *validator.Validate
}

// Validate returns a VALIDATION_ERROR AppError listing every failed field.
func (v *playgroundValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.NewInvalidInputError("invalid request", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	fields := make(map[string]interface{}, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := describe(fe)
		messages = append(messages, msg)
		fields[fe.Field()] = msg
	}

	appErr := errors.NewValidationError(strings.Join(messages, "; "))
	return appErr.WithDetail("fields", fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
