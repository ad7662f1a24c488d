package spec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var fieldValidator = validator.New()

// checkFields runs struct tag validation on node and translates the
// first violation into this package's error type.
func checkFields(node any) error {
	err := fieldValidator.Struct(node)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &Error{Kind: KindInvalidValue, Message: "invalid value", Err: err}
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "a value is required"
	case "oneof":
		msg = "value must be one of: " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			msg = fmt.Sprintf("at least %s entries are required", fe.Param())
		} else {
			msg = "value must be at least " + fe.Param()
		}
	default:
		msg = fmt.Sprintf("value fails the %q constraint", fe.Tag())
	}
	return newError(KindInvalidValue, fieldPath(fe), fmt.Sprintf("%v", fe.Value()), msg)
}

// fieldPath renders a validator namespace such as
// "XstreamSpec.Scheduler.Type" as "scheduler.type".
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snakeCase(p)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
