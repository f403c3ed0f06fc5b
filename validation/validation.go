// Package validation checks request structs against their validate tags and
// turns every violation into a field message.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"kinship/apperr"
)

// Messages maps "field.tag" (or just "field") to the message shown to the
// client. Field names are the json names.
type Messages map[string]string

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s and returns an *apperr.Error of kind validation holding
// the first failure of every invalid field, or nil.
func Struct(s any, messages Messages) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fieldName(fe)
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = message(messages, field, fe)
	}
	return apperr.Validation(fields)
}

// fieldName strips the index from dive errors so mentions[2] reports as
// mentions.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func message(messages Messages, field string, fe validator.FieldError) string {
	if msg, ok := messages[field+"."+fe.Tag()]; ok {
		return msg
	}
	if msg, ok := messages[field]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " must not exceed " + fe.Param() + " characters"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}
