package validation

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/diarkit/errors"
	"github.com/kbukum/diarkit/export"
)

var (
	validate *validator.Validate
	once     sync.Once
)

var nameTags = []string{"json", "mapstructure", "yaml"}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
		_ = validate.RegisterValidation("export_format", func(fl validator.FieldLevel) bool {
			_, err := export.ParseFormat(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("subtitle_policy", func(fl validator.FieldLevel) bool {
			_, err := export.ParsePolicy(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range nameTags {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return toSnakeCase(fld.Name)
}

// Validate checks s against its `validate` struct tags.
func Validate(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Validation("validation failed: " + err.Error())
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(e), Message: formatValidationError(e)})
	}
	return fieldsError(fields)
}

// fieldPath drops the root struct name from the namespace so nested fields
// read as "server.port".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "hostname_port":
		return "must be host:port"
	case "export_format":
		return "must be one of: " + strings.Join(export.FormatNames(), ", ")
	case "subtitle_policy":
		return "must be one of: clip, reject"
	default:
		return "is invalid"
	}
}

func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
