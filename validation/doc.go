// Package validation checks configuration sections and HTTP request bodies.
//
// Struct tags are validated with go-playground/validator; field names in
// messages come from the json, mapstructure or yaml tag, in that order:
//
//	type AlignRequest struct {
//	    Formats []string `json:"formats" validate:"dive,export_format"`
//	}
//	err := validation.Validate(req)
//
// Handlers that check path or query values build errors with Validator:
//
//	v := validation.New()
//	v.RequiredUUID("id", c.Param("id"))
//	if err := v.Validate(); err != nil { ... }
//
// Every failure is an *errors.AppError with code INVALID_INPUT and a
// "fields" detail listing each offending field.
package validation
