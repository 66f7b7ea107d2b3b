// Package validator wraps go-playground/validator behind a small
// surface so handlers depend on one shared instance instead of
// constructing their own.
package validator

import "github.com/go-playground/validator/v10"

// Validator validates request DTOs against their `validate` tags.
// Modules register domain tags (e.g. MBI format) at wiring time.
type Validator struct {
	engine *validator.Validate
}

// New builds a Validator with the default tag set.
func New() *Validator {
	return &Validator{engine: validator.New()}
}

// Struct checks every tagged field of s and returns the combined
// validation error, or nil.
func (val *Validator) Struct(s any) error {
	return val.engine.Struct(s)
}

// Var checks a single value against a tag expression.
func (val *Validator) Var(field any, tag string) error {
	return val.engine.Var(field, tag)
}

// RegisterValidation adds a custom tag. Registration errors only
// happen for empty tag names, so callers treat them as fatal wiring
// mistakes.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.engine.RegisterValidation(tag, fn)
}
