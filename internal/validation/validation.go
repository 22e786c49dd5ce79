// Package validation decodes customer request bodies and checks them against
// the per-operation field rules, producing per-field error messages.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// ErrMalformedBody is returned when the body is not a JSON object.
var ErrMalformedBody = errors.New("malformed JSON body")

// Errors maps a request field to its failure messages.
type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e[f], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator wraps a configured go-playground validator. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

// check runs struct rules and folds them into errs.
func (val *Validator) check(req any, errs Errors) {
	err := val.v.Struct(req)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("_", err.Error())
		return
	}
	for _, fe := range verrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs.Add(fe.Field(), message(fe))
	}
}

func attribute(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func message(fe validator.FieldError) string {
	attr := attribute(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", attr)
	case "notblank":
		return fmt.Sprintf("The %s field must not be blank.", attr)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", attr)
	case "max":
		return fmt.Sprintf("The %s must not be greater than %s characters.", attr, fe.Param())
	default:
		return fmt.Sprintf("The %s is invalid.", attr)
	}
}

// fields splits a JSON object body into raw members. An empty body is an empty object.
func fields(body []byte) (map[string]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil || m == nil {
		return nil, ErrMalformedBody
	}
	return m, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeString sets *dst when raw holds a JSON string; anything else is a type error.
func decodeString(m map[string]json.RawMessage, field string, dst **string, errs Errors) {
	raw, ok := m[field]
	if !ok {
		return
	}
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		errs.Add(field, fmt.Sprintf("The %s must be a string.", attribute(field)))
		return
	}
	*dst = &s
}

// decodeBool accepts true, false, 1, 0, "1" and "0".
func decodeBool(m map[string]json.RawMessage, field string, dst **bool, errs Errors) {
	raw, ok := m[field]
	if !ok {
		return
	}
	var b bool
	switch strings.TrimSpace(string(raw)) {
	case "true", "1", `"1"`:
		b = true
	case "false", "0", `"0"`:
		b = false
	default:
		errs.Add(field, fmt.Sprintf("The %s field must be true or false.", attribute(field)))
		return
	}
	*dst = &b
}

func orNil(errs Errors) error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
