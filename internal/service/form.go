package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
)

// Form is the flat field map every pipeline accepts.
//
// A key that is missing (or JSON null) is absent, which is different from a
// present empty string. Any value that is not a single string makes the form
// structurally invalid.
type Form map[string]any

// FormFromValues converts a parsed urlencoded or multipart body. A field that
// was submitted more than once keeps all its values and fails the type check.
func FormFromValues(values url.Values) Form {
	f := make(Form, len(values))
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			f[k] = vs[0]
		default:
			f[k] = vs
		}
	}
	return f
}

// FormFromJSON decodes a JSON object body into a Form.
func FormFromJSON(r io.Reader) (Form, error) {
	var f Form
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("service: decoding form: %w", err)
	}
	if f == nil {
		f = Form{}
	}
	return f, nil
}

// lookup returns the string under key. present is false for an absent key;
// ok is false when the key holds something other than one string.
func (f Form) lookup(key string) (value string, present, ok bool) {
	raw, exists := f[key]
	if !exists || raw == nil {
		return "", false, true
	}
	s, isString := raw.(string)
	if !isString {
		return "", true, false
	}
	return s, true, true
}

// fields reads several keys at once. required keys must be present; every
// present key must be a string. ok is false on the first violation.
func (f Form) fields(required []string, optional ...string) (values map[string]string, ok bool) {
	values = make(map[string]string, len(required)+len(optional))
	for _, k := range required {
		v, present, valid := f.lookup(k)
		if !present || !valid {
			return nil, false
		}
		values[k] = v
	}
	for _, k := range optional {
		v, _, valid := f.lookup(k)
		if !valid {
			return nil, false
		}
		values[k] = v
	}
	return values, true
}
