package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ListLimit caps every listing returned by the record store.
const ListLimit = 100

// Length limits of the key and filter fields, in characters. They match the
// VARCHAR widths of the mysql schema.
const (
	MaxBloodTypeLength = 16
	MaxTextLength      = 191
)

var ErrValidation = errors.New("validation failed")

// document is the decoded form of a schema-less JSON body. Values keep
// their raw encoding until a known field claims them.
type document map[string]json.RawMessage

func decodeDocument(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrValidation)
	}
	return doc, nil
}

// takeString removes key from the document and returns its string value.
func (d document) takeString(key string) (string, bool, error) {
	raw, ok := d[key]
	if !ok {
		return "", false, nil
	}
	delete(d, key)
	if isNull(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("%w: %s must be a string", ErrValidation, key)
	}
	return s, true, nil
}

func (d document) takeInt(key string) (int, bool, error) {
	raw, ok := d[key]
	if !ok {
		return 0, false, nil
	}
	delete(d, key)
	if isNull(raw) {
		return 0, false, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false, fmt.Errorf("%w: %s must be an integer", ErrValidation, key)
	}
	return n, true, nil
}

// extra decodes whatever is left after the known fields were taken.
func (d document) extra() (map[string]any, error) {
	if len(d) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(d))
	for k, raw := range d {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode field %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// encodeDocument writes the extension fields first so known fields always win.
func encodeDocument(extra map[string]any, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}

func copyExtra(extra map[string]any) map[string]any {
	if extra == nil {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return nil
}

func maxLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, limit)
	}
	return nil
}

// checkFields runs the presence and length checks in order and stops at the
// first failure.
func checkFields(fields ...fieldCheck) error {
	for _, f := range fields {
		if f.required {
			if err := required(f.name, f.value); err != nil {
				return err
			}
		}
		if err := maxLength(f.name, f.value, f.limit); err != nil {
			return err
		}
	}
	return nil
}

type fieldCheck struct {
	name     string
	value    string
	limit    int
	required bool
}
