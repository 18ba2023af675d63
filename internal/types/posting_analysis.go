// Package types provides type definitions for structured data used throughout the jobtrust system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Well-known keys of a posting analysis produced by the authenticity classifier.
const (
	FieldConfidence     = "confidence"
	FieldConfidences    = "confidences"
	FieldLabel          = "label"
	FieldJobDescription = "jobDescription"
	FieldResumeText     = "resumeText"
)

// PostingAnalysis is a job posting as it comes out of the external authenticity classifier.
// It is an ordered JSON object: the ranking engine reads a handful of known keys and
// every other key is carried through byte-for-byte, in its original position.
type PostingAnalysis struct {
	keys   []string
	fields map[string]json.RawMessage
}

// FieldTypeError reports a known field holding a value of the wrong JSON type.
type FieldTypeError struct {
	Field string
	Want  string
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q must be a %s", e.Field, e.Want)
}

// NewPostingAnalysis returns an empty posting analysis.
func NewPostingAnalysis() *PostingAnalysis {
	return &PostingAnalysis{fields: make(map[string]json.RawMessage)}
}

// UnmarshalJSON decodes a JSON object, keeping key order.
// Duplicate keys keep their first position and their last value.
func (p *PostingAnalysis) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read posting analysis: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("posting analysis must be a JSON object")
	}

	p.keys = nil
	p.fields = make(map[string]json.RawMessage)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read posting analysis key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in posting analysis", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read value of %q: %w", key, err)
		}
		p.SetRaw(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read end of posting analysis: %w", err)
	}
	return nil
}

// MarshalJSON encodes the object with its keys in their original order.
func (p *PostingAnalysis) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(p.fields[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the object keys in order.
func (p *PostingAnalysis) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of keys.
func (p *PostingAnalysis) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Get returns the raw JSON value stored under key.
func (p *PostingAnalysis) Get(key string) (json.RawMessage, bool) {
	if p == nil {
		return nil, false
	}
	raw, ok := p.fields[key]
	return raw, ok
}

// SetRaw stores an already-encoded JSON value. Existing keys are overwritten in place.
func (p *PostingAnalysis) SetRaw(key string, raw json.RawMessage) {
	if p.fields == nil {
		p.fields = make(map[string]json.RawMessage)
	}
	if _, exists := p.fields[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.fields[key] = raw
}

// Set encodes v and stores it under key.
func (p *PostingAnalysis) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	p.SetRaw(key, raw)
	return nil
}

// Clone returns a deep copy.
func (p *PostingAnalysis) Clone() *PostingAnalysis {
	out := NewPostingAnalysis()
	if p == nil {
		return out
	}
	out.keys = make([]string, len(p.keys))
	copy(out.keys, p.keys)
	for k, v := range p.fields {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		out.fields[k] = cp
	}
	return out
}

// Text reads a string field. Absent and null fields read as "".
// Any other JSON type is a *FieldTypeError.
func (p *PostingAnalysis) Text(key string) (string, error) {
	raw, ok := p.Get(key)
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &FieldTypeError{Field: key, Want: "string"}
	}
	return s, nil
}

// Value decodes a field into a generic Go value (maps, slices, float64, string, bool).
// Absent or undecodable fields return nil.
func (p *PostingAnalysis) Value(key string) any {
	raw, ok := p.Get(key)
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// ConfidenceLabel returns the classifier's top-level verdict (confidence.label), if any.
func (p *PostingAnalysis) ConfidenceLabel() string {
	conf, ok := p.Value(FieldConfidence).(map[string]any)
	if !ok {
		return ""
	}
	label, _ := conf[FieldLabel].(string)
	return label
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
