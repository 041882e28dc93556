package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Report is an ordered name → value mapping; a nil value is reported as null.
type Report struct {
	values map[string]*float64
	keys   []string
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{values: make(map[string]*float64)}
}

// Value returns a pointer to v for use with Set.
func Value(v float64) *float64 {
	return &v
}

// Set stores v under name, keeping the position of the first insertion.
func (r *Report) Set(name string, v *float64) {
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = v
}

// Get returns the stored value and whether the name is present.
func (r *Report) Get(name string) (*float64, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Keys returns metric names in insertion order.
func (r *Report) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len reports the number of entries, null ones included.
func (r *Report) Len() int {
	return len(r.keys)
}

// HasValues reports whether at least one entry is non-null.
func (r *Report) HasValues() bool {
	for _, k := range r.keys {
		if r.values[k] != nil {
			return true
		}
	}
	return false
}

// MarshalJSON writes the report as a JSON object in insertion order.
func (r *Report) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v := r.values[k]
		if v == nil {
			buf.WriteString("null")
			continue
		}
		raw, err := json.Marshal(*v)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %w", k, err)
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Envelope is what publishers ship: either a report or a collection error.
type Envelope struct {
	Timestamp time.Time        `json:"ts"`
	Report    *Report          `json:"metrics,omitempty"`
	Error     *CollectionError `json:"error,omitempty"`
	ID        string           `json:"id"`
	Source    string           `json:"source,omitempty"`
	Target    string           `json:"target"`
}
