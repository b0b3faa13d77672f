package extract

import (
	"bytes"
	"encoding/json"
)

// Value is one extracted field.
type Value struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record holds the normalized values extracted from one image, in template
// region order. Records are built once and not modified afterwards.
type Record struct {
	Image  string
	Fields []Value
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Names returns the field names in record order.
func (r *Record) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Project returns the values for order, with "" for fields the record
// does not have.
func (r *Record) Project(order []string) []string {
	out := make([]string, len(order))
	for i, name := range order {
		out[i], _ = r.Get(name)
	}
	return out
}

// MarshalJSON writes the fields as an object in record order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
