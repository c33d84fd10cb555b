package converter

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Field is one named value of an Object.
type Field struct {
	Name  string
	Value any
}

// Object is a converted row or record. Fields appear in column order, and
// marshal to JSON in that order.
type Object []Field

// Get returns the value of the named field.
func (o Object) Get(name string) (any, bool) {
	for _, f := range o {
		if f.Name == name {
			return f.Value, true
		}
	}

	return nil, false
}

// Names returns the field names in order.
func (o Object) Names() []string {
	names := make([]string, len(o))
	for i, f := range o {
		names[i] = f.Name
	}

	return names
}

// Map returns the object as a map, converting nested objects as well.
func (o Object) Map() map[string]any {
	if o == nil {
		return nil
	}

	m := make(map[string]any, len(o))
	for _, f := range o {
		m[f.Name] = plain(f.Value)
	}

	return m
}

func plain(v any) any {
	switch v := v.(type) {
	case Object:
		return v.Map()
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = plain(e)
		}

		return out
	}

	return v
}

func (o Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}

	buf := &bytes.Buffer{}
	buf.WriteByte('{')

	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}

		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
