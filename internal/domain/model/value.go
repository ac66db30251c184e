package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// Value is a sealed interface over the cell values a table document can hold.
// Only Null, Bool, Number, Text, List and Map implement it, so a type switch
// over these six cases is exhaustive.
type Value interface {
	isValue()
}

// Null is an explicit JSON null. Absent keys are represented by a missing map
// entry, never by a nil Value.
type Null struct{}

func (Null) isValue() {}

// Bool is a boolean cell value.
type Bool bool

func (Bool) isValue() {}

// Number is a numeric cell value. JSON numbers decode to float64 semantics.
type Number float64

func (Number) isValue() {}

// Text is a string cell value.
type Text string

func (Text) isValue() {}

// List is an ordered sequence of values.
type List []Value

func (List) isValue() {}

// Map is a string-keyed mapping of values. Keys marshal in sorted order.
type Map map[string]Value

func (Map) isValue() {}

// SortedKeys returns the map keys in byte order for deterministic iteration.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a deep copy of the map.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue returns a deep copy of v. Scalars are returned as-is.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = CloneValue(elem)
		}
		return out
	case Map:
		return val.Clone()
	default:
		return v
	}
}

// IsNull reports whether v is nil or an explicit Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// ParseValue decodes a single JSON value into a Value.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts the output of a json.Decoder (with UseNumber) or plain Go
// scalars into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return Text(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s out of range: %w", val, err)
		}
		return Number(f), nil
	case float64:
		return Number(val), nil
	case int:
		return Number(float64(val)), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(Map, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// MarshalValue encodes v as compact JSON without HTML escaping.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Number:
		b, err := json.Marshal(float64(val))
		if err != nil {
			return fmt.Errorf("marshal number: %w", err)
		}
		buf.Write(b)
	case Text:
		return writeString(buf, string(val))
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value type %T", v)
	}
	return nil
}

// writeString encodes s as a JSON string literal. HTML characters are left
// unescaped so stored documents stay byte-compatible with their editors.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("marshal string: %w", err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Map) MarshalJSON() ([]byte, error) {
	return MarshalValue(m)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case Map:
		*m = val
	case Null:
		*m = nil
	default:
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l List) MarshalJSON() ([]byte, error) {
	return MarshalValue(l)
}

// ValueText renders v the way a plain-text cell shows it.
func ValueText(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case Bool:
		return strconv.FormatBool(bool(val))
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Text:
		return string(val)
	case List, Map:
		b, err := MarshalValue(val)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}
