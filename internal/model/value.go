// Package model defines the core domain types for Hakari.
//
// Metric values are a tagged union decided once at ingestion: a value is
// undefined, null, a boolean, a number, a string, or a list of labels.
// Aggregation dispatches on the tag instead of re-inspecting raw JSON.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ScalarKind tags the variant held by a Scalar.
type ScalarKind uint8

const (
	ScalarNull ScalarKind = iota
	ScalarBool
	ScalarNumber
	ScalarString
)

// Scalar is a single discrete value: null, boolean, number or string.
// Scalars are comparable and are used directly as frequency-table keys
// after Key normalisation.
type Scalar struct {
	kind ScalarKind
	b    bool
	n    float64
	s    string
}

// NullScalar returns the null scalar.
func NullScalar() Scalar { return Scalar{} }

// BoolScalar wraps a boolean.
func BoolScalar(b bool) Scalar { return Scalar{kind: ScalarBool, b: b} }

// NumberScalar wraps a number.
func NumberScalar(n float64) Scalar { return Scalar{kind: ScalarNumber, n: n} }

// StringScalar wraps a string.
func StringScalar(s string) Scalar { return Scalar{kind: ScalarString, s: s} }

// Kind reports the variant.
func (s Scalar) Kind() ScalarKind { return s.kind }

// IsNull reports whether s is the null scalar.
func (s Scalar) IsNull() bool { return s.kind == ScalarNull }

// AsBool returns the boolean and true if s holds a boolean.
func (s Scalar) AsBool() (bool, bool) { return s.b, s.kind == ScalarBool }

// AsNumber returns the number and true if s holds a number.
func (s Scalar) AsNumber() (float64, bool) { return s.n, s.kind == ScalarNumber }

// AsString returns the string and true if s holds a string.
func (s Scalar) AsString() (string, bool) { return s.s, s.kind == ScalarString }

// Key returns s normalised for identity comparison: every NaN collapses to
// one key and negative zero equals zero.
func (s Scalar) Key() Scalar {
	if s.kind != ScalarNumber {
		return s
	}
	switch {
	case math.IsNaN(s.n):
		return Scalar{kind: ScalarNumber, s: "NaN"}
	case s.n == 0:
		return Scalar{kind: ScalarNumber}
	}
	return s
}

// Any returns s as a plain Go value (nil, bool, float64 or string).
func (s Scalar) Any() any {
	switch s.kind {
	case ScalarBool:
		return s.b
	case ScalarNumber:
		return s.n
	case ScalarString:
		return s.s
	default:
		return nil
	}
}

func (s Scalar) String() string {
	switch s.kind {
	case ScalarBool:
		return strconv.FormatBool(s.b)
	case ScalarNumber:
		return strconv.FormatFloat(s.n, 'g', -1, 64)
	case ScalarString:
		return s.s
	default:
		return "null"
	}
}

// MarshalJSON encodes s as a JSON scalar. Non-finite numbers have no JSON
// representation and are encoded as their string form.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case ScalarBool:
		return strconv.AppendBool(nil, s.b), nil
	case ScalarNumber:
		if math.IsNaN(s.n) || math.IsInf(s.n, 0) {
			return json.Marshal(s.String())
		}
		return json.Marshal(s.n)
	case ScalarString:
		return json.Marshal(s.s)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value into a scalar. Objects and arrays
// become their compact JSON text.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("model: decode scalar: %w", err)
	}
	*s = scalarFromAny(raw)
	return nil
}

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	// KindUndefined is the zero Value. Undefined values are skipped during
	// aggregation, the same as an absent key.
	KindUndefined ValueKind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindLabels
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindLabels:
		return "labels"
	default:
		return "undefined"
	}
}

// Value is one measurement for one metric key on one entity.
type Value struct {
	kind   ValueKind
	scalar Scalar
	labels []Scalar
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean measurement.
func Bool(b bool) Value { return Value{kind: KindBool, scalar: BoolScalar(b)} }

// Number wraps a numeric measurement.
func Number(n float64) Value { return Value{kind: KindNumber, scalar: NumberScalar(n)} }

// String wraps a categorical string measurement.
func String(s string) Value { return Value{kind: KindString, scalar: StringScalar(s)} }

// Labels wraps a label-array measurement. A nil argument still yields an
// (empty) label list.
func Labels(labels ...Scalar) Value {
	cp := make([]Scalar, len(labels))
	copy(cp, labels)
	return Value{kind: KindLabels, labels: cp}
}

// StringLabels is a convenience for label arrays made of strings.
func StringLabels(labels ...string) Value {
	out := make([]Scalar, len(labels))
	for i, l := range labels {
		out[i] = StringScalar(l)
	}
	return Value{kind: KindLabels, labels: out}
}

// Kind reports the variant.
func (v Value) Kind() ValueKind { return v.kind }

// IsUndefined reports whether v carries no measurement.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// FiniteNumber returns the number and true if v is a finite number.
func (v Value) FiniteNumber() (float64, bool) {
	if v.kind != KindNumber || math.IsNaN(v.scalar.n) || math.IsInf(v.scalar.n, 0) {
		return 0, false
	}
	return v.scalar.n, true
}

// Scalar returns the scalar form of a non-label value. Null and undefined
// both map to the null scalar.
func (v Value) Scalar() Scalar {
	if v.kind == KindLabels {
		return StringScalar(string(mustCompactJSON(v.Any())))
	}
	return v.scalar
}

// LabelList returns the labels and true if v is a label array.
func (v Value) LabelList() ([]Scalar, bool) {
	if v.kind != KindLabels {
		return nil, false
	}
	return v.labels, true
}

// Any returns v as a plain Go value suitable for JSON encoding.
func (v Value) Any() any {
	switch v.kind {
	case KindLabels:
		out := make([]any, len(v.labels))
		for i, l := range v.labels {
			out[i] = l.Any()
		}
		return out
	case KindUndefined:
		return nil
	default:
		return v.scalar.Any()
	}
}

// Equal reports whether two values hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind != KindLabels {
		return v.scalar.Key() == o.scalar.Key()
	}
	if len(v.labels) != len(o.labels) {
		return false
	}
	for i := range v.labels {
		if v.labels[i].Key() != o.labels[i].Key() {
			return false
		}
	}
	return true
}

// MarshalJSON encodes v. Undefined encodes as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind != KindLabels {
		return v.scalar.MarshalJSON()
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, l := range v.labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := l.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON classifies a raw JSON measurement.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("model: decode metric value: %w", err)
	}
	*v = FromAny(raw)
	return nil
}

// FromAny classifies a decoded JSON value (or a plain Go value) into the
// tagged union. Objects become categorical strings holding their compact
// JSON text; elements of arrays are reduced to scalars the same way.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case Scalar:
		return fromScalar(x)
	case []any:
		labels := make([]Scalar, len(x))
		for i, e := range x {
			labels[i] = scalarFromAny(e)
		}
		return Value{kind: KindLabels, labels: labels}
	case []string:
		return StringLabels(x...)
	default:
		return fromScalar(scalarFromAny(raw))
	}
}

func fromScalar(s Scalar) Value {
	switch s.kind {
	case ScalarBool:
		return Value{kind: KindBool, scalar: s}
	case ScalarNumber:
		return Value{kind: KindNumber, scalar: s}
	case ScalarString:
		return Value{kind: KindString, scalar: s}
	default:
		return Null()
	}
}

func scalarFromAny(raw any) Scalar {
	switch x := raw.(type) {
	case nil:
		return NullScalar()
	case Scalar:
		return x
	case bool:
		return BoolScalar(x)
	case float64:
		return NumberScalar(x)
	case float32:
		return NumberScalar(float64(x))
	case int:
		return NumberScalar(float64(x))
	case int32:
		return NumberScalar(float64(x))
	case int64:
		return NumberScalar(float64(x))
	case uint:
		return NumberScalar(float64(x))
	case uint32:
		return NumberScalar(float64(x))
	case uint64:
		return NumberScalar(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return NumberScalar(f)
		}
		return StringScalar(x.String())
	case string:
		return StringScalar(x)
	default:
		return StringScalar(string(mustCompactJSON(x)))
	}
}

// mustCompactJSON encodes nested structures for categorical identity.
// encoding/json sorts map keys, so equal objects yield equal strings.
func mustCompactJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprint(v))
	}
	return b
}

// MetricData maps metric keys to measurements.
type MetricData map[string]Value

// DataFromAny converts a decoded JSON object into MetricData.
func DataFromAny(raw map[string]any) MetricData {
	if raw == nil {
		return nil
	}
	out := make(MetricData, len(raw))
	for k, v := range raw {
		out[k] = FromAny(v)
	}
	return out
}

// Any returns d as a plain JSON-ready map.
func (d MetricData) Any() map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v.Any()
	}
	return out
}

// Merge returns a new map with every key of d, overwritten by the keys of
// next on collision. Neither input is modified.
func (d MetricData) Merge(next MetricData) MetricData {
	out := make(MetricData, len(d)+len(next))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}

// MetricEntry is the ephemeral aggregation input for one entity.
type MetricEntry struct {
	EntityID string     `json:"entity_id"`
	Data     MetricData `json:"data"`
}
