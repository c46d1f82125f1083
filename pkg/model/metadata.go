package model

import (
	"encoding/json"
	"fmt"
)

// MetadataValueKind tags the concrete type held by a MetadataValue.
type MetadataValueKind int

const (
	MetadataString MetadataValueKind = iota
	MetadataInt64
	MetadataDouble
	MetadataBool
)

// MetadataValue is a tagged union over string, int64, double, and bool.
// Only one of the fields is meaningful, selected by Kind.
type MetadataValue struct {
	Kind MetadataValueKind
	Str  string
	Int  int64
	Dbl  float64
	Bool bool
}

func StringValue(s string) MetadataValue  { return MetadataValue{Kind: MetadataString, Str: s} }
func Int64Value(i int64) MetadataValue    { return MetadataValue{Kind: MetadataInt64, Int: i} }
func DoubleValue(d float64) MetadataValue { return MetadataValue{Kind: MetadataDouble, Dbl: d} }
func BoolValue(b bool) MetadataValue      { return MetadataValue{Kind: MetadataBool, Bool: b} }

// String renders the value as a string regardless of Kind.
func (v MetadataValue) String() string {
	switch v.Kind {
	case MetadataString:
		return v.Str
	case MetadataInt64:
		return fmt.Sprintf("%d", v.Int)
	case MetadataDouble:
		return fmt.Sprintf("%g", v.Dbl)
	case MetadataBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return ""
	}
}

func (v MetadataValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case MetadataString:
		return json.Marshal(v.Str)
	case MetadataInt64:
		return json.Marshal(v.Int)
	case MetadataDouble:
		return json.Marshal(v.Dbl)
	case MetadataBool:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(nil)
	}
}

func (v *MetadataValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = StringValue(t)
	case bool:
		*v = BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			*v = Int64Value(int64(t))
		} else {
			*v = DoubleValue(t)
		}
	case nil:
		*v = MetadataValue{}
	default:
		return fmt.Errorf("model: unsupported metadata value type %T", t)
	}
	return nil
}

// Metadata is a string-keyed map of MetadataValue. Lookup is
// case-sensitive; redaction of metadata keys is case-insensitive and is
// implemented by the redact package, not here.
type Metadata map[string]MetadataValue

// Clone returns a shallow copy; MetadataValue is itself immutable, so a
// shallow copy is a full copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
