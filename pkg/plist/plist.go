// Package plist reads and writes property lists and compares them
// structurally.
//
// Decoding is delegated to howett.net/plist. Decoded data is converted into
// Value, a tagged union, so callers compare entitlements and read keys without
// inspecting dynamic types.
package plist

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	hplist "howett.net/plist"
)

// Formats accepted by Encode and reported by Decode.
const (
	XMLFormat    = hplist.XMLFormat
	BinaryFormat = hplist.BinaryFormat
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindReal
	KindBool
	KindDate
	KindData
	KindArray
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindData:
		return "data"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one property list node. Only the field matching Kind is set.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Real  float64
	Bool  bool
	Date  time.Time
	Data  []byte
	Array []Value
	Dict  map[string]Value
}

func NewString(s string) Value { return Value{Kind: KindString, Str: s} }
func NewInteger(i int64) Value { return Value{Kind: KindInteger, Int: i} }
func NewBool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func NewArray(v ...Value) Value {
	return Value{Kind: KindArray, Array: v}
}
func NewDict(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindDict, Dict: m}
}

// Get returns the value stored under key in a dict.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindDict {
		return Value{}, false
	}
	child, ok := v.Dict[key]
	return child, ok
}

// GetString returns the string stored under key, or "" when the key is
// absent or not a string.
func (v Value) GetString(key string) string {
	child, ok := v.Get(key)
	if !ok || child.Kind != KindString {
		return ""
	}
	return child.Str
}

// Keys returns a dict's keys in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.Dict))
	for k := range v.Dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromAny converts data decoded by howett.net/plist into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case string:
		return NewString(t), nil
	case int64:
		return NewInteger(t), nil
	case uint64:
		return NewInteger(int64(t)), nil
	case int:
		return NewInteger(int64(t)), nil
	case float64:
		return Value{Kind: KindReal, Real: t}, nil
	case float32:
		return Value{Kind: KindReal, Real: float64(t)}, nil
	case bool:
		return NewBool(t), nil
	case time.Time:
		return Value{Kind: KindDate, Date: t}, nil
	case []byte:
		return Value{Kind: KindData, Data: t}, nil
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return NewArray(arr...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = v
		}
		return NewDict(m), nil
	}
	return Value{}, fmt.Errorf("unsupported property list type %T", x)
}

// Any converts v back into the plain Go values howett.net/plist encodes.
func (v Value) Any() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInteger:
		return v.Int
	case KindReal:
		return v.Real
	case KindBool:
		return v.Bool
	case KindDate:
		return v.Date
	case KindData:
		return v.Data
	case KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.Any()
		}
		return out
	case KindDict:
		out := make(map[string]any, len(v.Dict))
		for k, e := range v.Dict {
			out[k] = e.Any()
		}
		return out
	}
	return nil
}

// Equal reports whether a and b are structurally identical. Dict key order
// is irrelevant; array order is significant.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindString:
		return a.Str == b.Str
	case KindInteger:
		return a.Int == b.Int
	case KindReal:
		return a.Real == b.Real
	case KindBool:
		return a.Bool == b.Bool
	case KindDate:
		return a.Date.Equal(b.Date)
	case KindData:
		return bytes.Equal(a.Data, b.Data)
	case KindArray:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !Equal(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(a.Dict) != len(b.Dict) {
			return false
		}
		for k, av := range a.Dict {
			bv, ok := b.Dict[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Diff returns the dict keys whose values differ between a and b, including
// keys present on only one side. Non-dict values yield a single "" entry when
// unequal.
func Diff(a, b Value) []string {
	if a.Kind != KindDict || b.Kind != KindDict {
		if Equal(a, b) {
			return nil
		}
		return []string{""}
	}
	seen := map[string]bool{}
	var keys []string
	for k, av := range a.Dict {
		seen[k] = true
		if bv, ok := b.Dict[k]; !ok || !Equal(av, bv) {
			keys = append(keys, k)
		}
	}
	for k := range b.Dict {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Decode parses a property list in any supported format.
func Decode(data []byte) (Value, int, error) {
	var raw any
	format, err := hplist.Unmarshal(data, &raw)
	if err != nil {
		return Value{}, 0, fmt.Errorf("failed to parse property list: %w", err)
	}
	v, err := FromAny(raw)
	if err != nil {
		return Value{}, 0, err
	}
	return v, format, nil
}

// Load reads and parses the property list at path.
func Load(path string) (Value, int, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Value{}, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	v, format, err := Decode(data)
	if err != nil {
		return Value{}, 0, fmt.Errorf("%s: %w", path, err)
	}
	return v, format, nil
}

// Encode serializes v in format. A Value is converted first; other values
// are passed to howett.net/plist unchanged.
func Encode(v any, format int) ([]byte, error) {
	if pv, ok := v.(Value); ok {
		v = pv.Any()
	}
	data, err := hplist.MarshalIndent(v, format, "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to encode property list: %w", err)
	}
	return data, nil
}

// Write encodes v in format and writes it to path.
func Write(path string, v any, format int) error {
	data, err := Encode(v, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var (
	xmlStart = []byte("<?xml")
	plistEnd = []byte("</plist>")
)

// ExtractEmbedded returns the XML property list embedded in a CMS-signed
// blob such as a provisioning profile.
func ExtractEmbedded(data []byte) ([]byte, error) {
	start := bytes.Index(data, xmlStart)
	if start < 0 {
		return nil, fmt.Errorf("no embedded property list found")
	}
	end := bytes.Index(data[start:], plistEnd)
	if end < 0 {
		return nil, fmt.Errorf("embedded property list is truncated")
	}
	return data[start : start+end+len(plistEnd)], nil
}
