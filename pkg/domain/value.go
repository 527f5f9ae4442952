package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ValueKind enumerates the closed set of shapes a session state value can take.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Value is a closed tagged union for session state entries: scalars plus
// nested lists and maps. It replaces open map[string]any state so that what
// travels to and from the backend is always one of a known set of shapes.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	bl   bool
	list []Value
	obj  map[string]Value
}

// Constructors.

func Null() Value                  { return Value{kind: KindNull} }
func String(s string) Value        { return Value{kind: KindString, str: s} }
func Int(i int64) Value            { return Value{kind: KindInt, num: i} }
func Float(f float64) Value        { return Value{kind: KindFloat, flt: f} }
func Bool(b bool) Value            { return Value{kind: KindBool, bl: b} }
func List(items ...Value) Value    { return Value{kind: KindList, list: items} }
func Map(m map[string]Value) Value { return Value{kind: KindMap, obj: m} }

// Kind returns the shape tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

// Accessors. Each returns the zero value and false when the kind does not match.

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v Value) AsInt() (int64, bool)     { return v.num, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) {
	if v.kind == KindInt {
		return float64(v.num), true
	}
	return v.flt, v.kind == KindFloat
}
func (v Value) AsBool() (bool, bool)          { return v.bl, v.kind == KindBool }
func (v Value) AsList() ([]Value, bool)       { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) { return v.obj, v.kind == KindMap }

// Interface converts the value back to plain Go types (string, int64, float64,
// bool, nil, []any, map[string]any), e.g. for JSON encoding or mapstructure.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.bl
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// FromAny converts a decoded JSON/YAML value into a Value.
// Unsupported types (channels, funcs, structs...) are rejected.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		// encoding/json decodes every number as float64; keep whole numbers as ints.
		if t == float64(int64(t)) {
			return Int(int64(t)), nil
		}
		return Float(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Float(f), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return Map(obj), nil
	default:
		return Value{}, fmt.Errorf("unsupported state value type %T", raw)
	}
}

// Equal reports deep equality between two values.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindInt:
		return v.num == other.num
	case KindFloat:
		return v.flt == other.flt
	case KindBool:
		return v.bl == other.bl
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, item := range v.obj {
			o, ok := other.obj[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value as its plain JSON equivalent.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes arbitrary JSON into the closed union.
// Numbers are decoded via json.Number so integers survive round trips.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(normalizeAny(raw))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML encodes the value for plan files.
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

// UnmarshalYAML decodes a YAML node into the closed union.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(normalizeAny(raw))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// StateMap is the session state: string keys to closed values.
type StateMap map[string]Value

// Clone returns a shallow-per-entry copy; Value itself is immutable by
// construction so entry-level copying is enough for isolation.
func (m StateMap) Clone() StateMap {
	if m == nil {
		return nil
	}
	out := make(StateMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Interface converts the whole map to plain Go types.
func (m StateMap) Interface() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Interface()
	}
	return out
}

// Keys returns the sorted key set, mostly for stable logs and tests.
func (m StateMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseStateJSON decodes a JSON object into a StateMap, preserving integer
// values exactly.
func ParseStateJSON(data []byte) (StateMap, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("state is not a JSON object: %w", err)
	}
	return StateFromAny(raw)
}

// StateFromAny converts a decoded map into a StateMap.
func StateFromAny(raw map[string]any) (StateMap, error) {
	out := make(StateMap, len(raw))
	for k, item := range raw {
		v, err := FromAny(normalizeAny(item))
		if err != nil {
			return nil, fmt.Errorf("state key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// normalizeAny rewrites decoder-specific container types (YAML's
// map[any]any, json.Number trees) into the forms FromAny accepts.
func normalizeAny(raw any) any {
	switch t := raw.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[fmt.Sprintf("%v", k)] = normalizeAny(v)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = normalizeAny(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = normalizeAny(v)
		}
		return out
	default:
		return raw
	}
}
