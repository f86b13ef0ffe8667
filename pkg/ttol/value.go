// Package ttol implements the tagged typed-object list encoding used by the
// store protocol: an ordered, heterogeneous, self-describing list of scalars,
// strings, byte blobs and nested lists.
package ttol

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrType           = errors.New("ttol: unexpected value type")
	ErrUnsupportedTag = errors.New("ttol: unsupported tag")
	ErrTruncated      = errors.New("ttol: truncated message")
	ErrTooDeep        = errors.New("ttol: lists nested too deeply")
)

// Value is one element of a tagged list. The set of implementations is closed:
// String, Int, Bytes, List and Nil.
type Value interface {
	ttolValue()
	String() string
}

type (
	String string
	Int    int64
	Bytes  []byte
	List   []Value
	Nil    struct{}
)

func (String) ttolValue() {}
func (Int) ttolValue()    {}
func (Bytes) ttolValue()  {}
func (List) ttolValue()   {}
func (Nil) ttolValue()    {}

func (s String) String() string { return strconv.Quote(string(s)) }
func (i Int) String() string    { return strconv.FormatInt(int64(i), 10) }
func (b Bytes) String() string  { return fmt.Sprintf("bytes[%d]", len(b)) }
func (Nil) String() string      { return "nil" }

func (l List) String() string {
	buf := make([]byte, 0, 16*len(l))
	buf = append(buf, '(')
	for i, v := range l {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		buf = append(buf, v.String()...)
	}
	buf = append(buf, ')')
	return string(buf)
}

func typeError(want string, v Value) error {
	return fmt.Errorf("%w: want %s, got %T", ErrType, want, v)
}

func AsString(v Value) (string, error) {
	switch v := v.(type) {
	case String:
		return string(v), nil
	default:
		return "", typeError("string", v)
	}
}

func AsInt(v Value) (int64, error) {
	switch v := v.(type) {
	case Int:
		return int64(v), nil
	default:
		return 0, typeError("int", v)
	}
}

func AsBytes(v Value) ([]byte, error) {
	switch v := v.(type) {
	case Bytes:
		return []byte(v), nil
	default:
		return nil, typeError("bytes", v)
	}
}

func AsList(v Value) (List, error) {
	switch v := v.(type) {
	case List:
		return v, nil
	default:
		return nil, typeError("list", v)
	}
}

// Of converts plain Go values into a List. Supported element types are
// string, int, int32, int64, []byte, nil, Value and []any (nested list).
// It panics on anything else, since callers build literals.
func Of(items ...any) List {
	ret := make(List, 0, len(items))
	for _, item := range items {
		ret = append(ret, valueOf(item))
	}
	return ret
}

func valueOf(item any) Value {
	switch v := item.(type) {
	case nil:
		return Nil{}
	case Value:
		return v
	case string:
		return String(v)
	case int:
		return Int(v)
	case int32:
		return Int(v)
	case int64:
		return Int(v)
	case []byte:
		return Bytes(v)
	case []any:
		return Of(v...)
	default:
		panic(fmt.Sprintf("ttol: cannot encode %T", item))
	}
}

// Map interprets a flat key/value list as a map. Keys must be strings; a
// trailing key without a value maps to Nil.
func Map(l List) (map[string]Value, error) {
	ret := make(map[string]Value, len(l)/2)
	for i := 0; i < len(l); i += 2 {
		key, err := AsString(l[i])
		if err != nil {
			return nil, fmt.Errorf("key at %d: %w", i, err)
		}
		var val Value = Nil{}
		if i+1 < len(l) {
			val = l[i+1]
		}
		ret[key] = val
	}
	return ret, nil
}

// Lookup returns the string stored under key in a decoded map, or "" when
// absent or of another type.
func Lookup(m map[string]Value, key string) string {
	if v, ok := m[key].(String); ok {
		return string(v)
	}
	return ""
}
