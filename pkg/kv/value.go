package kv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which scalar a Value holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInteger
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	default:
		return "invalid"
	}
}

// ParseKind is the inverse of Kind.String for the three scalar kinds.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "integer":
		return KindInteger, nil
	case "boolean":
		return KindBoolean, nil
	default:
		return KindInvalid, fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, s)
	}
}

// Value is a string, integer or boolean. The zero Value holds nothing and
// marks absence; it can never be stored.
type Value struct {
	kind Kind
	str  string
	num  int64
	flag bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInteger, num: i} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBoolean, flag: b} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsString returns the string held by v, if v is a string.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the integer held by v, if v is an integer.
func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInteger }

// AsBool returns the boolean held by v, if v is a boolean.
func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBoolean }

// String returns the textual form of v. The zero Value renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	case KindBoolean:
		return strconv.FormatBool(v.flag)
	default:
		return ""
	}
}

// Interface returns v as a native Go value (string, int64 or bool), or nil
// for the zero Value. This is what the serializers see.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInteger:
		return v.num
	case KindBoolean:
		return v.flag
	default:
		return nil
	}
}

// ValueOf converts a native scalar into a Value without coercion.
// Only strings, Go integer types, booleans and valid Values are accepted.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		if !t.IsValid() {
			return Value{}, ErrInvalidValue
		}
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	}
	if i, ok := asInt64(x); ok {
		return Int(i), nil
	}
	return Value{}, fmt.Errorf("%w: got %T", ErrInvalidValue, x)
}

// ParseValue rebuilds a Value from its kind and textual form.
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindString:
		return String(text), nil
	case KindInteger:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Int(i), nil
	case KindBoolean:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Bool(b), nil
	default:
		return Value{}, ErrInvalidValue
	}
}

// Coerce turns an arbitrary value into a scalar. Booleans and Go integers
// keep their kind. Everything else is reduced to its string form, which is
// read as a boolean ("true" or "false"), then as a base-10 integer, and
// kept as a string otherwise.
//
// The string rule applies to text too: the string "123" becomes the
// integer 123 and "true" becomes a boolean.
func Coerce(x any) Value {
	switch t := x.(type) {
	case Value:
		if t.IsValid() {
			return t
		}
		return String("")
	case bool:
		return Bool(t)
	case nil:
		return String("")
	case string:
		return coerceText(t)
	case float32:
		return String(floatText(float64(t), 32))
	case float64:
		return String(floatText(t, 64))
	}
	if i, ok := asInt64(x); ok {
		return Int(i)
	}
	return coerceText(fmt.Sprint(x))
}

func coerceText(s string) Value {
	switch s {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	return String(s)
}

// floatText keeps a fractional part on whole numbers so that 2.0 does not
// read back as the integer 2.
func floatText(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

func asInt64(x any) (int64, bool) {
	switch t := x.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return uintToInt64(uint64(t))
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return uintToInt64(t)
	}
	return 0, false
}

func uintToInt64(u uint64) (int64, bool) {
	if u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}
