package record

import (
	"fmt"
	"math"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindBool
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single column value. The zero Value is NULL.
type Value struct {
	kind Kind
	s    string
	n    uint64 // int64 bits, float64 bits or bool (0/1)
}

func Null() Value           { return Value{} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int64) Value     { return Value{kind: KindInt, n: uint64(i)} }
func Float(f float64) Value { return Value{kind: KindFloat, n: math.Float64bits(f)} }
func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, n: 1}
	}
	return Value{kind: KindBool}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Str() string    { return v.s }
func (v Value) Int() int64     { return int64(v.n) }
func (v Value) Float() float64 { return math.Float64frombits(v.n) }
func (v Value) Bool() bool     { return v.n != 0 }

// Equal reports whether both values have the same kind and the same content.
// Strings compare byte-for-byte; an integer never equals a float.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == o.s
	case KindFloat:
		return v.Float() == o.Float()
	default:
		return v.n == o.n
	}
}

// Any returns the plain Go value: string, int64, bool, float64 or nil.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.Int()
	case KindBool:
		return v.Bool()
	case KindFloat:
		return v.Float()
	default:
		return nil
	}
}

func (v Value) String() string {
	if v.kind == KindNull {
		return "NULL"
	}
	if v.kind == KindString {
		return fmt.Sprintf("%q", v.s)
	}
	return fmt.Sprint(v.Any())
}

// ValueOf converts a Go value into a Value by its own dynamic type, without
// any coercion. It is used for query operands, where types must match
// exactly. ok is false for unsupported types.
func ValueOf(x any) (v Value, ok bool) {
	switch t := x.(type) {
	case nil:
		return Null(), true
	case Value:
		return t, true
	case string:
		return String(t), true
	case bool:
		return Bool(t), true
	case int:
		return Int(int64(t)), true
	case int8:
		return Int(int64(t)), true
	case int16:
		return Int(int64(t)), true
	case int32:
		return Int(int64(t)), true
	case int64:
		return Int(t), true
	case uint:
		return uintValue(uint64(t))
	case uint8:
		return Int(int64(t)), true
	case uint16:
		return Int(int64(t)), true
	case uint32:
		return Int(int64(t)), true
	case uint64:
		return uintValue(t)
	case float32:
		return Float(float64(t)), true
	case float64:
		return Float(t), true
	}
	return Value{}, false
}

func uintValue(u uint64) (Value, bool) {
	if u > math.MaxInt64 {
		return Value{}, false
	}
	return Int(int64(u)), true
}
