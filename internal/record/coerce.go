package record

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/tuannm99/pagedb/internal/dberr"
)

// CoerceValue converts x to the declared type of col. Booleans never convert
// to or from numbers or strings-of-numbers; everything else goes through cast.
func CoerceValue(col Column, x any) (Value, error) {
	if x == nil {
		if !col.Nullable {
			return Value{}, dberr.Validation("column %q is required", col.Name)
		}
		return Null(), nil
	}
	if v, ok := x.(Value); ok {
		return coerceTagged(col, v)
	}

	var (
		v   Value
		err error
	)
	switch col.Type {
	case ColString:
		v, err = asString(x)
	case ColInt:
		v, err = asInt(x)
	case ColBool:
		v, err = asBool(x)
	case ColFloat:
		v, err = asFloat(x)
	default:
		return Value{}, dberr.Validation("column %q: unsupported type %s", col.Name, col.Type)
	}
	if err != nil {
		return Value{}, dberr.Validation("column %q: expected %s, got %T(%v)", col.Name, col.Type, x, x)
	}
	if col.Type == ColString && len(v.Str()) > col.MaxLength {
		return Value{}, dberr.Validation("column %q: max_length of %d exceeded", col.Name, col.MaxLength)
	}
	return v, nil
}

func coerceTagged(col Column, v Value) (Value, error) {
	if v.IsNull() {
		return CoerceValue(col, nil)
	}
	if v.Kind() != col.Type.Kind() {
		return CoerceValue(col, v.Any())
	}
	if col.Type == ColString && len(v.Str()) > col.MaxLength {
		return Value{}, dberr.Validation("column %q: max_length of %d exceeded", col.Name, col.MaxLength)
	}
	return v, nil
}

// Coerce validates a full row given as column -> value. Columns absent from
// input are NULL when nullable; a missing required column, an unknown column
// or a value of the wrong type fails with ErrValidationFailed.
func (s Schema) Coerce(input map[string]any) ([]Value, error) {
	set, err := s.CoercePartial(input)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(s.Cols))
	for i, col := range s.Cols {
		v, ok := set[i]
		if !ok {
			if v, err = CoerceValue(col, nil); err != nil {
				return nil, err
			}
		}
		out[i] = v
	}
	return out, nil
}

// CoercePartial validates only the given columns and returns them keyed by
// schema position. Used to merge updates into an existing row.
func (s Schema) CoercePartial(input map[string]any) (map[int]Value, error) {
	// deterministic error reporting
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[int]Value, len(input))
	for _, k := range keys {
		idx := s.Index(k)
		if idx < 0 {
			return nil, dberr.Validation("column %q does not exist", strings.ToLower(k))
		}
		if _, dup := out[idx]; dup {
			return nil, dberr.Validation("column %q given twice", s.Cols[idx].Name)
		}
		v, err := CoerceValue(s.Cols[idx], input[k])
		if err != nil {
			return nil, err
		}
		out[idx] = v
	}
	return out, nil
}

// CoerceList validates a row given positionally in schema order. Trailing
// columns may be omitted when nullable.
func (s Schema) CoerceList(values []any) ([]Value, error) {
	if len(values) > len(s.Cols) {
		return nil, dberr.Validation("got %d values for %d columns", len(values), len(s.Cols))
	}
	out := make([]Value, len(s.Cols))
	for i, col := range s.Cols {
		var x any
		if i < len(values) {
			x = values[i]
		}
		v, err := CoerceValue(col, x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func asString(x any) (Value, error) {
	if _, isBool := x.(bool); isBool {
		return Value{}, errNotCoercible
	}
	s, err := cast.ToStringE(x)
	if err != nil {
		return Value{}, err
	}
	return String(s), nil
}

func asInt(x any) (Value, error) {
	switch t := x.(type) {
	case bool:
		return Value{}, errNotCoercible
	case string:
		// base 10 only: "010" is ten, "0x10" is not a number
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return Value{}, errNotCoercible
		}
		return Int(i), nil
	case float32:
		return integral(float64(t))
	case float64:
		return integral(t)
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, errNotCoercible
		}
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, errNotCoercible
		}
	}
	i, err := cast.ToInt64E(x)
	if err != nil {
		return Value{}, err
	}
	return Int(i), nil
}

func integral(f float64) (Value, error) {
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return Value{}, errNotCoercible
	}
	return Int(int64(f)), nil
}

func asBool(x any) (Value, error) {
	switch t := x.(type) {
	case bool:
		return Bool(t), nil
	case string:
		b, err := cast.ToBoolE(strings.TrimSpace(t))
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	}
	return Value{}, errNotCoercible
}

func asFloat(x any) (Value, error) {
	if _, isBool := x.(bool); isBool {
		return Value{}, errNotCoercible
	}
	f, err := cast.ToFloat64E(x)
	if err != nil {
		return Value{}, err
	}
	return Float(f), nil
}
