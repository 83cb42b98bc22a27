package record

import (
	"errors"
	"fmt"
	"math"

	"github.com/tuannm99/pagedb/internal/alias/bx"
	"github.com/tuannm99/pagedb/internal/dberr"
)

// string payloads carry a u16 length prefix
const maxStringLength = math.MaxUint16

// ---- Errors ----
var (
	ErrSchemaMismatch  = fmt.Errorf("%w: rowcodec: schema/values mismatch", dberr.ErrValidationFailed)
	ErrBadBuffer       = fmt.Errorf("%w: rowcodec: buffer underflow/overflow", dberr.ErrCorruptRecord)
	ErrUnsupportedType = errors.New("rowcodec: unsupported type")

	errNotCoercible = errors.New("rowcodec: value not coercible")
)

// FieldWidth is the largest encoded size of a column value.
func FieldWidth(c Column) int {
	switch c.Type {
	case ColInt, ColFloat:
		return 8
	case ColBool:
		return 1
	default:
		return 2 + c.MaxLength
	}
}

// MaxRowSize is the largest payload EncodeRow can produce for s.
func (s Schema) MaxRowSize() int {
	n := (s.NumCols() + 7) / 8
	for _, c := range s.Cols {
		n += FieldWidth(c)
	}
	return n
}

// ---- EncodeRow(schema, values) -> []byte ----
// Format:
// [nullmap: ceil(N/8) bytes, bit=1 => NULL]  |  [field0 data?] [field1 data?] ...
// STRING: u16 length (LE) + UTF-8 bytes; INTEGER/FLOAT: 8 bytes LE; BOOLEAN: 1 byte.
// Values are expected to be coerced already (see Schema.Coerce).
func EncodeRow(s Schema, values []Value) ([]byte, error) {
	nc := s.NumCols()
	if len(values) != nc {
		return nil, ErrSchemaMismatch
	}

	nbBytes := (nc + 7) / 8
	w := bx.Writer{Buf: make([]byte, nbBytes, s.MaxRowSize())}

	for i, col := range s.Cols {
		v := values[i]
		if v.IsNull() {
			if !col.Nullable {
				return nil, ErrSchemaMismatch
			}
			w.Buf[i/8] |= 1 << (uint(i) & 7)
			continue
		}
		if v.Kind() != col.Type.Kind() {
			return nil, ErrSchemaMismatch
		}

		switch col.Type {
		case ColInt:
			w.U64(uint64(v.Int()))
		case ColFloat:
			w.U64(math.Float64bits(v.Float()))
		case ColBool:
			if v.Bool() {
				w.U8(1)
			} else {
				w.U8(0)
			}
		case ColString:
			bs := v.Str()
			if len(bs) > col.MaxLength {
				return nil, ErrSchemaMismatch
			}
			w.U16(uint16(len(bs)))
			w.Bytes([]byte(bs))
		default:
			return nil, ErrUnsupportedType
		}
	}
	return w.Buf, nil
}

// ---- DecodeRow(schema, buf) -> []Value ----
func DecodeRow(s Schema, buf []byte) ([]Value, error) {
	nc := s.NumCols()
	r := bx.NewReader(buf)
	nullmap, ok := r.Next((nc + 7) / 8)
	if !ok {
		return nil, ErrBadBuffer
	}

	out := make([]Value, nc)
	for i, col := range s.Cols {
		if (nullmap[i/8]>>(uint(i)&7))&1 == 1 {
			out[i] = Null()
			continue
		}

		switch col.Type {
		case ColInt:
			u, ok := r.U64()
			if !ok {
				return nil, ErrBadBuffer
			}
			out[i] = Int(int64(u))
		case ColFloat:
			u, ok := r.U64()
			if !ok {
				return nil, ErrBadBuffer
			}
			out[i] = Float(math.Float64frombits(u))
		case ColBool:
			b, ok := r.U8()
			if !ok || b > 1 {
				return nil, ErrBadBuffer
			}
			out[i] = Bool(b == 1)
		case ColString:
			l, ok := r.U16()
			if !ok {
				return nil, ErrBadBuffer
			}
			bs, ok := r.Next(int(l))
			if !ok {
				return nil, ErrBadBuffer
			}
			out[i] = String(string(bs))
		default:
			return nil, ErrUnsupportedType
		}
	}
	if r.Remaining() != 0 {
		return nil, ErrBadBuffer
	}
	return out, nil
}
