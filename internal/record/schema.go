package record

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/tuannm99/pagedb/internal/dberr"
)

type ColumnType uint8

const (
	ColString ColumnType = iota
	ColInt
	ColBool
	ColFloat
)

// DefaultMaxLength bounds string columns declared without an explicit limit.
const DefaultMaxLength = 64

func (t ColumnType) String() string {
	switch t {
	case ColString:
		return "string"
	case ColInt:
		return "integer"
	case ColBool:
		return "boolean"
	case ColFloat:
		return "float"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Kind is the Value kind stored for this column type.
func (t ColumnType) Kind() Kind {
	switch t {
	case ColInt:
		return KindInt
	case ColBool:
		return KindBool
	case ColFloat:
		return KindFloat
	default:
		return KindString
	}
}

func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string", "str", "text":
		return ColString, nil
	case "integer", "int":
		return ColInt, nil
	case "boolean", "bool":
		return ColBool, nil
	case "float", "double":
		return ColFloat, nil
	default:
		return 0, dberr.Validation("unsupported column type %q", s)
	}
}

func (t ColumnType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ColumnType) UnmarshalText(b []byte) error {
	ct, err := ParseColumnType(string(b))
	if err != nil {
		return err
	}
	*t = ct
	return nil
}

type Column struct {
	Name      string     `json:"name"`
	Type      ColumnType `json:"type"`
	Nullable  bool       `json:"nullable"`
	MaxLength int        `json:"max_length,omitempty"` // strings only, bytes
}

type Schema struct {
	Cols []Column `json:"columns"`
}

func (s Schema) NumCols() int { return len(s.Cols) }

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	name = strings.ToLower(name)
	for i := range s.Cols {
		if s.Cols[i].Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Names() []string {
	out := make([]string, len(s.Cols))
	for i, c := range s.Cols {
		out[i] = c.Name
	}
	return out
}

// StringColumns builds a schema of nullable string columns, in order.
func StringColumns(names ...string) Schema {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		cols = append(cols, Column{Name: n, Type: ColString, Nullable: true})
	}
	return Schema{Cols: cols}
}

// TypedColumns builds a schema of required columns. Map order is not
// stable, so columns are laid out by name.
func TypedColumns(types map[string]ColumnType) Schema {
	names := make([]string, 0, len(types))
	for n := range types {
		names = append(names, n)
	}
	sort.Strings(names)

	cols := make([]Column, 0, len(names))
	for _, n := range names {
		cols = append(cols, Column{Name: n, Type: types[n]})
	}
	return Schema{Cols: cols}
}

// Normalize lower-cases column names, fills string limits and checks that
// names are valid and unique.
func (s Schema) Normalize() (Schema, error) {
	if len(s.Cols) == 0 {
		return Schema{}, dberr.Validation("schema has no columns")
	}
	out := Schema{Cols: make([]Column, len(s.Cols))}
	seen := make(map[string]struct{}, len(s.Cols))
	for i, c := range s.Cols {
		name, err := ParseIdent(c.Name)
		if err != nil {
			return Schema{}, err
		}
		if _, dup := seen[name]; dup {
			return Schema{}, dberr.Validation("duplicate column %q", name)
		}
		seen[name] = struct{}{}

		if c.Type > ColFloat {
			return Schema{}, dberr.Validation("column %q: unsupported type %s", name, c.Type)
		}
		c.Name = name
		if c.Type == ColString {
			if c.MaxLength <= 0 {
				c.MaxLength = DefaultMaxLength
			}
			if c.MaxLength > maxStringLength {
				return Schema{}, dberr.Validation("column %q: max_length %d exceeds %d", name, c.MaxLength, maxStringLength)
			}
		} else {
			c.MaxLength = 0
		}
		out.Cols[i] = c
	}
	return out, nil
}

// ParseIdent validates and lower-cases an identifier (table/column name).
// Rules: first char letter or '_', rest letter/digit/'_'.
func ParseIdent(s string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(s))
	if id == "" {
		return "", dberr.Validation("missing identifier")
	}
	for i, r := range id {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return "", dberr.Validation("invalid identifier %q", s)
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", dberr.Validation("invalid identifier %q", s)
		}
	}
	return id, nil
}
