package query

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/record"
)

// Query maps a column name to either one value (equality) or a slice of
// values (membership). All keys must hold for a row to match.
type Query map[string]any

type term struct {
	col  int
	name string
	any  []record.Value // one element for equality
}

// Matcher is a Query bound to a schema.
type Matcher struct {
	terms []term
}

// Compile checks every key against the schema and converts the operands into
// record values. Operands keep their own Go type: an int never matches a
// string column, "1" never matches an integer column.
func Compile(s record.Schema, q Query) (*Matcher, error) {
	m := &Matcher{terms: make([]term, 0, len(q))}
	if len(q) == 0 {
		return m, nil
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		idx := s.Index(k)
		if idx < 0 {
			return nil, dberr.Validation("query: unknown column %q", k)
		}
		vals, err := operands(q[k])
		if err != nil {
			return nil, fmt.Errorf("%w: column %q", err, k)
		}
		m.terms = append(m.terms, term{col: idx, name: s.Cols[idx].Name, any: vals})
	}
	return m, nil
}

func operands(x any) ([]record.Value, error) {
	switch t := x.(type) {
	case nil:
		return []record.Value{record.Null()}, nil
	case []byte:
		return []record.Value{record.String(string(t))}, nil
	}

	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		v, ok := record.ValueOf(x)
		if !ok {
			return nil, dberr.Validation("query: unsupported operand %T", x)
		}
		return []record.Value{v}, nil
	}

	out := make([]record.Value, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		v, ok := record.ValueOf(elem)
		if !ok {
			return nil, dberr.Validation("query: unsupported operand %T", elem)
		}
		out = append(out, v)
	}
	return out, nil
}

// Match reports whether row satisfies every term. A nil or empty Matcher
// matches everything.
func (m *Matcher) Match(row record.Row) bool {
	if m == nil {
		return true
	}
	for _, t := range m.terms {
		if t.col >= len(row.Values) {
			return false
		}
		got := row.Values[t.col]
		hit := false
		for _, want := range t.any {
			if got.Equal(want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Columns returns the column names the matcher constrains, sorted.
func (m *Matcher) Columns() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.name
	}
	return out
}

// Match compiles q and evaluates it against a single row.
func Match(row record.Row, q Query) (bool, error) {
	m, err := Compile(row.Schema(), q)
	if err != nil {
		return false, err
	}
	return m.Match(row), nil
}
