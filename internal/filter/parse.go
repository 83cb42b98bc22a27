// Package filter parses the small textual query language used by the CLI:
//
//	fname IN ('John', 'Nicole') AND lname = 'Smith'
//	age = 30, active = true        (assignments)
package filter

import (
	"strconv"
	"strings"

	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/query"
	"github.com/tuannm99/pagedb/internal/record"
)

// Parse turns "<col> = <lit> [AND <col> IN (<lit>, ...)]..." into a query.
// An empty filter matches every row.
func Parse(filter string) (query.Query, error) {
	q := query.Query{}
	s := strings.TrimSpace(filter)
	if s == "" {
		return q, nil
	}

	for _, term := range splitKeyword(s, "AND") {
		col, val, err := parseTerm(term)
		if err != nil {
			return nil, err
		}
		if _, dup := q[col]; dup {
			return nil, dberr.Validation("filter: column %q used twice", col)
		}
		q[col] = val
	}
	return q, nil
}

func parseTerm(term string) (string, any, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", nil, dberr.Validation("filter: empty condition")
	}

	if parts := splitKeyword(term, "IN"); len(parts) == 2 {
		col, err := record.ParseIdent(parts[0])
		if err != nil {
			return "", nil, err
		}
		list := strings.TrimSpace(parts[1])
		if !strings.HasPrefix(list, "(") || !strings.HasSuffix(list, ")") {
			return "", nil, dberr.Validation("filter: IN wants a parenthesized list, got %q", list)
		}
		list = strings.TrimSpace(list[1 : len(list)-1])

		vals := []any{}
		if list != "" {
			for _, raw := range splitComma(list) {
				lit, err := parseLiteral(strings.TrimSpace(raw))
				if err != nil {
					return "", nil, err
				}
				vals = append(vals, lit)
			}
		}
		return col, vals, nil
	}

	kv := strings.SplitN(term, "=", 2)
	if len(kv) != 2 {
		return "", nil, dberr.Validation("filter: want <col> = <literal> or <col> IN (...), got %q", term)
	}
	col, err := record.ParseIdent(kv[0])
	if err != nil {
		return "", nil, err
	}
	lit, err := parseLiteral(strings.TrimSpace(kv[1]))
	if err != nil {
		return "", nil, err
	}
	return col, lit, nil
}

// ParseAssignments parses "a = 1, b = 'x'" into column -> value.
func ParseAssignments(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dberr.Validation("filter: no assignments")
	}
	out := make(map[string]any)
	for _, a := range splitComma(s) {
		a = strings.TrimSpace(a)
		kv := strings.SplitN(a, "=", 2)
		if len(kv) != 2 {
			return nil, dberr.Validation("filter: invalid assignment %q", a)
		}
		col, err := record.ParseIdent(kv[0])
		if err != nil {
			return nil, err
		}
		lit, err := parseLiteral(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, err
		}
		if _, dup := out[col]; dup {
			return nil, dberr.Validation("filter: column %q assigned twice", col)
		}
		out[col] = lit
	}
	return out, nil
}

// ParseColumns reads column specs "name" (nullable string) or
// "name:type" (required), with a trailing "?" on the type for nullable,
// e.g. "age:integer?".
func ParseColumns(specs []string) (record.Schema, error) {
	if len(specs) == 0 {
		return record.Schema{}, dberr.Validation("filter: no columns")
	}
	cols := make([]record.Column, 0, len(specs))
	for _, spec := range specs {
		name, typ, typed := strings.Cut(spec, ":")
		if !typed {
			cols = append(cols, record.Column{Name: name, Type: record.ColString, Nullable: true})
			continue
		}
		nullable := strings.HasSuffix(typ, "?")
		ct, err := record.ParseColumnType(strings.TrimSuffix(typ, "?"))
		if err != nil {
			return record.Schema{}, err
		}
		cols = append(cols, record.Column{Name: name, Type: ct, Nullable: nullable})
	}
	return record.Schema{Cols: cols}.Normalize()
}

func parseLiteral(rv string) (any, error) {
	up := strings.ToUpper(rv)

	// NULL
	if up == "NULL" {
		return nil, nil
	}

	// BOOL
	if up == "TRUE" {
		return true, nil
	}
	if up == "FALSE" {
		return false, nil
	}

	// STRING (single quotes, '' escapes a quote)
	if len(rv) >= 2 && rv[0] == '\'' && rv[len(rv)-1] == '\'' {
		return strings.ReplaceAll(rv[1:len(rv)-1], "''", "'"), nil
	}

	// INT64
	if i, err := strconv.ParseInt(rv, 10, 64); err == nil {
		return i, nil
	}

	// FLOAT64
	if f, err := strconv.ParseFloat(rv, 64); err == nil {
		return f, nil
	}

	return nil, dberr.Validation("filter: unsupported literal %q", rv)
}

// splitKeyword splits s on a case-insensitive keyword surrounded by
// whitespace, ignoring keywords inside quotes.
func splitKeyword(s, keyword string) []string {
	var parts []string
	k := strings.ToUpper(keyword)
	up := strings.ToUpper(s)
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote || !isSpace(s[i]) {
			continue
		}
		end := i + 1 + len(k)
		if end < len(s) && up[i+1:end] == k && isSpace(s[end]) {
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = end
			i = end - 1
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// splitComma splits a comma-separated list, ignoring commas inside quotes (simple version).
func splitComma(s string) []string {
	parts := []string{}
	cur := strings.Builder{}
	inQuote := false
	for _, r := range s {
		switch r {
		case '\'':
			inQuote = !inQuote
			cur.WriteRune(r)
		case ',':
			if inQuote {
				cur.WriteRune(r)
			} else {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// SplitWhere splits "<assignments> WHERE <filter>" on the first WHERE
// outside quotes. where is empty when there is none.
func SplitWhere(s string) (set, where string) {
	parts := splitKeyword(s, "WHERE")
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " WHERE ")
}
