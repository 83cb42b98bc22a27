package record

// RowIDKey is the extra key Row.Map adds when the caller asks for row ids.
const RowIDKey = "_row"

// Row is a live record bound to the schema it was decoded with.
type Row struct {
	ID     uint32
	Values []Value
	schema Schema
}

func NewRow(s Schema, rec Record) Row {
	return Row{ID: rec.ID, Values: rec.Values, schema: s}
}

func (r Row) Schema() Schema { return r.schema }

// Get returns the value of the named column.
func (r Row) Get(name string) (Value, bool) {
	idx := r.schema.Index(name)
	if idx < 0 || idx >= len(r.Values) {
		return Value{}, false
	}
	return r.Values[idx], true
}

// Map returns the row as column -> Go value (string, int64, bool, float64 or
// nil). With withRowID the row id is added under RowIDKey.
func (r Row) Map(withRowID bool) map[string]any {
	out := make(map[string]any, len(r.Values)+1)
	for i, c := range r.schema.Cols {
		if i < len(r.Values) {
			out[c.Name] = r.Values[i].Any()
		}
	}
	if withRowID {
		out[RowIDKey] = int64(r.ID)
	}
	return out
}
