package heap

import (
	"fmt"
	"strings"
)

// RowError is one failed element of a batch. Index is the position in the
// input for inserts and the row id for update and delete.
type RowError struct {
	Index int
	Err   error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Index, e.Err) }
func (e RowError) Unwrap() error { return e.Err }

// BatchError reports the rows of a batch that failed. Rows counted in Done
// were applied and stay applied.
type BatchError struct {
	Op     string
	Done   int
	Failed []RowError
}

func (e *BatchError) add(index int, err error) {
	e.Failed = append(e.Failed, RowError{Index: index, Err: err})
}

func (e *BatchError) orNil() error {
	if len(e.Failed) == 0 {
		return nil
	}
	return e
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d applied, %d failed", e.Op, e.Done, len(e.Failed))
	for i, f := range e.Failed {
		if i == 3 {
			b.WriteString("; ...")
			break
		}
		fmt.Fprintf(&b, "; %v", f)
	}
	return b.String()
}

// Unwrap lets errors.Is/As see every row failure.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f
	}
	return out
}
