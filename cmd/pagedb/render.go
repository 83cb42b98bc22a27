package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tuannm99/pagedb"
	"github.com/tuannm99/pagedb/internal/record"
)

func cell(v pagedb.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	return fmt.Sprintf("%v", v.Any())
}

// printRows prints rows as an aligned table followed by a row count.
func printRows(w io.Writer, cols []string, rows []pagedb.Row, withRowID bool) {
	if withRowID {
		cols = append([]string{record.RowIDKey}, cols...)
	}

	// 1) cells and widths
	cells := make([][]string, len(rows))
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for r, row := range rows {
		out := make([]string, 0, len(cols))
		if withRowID {
			out = append(out, fmt.Sprintf("%d", row.ID))
		}
		for _, v := range row.Values {
			out = append(out, cell(v))
		}
		for i := range cols {
			if i < len(out) && len(out[i]) > widths[i] {
				widths[i] = len(out[i])
			}
		}
		cells[r] = out
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			var s string
			if i < len(values) {
				s = values[i]
			}
			fmt.Fprint(w, padRight(s, widths[i]))
		}
		fmt.Fprintln(w)
	}

	// 2) header
	printRow(cols)

	// 3) separator ----+----
	for i := range cols {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)

	// 4) rows
	for _, out := range cells {
		printRow(out)
	}

	fmt.Fprintf(w, "(%d rows)\n", len(rows))
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func writeJSONRows(w io.Writer, rows []pagedb.Row, withRowID bool) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row.Map(withRowID)); err != nil {
			return err
		}
	}
	return nil
}
