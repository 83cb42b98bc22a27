package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tuannm99/pagedb"
	"github.com/tuannm99/pagedb/internal/filter"
)

type ShellCmd struct {
	DB         string `arg:"" help:"Database name"`
	Table      string `arg:"" help:"Table name"`
	History    string `name:"history" help:"History file path" type:"path"`
	HistoryMax int    `name:"history-max" default:"2000" help:"Max history lines loaded into memory"`
	Exec       string `name:"exec" short:"e" help:"Run one shell command and exit"`
}

const shellHelp = `commands:
  query [filter]                 rows matching filter (all when empty)
  find <filter>                  first row matching filter
  row <id>                       one row by id
  insert <col = value, ...>      insert a row
  update <col = value, ...> [where <filter>]
  delete <filter>                delete matching rows
  truncate | vacuum | stats

meta commands:
  \q | quit | exit       quit
  \history               print history
  \help                  show help

filter: fname IN ('John', 'Nicole') AND lname = 'Smith'`

// ---- History (own file) ----

type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(cmd string) error {
	cmd = compactOneLine(cmd)
	if cmd == "" {
		return nil
	}
	h.lines = append(h.lines, cmd)
	if h.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = fmt.Fprintln(f, cmd)
	return err
}

func (h *History) Print(w io.Writer, last int) {
	if last <= 0 || last > len(h.lines) {
		last = len(h.lines)
	}
	for i := len(h.lines) - last; i < len(h.lines); i++ {
		fmt.Fprintf(w, "%5d  %s\n", i+1, h.lines[i])
	}
}

func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".pagedb_history"
	}
	return filepath.Join(home, ".pagedb_history")
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") ||
		line == "quit" || line == "exit"
}

// execLine runs one shell command against tbl and prints the result to w.
func execLine(w io.Writer, tbl *pagedb.Table, line string) error {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	cols := tbl.Schema.Names()

	switch strings.ToLower(verb) {
	case "query", "select":
		q, err := filter.Parse(rest)
		if err != nil {
			return err
		}
		rows, err := tbl.Query(q)
		if err != nil {
			return err
		}
		printRows(w, cols, rows, true)

	case "find":
		q, err := filter.Parse(rest)
		if err != nil {
			return err
		}
		row, err := tbl.Find(q)
		if err != nil {
			return err
		}
		printRows(w, cols, []pagedb.Row{row}, true)

	case "row":
		id, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return fmt.Errorf("row: invalid id %q", rest)
		}
		row, err := tbl.FindRow(uint32(id))
		if err != nil {
			return err
		}
		printRows(w, cols, []pagedb.Row{row}, true)

	case "insert":
		set, err := filter.ParseAssignments(rest)
		if err != nil {
			return err
		}
		id, err := tbl.Insert(set)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "OK (row %d)\n", id)

	case "update":
		setPart, wherePart := filter.SplitWhere(rest)
		set, err := filter.ParseAssignments(setPart)
		if err != nil {
			return err
		}
		q, err := filter.Parse(wherePart)
		if err != nil {
			return err
		}
		n, err := tbl.Update(q, set)
		fmt.Fprintf(w, "OK (%d affected)\n", n)
		return err

	case "delete":
		q, err := filter.Parse(rest)
		if err != nil {
			return err
		}
		if len(q) == 0 {
			return errors.New("delete: empty filter, use truncate to remove every row")
		}
		n, err := tbl.Delete(q)
		fmt.Fprintf(w, "OK (%d affected)\n", n)
		return err

	case "truncate":
		if err := tbl.Truncate(); err != nil {
			return err
		}
		fmt.Fprintln(w, "OK")

	case "vacuum":
		st, err := tbl.Vacuum()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "OK (%d kept, %d removed, %d corrupt)\n", st.Survivors, st.Removed, st.Corrupt)

	case "stats":
		st, err := tbl.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d pages, %d bytes, next row %d, %d rows/page, max %d rows, slot %d bytes\n",
			st.Name, st.Pages, st.DataSize, st.CurrentRowID,
			st.Settings.RowsPerPage, st.Settings.MaxRows, st.Settings.SlotSize)

	default:
		return fmt.Errorf("unknown command %q, type \\help", verb)
	}
	return nil
}

func (c *ShellCmd) Run(g *Globals) error {
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		// one-shot mode
		if strings.TrimSpace(c.Exec) != "" {
			return execLine(stdout, tbl, c.Exec)
		}
		return c.repl(tbl)
	})
}

func (c *ShellCmd) repl(tbl *pagedb.Table) error {
	histPath := c.History
	if histPath == "" {
		histPath = defaultHistoryPath()
	}
	h := NewHistory(histPath)
	_ = h.Load(c.HistoryMax)

	prompt := tbl.Name + "> "
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	// preload history into readline (so up-arrow works immediately)
	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Fprintf(stdout, "table %s, type \\help for help\n", tbl.Name)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			// EOF
			fmt.Fprintln(stdout)
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return nil
			case "\\help":
				fmt.Fprintln(stdout, shellHelp)
			case "\\history":
				h.Print(stdout, 50)
			default:
				fmt.Fprintf(stdout, "unknown command: %s\n", line)
			}
			continue
		}

		_ = h.Append(line)
		_ = rl.SaveHistory(compactOneLine(line))

		if err := execLine(stdout, tbl, line); err != nil {
			fmt.Fprintf(stdout, "error: %v\n", err)
		}
	}
}
