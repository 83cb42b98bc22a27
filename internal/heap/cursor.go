package heap

import (
	"errors"
	"io"
	"iter"

	"github.com/tuannm99/pagedb/internal/alias/util"
	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/query"
	"github.com/tuannm99/pagedb/internal/record"
)

// Cursor is a forward-only pass over the live rows of a table.
type Cursor struct {
	t          *Table
	m          *query.Matcher
	compileErr error

	err     error
	corrupt int
}

// Scan prepares a cursor over the rows matching q (all rows when q is
// empty). Nothing is read until Rows is ranged over.
func (t *Table) Scan(q query.Query) *Cursor {
	m, err := query.Compile(t.Schema, q)
	return &Cursor{t: t, m: m, compileErr: err}
}

// Rows yields live matching rows in ascending row id order. Tombstoned,
// never-written and corrupt slots are skipped. Every call starts a new pass
// from page 0. At most one page file is open at a time, and it is closed
// when the pass moves on, ends, fails or the caller stops ranging.
func (c *Cursor) Rows() iter.Seq[record.Row] {
	return func(yield func(record.Row) bool) {
		c.err = c.compileErr
		c.corrupt = 0
		if c.err != nil {
			return
		}

		pages, err := c.t.FS.ListPages()
		if err != nil {
			c.err = err
			return
		}
		for _, pageNo := range pages {
			if !c.page(pageNo, yield) {
				return
			}
		}
	}
}

func (c *Cursor) page(pageNo uint32, yield func(record.Row) bool) bool {
	pr, err := c.t.SM.OpenPage(c.t.FS, pageNo)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return true
		}
		c.err = err
		return false
	}
	defer util.CloseFileFunc(pr)

	for {
		rec, err := pr.Next()
		switch {
		case errors.Is(err, io.EOF):
			return true
		case errors.Is(err, dberr.ErrNotFound):
			continue
		case errors.Is(err, dberr.ErrCorruptRecord):
			c.corrupt++
			c.t.log.Warn("scan:: skip corrupt slot", "page", pageNo, "row", rec.ID, "err", err)
			continue
		case err != nil:
			c.err = err
			return false
		}

		row := record.NewRow(c.t.Schema, rec)
		if !c.m.Match(row) {
			continue
		}
		if !yield(row) {
			return false
		}
	}
}

// Err is the error that ended the last pass early, if any.
func (c *Cursor) Err() error { return c.err }

// Corrupt is the number of corrupt slots skipped by the last pass.
func (c *Cursor) Corrupt() int { return c.corrupt }
