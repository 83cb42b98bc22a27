package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/tuannm99/pagedb"
	"github.com/tuannm99/pagedb/internal/filter"
)

type CreateCmd struct {
	DB          string `arg:"" help:"Database name"`
	RowsPerPage uint32 `name:"rows-per-page" help:"Default rows per page for new tables"`
	MaxRows     uint32 `name:"max-rows" help:"Default row limit for new tables"`
}

func (c *CreateCmd) Run(g *Globals) error {
	opts, err := g.options()
	if err != nil {
		return err
	}
	if c.RowsPerPage != 0 {
		opts = append(opts, pagedb.WithRowsPerPage(c.RowsPerPage))
	}
	if c.MaxRows != 0 {
		opts = append(opts, pagedb.WithMaxRows(c.MaxRows))
	}
	db, err := pagedb.Create(c.DB, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created database %s (%s)\n", db.Name, db.Meta.ID)
	return db.Close()
}

type TablesCmd struct {
	DB string `arg:"" help:"Database name"`
}

func (c *TablesCmd) Run(g *Globals) error {
	db, err := g.open(c.DB)
	if err != nil {
		return err
	}
	names, err := db.ListTables()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(stdout, n)
	}
	return db.Close()
}

type CreateTableCmd struct {
	DB          string   `arg:"" help:"Database name"`
	Table       string   `arg:"" help:"Table name"`
	Columns     []string `arg:"" help:"Columns: name (nullable string) or name:type[?] with type string, integer, boolean or float"`
	RowsPerPage uint32   `name:"rows-per-page" help:"Rows per page file (default from the database)"`
	MaxRows     uint32   `name:"max-rows" help:"Row limit (default from the database)"`
	SlotSize    int      `name:"slot-size" help:"Bytes per slot, at least what the schema needs"`
}

func (c *CreateTableCmd) Run(g *Globals) error {
	schema, err := filter.ParseColumns(c.Columns)
	if err != nil {
		return err
	}
	var topts []pagedb.TableOption
	if c.RowsPerPage != 0 {
		topts = append(topts, pagedb.TableRowsPerPage(c.RowsPerPage))
	}
	if c.MaxRows != 0 {
		topts = append(topts, pagedb.TableMaxRows(c.MaxRows))
	}
	if c.SlotSize != 0 {
		topts = append(topts, pagedb.TableSlotSize(c.SlotSize))
	}

	db, err := g.open(c.DB)
	if err != nil {
		return err
	}
	tbl, err := db.CreateTable(c.Table, schema, topts...)
	if err != nil {
		_ = db.Close()
		return err
	}
	fmt.Fprintf(stdout, "created table %s (%d columns, slot %d bytes)\n", tbl.Name, len(tbl.Schema.Cols), tbl.Settings.SlotSize)
	return db.Close()
}

type DropTableCmd struct {
	DB    string `arg:"" help:"Database name"`
	Table string `arg:"" help:"Table name"`
}

func (c *DropTableCmd) Run(g *Globals) error {
	db, err := g.open(c.DB)
	if err != nil {
		return err
	}
	if err := db.DropTable(c.Table); err != nil {
		_ = db.Close()
		return err
	}
	return db.Close()
}

type InsertCmd struct {
	DB     string   `arg:"" help:"Database name"`
	Table  string   `arg:"" help:"Table name"`
	Values []string `arg:"" help:"col=value pairs, strings in single quotes"`
}

func (c *InsertCmd) Run(g *Globals) error {
	set, err := filter.ParseAssignments(strings.Join(c.Values, ", "))
	if err != nil {
		return err
	}
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		id, err := tbl.Insert(set)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "inserted row %d\n", id)
		return nil
	})
}

type QueryCmd struct {
	DB     string `arg:"" help:"Database name"`
	Table  string `arg:"" help:"Table name"`
	Filter string `arg:"" optional:"" help:"e.g. \"fname IN ('John','Nicole') AND lname = 'Smith'\""`
	RowID  bool   `name:"row-id" help:"Show the row id column"`
	JSON   bool   `name:"json" help:"Print JSON lines instead of a table"`
}

func (c *QueryCmd) Run(g *Globals) error {
	q, err := filter.Parse(c.Filter)
	if err != nil {
		return err
	}
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		rows, err := tbl.Query(q)
		if err != nil {
			return err
		}
		if c.JSON {
			return writeJSONRows(stdout, rows, c.RowID)
		}
		printRows(stdout, tbl.Schema.Names(), rows, c.RowID)
		return nil
	})
}

type FindRowCmd struct {
	DB    string `arg:"" help:"Database name"`
	Table string `arg:"" help:"Table name"`
	ID    uint32 `arg:"" help:"Row id"`
}

func (c *FindRowCmd) Run(g *Globals) error {
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		row, err := tbl.FindRow(c.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", tbl.Placement(c.ID), err)
		}
		printRows(stdout, tbl.Schema.Names(), []pagedb.Row{row}, true)
		return nil
	})
}

type UpdateCmd struct {
	DB    string `arg:"" help:"Database name"`
	Table string `arg:"" help:"Table name"`
	Where string `name:"where" help:"Filter of the rows to update (all rows when empty)"`
	Set   string `name:"set" required:"" help:"Assignments, e.g. \"age = 41, name = 'Ann'\""`
}

func (c *UpdateCmd) Run(g *Globals) error {
	q, err := filter.Parse(c.Where)
	if err != nil {
		return err
	}
	set, err := filter.ParseAssignments(c.Set)
	if err != nil {
		return err
	}
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		n, err := tbl.Update(q, set)
		fmt.Fprintf(stdout, "updated %d rows\n", n)
		return err
	})
}

type DeleteCmd struct {
	DB     string `arg:"" help:"Database name"`
	Table  string `arg:"" help:"Table name"`
	Filter string `arg:"" help:"Filter of the rows to delete"`
}

func (c *DeleteCmd) Run(g *Globals) error {
	q, err := filter.Parse(c.Filter)
	if err != nil {
		return err
	}
	if len(q) == 0 {
		return fmt.Errorf("delete: empty filter, use truncate to remove every row")
	}
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		n, err := tbl.Delete(q)
		fmt.Fprintf(stdout, "deleted %d rows\n", n)
		return err
	})
}

type TruncateCmd struct {
	DB    string `arg:"" help:"Database name"`
	Table string `arg:"" help:"Table name"`
}

func (c *TruncateCmd) Run(g *Globals) error {
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		return tbl.Truncate()
	})
}

type VacuumCmd struct {
	DB    string `arg:"" help:"Database name"`
	Table string `arg:"" help:"Table name"`
}

func (c *VacuumCmd) Run(g *Globals) error {
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		stats, err := tbl.Vacuum()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "vacuum: %d rows kept, %d deleted removed, %d corrupt dropped\n",
			stats.Survivors, stats.Removed, stats.Corrupt)
		return nil
	})
}

type StatsCmd struct {
	DB    string `arg:"" help:"Database name"`
	Table string `arg:"" help:"Table name"`
}

func (c *StatsCmd) Run(g *Globals) error {
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) error {
		st, err := tbl.Stats()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	})
}

type DumpCmd struct {
	DB     string `arg:"" help:"Database name"`
	Table  string `arg:"" help:"Table name"`
	Output string `name:"output" short:"o" help:"Output file (stdout when empty)" type:"path"`
	XZ     bool   `name:"xz" help:"Compress the dump with xz"`
}

func (c *DumpCmd) Run(g *Globals) error {
	return g.withTable(c.DB, c.Table, func(tbl *pagedb.Table) (err error) {
		w := stdout
		if c.Output != "" {
			var f afero.File
			f, err = outputFs.Create(c.Output)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}()
			w = f
		}
		n, err := dump(w, tbl.Scan(nil), c.XZ)
		if err != nil {
			return err
		}
		if c.Output != "" {
			fmt.Fprintf(stdout, "dumped %d rows to %s\n", n, c.Output)
		}
		return nil
	})
}
