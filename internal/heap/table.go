package heap

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/query"
	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
)

const (
	PagesDir   = "pages"
	StagingDir = "pages.vacuum"
	RetiredDir = "pages.old"
	DroppedDir = "pages.truncated"
)

// Settings are fixed when the table is created.
type Settings struct {
	RowsPerPage uint32 `json:"rows_per_page"`
	MaxRows     uint32 `json:"max_rows"`
	SlotSize    int    `json:"slot_size"`
}

// CounterStore persists the current row id outside the page files.
type CounterStore interface {
	SaveCounter(table string, currentRowID uint32) error
}

type Config struct {
	Name     string
	Dir      string // table directory, pages live in Dir/pages
	Fs       afero.Fs
	Schema   record.Schema
	Settings Settings
	Sync     bool
	// CurrentRowID is the persisted counter. Open raises it to the highest
	// row id found on disk + 1 when the pages are ahead of it.
	CurrentRowID uint32
	Counter      CounterStore
	Logger       *slog.Logger
}

// Table represent a paged table: name, schema, settings, PageStore, FileSet
// and the row id counter. Not safe for concurrent use.
type Table struct {
	Name     string
	Schema   record.Schema
	Settings Settings
	SM       *storage.PageStore
	FS       storage.LocalFileSet
	Dir      string

	fs           afero.Fs
	currentRowID uint32
	counter      CounterStore
	log          *slog.Logger
}

func newTable(cfg Config) (*Table, error) {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Settings.MaxRows == 0 {
		return nil, fmt.Errorf("%w: max_rows must be positive", storage.ErrBadSettings)
	}
	codec, err := record.NewCodec(cfg.Schema, cfg.Settings.SlotSize)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger.With("table", cfg.Name)
	sm, err := storage.NewPageStore(codec, cfg.Settings.RowsPerPage, cfg.Sync, log)
	if err != nil {
		return nil, err
	}
	return &Table{
		Name:         cfg.Name,
		Schema:       cfg.Schema,
		Settings:     cfg.Settings,
		SM:           sm,
		FS:           storage.LocalFileSet{Fs: cfg.Fs, Dir: filepath.Join(cfg.Dir, PagesDir), Base: storage.PageBase},
		Dir:          cfg.Dir,
		fs:           cfg.Fs,
		currentRowID: cfg.CurrentRowID,
		counter:      cfg.Counter,
		log:          log,
	}, nil
}

// Open binds a table to its directory. It first settles an interrupted
// vacuum, then resolves the current row id from the persisted counter and
// the pages on disk.
func Open(cfg Config) (*Table, error) {
	t, err := newTable(cfg)
	if err != nil {
		return nil, err
	}

	if err := t.clearDropped(); err != nil {
		return nil, err
	}
	state, err := t.Recover()
	if err != nil {
		return nil, err
	}

	highest, found, err := t.SM.HighestRowID(t.FS)
	if err != nil {
		return nil, err
	}
	var next uint32
	if found {
		next = highest + 1
	}

	switch {
	case state == storage.SwapCompleted:
		// pages are already compacted, the persisted counter is stale
		t.currentRowID = next
	case next > t.currentRowID:
		t.currentRowID = next
	}

	if state != storage.SwapClean {
		t.log.Warn("open table:: recovered interrupted vacuum", "state", state.String(), "current_row_id", t.currentRowID)
		if err := t.saveCounter(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// CurrentRowID is the id the next insert receives.
func (t *Table) CurrentRowID() uint32 { return t.currentRowID }

func (t *Table) saveCounter() error {
	if t.counter == nil {
		return nil
	}
	return t.counter.SaveCounter(t.Name, t.currentRowID)
}

// Close persists the row id counter. The table keeps no file open.
func (t *Table) Close() error {
	return t.saveCounter()
}

// Insert validates input against the schema and appends it at the current
// row id. The counter moves only after the slot is written.
func (t *Table) Insert(input map[string]any) (uint32, error) {
	vals, err := t.Schema.Coerce(input)
	if err != nil {
		return 0, err
	}
	return t.insert(vals)
}

// InsertValues is Insert with the values given in column order.
func (t *Table) InsertValues(values []any) (uint32, error) {
	vals, err := t.Schema.CoerceList(values)
	if err != nil {
		return 0, err
	}
	return t.insert(vals)
}

func (t *Table) insert(vals []record.Value) (uint32, error) {
	if t.currentRowID >= t.Settings.MaxRows {
		return 0, fmt.Errorf("%w: table %q is at max_rows %d", dberr.ErrCapacityExceeded, t.Name, t.Settings.MaxRows)
	}
	id := t.currentRowID
	if err := t.SM.Write(t.FS, id, vals); err != nil {
		return 0, err
	}
	t.currentRowID++
	return id, nil
}

// InsertMany inserts rows in order, each on its own. A row failing
// validation is reported and skipped; CapacityExceeded or an I/O error ends
// the batch. Rows inserted before a failure stay inserted.
func (t *Table) InsertMany(rows []map[string]any) ([]uint32, error) {
	ids := make([]uint32, 0, len(rows))
	berr := &BatchError{Op: "insert"}
	for i, r := range rows {
		id, err := t.Insert(r)
		if err != nil {
			berr.add(i, err)
			if errors.Is(err, dberr.ErrValidationFailed) {
				continue
			}
			break
		}
		ids = append(ids, id)
		berr.Done++
	}
	return ids, berr.orNil()
}

// FindRow reads one row by id. Never-written, out-of-range and deleted ids
// are ErrNotFound; a damaged slot is ErrCorruptRecord.
func (t *Table) FindRow(id uint32) (record.Row, error) {
	if id >= t.currentRowID {
		return record.Row{}, fmt.Errorf("%w: row %d", dberr.ErrNotFound, id)
	}
	rec, err := t.SM.Read(t.FS, id)
	if err != nil {
		return record.Row{}, err
	}
	return record.NewRow(t.Schema, rec), nil
}

// UpdateRow merges input into the stored row and rewrites it in place.
func (t *Table) UpdateRow(id uint32, input map[string]any) error {
	set, err := t.Schema.CoercePartial(input)
	if err != nil {
		return err
	}
	row, err := t.FindRow(id)
	if err != nil {
		return err
	}
	return t.rewrite(row, set)
}

func (t *Table) rewrite(row record.Row, set map[int]record.Value) error {
	vals := make([]record.Value, len(row.Values))
	copy(vals, row.Values)
	for i, v := range set {
		vals[i] = v
	}
	return t.SM.Write(t.FS, row.ID, vals)
}

// DeleteRow tombstones a live row.
func (t *Table) DeleteRow(id uint32) error {
	if _, err := t.FindRow(id); err != nil {
		return err
	}
	return t.SM.Tombstone(t.FS, id)
}

// FindByColumnValue returns the first row whose column equals value.
func (t *Table) FindByColumnValue(column string, value any) (record.Row, error) {
	return t.Find(query.Query{column: value})
}

// Find returns the first row matching q, or ErrNotFound.
func (t *Table) Find(q query.Query) (record.Row, error) {
	cur := t.Scan(q)
	for row := range cur.Rows() {
		return row, nil
	}
	if err := cur.Err(); err != nil {
		return record.Row{}, err
	}
	return record.Row{}, fmt.Errorf("%w: no row in %q matches", dberr.ErrNotFound, t.Name)
}

// Query returns every row matching q in row id order.
func (t *Table) Query(q query.Query) ([]record.Row, error) {
	cur := t.Scan(q)
	var out []record.Row
	for row := range cur.Rows() {
		out = append(out, row)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites every row matching q with values merged in. values are
// validated once up front; afterwards each row is applied on its own and an
// I/O error stops the batch. It returns the number of rows rewritten.
func (t *Table) Update(q query.Query, values map[string]any) (int, error) {
	set, err := t.Schema.CoercePartial(values)
	if err != nil {
		return 0, err
	}
	rows, err := t.Query(q)
	if err != nil {
		return 0, err
	}

	berr := &BatchError{Op: "update"}
	for _, row := range rows {
		if err := t.rewrite(row, set); err != nil {
			berr.add(int(row.ID), err)
			if errors.Is(err, dberr.ErrIOFailure) {
				break
			}
			continue
		}
		berr.Done++
	}
	return berr.Done, berr.orNil()
}

// Delete tombstones every row matching q and returns how many were deleted.
func (t *Table) Delete(q query.Query) (int, error) {
	rows, err := t.Query(q)
	if err != nil {
		return 0, err
	}

	berr := &BatchError{Op: "delete"}
	for _, row := range rows {
		if err := t.SM.Tombstone(t.FS, row.ID); err != nil {
			berr.add(int(row.ID), err)
			if errors.Is(err, dberr.ErrIOFailure) {
				break
			}
			continue
		}
		berr.Done++
	}
	return berr.Done, berr.orNil()
}

// Truncate drops every page and restarts row ids at 0. The zero counter is
// saved before the page directory is moved aside in one rename, so a crash
// leaves either the untouched table or an empty one.
func (t *Table) Truncate() error {
	prev := t.currentRowID
	t.currentRowID = 0
	if err := t.saveCounter(); err != nil {
		t.currentRowID = prev
		return err
	}

	dropped := t.droppedDir()
	if err := t.fs.RemoveAll(dropped); err != nil {
		t.currentRowID = prev
		return dberr.IO("truncate: clear dropped", err)
	}
	exists, err := afero.DirExists(t.fs, t.FS.Dir)
	if err != nil {
		t.currentRowID = prev
		return dberr.IO("truncate: stat pages", err)
	}
	if exists {
		if err := t.fs.Rename(t.FS.Dir, dropped); err != nil {
			// pages still live: the counter must cover them again
			t.currentRowID = prev
			_ = t.saveCounter()
			return dberr.IO("truncate: detach pages", err)
		}
	}
	if err := t.fs.RemoveAll(dropped); err != nil {
		return dberr.IO("truncate: remove pages", err)
	}
	t.log.Info("truncate table:: done")
	return nil
}

func (t *Table) droppedDir() string { return filepath.Join(t.Dir, DroppedDir) }

// clearDropped removes pages left behind by a truncate that crashed after
// detaching them.
func (t *Table) clearDropped() error {
	dropped := t.droppedDir()
	exists, err := afero.DirExists(t.fs, dropped)
	if err != nil {
		return dberr.IO("open table: stat dropped", err)
	}
	if !exists {
		return nil
	}
	if err := t.fs.RemoveAll(dropped); err != nil {
		return dberr.IO("open table: remove dropped", err)
	}
	t.log.Warn("open table:: finished interrupted truncate")
	return nil
}

// Stats describes a table as stored on disk.
type Stats struct {
	Name         string          `json:"name"`
	Columns      []record.Column `json:"columns"`
	Settings     Settings        `json:"settings"`
	Pages        int             `json:"pages"`
	CurrentRowID uint32          `json:"current_row_id"`
	DataSize     int64           `json:"data_size"`
}

func (t *Table) Stats() (Stats, error) {
	pages, err := t.SM.PageCount(t.FS)
	if err != nil {
		return Stats{}, err
	}
	size, err := t.FS.Size()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Name:         t.Name,
		Columns:      t.Schema.Cols,
		Settings:     t.Settings,
		Pages:        pages,
		CurrentRowID: t.currentRowID,
		DataSize:     size,
	}, nil
}
