package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/heap"
	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
)

var ErrDatabaseClosed = errors.New("pagedb: database is closed")

type DatabaseOperation interface {
	CreateTable(name string, schema record.Schema, opts ...TableOption) (*heap.Table, error)
	OpenTable(name string) (*heap.Table, error)
	ListTables() ([]string, error)
	DropTable(name string) error
	Close() error
}

var (
	_ DatabaseOperation = (*Database)(nil)
	_ heap.CounterStore = (*Database)(nil)
)

// Database is a directory of tables sharing default page settings. It hands
// out one *heap.Table per name and persists their row id counters.
type Database struct {
	Name string
	Dir  string
	Meta DatabaseMeta

	fs     afero.Fs
	log    *slog.Logger
	sync   bool
	tables map[string]*heap.Table
	closed bool
}

func databaseDir(o options, name string) string {
	return filepath.Join(o.root, name)
}

// Exist reports whether name is an initialized database under the root.
func Exist(name string, opts ...Option) bool {
	o := buildOptions(opts)
	id, err := record.ParseIdent(name)
	if err != nil {
		return false
	}
	return metaExists(o.fs, filepath.Join(databaseDir(o, id), DatabaseMetaFile))
}

// Create initializes a new database directory. It fails with
// ErrAlreadyExists when the directory is already there.
func Create(name string, opts ...Option) (*Database, error) {
	o := buildOptions(opts)
	id, err := record.ParseIdent(name)
	if err != nil {
		return nil, err
	}
	if err := checkSettings(o.rowsPerPage, o.maxRows); err != nil {
		return nil, err
	}

	dir := databaseDir(o, id)
	exists, err := afero.Exists(o.fs, dir)
	if err != nil {
		return nil, dberr.IO("stat database", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: database %q", dberr.ErrAlreadyExists, id)
	}
	if err := o.fs.MkdirAll(dir, storage.FileMode0755); err != nil {
		return nil, dberr.IO("create database", err)
	}

	meta := DatabaseMeta{
		ID:                   uuid.NewString(),
		Name:                 id,
		StorageFormatVersion: StorageFormatVersion,
		RowsPerPage:          o.rowsPerPage,
		MaxRows:              o.maxRows,
		CreatedAt:            time.Now().UTC(),
	}
	if err := writeJSON(o.fs, filepath.Join(dir, DatabaseMetaFile), &meta); err != nil {
		return nil, err
	}

	o.log.Info("create database:: done", "db", id, "id", meta.ID, "dir", dir)
	return newDatabase(o, dir, meta), nil
}

// Open loads an existing database. A missing directory or descriptor is
// ErrNotFound.
func Open(name string, opts ...Option) (*Database, error) {
	o := buildOptions(opts)
	id, err := record.ParseIdent(name)
	if err != nil {
		return nil, err
	}

	dir := databaseDir(o, id)
	var meta DatabaseMeta
	if err := readJSON(o.fs, filepath.Join(dir, DatabaseMetaFile), &meta); err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, fmt.Errorf("%w: database %q", dberr.ErrNotFound, id)
		}
		return nil, err
	}
	if meta.StorageFormatVersion != StorageFormatVersion {
		return nil, dberr.Validation("database %q: storage format %d, want %d",
			id, meta.StorageFormatVersion, StorageFormatVersion)
	}
	if err := checkSettings(meta.RowsPerPage, meta.MaxRows); err != nil {
		return nil, err
	}

	o.log.Debug("open database:: done", "db", id, "id", meta.ID)
	return newDatabase(o, dir, meta), nil
}

func newDatabase(o options, dir string, meta DatabaseMeta) *Database {
	return &Database{
		Name:   meta.Name,
		Dir:    dir,
		Meta:   meta,
		fs:     o.fs,
		log:    o.log.With("db", meta.Name),
		sync:   o.sync,
		tables: make(map[string]*heap.Table),
	}
}

func checkSettings(rowsPerPage, maxRows uint32) error {
	if rowsPerPage == 0 || rowsPerPage > storage.MaxRowsPerPage {
		return dberr.Validation("rows_per_page %d not in 1..%d", rowsPerPage, storage.MaxRowsPerPage)
	}
	if maxRows == 0 {
		return dberr.Validation("max_rows must be positive")
	}
	return nil
}

// CreateTable persists the schema and settings of a new table and opens it.
// Settings not overridden come from the database defaults.
func (db *Database) CreateTable(name string, schema record.Schema, opts ...TableOption) (*heap.Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	id, err := record.ParseIdent(name)
	if err != nil {
		return nil, err
	}
	schema, err = schema.Normalize()
	if err != nil {
		return nil, err
	}

	to := tableOptions{rowsPerPage: db.Meta.RowsPerPage, maxRows: db.Meta.MaxRows}
	for _, opt := range opts {
		opt(&to)
	}
	if err := checkSettings(to.rowsPerPage, to.maxRows); err != nil {
		return nil, err
	}
	slotSize := record.MinSlotSize(schema)
	if to.slotSize != 0 {
		if to.slotSize < slotSize {
			return nil, dberr.Validation("table %q: slot_size %d below minimum %d", id, to.slotSize, slotSize)
		}
		slotSize = to.slotSize
	}

	dir := db.tableDir(id)
	if metaExists(db.fs, db.tableMetaPath(id)) {
		return nil, fmt.Errorf("%w: table %q", dberr.ErrAlreadyExists, id)
	}
	// a directory without table.json is what a failed create leaves behind
	orphan, err := afero.Exists(db.fs, dir)
	if err != nil {
		return nil, dberr.IO("stat table", err)
	}
	if orphan {
		db.log.Warn("create table:: remove leftover directory", "table", id, "dir", dir)
		if err := db.fs.RemoveAll(dir); err != nil {
			return nil, dberr.IO("remove leftover table", err)
		}
	}
	if err := db.fs.MkdirAll(dir, storage.FileMode0755); err != nil {
		return nil, dberr.IO("create table", err)
	}

	now := time.Now().UTC()
	meta := &TableMeta{
		Name:    id,
		Columns: schema.Cols,
		Settings: heap.Settings{
			RowsPerPage: to.rowsPerPage,
			MaxRows:     to.maxRows,
			SlotSize:    slotSize,
		},
		CreatedAt: now,
	}
	if err := db.writeTableMeta(meta); err != nil {
		if rerr := db.fs.RemoveAll(dir); rerr != nil {
			db.log.Warn("create table:: cleanup", "table", id, "err", rerr)
		}
		return nil, err
	}

	tbl, err := db.openTable(meta)
	if err != nil {
		return nil, err
	}
	db.log.Info("create table:: done", "table", id, "columns", len(schema.Cols), "slot_size", slotSize)
	return tbl, nil
}

// OpenTable loads a table. Opening the same name twice returns the same
// *heap.Table so the row id counter has a single owner.
func (db *Database) OpenTable(name string) (*heap.Table, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	id, err := record.ParseIdent(name)
	if err != nil {
		return nil, err
	}
	if tbl, ok := db.tables[id]; ok {
		return tbl, nil
	}

	meta, err := db.readTableMeta(id)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return nil, fmt.Errorf("%w: table %q", dberr.ErrNotFound, id)
		}
		return nil, err
	}
	schema, err := meta.Schema().Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: table %q schema: %v", dberr.ErrCorruptRecord, id, err)
	}
	meta.Columns = schema.Cols
	return db.openTable(meta)
}

func (db *Database) openTable(meta *TableMeta) (*heap.Table, error) {
	tbl, err := heap.Open(heap.Config{
		Name:         meta.Name,
		Dir:          db.tableDir(meta.Name),
		Fs:           db.fs,
		Schema:       meta.Schema(),
		Settings:     meta.Settings,
		Sync:         db.sync,
		CurrentRowID: meta.CurrentRowID,
		Counter:      db,
		Logger:       db.log,
	})
	if err != nil {
		return nil, err
	}
	db.tables[meta.Name] = tbl
	return tbl, nil
}

// SaveCounter writes a table's current row id into its table.json.
func (db *Database) SaveCounter(table string, currentRowID uint32) error {
	meta, err := db.readTableMeta(table)
	if err != nil {
		return err
	}
	if meta.CurrentRowID == currentRowID {
		return nil
	}
	meta.CurrentRowID = currentRowID
	return db.writeTableMeta(meta)
}

// ListTables returns the table names, sorted.
func (db *Database) ListTables() ([]string, error) {
	if db.closed {
		return nil, ErrDatabaseClosed
	}
	ents, err := afero.ReadDir(db.fs, db.Dir)
	if err != nil {
		return nil, dberr.IO("list tables", err)
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() && metaExists(db.fs, db.tableMetaPath(e.Name())) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// DropTable removes a table and all of its pages.
func (db *Database) DropTable(name string) error {
	if db.closed {
		return ErrDatabaseClosed
	}
	id, err := record.ParseIdent(name)
	if err != nil {
		return err
	}
	if !metaExists(db.fs, db.tableMetaPath(id)) {
		return fmt.Errorf("%w: table %q", dberr.ErrNotFound, id)
	}
	delete(db.tables, id)
	if err := db.fs.RemoveAll(db.tableDir(id)); err != nil {
		return dberr.IO("drop table", err)
	}
	db.log.Info("drop table:: done", "table", id)
	return nil
}

// Close persists the counters of every table opened through db. Tables
// must not be used afterwards.
func (db *Database) Close() error {
	if db.closed {
		return ErrDatabaseClosed
	}
	db.closed = true

	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := db.tables[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close table %q: %w", name, err))
		}
	}
	db.tables = nil
	return errors.Join(errs...)
}
