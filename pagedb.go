// Package pagedb is the top-level facade for the pagedb engine: an embedded
// store that keeps typed rows in fixed-size slots of numbered page files.
package pagedb

import (
	"github.com/tuannm99/pagedb/internal"
	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/engine"
	"github.com/tuannm99/pagedb/internal/heap"
	"github.com/tuannm99/pagedb/internal/query"
	"github.com/tuannm99/pagedb/internal/record"
)

type (
	Database    = engine.Database
	Option      = engine.Option
	TableOption = engine.TableOption

	Table       = heap.Table
	Cursor      = heap.Cursor
	Stats       = heap.Stats
	VacuumStats = heap.VacuumStats
	BatchError  = heap.BatchError
	RowError    = heap.RowError

	Row        = record.Row
	Value      = record.Value
	Schema     = record.Schema
	Column     = record.Column
	ColumnType = record.ColumnType

	Query  = query.Query
	Config = internal.Config
)

const (
	TypeString = record.ColString
	TypeInt    = record.ColInt
	TypeBool   = record.ColBool
	TypeFloat  = record.ColFloat
)

var (
	ErrValidationFailed = dberr.ErrValidationFailed
	ErrCapacityExceeded = dberr.ErrCapacityExceeded
	ErrNotFound         = dberr.ErrNotFound
	ErrAlreadyExists    = dberr.ErrAlreadyExists
	ErrCorruptRecord    = dberr.ErrCorruptRecord
	ErrIOFailure        = dberr.ErrIOFailure
	ErrDatabaseClosed   = engine.ErrDatabaseClosed
)

var (
	WithFs           = engine.WithFs
	WithRoot         = engine.WithRoot
	WithLogger       = engine.WithLogger
	WithRowsPerPage  = engine.WithRowsPerPage
	WithMaxRows      = engine.WithMaxRows
	WithSync         = engine.WithSync
	WithConfig       = engine.WithConfig
	TableRowsPerPage = engine.TableRowsPerPage
	TableMaxRows     = engine.TableMaxRows
	TableSlotSize    = engine.TableSlotSize
)

// Create initializes a new database directory.
func Create(name string, opts ...Option) (*Database, error) { return engine.Create(name, opts...) }

// Open loads an existing database.
func Open(name string, opts ...Option) (*Database, error) { return engine.Open(name, opts...) }

// Exist reports whether the named database exists.
func Exist(name string, opts ...Option) bool { return engine.Exist(name, opts...) }

// StringColumns is a schema of nullable string columns, in order.
func StringColumns(names ...string) Schema { return record.StringColumns(names...) }

// TypedColumns is a schema of required typed columns, ordered by name.
func TypedColumns(types map[string]ColumnType) Schema { return record.TypedColumns(types) }

// LoadConfig reads a YAML config file plus PAGEDB_* environment overrides.
func LoadConfig(path string) (*Config, error) { return internal.LoadConfig(path) }
