package engine

import (
	"log/slog"

	"github.com/spf13/afero"

	"github.com/tuannm99/pagedb/internal"
)

type options struct {
	fs          afero.Fs
	root        string
	log         *slog.Logger
	rowsPerPage uint32
	maxRows     uint32
	sync        bool
}

type Option func(*options)

func buildOptions(opts []Option) options {
	d := internal.DefaultConfig()
	o := options{
		fs:          afero.NewOsFs(),
		root:        d.Storage.Workdir,
		log:         slog.Default(),
		rowsPerPage: d.Storage.RowsPerPage,
		maxRows:     d.Storage.MaxRows,
		sync:        d.Storage.Sync,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithFs swaps the filesystem, e.g. afero.NewBasePathFs for a sandbox.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

// WithRoot sets the directory holding the databases.
func WithRoot(dir string) Option { return func(o *options) { o.root = dir } }

func WithLogger(log *slog.Logger) Option { return func(o *options) { o.log = log } }

// WithRowsPerPage and WithMaxRows set the defaults stamped into a new
// database. They do not change an existing one.
func WithRowsPerPage(n uint32) Option { return func(o *options) { o.rowsPerPage = n } }
func WithMaxRows(n uint32) Option     { return func(o *options) { o.maxRows = n } }

// WithSync fsyncs every slot write.
func WithSync(sync bool) Option { return func(o *options) { o.sync = sync } }

// WithConfig applies the storage section of a loaded config.
func WithConfig(cfg *internal.Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		o.root = cfg.Storage.Workdir
		o.rowsPerPage = cfg.Storage.RowsPerPage
		o.maxRows = cfg.Storage.MaxRows
		o.sync = cfg.Storage.Sync
	}
}

type tableOptions struct {
	rowsPerPage uint32
	maxRows     uint32
	slotSize    int
}

type TableOption func(*tableOptions)

// TableRowsPerPage overrides the database default for one table.
func TableRowsPerPage(n uint32) TableOption { return func(o *tableOptions) { o.rowsPerPage = n } }

// TableMaxRows overrides the database default for one table.
func TableMaxRows(n uint32) TableOption { return func(o *tableOptions) { o.maxRows = n } }

// TableSlotSize asks for slots larger than the schema needs.
func TableSlotSize(n int) TableOption { return func(o *tableOptions) { o.slotSize = n } }
