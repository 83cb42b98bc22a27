// Command pagedb manages pagedb databases from the shell.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/tuannm99/pagedb"
	"github.com/tuannm99/pagedb/internal/logging"
)

var stdout io.Writer = os.Stdout

// Globals are the flags shared by every command.
type Globals struct {
	Config   string `name:"config" short:"c" help:"YAML config file" type:"path"`
	Root     string `name:"root" help:"Directory holding the databases (overrides storage.workdir)" type:"path"`
	LogLevel string `name:"log-level" help:"debug, info, warn or error"`
	Sync     bool   `name:"sync" help:"fsync every slot write"`
}

// CLI defines the command-line interface for pagedb.
type CLI struct {
	Globals

	Create      CreateCmd      `cmd:"" help:"Create a database"`
	Tables      TablesCmd      `cmd:"" help:"List the tables of a database"`
	CreateTable CreateTableCmd `cmd:"" name:"create-table" help:"Create a table (columns as name or name:type)"`
	DropTable   DropTableCmd   `cmd:"" name:"drop-table" help:"Drop a table and its pages"`
	Insert      InsertCmd      `cmd:"" help:"Insert one row (col=value ...)"`
	Query       QueryCmd       `cmd:"" help:"Print the rows matching a filter"`
	FindRow     FindRowCmd     `cmd:"" name:"find-row" help:"Print one row by id"`
	Update      UpdateCmd      `cmd:"" help:"Update the rows matching a filter"`
	Delete      DeleteCmd      `cmd:"" help:"Delete the rows matching a filter"`
	Truncate    TruncateCmd    `cmd:"" help:"Remove every row and restart ids at 0"`
	Vacuum      VacuumCmd      `cmd:"" help:"Compact a table, renumbering rows densely"`
	Stats       StatsCmd       `cmd:"" help:"Print table statistics"`
	Dump        DumpCmd        `cmd:"" help:"Write every row as JSON lines"`
	Shell       ShellCmd       `cmd:"" help:"Interactive shell on one table"`
}

// config loads the config file and applies the global flag overrides.
func (g *Globals) config() (*pagedb.Config, error) {
	cfg, err := pagedb.LoadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Root != "" {
		cfg.Storage.Workdir = g.Root
	}
	if g.Sync {
		cfg.Storage.Sync = true
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	return cfg, nil
}

func (g *Globals) options() ([]pagedb.Option, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return []pagedb.Option{pagedb.WithConfig(cfg), pagedb.WithLogger(log)}, nil
}

func (g *Globals) open(name string) (*pagedb.Database, error) {
	opts, err := g.options()
	if err != nil {
		return nil, err
	}
	return pagedb.Open(name, opts...)
}

// withTable opens db/table, runs fn and closes the database, which
// persists the row id counter.
func (g *Globals) withTable(db, table string, fn func(*pagedb.Table) error) (err error) {
	d, err := g.open(db)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); err == nil {
			err = cerr
		}
	}()

	tbl, err := d.OpenTable(table)
	if err != nil {
		return err
	}
	return fn(tbl)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("pagedb"),
		kong.Description("pagedb - embedded page-file document store"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
