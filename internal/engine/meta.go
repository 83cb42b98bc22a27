package engine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/heap"
	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
)

const (
	DatabaseMetaFile = "database.json"
	TableMetaFile    = "table.json"

	StorageFormatVersion = 1
)

type DatabaseMeta struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	StorageFormatVersion int       `json:"storage_format_version"`
	RowsPerPage          uint32    `json:"rows_per_page"`
	MaxRows              uint32    `json:"max_rows"`
	CreatedAt            time.Time `json:"created_at"`
}

type TableMeta struct {
	Name         string          `json:"name"`
	Columns      []record.Column `json:"columns"`
	Settings     heap.Settings   `json:"settings"`
	CurrentRowID uint32          `json:"current_row_id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (m *TableMeta) Schema() record.Schema {
	return record.Schema{Cols: m.Columns}
}

// writeJSON replaces path through a temp file and a rename, so a reader
// sees either the old or the new document.
func writeJSON(fs afero.Fs, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, storage.FileMode0644); err != nil {
		return dberr.IO("write meta", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return dberr.IO("rename meta", err)
	}
	return nil
}

func readJSON(fs afero.Fs, path string, v any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return dberr.IO("read meta", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", dberr.ErrCorruptRecord, path, err)
	}
	return nil
}

func (db *Database) tableDir(name string) string {
	return filepath.Join(db.Dir, name)
}

func (db *Database) tableMetaPath(name string) string {
	return filepath.Join(db.tableDir(name), TableMetaFile)
}

// writeTableMeta overwrites the meta file for a given table.
func (db *Database) writeTableMeta(meta *TableMeta) error {
	meta.UpdatedAt = time.Now().UTC()
	return writeJSON(db.fs, db.tableMetaPath(meta.Name), meta)
}

// readTableMeta loads table metadata from JSON file.
func (db *Database) readTableMeta(name string) (*TableMeta, error) {
	var meta TableMeta
	if err := readJSON(db.fs, db.tableMetaPath(name), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func metaExists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
