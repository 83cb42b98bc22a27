package heap

import (
	"errors"
	"io"
	"path/filepath"

	"github.com/tuannm99/pagedb/internal/alias/util"
	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/record"
	"github.com/tuannm99/pagedb/internal/storage"
)

type VacuumStats struct {
	Survivors int `json:"survivors"`
	Removed   int `json:"removed"`
	Corrupt   int `json:"corrupt"`
}

func (t *Table) stagingDir() string { return filepath.Join(t.Dir, StagingDir) }
func (t *Table) retiredDir() string { return filepath.Join(t.Dir, RetiredDir) }

// Recover settles a vacuum that was interrupted by a crash.
func (t *Table) Recover() (storage.SwapState, error) {
	return storage.RecoverSwap(t.fs, t.FS.Dir, t.stagingDir(), t.retiredDir())
}

// Vacuum rewrites the live rows densely into a staging page set, in their
// original order, then swaps it in place of the current pages. The current
// pages stay untouched until the staging set is complete.
func (t *Table) Vacuum() (VacuumStats, error) {
	staging := storage.LocalFileSet{Fs: t.fs, Dir: t.stagingDir(), Base: storage.PageBase}
	if err := t.fs.RemoveAll(staging.Dir); err != nil {
		return VacuumStats{}, dberr.IO("vacuum: clear staging", err)
	}
	if err := t.fs.MkdirAll(staging.Dir, storage.FileMode0755); err != nil {
		return VacuumStats{}, dberr.IO("vacuum: create staging", err)
	}

	stats, err := t.compact(staging)
	if err != nil {
		if rerr := t.fs.RemoveAll(staging.Dir); rerr != nil {
			t.log.Warn("vacuum:: remove staging", "err", rerr)
		}
		return stats, err
	}

	if err := storage.SwapDirs(t.fs, t.FS.Dir, staging.Dir, t.retiredDir()); err != nil {
		return stats, err
	}
	t.currentRowID = uint32(stats.Survivors)
	if err := t.saveCounter(); err != nil {
		return stats, err
	}

	t.log.Info("vacuum:: done", "survivors", stats.Survivors, "removed", stats.Removed, "corrupt", stats.Corrupt)
	return stats, nil
}

func (t *Table) compact(staging storage.LocalFileSet) (VacuumStats, error) {
	var stats VacuumStats
	pages, err := t.FS.ListPages()
	if err != nil {
		return stats, err
	}

	var next uint32
	for _, pageNo := range pages {
		pr, err := t.SM.OpenPage(t.FS, pageNo)
		if err != nil {
			return stats, err
		}
		err = t.compactPage(pr, staging, &next, &stats)
		util.CloseFileFunc(pr)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (t *Table) compactPage(pr *storage.PageReader, staging storage.LocalFileSet, next *uint32, stats *VacuumStats) error {
	for {
		rec, err := pr.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, record.ErrTombstone):
			stats.Removed++
			continue
		case errors.Is(err, dberr.ErrNotFound):
			continue
		case errors.Is(err, dberr.ErrCorruptRecord):
			stats.Corrupt++
			t.log.Warn("vacuum:: drop corrupt slot", "page", pr.PageNo(), "row", rec.ID, "err", err)
			continue
		case err != nil:
			return err
		}

		if err := t.SM.Write(staging, *next, rec.Values); err != nil {
			return err
		}
		*next++
		stats.Survivors++
	}
}
