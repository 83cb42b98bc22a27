package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/tuannm99/pagedb/internal/dberr"
)

type FileSet interface {
	OpenPage(pageNo uint32, flag int) (afero.File, error)
	ListPages() ([]uint32, error)
}

var _ FileSet = (*LocalFileSet)(nil)

// LocalFileSet is a directory of page files: Base.0, Base.1, ...
type LocalFileSet struct {
	Fs   afero.Fs
	Dir  string
	Base string
}

// PageFileName returns the page file name for pageNo.
func PageFileName(base string, pageNo uint32) string {
	return fmt.Sprintf("%s.%d", base, pageNo)
}

func (lfs LocalFileSet) PagePath(pageNo uint32) string {
	return filepath.Join(lfs.Dir, PageFileName(lfs.Base, pageNo))
}

// OpenPage opens one page file. The directory is created on demand when
// flag carries os.O_CREATE.
func (lfs LocalFileSet) OpenPage(pageNo uint32, flag int) (afero.File, error) {
	if flag&os.O_CREATE != 0 {
		if err := lfs.Fs.MkdirAll(lfs.Dir, FileMode0755); err != nil {
			return nil, err
		}
	}
	return lfs.Fs.OpenFile(lfs.PagePath(pageNo), flag, FileMode0644)
}

// ListPages scans lfs.Dir and returns all page numbers for lfs.Base, ascending.
// A missing directory has no pages.
func (lfs LocalFileSet) ListPages() ([]uint32, error) {
	ents, err := afero.ReadDir(lfs.Fs, lfs.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, dberr.IO("list pages", err)
	}

	pages := make([]uint32, 0, len(ents))
	prefix := lfs.Base + "."
	for _, e := range ents {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(e.Name(), prefix), 10, 32)
		if err != nil {
			continue
		}
		pages = append(pages, uint32(n))
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	return pages, nil
}

// Size is the total byte size of all page files.
func (lfs LocalFileSet) Size() (int64, error) {
	pages, err := lfs.ListPages()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range pages {
		info, err := lfs.Fs.Stat(lfs.PagePath(n))
		if err != nil {
			return 0, dberr.IO("stat page", err)
		}
		total += info.Size()
	}
	return total, nil
}

// RemoveAllPages removes Base.0, Base.1, ... (robust: scan dir).
func (lfs LocalFileSet) RemoveAllPages() error {
	pages, err := lfs.ListPages()
	if err != nil {
		return err
	}
	for _, n := range pages {
		if err := lfs.Fs.Remove(lfs.PagePath(n)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return dberr.IO("remove page", err)
		}
	}
	return nil
}

// SwapState tells what RecoverSwap found on disk.
type SwapState int

const (
	SwapClean      SwapState = iota // nothing to do
	SwapDiscarded                   // staging left behind, pre-swap pages kept
	SwapRolledBack                  // crashed between renames, retired pages restored
	SwapCompleted                   // swap done, retired pages removed
)

func (s SwapState) String() string {
	switch s {
	case SwapClean:
		return "clean"
	case SwapDiscarded:
		return "discarded"
	case SwapRolledBack:
		return "rolled_back"
	case SwapCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// SwapDirs replaces live with staging: live -> retired, staging -> live,
// then removes retired. Each step is a single directory rename, so a crash
// leaves a state RecoverSwap can classify.
func SwapDirs(fs afero.Fs, live, staging, retired string) error {
	if err := fs.RemoveAll(retired); err != nil {
		return dberr.IO("swap: clear retired", err)
	}
	liveExists, err := afero.DirExists(fs, live)
	if err != nil {
		return dberr.IO("swap: stat live", err)
	}
	if liveExists {
		if err := fs.Rename(live, retired); err != nil {
			return dberr.IO("swap: retire live", err)
		}
	}
	if err := fs.Rename(staging, live); err != nil {
		if liveExists {
			// put the old pages back so the table stays readable
			_ = fs.Rename(retired, live)
		}
		return dberr.IO("swap: promote staging", err)
	}
	if err := fs.RemoveAll(retired); err != nil {
		return dberr.IO("swap: remove retired", err)
	}
	return nil
}

// RecoverSwap brings a table directory back to a single page set after an
// interrupted SwapDirs (or an interrupted staging pass).
func RecoverSwap(fs afero.Fs, live, staging, retired string) (SwapState, error) {
	hasLive, err := afero.DirExists(fs, live)
	if err != nil {
		return SwapClean, dberr.IO("recover: stat live", err)
	}
	hasStaging, err := afero.DirExists(fs, staging)
	if err != nil {
		return SwapClean, dberr.IO("recover: stat staging", err)
	}
	hasRetired, err := afero.DirExists(fs, retired)
	if err != nil {
		return SwapClean, dberr.IO("recover: stat retired", err)
	}

	switch {
	case hasRetired && !hasLive:
		if err := fs.Rename(retired, live); err != nil {
			return SwapClean, dberr.IO("recover: restore retired", err)
		}
		if err := fs.RemoveAll(staging); err != nil {
			return SwapClean, dberr.IO("recover: remove staging", err)
		}
		return SwapRolledBack, nil

	case hasRetired && hasLive:
		if err := fs.RemoveAll(retired); err != nil {
			return SwapClean, dberr.IO("recover: remove retired", err)
		}
		if hasStaging {
			if err := fs.RemoveAll(staging); err != nil {
				return SwapClean, dberr.IO("recover: remove staging", err)
			}
		}
		return SwapCompleted, nil

	case hasStaging:
		if err := fs.RemoveAll(staging); err != nil {
			return SwapClean, dberr.IO("recover: remove staging", err)
		}
		return SwapDiscarded, nil
	}
	return SwapClean, nil
}
