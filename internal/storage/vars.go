package storage

import (
	"fmt"
	"math"

	"github.com/tuannm99/pagedb/internal/dberr"
)

const (
	FileMode0644 = 0o644 // rw-r--r--
	FileMode0755 = 0o755 // rwxr-xr-x

	// PageBase is the file name prefix of table pages: page.0, page.1, ...
	PageBase = "page"

	// MaxRowsPerPage keeps a page file well inside a single ReadAt/WriteAt range.
	MaxRowsPerPage = math.MaxUint16
)

var (
	ErrSlotOutOfRange = fmt.Errorf("%w: storage: slot beyond page extent", dberr.ErrNotFound)
	ErrPageMissing    = fmt.Errorf("%w: storage: page file missing", dberr.ErrNotFound)
	ErrShortSlot      = fmt.Errorf("%w: storage: partial slot at end of page", dberr.ErrCorruptRecord)
	ErrRowIDMismatch  = fmt.Errorf("%w: storage: slot holds another row id", dberr.ErrCorruptRecord)
	ErrBadSettings    = fmt.Errorf("%w: storage: invalid page settings", dberr.ErrValidationFailed)
)
