package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/tuannm99/pagedb/internal/alias/util"
	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/record"
)

// PageStore maps a row id -> (page file, slot offset) and reads/writes
// single fixed-size slots there. It keeps no file handle open between calls.
type PageStore struct {
	Codec       record.Codec
	RowsPerPage uint32
	// Sync fsyncs the page file after every slot write.
	Sync bool

	log *slog.Logger
}

func NewPageStore(codec record.Codec, rowsPerPage uint32, sync bool, log *slog.Logger) (*PageStore, error) {
	if rowsPerPage == 0 || rowsPerPage > MaxRowsPerPage {
		return nil, fmt.Errorf("%w: rows_per_page %d", ErrBadSettings, rowsPerPage)
	}
	if codec.SlotSize <= record.SlotHeaderSize {
		return nil, fmt.Errorf("%w: slot_size %d", ErrBadSettings, codec.SlotSize)
	}
	if log == nil {
		log = slog.Default()
	}
	return &PageStore{Codec: codec, RowsPerPage: rowsPerPage, Sync: sync, log: log}, nil
}

// Locate returns the page number and the slot index inside that page.
func (ps *PageStore) Locate(rowID uint32) (pageNo uint32, offset uint32) {
	return rowID / ps.RowsPerPage, rowID % ps.RowsPerPage
}

func (ps *PageStore) byteOffset(offset uint32) int64 {
	return int64(offset) * int64(ps.Codec.SlotSize)
}

// ReadSlot reads the raw slot bytes of rowID. A missing page file or a slot
// past the end of the file is ErrNotFound; a partial slot is corrupt.
func (ps *PageStore) ReadSlot(fs FileSet, rowID uint32) ([]byte, error) {
	pageNo, offset := ps.Locate(rowID)
	f, err := fs.OpenPage(pageNo, os.O_RDONLY)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: row %d", ErrPageMissing, rowID)
		}
		return nil, dberr.IO("open page", err)
	}
	defer util.CloseFileFunc(f)

	buf := make([]byte, ps.Codec.SlotSize)
	n, err := f.ReadAt(buf, ps.byteOffset(offset))
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF) && n == 0:
		return nil, fmt.Errorf("%w: row %d", ErrSlotOutOfRange, rowID)
	case errors.Is(err, io.EOF):
		return nil, fmt.Errorf("%w: row %d", ErrShortSlot, rowID)
	default:
		return nil, dberr.IO("read slot", err)
	}
}

// Read returns the decoded record of rowID. Tombstoned and never-written
// slots are ErrNotFound, malformed ones ErrCorruptRecord.
func (ps *PageStore) Read(fs FileSet, rowID uint32) (record.Record, error) {
	buf, err := ps.ReadSlot(fs, rowID)
	if err != nil {
		return record.Record{}, err
	}
	rec, err := ps.Codec.Decode(buf)
	if err != nil {
		return rec, err
	}
	if rec.ID != rowID {
		return record.Record{}, fmt.Errorf("%w: want %d, got %d", ErrRowIDMismatch, rowID, rec.ID)
	}
	return rec, nil
}

// Write encodes values at rowID. The page file is created when missing; a
// slot past the current extent extends the file, any other write happens in
// place and leaves the file size unchanged.
func (ps *PageStore) Write(fs FileSet, rowID uint32, values []record.Value) error {
	buf, err := ps.Codec.Encode(rowID, values)
	if err != nil {
		return err
	}
	return ps.WriteSlot(fs, rowID, buf)
}

// Tombstone overwrites an existing slot with the deleted-row sentinel.
func (ps *PageStore) Tombstone(fs FileSet, rowID uint32) error {
	return ps.WriteSlot(fs, rowID, ps.Codec.EncodeTombstone(rowID))
}

// WriteSlot writes exactly one slot (SlotSize bytes) at the location
// computed from rowID.
func (ps *PageStore) WriteSlot(fs FileSet, rowID uint32, slot []byte) error {
	if len(slot) != ps.Codec.SlotSize {
		return fmt.Errorf("slot must be exactly %d bytes", ps.Codec.SlotSize)
	}
	pageNo, offset := ps.Locate(rowID)
	f, err := fs.OpenPage(pageNo, os.O_RDWR|os.O_CREATE)
	if err != nil {
		return dberr.IO("open page", err)
	}
	if offset == 0 {
		ps.log.Debug("page:: write first slot", "page", pageNo, "row", rowID)
	}

	n, err := f.WriteAt(slot, ps.byteOffset(offset))
	if err == nil && n != len(slot) {
		err = io.ErrShortWrite
	}
	if err == nil && ps.Sync {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return dberr.IO("write slot", err)
}

// PageCount is the number of page files currently present.
func (ps *PageStore) PageCount(fs FileSet) (int, error) {
	pages, err := fs.ListPages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// HighestRowID finds the highest row id written (live or tombstoned) by
// walking pages from the last one down. Corrupt slots are ignored.
func (ps *PageStore) HighestRowID(fs FileSet) (id uint32, found bool, err error) {
	pages, err := fs.ListPages()
	if err != nil {
		return 0, false, err
	}
	for i := len(pages) - 1; i >= 0; i-- {
		pr, err := ps.OpenPage(fs, pages[i])
		if err != nil {
			return 0, false, err
		}
		for {
			want, slot, err := pr.NextSlot()
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, dberr.ErrCorruptRecord) {
				continue
			}
			if err != nil {
				util.CloseFileFunc(pr)
				return 0, false, err
			}
			got, written, err := ps.Codec.SlotID(slot)
			if err != nil || !written || got != want {
				continue
			}
			id, found = got, true
		}
		util.CloseFileFunc(pr)
		if found {
			return id, true, nil
		}
	}
	return 0, false, nil
}

// OpenPage opens a sequential reader over every slot of one page file.
func (ps *PageStore) OpenPage(fs FileSet, pageNo uint32) (*PageReader, error) {
	f, err := fs.OpenPage(pageNo, os.O_RDONLY)
	if err != nil {
		return nil, dberr.IO("open page", err)
	}
	return &PageReader{
		f:      f,
		r:      bufio.NewReader(f),
		codec:  ps.Codec,
		pageNo: pageNo,
		first:  pageNo * ps.RowsPerPage,
		limit:  ps.RowsPerPage,
	}, nil
}

// PageReader streams the slots of one page file through a single handle.
type PageReader struct {
	f      afero.File
	r      *bufio.Reader
	codec  record.Codec
	pageNo uint32
	first  uint32 // row id of slot 0
	limit  uint32
	next   uint32
	done   bool
}

func (pr *PageReader) PageNo() uint32 { return pr.pageNo }

// NextSlot returns the row id a slot must hold and its raw bytes. At the end
// of the page it returns io.EOF; a trailing partial slot is ErrShortSlot.
func (pr *PageReader) NextSlot() (uint32, []byte, error) {
	if pr.done || pr.next >= pr.limit {
		return 0, nil, io.EOF
	}
	want := pr.first + pr.next
	buf := make([]byte, pr.codec.SlotSize)
	_, err := io.ReadFull(pr.r, buf)
	switch {
	case err == nil:
		pr.next++
		return want, buf, nil
	case errors.Is(err, io.EOF):
		pr.done = true
		return 0, nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		pr.done = true
		return want, nil, fmt.Errorf("%w: row %d", ErrShortSlot, want)
	default:
		pr.done = true
		return want, nil, dberr.IO("read page", err)
	}
}

// Next decodes the next slot. Absent slots come back as errors matching
// dberr.ErrNotFound, malformed ones as dberr.ErrCorruptRecord; both leave
// the reader usable. io.EOF ends the page.
func (pr *PageReader) Next() (record.Record, error) {
	want, buf, err := pr.NextSlot()
	if err != nil {
		return record.Record{ID: want}, err
	}
	rec, err := pr.codec.Decode(buf)
	if err != nil {
		return record.Record{ID: want}, err
	}
	if rec.ID != want {
		return record.Record{ID: want}, fmt.Errorf("%w: want %d, got %d", ErrRowIDMismatch, want, rec.ID)
	}
	return rec, nil
}

func (pr *PageReader) Close() error {
	return pr.f.Close()
}
