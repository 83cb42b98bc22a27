package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/record"
)

func newTestStore(t *testing.T, rowsPerPage uint32) (*PageStore, LocalFileSet) {
	t.Helper()

	schema, err := record.Schema{Cols: []record.Column{
		{Name: "name", Type: record.ColString, MaxLength: 16},
		{Name: "age", Type: record.ColInt},
	}}.Normalize()
	require.NoError(t, err)

	codec, err := record.NewCodec(schema, record.MinSlotSize(schema))
	require.NoError(t, err)

	ps, err := NewPageStore(codec, rowsPerPage, false, nil)
	require.NoError(t, err)

	fs := LocalFileSet{Fs: afero.NewOsFs(), Dir: filepath.Join(t.TempDir(), "pages"), Base: PageBase}
	return ps, fs
}

func row(name string, age int64) []record.Value {
	return []record.Value{record.String(name), record.Int(age)}
}

func TestPageStore_Locate(t *testing.T) {
	ps, _ := newTestStore(t, 10)

	page, off := ps.Locate(0)
	assert.Equal(t, uint32(0), page)
	assert.Equal(t, uint32(0), off)

	page, off = ps.Locate(27)
	assert.Equal(t, uint32(2), page)
	assert.Equal(t, uint32(7), off)
}

func TestPageStore_WriteReadTombstone(t *testing.T) {
	ps, fs := newTestStore(t, 4)

	for i := uint32(0); i < 6; i++ {
		require.NoError(t, ps.Write(fs, i, row("bob", int64(i))))
	}

	n, err := ps.PageCount(fs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := ps.Read(fs, 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), rec.ID)
	assert.Equal(t, "bob", rec.Values[0].Str())
	assert.Equal(t, int64(5), rec.Values[1].Int())

	// update in place keeps the page size
	info, err := os.Stat(fs.PagePath(0))
	require.NoError(t, err)
	require.NoError(t, ps.Write(fs, 1, row("george", 99)))
	info2, err := os.Stat(fs.PagePath(0))
	require.NoError(t, err)
	assert.Equal(t, info.Size(), info2.Size())
	assert.Equal(t, int64(4*ps.Codec.SlotSize), info2.Size())

	require.NoError(t, ps.Tombstone(fs, 1))
	_, err = ps.Read(fs, 1)
	require.ErrorIs(t, err, record.ErrTombstone)
	require.ErrorIs(t, err, dberr.ErrNotFound)
}

func TestPageStore_ReadAbsent(t *testing.T) {
	ps, fs := newTestStore(t, 4)
	require.NoError(t, ps.Write(fs, 0, row("a", 1)))

	_, err := ps.Read(fs, 2)
	require.ErrorIs(t, err, ErrSlotOutOfRange)
	require.ErrorIs(t, err, dberr.ErrNotFound)

	_, err = ps.Read(fs, 9)
	require.ErrorIs(t, err, ErrPageMissing)
	require.ErrorIs(t, err, dberr.ErrNotFound)

	// gap inside the page reads as never written
	require.NoError(t, ps.Write(fs, 3, row("d", 4)))
	_, err = ps.Read(fs, 2)
	require.ErrorIs(t, err, record.ErrEmptySlot)
}

func TestPageStore_CorruptSlot(t *testing.T) {
	ps, fs := newTestStore(t, 4)
	require.NoError(t, ps.Write(fs, 0, row("a", 1)))
	require.NoError(t, ps.Write(fs, 1, row("b", 2)))

	// scribble over the payload of row 1
	f, err := os.OpenFile(fs.PagePath(0), os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF, 0xFF}, int64(ps.Codec.SlotSize+record.SlotHeaderSize+2))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = ps.Read(fs, 1)
	require.ErrorIs(t, err, dberr.ErrCorruptRecord)

	_, err = ps.Read(fs, 0)
	require.NoError(t, err)

	// truncated tail slot
	require.NoError(t, os.Truncate(fs.PagePath(0), int64(ps.Codec.SlotSize+3)))
	_, err = ps.Read(fs, 1)
	require.ErrorIs(t, err, ErrShortSlot)
}

func TestPageReader_Sequential(t *testing.T) {
	ps, fs := newTestStore(t, 4)
	require.NoError(t, ps.Write(fs, 4, row("a", 1)))
	require.NoError(t, ps.Write(fs, 5, row("b", 2)))
	require.NoError(t, ps.Write(fs, 6, row("c", 3)))
	require.NoError(t, ps.Tombstone(fs, 5))

	pr, err := ps.OpenPage(fs, 1)
	require.NoError(t, err)
	defer func() { _ = pr.Close() }()

	var live []uint32
	var absent int
	for {
		rec, err := pr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, dberr.ErrNotFound) {
			absent++
			continue
		}
		require.NoError(t, err)
		live = append(live, rec.ID)
	}
	assert.Equal(t, []uint32{4, 6}, live)
	assert.Equal(t, 1, absent)
}

func TestPageStore_HighestRowID(t *testing.T) {
	ps, fs := newTestStore(t, 4)

	_, found, err := ps.HighestRowID(fs)
	require.NoError(t, err)
	assert.False(t, found)

	for i := uint32(0); i < 7; i++ {
		require.NoError(t, ps.Write(fs, i, row("x", int64(i))))
	}
	require.NoError(t, ps.Tombstone(fs, 6))

	id, found, err := ps.HighestRowID(fs)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(6), id)
}

func TestNewPageStore_BadSettings(t *testing.T) {
	schema := record.StringColumns("a")
	schema, err := schema.Normalize()
	require.NoError(t, err)
	codec, err := record.NewCodec(schema, record.MinSlotSize(schema))
	require.NoError(t, err)

	_, err = NewPageStore(codec, 0, false, nil)
	require.ErrorIs(t, err, ErrBadSettings)
	require.ErrorIs(t, err, dberr.ErrValidationFailed)
}
