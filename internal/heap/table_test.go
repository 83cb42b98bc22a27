package heap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagedb/internal/dberr"
	"github.com/tuannm99/pagedb/internal/query"
	"github.com/tuannm99/pagedb/internal/record"
)

type memCounter map[string]uint32

func (m memCounter) SaveCounter(table string, id uint32) error {
	m[table] = id
	return nil
}

func usersSchema(t *testing.T) record.Schema {
	t.Helper()
	s, err := record.Schema{Cols: []record.Column{
		{Name: "name", Type: record.ColString, MaxLength: 32},
		{Name: "age", Type: record.ColInt},
		{Name: "active", Type: record.ColBool, Nullable: true},
		{Name: "score", Type: record.ColFloat, Nullable: true},
	}}.Normalize()
	require.NoError(t, err)
	return s
}

func testConfig(t *testing.T, s record.Schema, rowsPerPage, maxRows uint32) Config {
	t.Helper()
	return Config{
		Name:   "users",
		Dir:    filepath.Join(t.TempDir(), "users"),
		Fs:     afero.NewOsFs(),
		Schema: s,
		Settings: Settings{
			RowsPerPage: rowsPerPage,
			MaxRows:     maxRows,
			SlotSize:    record.MinSlotSize(s),
		},
		Counter: memCounter{},
	}
}

// newTestTable opens a table in a temp directory and returns it along with
// its config for reopen tests.
func newTestTable(t *testing.T, rowsPerPage, maxRows uint32) (*Table, Config) {
	t.Helper()
	cfg := testConfig(t, usersSchema(t), rowsPerPage, maxRows)
	tbl, err := Open(cfg)
	require.NoError(t, err)
	return tbl, cfg
}

func user(name string, age int) map[string]any {
	return map[string]any{"name": name, "age": age}
}

func ids(rows []record.Row) []uint32 {
	out := make([]uint32, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestTable_InsertFindRoundTrip(t *testing.T) {
	tbl, _ := newTestTable(t, 3, 100)

	id, err := tbl.Insert(map[string]any{"name": "Ann", "age": "41", "active": true, "score": 9.5})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)

	id, err = tbl.InsertValues([]any{"Bob", int64(7)})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	row, err := tbl.FindRow(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ann", "age": int64(41), "active": true, "score": 9.5}, row.Map(false))

	row, err = tbl.FindRow(1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name": "Bob", "age": int64(7), "active": nil, "score": nil, record.RowIDKey: int64(1),
	}, row.Map(true))
}

func TestTable_RowIDsIncrease(t *testing.T) {
	tbl, _ := newTestTable(t, 4, 100)

	var last uint32
	for i := 0; i < 10; i++ {
		id, err := tbl.Insert(user(fmt.Sprintf("u%d", i), i))
		require.NoError(t, err)
		if i > 0 {
			assert.Greater(t, id, last)
		}
		last = id
	}
	assert.Equal(t, uint32(10), tbl.CurrentRowID())

	st, err := tbl.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Pages)
	assert.Equal(t, int64(10*tbl.Settings.SlotSize), st.DataSize)
	assert.Equal(t, Placement{Page: 2, Slot: 1}, tbl.Placement(9))
}

func TestTable_ValidationLeavesStateUnchanged(t *testing.T) {
	tbl, _ := newTestTable(t, 4, 100)
	_, err := tbl.Insert(user("a", 1))
	require.NoError(t, err)

	bad := []map[string]any{
		{"name": "x"},
		{"name": "x", "age": "old"},
		{"name": "x", "age": true},
		{"name": "x", "age": 1, "nope": 1},
		{"name": string(make([]byte, 33)), "age": 1},
	}
	for _, in := range bad {
		_, err := tbl.Insert(in)
		require.ErrorIs(t, err, dberr.ErrValidationFailed)
	}
	assert.Equal(t, uint32(1), tbl.CurrentRowID())

	rows, err := tbl.Query(nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, ids(rows))
}

func TestTable_Capacity(t *testing.T) {
	tbl, _ := newTestTable(t, 2, 3)
	for i := 0; i < 3; i++ {
		_, err := tbl.Insert(user("a", i))
		require.NoError(t, err)
	}
	size, err := tbl.FS.Size()
	require.NoError(t, err)

	_, err = tbl.Insert(user("overflow", 4))
	require.ErrorIs(t, err, dberr.ErrCapacityExceeded)
	assert.Equal(t, uint32(3), tbl.CurrentRowID())

	size2, err := tbl.FS.Size()
	require.NoError(t, err)
	assert.Equal(t, size, size2)
}

func TestTable_InsertMany(t *testing.T) {
	tbl, _ := newTestTable(t, 2, 4)

	got, err := tbl.InsertMany([]map[string]any{
		user("a", 1),
		{"name": "b", "age": "x"},
		user("c", 3),
		user("d", 4),
		user("e", 5),
		user("f", 6),
	})
	assert.Equal(t, []uint32{0, 1, 2, 3}, got)

	var berr *BatchError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, 4, berr.Done)
	require.Len(t, berr.Failed, 2)
	assert.Equal(t, 1, berr.Failed[0].Index)
	assert.ErrorIs(t, berr.Failed[0], dberr.ErrValidationFailed)
	assert.Equal(t, 5, berr.Failed[1].Index)
	assert.ErrorIs(t, err, dberr.ErrCapacityExceeded)

	// rows before the failure stay inserted
	rows, err := tbl.Query(nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3}, ids(rows))
}

func TestTable_UpdateRow(t *testing.T) {
	tbl, _ := newTestTable(t, 4, 100)
	id, err := tbl.Insert(map[string]any{"name": "Ann", "age": 40, "active": true})
	require.NoError(t, err)

	require.NoError(t, tbl.UpdateRow(id, map[string]any{"AGE": 41}))
	row, err := tbl.FindRow(id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ann", "age": int64(41), "active": true, "score": nil}, row.Map(false))

	err = tbl.UpdateRow(id, map[string]any{"age": nil})
	require.ErrorIs(t, err, dberr.ErrValidationFailed)

	err = tbl.UpdateRow(5, map[string]any{"age": 1})
	require.ErrorIs(t, err, dberr.ErrNotFound)
	assert.Equal(t, uint32(1), tbl.CurrentRowID())
}

func TestTable_DeleteRow(t *testing.T) {
	tbl, _ := newTestTable(t, 2, 100)
	for i := 0; i < 5; i++ {
		_, err := tbl.Insert(user("u", i))
		require.NoError(t, err)
	}

	require.NoError(t, tbl.DeleteRow(2))

	_, err := tbl.FindRow(2)
	require.ErrorIs(t, err, dberr.ErrNotFound)
	require.ErrorIs(t, tbl.DeleteRow(2), dberr.ErrNotFound)
	require.ErrorIs(t, tbl.UpdateRow(2, map[string]any{"age": 1}), dberr.ErrNotFound)

	rows, err := tbl.Query(nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 3, 4}, ids(rows))

	// deleting keeps the page size
	size, err := tbl.FS.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5*tbl.Settings.SlotSize), size)
}

func peopleTable(t *testing.T) *Table {
	t.Helper()
	s, err := record.StringColumns("fname", "lname").Normalize()
	require.NoError(t, err)
	cfg := testConfig(t, s, 4, 100)
	tbl, err := Open(cfg)
	require.NoError(t, err)

	_, err = tbl.InsertMany([]map[string]any{
		{"fname": "John", "lname": "Smith"},
		{"fname": "Nicole", "lname": "Smith"},
		{"fname": "Kim", "lname": "Smith"},
		{"fname": "John", "lname": "Lee"},
		{"fname": "Nicole", "lname": "Lee"},
		{"fname": "Bart", "lname": "Lee"},
	})
	require.NoError(t, err)
	return tbl
}

func TestTable_QueryAndIn(t *testing.T) {
	tbl := peopleTable(t)

	rows, err := tbl.Query(query.Query{"fname": []string{"John", "Nicole"}, "lname": "Smith"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"fname": "John", "lname": "Smith"}, rows[0].Map(false))
	assert.Equal(t, map[string]any{"fname": "Nicole", "lname": "Smith"}, rows[1].Map(false))

	row, err := tbl.Find(query.Query{"lname": "Lee"})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), row.ID)

	row, err = tbl.FindByColumnValue("fname", "Bart")
	require.NoError(t, err)
	assert.Equal(t, uint32(5), row.ID)

	_, err = tbl.Find(query.Query{"fname": "Homer"})
	require.ErrorIs(t, err, dberr.ErrNotFound)

	_, err = tbl.Query(query.Query{"age": 1})
	require.ErrorIs(t, err, dberr.ErrValidationFailed)
}

func TestTable_UpdateDelete(t *testing.T) {
	tbl := peopleTable(t)

	n, err := tbl.Update(query.Query{"lname": "Lee"}, map[string]any{"lname": "Li"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := tbl.Query(query.Query{"lname": "Li"})
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 4, 5}, ids(rows))

	n, err = tbl.Update(query.Query{"lname": "Nobody"}, map[string]any{"lname": "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = tbl.Update(query.Query{"lname": "Li"}, map[string]any{"nope": "x"})
	require.ErrorIs(t, err, dberr.ErrValidationFailed)

	n, err = tbl.Delete(query.Query{"fname": "John"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err = tbl.Query(nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 4, 5}, ids(rows))

	n, err = tbl.Delete(query.Query{"fname": "John"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCursor_LazyRestartableEarlyStop(t *testing.T) {
	tbl := peopleTable(t)
	cur := tbl.Scan(nil)

	var first []uint32
	for row := range cur.Rows() {
		first = append(first, row.ID)
		if len(first) == 5 {
			break
		}
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, first)

	var all []uint32
	for row := range cur.Rows() {
		all = append(all, row.ID)
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, all)

	require.NoError(t, tbl.FS.RemoveAllPages())
	var none int
	for range cur.Rows() {
		none++
	}
	assert.Zero(t, none)
}

func TestCursor_SkipsCorrupt(t *testing.T) {
	tbl := peopleTable(t)

	f, err := os.OpenFile(tbl.FS.PagePath(0), os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0x7F}, int64(tbl.Settings.SlotSize+record.SlotHeaderSize+3))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cur := tbl.Scan(nil)
	var got []uint32
	for row := range cur.Rows() {
		got = append(got, row.ID)
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []uint32{0, 2, 3, 4, 5}, got)
	assert.Equal(t, 1, cur.Corrupt())

	_, err = tbl.FindRow(1)
	require.ErrorIs(t, err, dberr.ErrCorruptRecord)
}

func TestTable_Truncate(t *testing.T) {
	tbl, cfg := newTestTable(t, 2, 100)
	for i := 0; i < 5; i++ {
		_, err := tbl.Insert(user("u", i))
		require.NoError(t, err)
	}

	require.NoError(t, tbl.Truncate())
	assert.Equal(t, uint32(0), tbl.CurrentRowID())
	assert.Equal(t, uint32(0), cfg.Counter.(memCounter)["users"])
	assert.NoDirExists(t, filepath.Join(cfg.Dir, DroppedDir))

	rows, err := tbl.Query(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = tbl.FindRow(0)
	require.ErrorIs(t, err, dberr.ErrNotFound)

	id, err := tbl.Insert(user("new", 1))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)
}

func TestTruncate_CrashRecovery(t *testing.T) {
	t.Run("crash before pages detached", func(t *testing.T) {
		tbl, cfg := newTestTable(t, 2, 100)
		for i := 0; i < 5; i++ {
			_, err := tbl.Insert(user("u", i))
			require.NoError(t, err)
		}
		// counter already saved as 0, pages untouched
		require.NoError(t, cfg.Counter.SaveCounter("users", 0))

		cfg.CurrentRowID = 0
		re, err := Open(cfg)
		require.NoError(t, err)
		assert.Equal(t, uint32(5), re.CurrentRowID())
		rows, err := re.Query(nil)
		require.NoError(t, err)
		assert.Len(t, rows, 5)
	})

	t.Run("crash after pages detached", func(t *testing.T) {
		tbl, cfg := newTestTable(t, 2, 100)
		for i := 0; i < 5; i++ {
			_, err := tbl.Insert(user("u", i))
			require.NoError(t, err)
		}
		require.NoError(t, cfg.Counter.SaveCounter("users", 0))
		require.NoError(t, os.Rename(filepath.Join(cfg.Dir, PagesDir), filepath.Join(cfg.Dir, DroppedDir)))

		cfg.CurrentRowID = 0
		re, err := Open(cfg)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), re.CurrentRowID())
		assert.NoDirExists(t, filepath.Join(cfg.Dir, DroppedDir))

		id, err := re.Insert(user("new", 1))
		require.NoError(t, err)
		assert.Equal(t, uint32(0), id)
	})
}

func TestOpen_ResumesRowIDs(t *testing.T) {
	tbl, cfg := newTestTable(t, 3, 100)
	for i := 0; i < 7; i++ {
		_, err := tbl.Insert(user("u", i))
		require.NoError(t, err)
	}
	require.NoError(t, tbl.DeleteRow(6))

	// counter never persisted: pages decide
	cfg.CurrentRowID = 0
	re, err := Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), re.CurrentRowID())

	// a persisted counter ahead of the pages wins
	cfg.CurrentRowID = 12
	re, err = Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), re.CurrentRowID())

	require.NoError(t, re.Close())
	assert.Equal(t, uint32(12), cfg.Counter.(memCounter)["users"])
}

func TestOpen_BadSettings(t *testing.T) {
	s := usersSchema(t)

	cfg := testConfig(t, s, 0, 10)
	_, err := Open(cfg)
	require.ErrorIs(t, err, dberr.ErrValidationFailed)

	cfg = testConfig(t, s, 10, 0)
	_, err = Open(cfg)
	require.ErrorIs(t, err, dberr.ErrValidationFailed)

	cfg = testConfig(t, s, 10, 10)
	cfg.Settings.SlotSize = 8
	_, err = Open(cfg)
	require.ErrorIs(t, err, dberr.ErrValidationFailed)
}

func TestBatchError_Message(t *testing.T) {
	berr := &BatchError{Op: "delete", Done: 2}
	require.NoError(t, berr.orNil())

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		berr.add(i, boom)
	}
	err := berr.orNil()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "delete: 2 applied, 5 failed; row 0: boom; row 1: boom; row 2: boom; ...", err.Error())
}
