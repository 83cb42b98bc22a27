package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pagedb/internal/dberr"
)

func newTestCodec(t *testing.T) Codec {
	t.Helper()
	schema := makeTestSchema()
	c, err := NewCodec(schema, MinSlotSize(schema))
	require.NoError(t, err)
	return c
}

func TestCodec_EncodeDecode(t *testing.T) {
	c := newTestCodec(t)
	values := []Value{Int(7), Bool(false), Float(0.25), String("kim")}

	buf, err := c.Encode(12, values)
	require.NoError(t, err)
	require.Len(t, buf, c.SlotSize)

	rec, err := c.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), rec.ID)
	require.Len(t, rec.Values, 4)
	for i := range values {
		assert.True(t, values[i].Equal(rec.Values[i]))
	}

	id, written, err := c.SlotID(buf)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, uint32(12), id)
}

func TestCodec_Tombstone(t *testing.T) {
	c := newTestCodec(t)

	rec, err := c.Decode(c.EncodeTombstone(5))
	require.ErrorIs(t, err, ErrTombstone)
	require.ErrorIs(t, err, dberr.ErrNotFound)
	require.NotErrorIs(t, err, dberr.ErrCorruptRecord)
	assert.Equal(t, uint32(5), rec.ID)

	id, written, err := c.SlotID(c.EncodeTombstone(5))
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, uint32(5), id)
}

func TestCodec_EmptySlot(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Decode(make([]byte, c.SlotSize))
	require.ErrorIs(t, err, ErrEmptySlot)
	require.ErrorIs(t, err, dberr.ErrNotFound)

	_, written, err := c.SlotID(make([]byte, c.SlotSize))
	require.NoError(t, err)
	assert.False(t, written)
}

func TestCodec_Corrupt(t *testing.T) {
	c := newTestCodec(t)
	good, err := c.Encode(3, []Value{Int(1), Bool(true), Float(1), String("x")})
	require.NoError(t, err)

	flip := func(off int) []byte {
		b := append([]byte{}, good...)
		b[off] ^= 0xFF
		return b
	}

	cases := map[string][]byte{
		"truncated":        good[:len(good)-1],
		"bad status":       append([]byte{0x7F}, good[1:]...),
		"payload bit flip": flip(SlotHeaderSize + 1),
		"row id bit flip":  flip(offRowID),
		"checksum flip":    flip(offChecksum),
		"garbage in empty": append(make([]byte, c.SlotSize-1), 0x01),
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(buf)
			require.ErrorIs(t, err, dberr.ErrCorruptRecord)
			require.NotErrorIs(t, err, dberr.ErrNotFound)
		})
	}
}

func TestNewCodec_SlotTooSmall(t *testing.T) {
	schema := makeTestSchema()
	_, err := NewCodec(schema, MinSlotSize(schema)-1)
	require.ErrorIs(t, err, dberr.ErrValidationFailed)
}
