package record

import (
	"bytes"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/tuannm99/pagedb/internal/alias/bx"
	"github.com/tuannm99/pagedb/internal/dberr"
)

// Slot layout (fixed SlotSize bytes):
//
//	[0]      status   (empty / live / tombstone)
//	[1:5]    row id   u32 LE
//	[5:7]    payload length u16 LE
//	[7:11]   checksum: blake3(status|row id|length|payload)[:4]
//	[11:]    payload, zero padded
const (
	offStatus   = 0
	offRowID    = 1
	offLength   = 5
	offChecksum = 7

	SlotHeaderSize = 11
	checksumSize   = 4
)

const (
	slotEmpty     byte = 0x00
	slotLive      byte = 0x01
	slotTombstone byte = 0x02
)

var (
	// Both mean "absent" and match dberr.ErrNotFound.
	ErrTombstone = fmt.Errorf("%w: slot deleted", dberr.ErrNotFound)
	ErrEmptySlot = fmt.Errorf("%w: slot never written", dberr.ErrNotFound)

	ErrBadSlot        = fmt.Errorf("%w: slot", dberr.ErrCorruptRecord)
	ErrRecordTooLarge = fmt.Errorf("%w: record exceeds slot size", dberr.ErrValidationFailed)
)

// Record is a decoded slot: its row id and the column values.
type Record struct {
	ID     uint32
	Values []Value
}

// Codec encodes rows of one schema into fixed-size slots.
type Codec struct {
	Schema   Schema
	SlotSize int
}

// MinSlotSize is the smallest slot that fits every row of s.
func MinSlotSize(s Schema) int {
	return SlotHeaderSize + s.MaxRowSize()
}

func NewCodec(s Schema, slotSize int) (Codec, error) {
	if minSize := MinSlotSize(s); slotSize < minSize {
		return Codec{}, dberr.Validation("slot size %d below minimum %d for schema", slotSize, minSize)
	}
	return Codec{Schema: s, SlotSize: slotSize}, nil
}

func (c Codec) Encode(rowID uint32, values []Value) ([]byte, error) {
	payload, err := EncodeRow(c.Schema, values)
	if err != nil {
		return nil, err
	}
	if SlotHeaderSize+len(payload) > c.SlotSize {
		return nil, ErrRecordTooLarge
	}
	return c.seal(slotLive, rowID, payload), nil
}

// EncodeTombstone returns the sentinel slot for a deleted row. The row id is
// kept so the id counter can be recovered from disk.
func (c Codec) EncodeTombstone(rowID uint32) []byte {
	return c.seal(slotTombstone, rowID, nil)
}

func (c Codec) seal(status byte, rowID uint32, payload []byte) []byte {
	buf := make([]byte, c.SlotSize)
	buf[offStatus] = status
	bx.PutU32(buf[offRowID:], rowID)
	bx.PutU16(buf[offLength:], uint16(len(payload)))
	copy(buf[SlotHeaderSize:], payload)
	copy(buf[offChecksum:], checksum(buf[:offChecksum], payload))
	return buf
}

func checksum(head, payload []byte) []byte {
	h := blake3.New()
	_, _ = h.Write(head)
	_, _ = h.Write(payload)
	return h.Sum(nil)[:checksumSize]
}

// Decode reads one slot. A tombstone returns the row id with ErrTombstone;
// a never-written slot returns ErrEmptySlot; anything malformed returns an
// error matching dberr.ErrCorruptRecord.
func (c Codec) Decode(buf []byte) (Record, error) {
	id, status, payload, err := c.open(buf)
	if err != nil {
		return Record{}, err
	}
	switch status {
	case slotEmpty:
		return Record{}, ErrEmptySlot
	case slotTombstone:
		return Record{ID: id}, ErrTombstone
	}

	values, err := DecodeRow(c.Schema, payload)
	if err != nil {
		return Record{ID: id}, fmt.Errorf("%w: row %d: %w", ErrBadSlot, id, err)
	}
	return Record{ID: id, Values: values}, nil
}

// SlotID reports the row id stored in a written slot (live or tombstone)
// without decoding the payload. written is false for empty slots.
func (c Codec) SlotID(buf []byte) (id uint32, written bool, err error) {
	id, status, _, err := c.open(buf)
	if err != nil {
		return 0, false, err
	}
	return id, status != slotEmpty, nil
}

func (c Codec) open(buf []byte) (id uint32, status byte, payload []byte, err error) {
	if len(buf) != c.SlotSize {
		return 0, 0, nil, fmt.Errorf("%w: size %d, want %d", ErrBadSlot, len(buf), c.SlotSize)
	}
	status = buf[offStatus]
	if status == slotEmpty {
		if !allZero(buf) {
			return 0, 0, nil, fmt.Errorf("%w: garbage in empty slot", ErrBadSlot)
		}
		return 0, slotEmpty, nil, nil
	}
	if status != slotLive && status != slotTombstone {
		return 0, 0, nil, fmt.Errorf("%w: status 0x%02x", ErrBadSlot, status)
	}

	id = bx.U32(buf[offRowID:])
	n := int(bx.U16(buf[offLength:]))
	if SlotHeaderSize+n > len(buf) || (status == slotTombstone && n != 0) {
		return 0, 0, nil, fmt.Errorf("%w: row %d: payload length %d", ErrBadSlot, id, n)
	}
	payload = buf[SlotHeaderSize : SlotHeaderSize+n]
	if !bytes.Equal(buf[offChecksum:SlotHeaderSize], checksum(buf[:offChecksum], payload)) {
		return 0, 0, nil, fmt.Errorf("%w: row %d: checksum mismatch", ErrBadSlot, id)
	}
	return id, status, payload, nil
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
