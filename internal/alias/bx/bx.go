// stand for bytes helper
package bx

import "encoding/binary"

var LE = binary.LittleEndian

// --- LE: read ---
func U16(b []byte) uint16 { return LE.Uint16(b) }
func U32(b []byte) uint32 { return LE.Uint32(b) }
func U64(b []byte) uint64 { return LE.Uint64(b) }

// --- LE: write ---
func PutU16(b []byte, v uint16) { LE.PutUint16(b, v) }
func PutU32(b []byte, v uint32) { LE.PutUint32(b, v) }
func PutU64(b []byte, v uint64) { LE.PutUint64(b, v) }

// Writer appends little-endian values to a growing buffer.
type Writer struct {
	Buf []byte
}

func (w *Writer) U8(v uint8) { w.Buf = append(w.Buf, v) }

func (w *Writer) U16(v uint16) { w.Buf = LE.AppendUint16(w.Buf, v) }

func (w *Writer) U64(v uint64) { w.Buf = LE.AppendUint64(w.Buf, v) }

func (w *Writer) Bytes(b []byte) { w.Buf = append(w.Buf, b...) }

// Reader consumes little-endian values from buf. Every read reports false
// instead of panicking when the buffer is too short.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) Next(n int) ([]byte, bool) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, false
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, true
}

func (r *Reader) U8() (uint8, bool) {
	b, ok := r.Next(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *Reader) U16() (uint16, bool) {
	b, ok := r.Next(2)
	if !ok {
		return 0, false
	}
	return U16(b), true
}

func (r *Reader) U64() (uint64, bool) {
	b, ok := r.Next(8)
	if !ok {
		return 0, false
	}
	return U64(b), true
}
