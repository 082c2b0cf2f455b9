// Package codec implements fixed-width little-endian encoding of the
// scalar and raw-byte fields that make up ctdb's on-disk records.
//
// Every field in the file format has a fixed width known at compile
// time, so encode/decode is a direct binary.LittleEndian call against
// a cursor into a caller-owned buffer - no reflection, no allocation
// beyond what the caller already provides.
package codec

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a Reader does not have enough bytes
// remaining to satisfy a read, or a Writer does not have enough room
// remaining to satisfy a write.
var ErrShortBuffer = errors.New("codec: short buffer")

// Writer encodes fixed-width fields into a fixed-size buffer, advancing
// a cursor after each write.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter returns a Writer over buf. Writes start at offset 0.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Pos returns the writer's current cursor offset.
func (w *Writer) Pos() int { return w.pos }

func (w *Writer) remaining() int { return len(w.buf) - w.pos }

// WriteU8 writes a single byte and advances the cursor.
func (w *Writer) WriteU8(v uint8) error {
	if w.remaining() < 1 {
		return ErrShortBuffer
	}
	w.buf[w.pos] = v
	w.pos++
	return nil
}

// WriteU16 writes a little-endian uint16 and advances the cursor.
func (w *Writer) WriteU16(v uint16) error {
	if w.remaining() < 2 {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
	return nil
}

// WriteU32 writes a little-endian uint32 and advances the cursor.
func (w *Writer) WriteU32(v uint32) error {
	if w.remaining() < 4 {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
	return nil
}

// WriteU64 writes a little-endian uint64 and advances the cursor.
func (w *Writer) WriteU64(v uint64) error {
	if w.remaining() < 8 {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
	return nil
}

// WriteI64 writes a little-endian int64 and advances the cursor.
func (w *Writer) WriteI64(v int64) error {
	return w.WriteU64(uint64(v))
}

// WriteBytes copies exactly len(b) bytes and advances the cursor. The
// caller zero-pads fixed-width fields (e.g. key bytes) before calling
// this, since variable-length strings do not exist at this layer.
func (w *Writer) WriteBytes(b []byte) error {
	if w.remaining() < len(b) {
		return ErrShortBuffer
	}
	copy(w.buf[w.pos:], b)
	w.pos += len(b)
	return nil
}

// Reader decodes fixed-width fields from a fixed-size buffer, advancing
// a cursor after each read.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader over buf. Reads start at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the reader's current cursor offset.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) remaining() int { return len(r.buf) - r.pos }

// ReadU8 reads a single byte and advances the cursor.
func (r *Reader) ReadU8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrShortBuffer
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadU16 reads a little-endian uint16 and advances the cursor.
func (r *Reader) ReadU16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32 and advances the cursor.
func (r *Reader) ReadU32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadU64 reads a little-endian uint64 and advances the cursor.
func (r *Reader) ReadU64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadI64 reads a little-endian int64 and advances the cursor.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadBytes reads exactly n bytes and advances the cursor. The returned
// slice aliases the reader's backing buffer; callers that retain it
// past the buffer's lifetime must copy it.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}
