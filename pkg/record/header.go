package record

import (
	"bytes"
	"errors"

	"ctdb/pkg/codec"
)

// ErrInvalidMagic is returned when a file's header does not start with
// the "ctdb" magic tag.
var ErrInvalidMagic = errors.New("record: invalid magic string, not a ctdb database")

// Header is the fixed 128-byte record at offset 0 of every database
// file: a 4-byte magic tag, a uint32 version, zero-padded to
// HeaderSize. Written once at file creation and never mutated again.
type Header struct {
	Version uint32
}

// NewHeader returns the header written for a brand-new database file.
func NewHeader() Header {
	return Header{Version: Version}
}

// Encode serializes h to a HeaderSize-byte slice.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	w := codec.NewWriter(buf)
	_ = w.WriteBytes([]byte(Magic))
	_ = w.WriteU32(h.Version)
	// Remaining bytes are left zero-padded.
	return buf
}

// DecodeHeader validates and parses a HeaderSize-byte slice.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, corrupt("decode-header", errors.New("header too short"))
	}
	r := codec.NewReader(buf)
	magic, err := r.ReadBytes(len(Magic))
	if err != nil {
		return Header{}, corrupt("decode-header", err)
	}
	if !bytes.Equal(magic, []byte(Magic)) {
		return Header{}, corrupt("decode-header", ErrInvalidMagic)
	}
	version, err := r.ReadU32()
	if err != nil {
		return Header{}, corrupt("decode-header", err)
	}
	return Header{Version: version}, nil
}
