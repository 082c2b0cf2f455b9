package codec

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	w := NewWriter(buf)

	if err := w.WriteU8(0xAB); err != nil {
		t.Fatalf("WriteU8: %v", err)
	}
	if err := w.WriteU16(0x1234); err != nil {
		t.Fatalf("WriteU16: %v", err)
	}
	if err := w.WriteU32(0xDEADBEEF); err != nil {
		t.Fatalf("WriteU32: %v", err)
	}
	if err := w.WriteU64(0x0102030405060708); err != nil {
		t.Fatalf("WriteU64: %v", err)
	}
	if err := w.WriteI64(-42); err != nil {
		t.Fatalf("WriteI64: %v", err)
	}
	if err := w.WriteBytes([]byte("hello")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	r := NewReader(buf)
	if v, err := r.ReadU8(); err != nil || v != 0xAB {
		t.Fatalf("ReadU8 = %v, %v", v, err)
	}
	if v, err := r.ReadU16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadU16 = %v, %v", v, err)
	}
	if v, err := r.ReadU32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %v, %v", v, err)
	}
	if v, err := r.ReadU64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %v, %v", v, err)
	}
	if v, err := r.ReadI64(); err != nil || v != -42 {
		t.Fatalf("ReadI64 = %v, %v", v, err)
	}
	if v, err := r.ReadBytes(5); err != nil || !bytes.Equal(v, []byte("hello")) {
		t.Fatalf("ReadBytes = %q, %v", v, err)
	}
}

func TestShortBuffer(t *testing.T) {
	w := NewWriter(make([]byte, 1))
	if err := w.WriteU64(1); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}

	r := NewReader(make([]byte, 1))
	if _, err := r.ReadU64(); err != ErrShortBuffer {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}

func TestLittleEndianByteOrder(t *testing.T) {
	buf := make([]byte, 4)
	w := NewWriter(buf)
	if err := w.WriteU32(0x01020304); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(buf, want) {
		t.Fatalf("expected little-endian bytes %x, got %x", want, buf)
	}
}
