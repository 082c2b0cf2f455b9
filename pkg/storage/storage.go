// Package storage implements ctdb's Block I/O abstraction: a seekable
// byte stream supporting positioned reads, header writes, append-to-end,
// sync, and (for tests) truncate.
//
// The concrete implementation is a growable memory-mapped file, split
// into storage_unix.go / storage_windows.go. There is no fixed page
// size and no over-allocation headroom: every Append grows the mapping
// to exactly the bytes required, since crash recovery reasons about the
// literal on-disk file size, not a page-aligned superset of it.
package storage

import "errors"

// ErrOutOfRange is returned by ReadAt/WriteAt when the requested region
// falls outside the storage's current size.
var ErrOutOfRange = errors.New("storage: offset/length out of range")

// Storage abstracts the database file as a seekable byte stream. All
// multi-byte fields above this layer are little-endian regardless of
// host byte order; Storage itself is byte-order agnostic.
type Storage interface {
	// Size returns the current logical size of the storage in bytes.
	Size() int64

	// ReadAt copies len(buf) bytes starting at offset into buf. It
	// returns ErrOutOfRange if [offset, offset+len(buf)) exceeds Size().
	ReadAt(offset int64, buf []byte) error

	// Append writes buf contiguously after the current tail and
	// returns the offset at which it was written. Bytes written are
	// guaranteed contiguous with whatever was previously the tail.
	Append(buf []byte) (int64, error)

	// WriteAt overwrites bytes in [offset, offset+len(buf)); used only
	// for the 128-byte header region.
	WriteAt(offset int64, buf []byte) error

	// Sync flushes pending writes to stable storage.
	Sync() error

	// Truncate shrinks (or grows) the storage to newSize. Intended for
	// test harnesses simulating a crash mid-write; not used by normal
	// engine operation.
	Truncate(newSize int64) error

	// Close releases the underlying file handle. After Close the
	// Storage must not be used.
	Close() error
}

// Open opens or creates path as a memory-mapped Storage. If the file is
// smaller than initialSize it is extended (zero-filled) to initialSize;
// this is how a brand-new database gets room for its header before a
// single byte has been appended.
func Open(path string, initialSize int64, readOnly bool) (Storage, error) {
	return openMmap(path, initialSize, readOnly)
}
