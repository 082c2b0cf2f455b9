// Package ctdb is an embedded, single-file, append-only key-value store
// backed by a persistent radix (compressed trie) index. It provides
// point lookups, insertion, deletion, prefix-scoped traversal, and
// transactional commit/rollback over crash-safe on-disk structures, plus
// a vacuum operation that copies the live set into a fresh file.
//
// Database is the single entry point: Open acquires an OS-level
// advisory lock via a sibling lock file and verifies or creates the
// 128-byte header. Begin returns a Transaction snapshotting the most recently committed
// footer; Put/Del/Commit/Rollback/Get/Iterate live on Transaction in
// package ctdb/pkg/txn and are re-exported here as the package's
// primary vocabulary so callers need only ever import "ctdb".
package ctdb

import (
	"bytes"
	"errors"
	"os"
	"sync"

	"github.com/natefinch/atomic"

	"ctdb/pkg/ctdberr"
	"ctdb/pkg/record"
	"ctdb/pkg/storage"
	"ctdb/pkg/txn"
	"ctdb/pkg/vacuum"
)

// ErrDatabaseClosed is returned when an operation is attempted against
// a Database after Close.
var ErrDatabaseClosed = errors.New("ctdb: database is closed")

// ErrDatabaseLocked is returned by Open when another handle already
// holds the exclusive advisory lock on the database file.
var ErrDatabaseLocked = errors.New("ctdb: database is locked by another handle")

// Re-exported vocabulary so a caller importing only "ctdb" has the full
// public surface: transaction handles, stored leaves, and visitor types.
type (
	Transaction = txn.Transaction
	Leaf        = record.Leaf
	VisitResult = txn.VisitResult
	Visitor     = txn.Visitor
)

const (
	Continue = txn.Continue
	Stop     = txn.Stop
)

// Collect gathers every live key under prefix from tx into a map of key
// to value bytes.
func Collect(tx *Transaction, prefix []byte) (map[string][]byte, error) {
	return txn.Collect(tx, prefix)
}

// Database owns one open file handle to a ctdb file plus the sibling
// advisory lock file that enforces single-writer access.
type Database struct {
	mu       sync.Mutex
	path     string
	storage  storage.Storage
	lockFile *os.File
	readOnly bool
	closed   bool
}

// Stats is the introspection snapshot returned by Database.Stat.
type Stats struct {
	Path     string
	Size     int64
	ReadOnly bool
}

// Open creates path with an initial 128-byte header followed by a zero
// footer if it does not already exist, or opens and verifies the
// header if it does. It
// acquires an exclusive advisory lock on a sibling "<path>.lock"
// file for the lifetime of the returned Database.
func Open(path string) (*Database, error) {
	return open(path, false)
}

// OpenReadOnly opens an existing database without acquiring the
// exclusive writer lock, for read-only inspection (e.g. a vacuum
// destination is opened read-write via Open; a read-only caller uses
// this instead).
func OpenReadOnly(path string) (*Database, error) {
	return open(path, true)
}

func open(path string, readOnly bool) (*Database, error) {
	lockPath := path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, ctdberr.New(ctdberr.IoError, "open", err)
	}
	if !readOnly {
		if err := lockFile(lf); err != nil {
			lf.Close()
			return nil, ctdberr.New(ctdberr.IoError, "open", err)
		}
	}

	existed := true
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			releaseLock(lf, readOnly)
			return nil, ctdberr.New(ctdberr.IoError, "open", err)
		}
		existed = false
	}

	if !existed {
		if readOnly {
			releaseLock(lf, readOnly)
			return nil, ctdberr.New(ctdberr.NotFound, "open", errors.New("database file does not exist"))
		}
		// Crash-safe initial creation of the header plus a zero footer
		// at HeaderSize (already Align-aligned): a failure mid-write can
		// never leave a half-written header, since WriteFile writes to a
		// temp file and renames it into place.
		initial := make([]byte, record.HeaderSize+record.FooterSize)
		copy(initial, record.NewHeader().Encode())
		copy(initial[record.HeaderSize:], record.NewFooter(0, 0, 0).Encode())
		if err := atomic.WriteFile(path, bytes.NewReader(initial)); err != nil {
			releaseLock(lf, readOnly)
			return nil, ctdberr.New(ctdberr.IoError, "open", err)
		}
	}

	st, err := storage.Open(path, record.HeaderSize, readOnly)
	if err != nil {
		releaseLock(lf, readOnly)
		return nil, ctdberr.New(ctdberr.IoError, "open", err)
	}

	headerBuf := make([]byte, record.HeaderSize)
	if err := st.ReadAt(0, headerBuf); err != nil {
		st.Close()
		releaseLock(lf, readOnly)
		return nil, ctdberr.New(ctdberr.IoError, "open", err)
	}
	if _, err := record.DecodeHeader(headerBuf); err != nil {
		st.Close()
		releaseLock(lf, readOnly)
		return nil, err
	}

	return &Database{path: path, storage: st, lockFile: lf, readOnly: readOnly}, nil
}

func releaseLock(lf *os.File, readOnly bool) {
	if !readOnly {
		_ = unlockFile(lf)
	}
	_ = lf.Close()
}

// Close releases the database's file handle and advisory lock. It is
// an error to call Close more than once.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ctdberr.New(ctdberr.InvalidState, "close", ErrDatabaseClosed)
	}
	db.closed = true

	closeErr := db.storage.Close()
	releaseLock(db.lockFile, db.readOnly)
	db.lockFile = nil
	if closeErr != nil {
		return ctdberr.New(ctdberr.IoError, "close", closeErr)
	}
	return nil
}

// Begin locates the most recent valid footer and returns a Transaction
// snapshotting it.
func (db *Database) Begin() (*Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ctdberr.New(ctdberr.InvalidState, "begin", ErrDatabaseClosed)
	}
	return txn.Begin(db.storage)
}

// Stat returns a snapshot of the database's file path, current size,
// and read-only flag, for the kind of introspection the original
// example programs printed by hand.
func (db *Database) Stat() Stats {
	db.mu.Lock()
	defer db.mu.Unlock()
	size := int64(0)
	if db.storage != nil {
		size = db.storage.Size()
	}
	return Stats{Path: db.path, Size: size, ReadOnly: db.readOnly}
}

// Vacuum copies every live key reachable from tx's working root into
// dst (which must be a freshly opened, otherwise-empty Database) and
// commits a synthetic footer there.
func (db *Database) Vacuum(tx *Transaction, dst *Database) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ctdberr.New(ctdberr.InvalidState, "vacuum", ErrDatabaseClosed)
	}
	dst.mu.Lock()
	defer dst.mu.Unlock()
	if dst.closed {
		return ctdberr.New(ctdberr.InvalidState, "vacuum", ErrDatabaseClosed)
	}
	_, err := vacuum.Run(db.storage, tx.RootPos(), tx.TranCount(), dst.storage)
	return err
}
