// Package txn implements ctdb's transaction manager and iterator:
// begin/commit/rollback over a snapshot footer, put/del that mutate an
// in-memory working footer while appending new records to the file
// tail, get, and a prefix-anchored depth-first iterator.
//
// The state machine is a small guard-on-done Active/Committed/Aborted
// progression, with State as a small int-enum-plus-String() type.
package txn

import (
	"errors"

	"ctdb/pkg/ctdberr"
	"ctdb/pkg/radix"
	"ctdb/pkg/record"
	"ctdb/pkg/storage"
)

// State is a transaction's position in its Active -> {Committed,Aborted}
// state machine.
type State int

const (
	Active State = iota
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Transaction exclusively borrows a Storage for its lifetime: from
// Begin to whichever of Commit or Rollback is called first. Past that
// point Get, GetValue, Put, Del, Commit, Rollback and Iterate fail with
// ctdberr.InvalidState; the read-only accessors (State, RootPos,
// TranCount, DelCount) keep returning the working footer's values.
type Transaction struct {
	storage storage.Storage
	state   State
	footer  record.Footer
}

func invalidState(op string) error {
	return ctdberr.New(ctdberr.InvalidState, op, errors.New("transaction is not active"))
}

// Begin locates the most recent valid footer in s by scanning backward
// from align_up(size-ALIGN, ALIGN) in ALIGN-byte steps, and snapshots
// it as the transaction's working footer. If no valid footer is found
// the working footer is the zero value, representing an empty
// database.
func Begin(s storage.Storage) (*Transaction, error) {
	footer, err := findLastValidFooter(s)
	if err != nil {
		return nil, err
	}
	return &Transaction{storage: s, state: Active, footer: footer}, nil
}

func findLastValidFooter(s storage.Storage) (record.Footer, error) {
	fileSize := s.Size()
	pos := record.AlignUp(fileSize - record.Align)
	for pos >= record.HeaderSize {
		if pos+record.FooterSize <= fileSize {
			buf := make([]byte, record.FooterSize)
			if err := s.ReadAt(pos, buf); err == nil {
				if f, err := record.DecodeFooter(buf); err == nil && f.Valid(fileSize) {
					return f, nil
				}
			}
		}
		pos -= record.Align
	}
	return record.Footer{}, nil
}

// State returns the transaction's current lifecycle state.
func (tx *Transaction) State() State { return tx.state }

// RootPos returns the working footer's current tree root offset (0 for
// an empty tree).
func (tx *Transaction) RootPos() int64 { return tx.footer.RootPos }

// TranCount returns the working footer's current commit counter.
func (tx *Transaction) TranCount() uint64 { return tx.footer.TranCount }

// DelCount returns the working footer's current tombstone counter.
func (tx *Transaction) DelCount() uint64 { return tx.footer.DelCount }

// Get looks up key against the transaction's working root, returning
// ctdberr.NotFound if the key is absent or tombstoned.
func (tx *Transaction) Get(key []byte) (record.Leaf, error) {
	if tx.state != Active {
		return record.Leaf{}, invalidState("get")
	}
	if len(key) == 0 || len(key) > record.KeyMax {
		return record.Leaf{}, ctdberr.New(ctdberr.InvalidArgument, "get", errors.New("key length out of range"))
	}
	leafPos, found, err := radix.FindLeafOffset(tx.storage, tx.footer.RootPos, key)
	if err != nil {
		return record.Leaf{}, err
	}
	if !found {
		return record.Leaf{}, ctdberr.New(ctdberr.NotFound, "get", nil)
	}
	leaf, err := loadLeaf(tx.storage, leafPos)
	if err != nil {
		return record.Leaf{}, err
	}
	if leaf.IsTombstone() {
		return record.Leaf{}, ctdberr.New(ctdberr.NotFound, "get", nil)
	}
	return leaf, nil
}

// GetValue is a convenience wrapper around Get that also reads the
// value bytes via the transaction's storage handle.
func (tx *Transaction) GetValue(key []byte) ([]byte, error) {
	leaf, err := tx.Get(key)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, leaf.ValueLen)
	if leaf.ValueLen == 0 {
		return buf, nil
	}
	if err := tx.storage.ReadAt(leaf.ValuePos, buf); err != nil {
		return nil, ctdberr.New(ctdberr.IoError, "get-value", err)
	}
	return buf, nil
}

func loadLeaf(s storage.Storage, pos int64) (record.Leaf, error) {
	buf := make([]byte, record.LeafSize)
	if err := s.ReadAt(pos, buf); err != nil {
		return record.Leaf{}, ctdberr.New(ctdberr.IoError, "load-leaf", err)
	}
	return record.DecodeLeaf(buf)
}

// Put inserts or overwrites key with value. A zero-length value stores
// a tombstone, equivalent to Del.
func (tx *Transaction) Put(key, value []byte) error {
	return tx.mutate("put", key, value)
}

// Del logically removes key by writing a tombstone leaf - exactly
// put(key, empty).
func (tx *Transaction) Del(key []byte) error {
	return tx.mutate("del", key, nil)
}

func (tx *Transaction) mutate(op string, key, value []byte) error {
	if tx.state != Active {
		return invalidState(op)
	}
	if len(key) == 0 || len(key) > record.KeyMax {
		return ctdberr.New(ctdberr.InvalidArgument, op, errors.New("key length out of range"))
	}
	if len(value) > record.ValueMax {
		return ctdberr.New(ctdberr.InvalidArgument, op, errors.New("value exceeds VALUE_MAX"))
	}

	valuePos, err := tx.storage.Append(value)
	if err != nil {
		return ctdberr.New(ctdberr.IoError, op, err)
	}
	leaf := record.Leaf{
		Version:  tx.footer.TranCount,
		ValueLen: uint32(len(value)),
		ValuePos: valuePos,
	}
	leafPos, err := tx.storage.Append(leaf.Encode())
	if err != nil {
		return ctdberr.New(ctdberr.IoError, op, err)
	}

	newRoot, err := radix.AppendSubtree(tx.storage, tx.footer.RootPos, key, leafPos)
	if err != nil {
		return err
	}

	tx.footer.RootPos = newRoot
	tx.footer.TranCount++
	if len(value) == 0 {
		tx.footer.DelCount++
	}
	return nil
}

// Commit requires Active, transitions to Committed, and durably
// publishes the working footer at an ALIGN-aligned offset after the
// current tail, fsyncing before returning.
func (tx *Transaction) Commit() error {
	if tx.state != Active {
		return invalidState("commit")
	}
	tx.state = Committed
	return record.CommitFooter(tx.storage, tx.footer.TranCount, tx.footer.DelCount, tx.footer.RootPos)
}

// Rollback requires Active, transitions to Aborted, and discards the
// working footer; previously appended bytes remain as unreachable
// garbage on disk until a vacuum.
func (tx *Transaction) Rollback() error {
	if tx.state != Active {
		return invalidState("rollback")
	}
	tx.state = Aborted
	return nil
}

// VisitResult tells Iterate whether to keep descending or stop.
type VisitResult int

const (
	Continue VisitResult = iota
	Stop
)

// Visitor is invoked once per live (key, leaf) pair under a searched
// prefix, in ascending byte order.
type Visitor func(key []byte, leaf record.Leaf) (VisitResult, error)

// Iterate performs a prefix-anchored depth-first traversal of the
// transaction's working tree, skipping tombstoned leaves, and invoking
// visit for every live key with prefix as a byte-prefix. A zero-length
// prefix visits every live key.
func (tx *Transaction) Iterate(prefix []byte, visit Visitor) error {
	if tx.state != Active {
		return invalidState("iterate")
	}
	return radix.Walk(tx.storage, tx.footer.RootPos, prefix, func(key []byte, leafPos int64) error {
		if len(key) > record.KeyMax {
			return nil
		}
		leaf, err := loadLeaf(tx.storage, leafPos)
		if err != nil {
			return err
		}
		if leaf.IsTombstone() {
			return nil
		}
		result, err := visit(key, leaf)
		if err != nil {
			return err
		}
		if result == Stop {
			return radix.ErrStopWalk
		}
		return nil
	})
}

// Collect is a convenience built on Iterate that gathers every live key
// under prefix into a map of key to value bytes.
func Collect(tx *Transaction, prefix []byte) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := tx.Iterate(prefix, func(key []byte, leaf record.Leaf) (VisitResult, error) {
		val := make([]byte, leaf.ValueLen)
		if leaf.ValueLen > 0 {
			if err := tx.storage.ReadAt(leaf.ValuePos, val); err != nil {
				return Stop, ctdberr.New(ctdberr.IoError, "collect", err)
			}
		}
		out[string(key)] = val
		return Continue, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
