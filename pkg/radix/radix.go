// Package radix implements the compressed-trie index that maps keys to
// Leaf offsets: exact lookup, prefix-anchored search, and copy-on-write
// insertion. Every mutation allocates brand new Node records along the
// root-to-leaf path it touches and leaves every untouched subtree
// exactly where it was - rewrite the touched path, share the rest.
package radix

import (
	"bytes"
	"errors"

	"ctdb/pkg/ctdberr"
	"ctdb/pkg/record"
	"ctdb/pkg/storage"
)

// ErrEmptyKey is returned when a caller supplies a zero-length key;
// every key must be at least one byte long.
var ErrEmptyKey = errors.New("radix: key must not be empty")

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// FindLeafOffset walks the tree rooted at rootPos looking for key,
// returning the offset of its Leaf record. rootPos == 0 means an empty
// tree. found is false if no node's accumulated path equals key exactly
// or the matching node has no leaf.
func FindLeafOffset(s storage.Storage, rootPos int64, key []byte) (leafPos int64, found bool, err error) {
	if len(key) == 0 {
		return 0, false, ctdberr.New(ctdberr.InvalidArgument, "find-leaf", ErrEmptyKey)
	}
	if rootPos == 0 {
		return 0, false, nil
	}
	pos := rootPos
	remaining := key
	for {
		n, err := record.LoadNode(s, pos)
		if err != nil {
			return 0, false, err
		}
		lcp := commonPrefixLen(remaining, n.Prefix)
		if lcp < len(n.Prefix) {
			// Divergence inside this node's edge label: key is absent.
			return 0, false, nil
		}
		remaining = remaining[lcp:]
		if len(remaining) == 0 {
			if n.LeafPos == 0 {
				return 0, false, nil
			}
			return n.LeafPos, true, nil
		}
		childPos, ok := record.FindChild(n.Items, remaining[0])
		if !ok {
			return 0, false, nil
		}
		pos = childPos
	}
}

// AppendSubtree inserts or overwrites key so it points at leafPos,
// rewriting only the root-to-leaf path that key touches.
// rootPos == 0 means the tree is currently empty. It returns the offset
// of the new root node - every other existing node in the file remains
// valid and unreferenced-but-present until a vacuum reclaims it.
func AppendSubtree(s storage.Storage, rootPos int64, key []byte, leafPos int64) (newRootPos int64, err error) {
	if len(key) == 0 {
		return 0, ctdberr.New(ctdberr.InvalidArgument, "append-subtree", ErrEmptyKey)
	}
	return insert(s, rootPos, key, leafPos)
}

// insert is the recursive copy-on-write worker behind AppendSubtree.
func insert(s storage.Storage, nodePos int64, key []byte, leafPos int64) (int64, error) {
	// Case 1: empty subtree - create a brand new leaf-bearing node for
	// the entire remaining key.
	if nodePos == 0 {
		return record.DumpNode(s, record.Node{Prefix: key, LeafPos: leafPos})
	}

	n, err := record.LoadNode(s, nodePos)
	if err != nil {
		return 0, err
	}
	lcp := commonPrefixLen(key, n.Prefix)

	switch {
	case lcp == len(n.Prefix) && lcp == len(key):
		// Case 2: key matches this node's full edge label exactly.
		// Append a copy of this node with the new leaf pointer, keeping
		// the children as-is.
		return record.DumpNode(s, record.Node{
			Prefix:  n.Prefix,
			LeafPos: leafPos,
			Items:   n.Items,
		})

	case lcp == len(n.Prefix):
		// Case 3a: this node's entire prefix is consumed but key has
		// more bytes - descend (or create) the child keyed by the next
		// byte and rewrite this node's item table to point at it.
		suffix := key[lcp:]
		childPos, ok := record.FindChild(n.Items, suffix[0])
		if !ok {
			childPos = 0
		}
		newChildPos, err := insert(s, childPos, suffix, leafPos)
		if err != nil {
			return 0, err
		}
		newItems, err := record.WithChild(n.Items, suffix[0], newChildPos)
		if err != nil {
			return 0, err
		}
		return record.DumpNode(s, record.Node{
			Prefix:  n.Prefix,
			LeafPos: n.LeafPos,
			Items:   newItems,
		})

	default:
		// lcp < len(n.Prefix): key diverges before this node's edge
		// label ends (case 3b/3c). Split: a new common node carries the
		// shared lcp-byte prefix; the old node's remainder becomes one
		// child, and key's remainder (if any) becomes the other.
		oldContinuation := record.Node{
			Prefix:  n.Prefix[lcp:],
			LeafPos: n.LeafPos,
			Items:   n.Items,
		}
		oldContinuationPos, err := record.DumpNode(s, oldContinuation)
		if err != nil {
			return 0, err
		}

		common := record.Node{Prefix: n.Prefix[:lcp]}
		oldFirstByte := oldContinuation.Prefix[0]

		if lcp == len(key) {
			// Case 3b: key ends exactly at the split point - the common
			// node itself carries the new leaf.
			common.LeafPos = leafPos
			common.Items, err = record.WithChild(nil, oldFirstByte, oldContinuationPos)
			if err != nil {
				return 0, err
			}
		} else {
			// Case 3c: key has its own remainder past the split point -
			// it becomes a sibling leaf-bearing node alongside the old
			// continuation.
			keyRemainder := key[lcp:]
			newLeafNodePos, err := record.DumpNode(s, record.Node{Prefix: keyRemainder, LeafPos: leafPos})
			if err != nil {
				return 0, err
			}
			items, err := record.WithChild(nil, oldFirstByte, oldContinuationPos)
			if err != nil {
				return 0, err
			}
			items, err = record.WithChild(items, keyRemainder[0], newLeafNodePos)
			if err != nil {
				return 0, err
			}
			common.Items = items
		}
		return record.DumpNode(s, common)
	}
}

// matchKind classifies how a search prefix relates to the path already
// accumulated while descending toward it; used by Walk to decide
// whether to keep narrowing or to start emitting a whole subtree.
type matchKind int

const (
	diverges matchKind = iota
	stillNarrowing
	fullyMatched
)

func classify(accumulated, searchPrefix []byte) matchKind {
	if len(accumulated) <= len(searchPrefix) {
		if bytes.Equal(accumulated, searchPrefix[:len(accumulated)]) {
			if len(accumulated) == len(searchPrefix) {
				return fullyMatched
			}
			return stillNarrowing
		}
		return diverges
	}
	if bytes.Equal(searchPrefix, accumulated[:len(searchPrefix)]) {
		return fullyMatched
	}
	return diverges
}

// ErrStopWalk is returned by a Visit callback to stop iteration early
// without that being treated as a failure; Walk swallows it.
var ErrStopWalk = errors.New("radix: stop walk")

// Visit is called once per live key under the searched prefix, with the
// full reconstructed key and the offset of its Leaf record. Returning
// ErrStopWalk ends the walk early without propagating an error.
type Visit func(key []byte, leafPos int64) error

// Walk performs a prefix-anchored depth-first traversal of the tree
// rooted at rootPos, visiting every key that has searchPrefix as a
// prefix, in ascending byte order. A zero-length searchPrefix visits
// every key in the tree. Recursion depth is bounded by KeyMax since
// every edge consumes at least one byte.
func Walk(s storage.Storage, rootPos int64, searchPrefix []byte, visit Visit) error {
	if rootPos == 0 {
		return nil
	}
	err := walk(s, rootPos, nil, searchPrefix, visit)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walk(s storage.Storage, nodePos int64, pathSoFar, searchPrefix []byte, visit Visit) error {
	n, err := record.LoadNode(s, nodePos)
	if err != nil {
		return err
	}
	fullKey := append(append([]byte(nil), pathSoFar...), n.Prefix...)

	switch classify(fullKey, searchPrefix) {
	case diverges:
		return nil
	case stillNarrowing:
		next := searchPrefix[len(fullKey)]
		childPos, ok := record.FindChild(n.Items, next)
		if !ok {
			return nil
		}
		return walk(s, childPos, fullKey, searchPrefix, visit)
	default: // fullyMatched: emit this node (if it has a leaf) then all children
		if n.LeafPos != 0 {
			if err := visit(fullKey, n.LeafPos); err != nil {
				return err
			}
		}
		for _, it := range n.Items {
			if err := walk(s, it.ChildPos, fullKey, searchPrefix, visit); err != nil {
				return err
			}
		}
		return nil
	}
}
