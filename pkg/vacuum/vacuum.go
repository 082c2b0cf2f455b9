// Package vacuum implements ctdb's reclamation pass: it walks the
// reachable nodes, leaves, and values of a committed transaction and
// rewrites exactly that live set into a fresh, otherwise-empty
// Storage, then commits a synthetic footer there. Unreachable nodes
// and tombstoned leaves are never copied.
package vacuum

import (
	"ctdb/pkg/ctdberr"
	"ctdb/pkg/record"
	"ctdb/pkg/storage"
)

// Run copies every live key reachable from srcRootPos in src into dst,
// then commits a synthetic footer in dst with the given tranCount and
// del_count = 0: vacuum never reproduces deletions, since tombstones
// are exactly what it discards. It returns the new root offset
// committed in dst.
func Run(src storage.Storage, srcRootPos int64, tranCount uint64, dst storage.Storage) (int64, error) {
	if srcRootPos == 0 {
		if err := record.CommitFooter(dst, tranCount, 0, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}

	newRoot, err := rewriteNode(src, srcRootPos, dst)
	if err != nil {
		return 0, err
	}
	if err := record.CommitFooter(dst, tranCount, 0, newRoot); err != nil {
		return 0, err
	}
	return newRoot, nil
}

// rewriteNode recursively copies the subtree rooted at srcPos from src
// into dst, returning the offset of the freshly written node in dst.
func rewriteNode(src storage.Storage, srcPos int64, dst storage.Storage) (int64, error) {
	n, err := record.LoadNode(src, srcPos)
	if err != nil {
		return 0, err
	}

	newLeafPos := int64(0)
	if n.LeafPos != 0 {
		leaf, err := loadLeaf(src, n.LeafPos)
		if err != nil {
			return 0, err
		}
		if !leaf.IsTombstone() {
			newLeafPos, err = rewriteLeaf(src, dst, leaf)
			if err != nil {
				return 0, err
			}
		}
		// A tombstoned leaf is skipped entirely: the node itself is
		// still copied (its subtree may hold live descendants) but with
		// leaf_pos left at 0.
	}

	newItems := make([]record.Item, len(n.Items))
	for i, it := range n.Items {
		childPos, err := rewriteNode(src, it.ChildPos, dst)
		if err != nil {
			return 0, err
		}
		newItems[i] = record.Item{FirstByte: it.FirstByte, ChildPos: childPos}
	}

	newPos, err := record.DumpNode(dst, record.Node{
		Prefix:  n.Prefix,
		LeafPos: newLeafPos,
		Items:   newItems,
	})
	if err != nil {
		return 0, err
	}
	if newPos <= 0 {
		return 0, ctdberr.New(ctdberr.InternalError, "vacuum", nil)
	}
	return newPos, nil
}

func loadLeaf(s storage.Storage, pos int64) (record.Leaf, error) {
	buf := make([]byte, record.LeafSize)
	if err := s.ReadAt(pos, buf); err != nil {
		return record.Leaf{}, ctdberr.New(ctdberr.IoError, "vacuum", err)
	}
	return record.DecodeLeaf(buf)
}

// rewriteLeaf streams a live leaf's value bytes from src into dst and
// appends a fresh leaf record pointing at the copy.
func rewriteLeaf(src storage.Storage, dst storage.Storage, leaf record.Leaf) (int64, error) {
	value := make([]byte, leaf.ValueLen)
	if leaf.ValueLen > 0 {
		if err := src.ReadAt(leaf.ValuePos, value); err != nil {
			return 0, ctdberr.New(ctdberr.IoError, "vacuum", err)
		}
	}
	newValuePos, err := dst.Append(value)
	if err != nil {
		return 0, ctdberr.New(ctdberr.IoError, "vacuum", err)
	}
	newLeaf := record.Leaf{
		Version:  leaf.Version,
		ValueLen: leaf.ValueLen,
		ValuePos: newValuePos,
	}
	newLeafPos, err := dst.Append(newLeaf.Encode())
	if err != nil {
		return 0, ctdberr.New(ctdberr.IoError, "vacuum", err)
	}
	return newLeafPos, nil
}
