package record

import (
	"errors"

	"ctdb/pkg/codec"
)

// Leaf points at the raw value bytes for a key. A leaf with
// ValueLen == 0 is a tombstone: the key was logically deleted but still
// occupies a path in the tree.
type Leaf struct {
	Version   uint64
	ValueLen  uint32
	ValuePos  int64
}

// IsTombstone reports whether this leaf represents a deletion.
func (l Leaf) IsTombstone() bool { return l.ValueLen == 0 }

// Encode serializes l to a LeafSize-byte slice.
func (l Leaf) Encode() []byte {
	buf := make([]byte, LeafSize)
	w := codec.NewWriter(buf)
	_ = w.WriteU64(l.Version)
	_ = w.WriteU32(l.ValueLen)
	_ = w.WriteI64(l.ValuePos)
	return buf
}

// DecodeLeaf parses a LeafSize-byte slice.
func DecodeLeaf(buf []byte) (Leaf, error) {
	if len(buf) < LeafSize {
		return Leaf{}, corrupt("decode-leaf", errors.New("leaf too short"))
	}
	r := codec.NewReader(buf)
	var l Leaf
	var err error
	if l.Version, err = r.ReadU64(); err != nil {
		return Leaf{}, corrupt("decode-leaf", err)
	}
	if l.ValueLen, err = r.ReadU32(); err != nil {
		return Leaf{}, corrupt("decode-leaf", err)
	}
	if l.ValuePos, err = r.ReadI64(); err != nil {
		return Leaf{}, corrupt("decode-leaf", err)
	}
	return l, nil
}
