package record

import (
	"errors"
	"sort"

	"ctdb/pkg/codec"
	"ctdb/pkg/ctdberr"
	"ctdb/pkg/storage"
)

// ErrNodeFull is the cause, wrapped in an InternalError, when a node's
// child-item table cannot be stored: WithChild refuses to add a new
// first byte to a table that already holds MaxChildren entries, and
// Encode refuses a table of MaxChildren or more entries because the
// on-disk items_count field is a uint8.
var ErrNodeFull = errors.New("record: node item table is full")

// Item is one entry of a Node's child-item table: the first byte of
// the child edge's label, and the file offset of the child Node.
type Item struct {
	FirstByte byte
	ChildPos  int64
}

// Node is a radix-tree node: a shared prefix, an optional leaf at this
// exact prefix, and a sorted table of single-byte-labeled children.
// The fixed NodeFixed-byte header is followed immediately by
// len(Items)*ItemSize bytes for the child table.
type Node struct {
	Prefix  []byte // shared edge label, length <= KeyMax
	LeafPos int64  // 0 = no leaf at this node
	Items   []Item // sorted ascending by FirstByte, no duplicates
}

// itemsCount returns the node's child count, asserting it fits uint8.
func (n Node) itemsCount() (uint8, error) {
	if len(n.Items) > MaxChildren {
		return 0, ctdberr.New(ctdberr.InternalError, "encode-node", ErrNodeFull)
	}
	// MaxChildren is 256, representable in an int but not in uint8;
	// the on-disk items_count field is a uint8, so 256 children would
	// wrap to 0. A compressed trie with a byte alphabet tops out at 256
	// distinct first bytes, so ErrNodeFull guards exactly that one case
	// the uint8 field cannot represent.
	if len(n.Items) == MaxChildren {
		return 0, ctdberr.New(ctdberr.InternalError, "encode-node", ErrNodeFull)
	}
	return uint8(len(n.Items)), nil
}

// Encode serializes n to NodeFixed + len(Items)*ItemSize bytes.
func (n Node) Encode() ([]byte, error) {
	if len(n.Prefix) > KeyMax {
		return nil, invalid("encode-node", errors.New("prefix exceeds KeyMax"))
	}
	count, err := n.itemsCount()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, NodeFixed+int(count)*ItemSize)
	w := codec.NewWriter(buf)
	_ = w.WriteU8(uint8(len(n.Prefix)))

	padded := make([]byte, KeyMax)
	copy(padded, n.Prefix)
	_ = w.WriteBytes(padded)

	_ = w.WriteI64(n.LeafPos)
	_ = w.WriteU8(count)

	for _, it := range n.Items {
		_ = w.WriteU8(it.FirstByte)
		_ = w.WriteI64(it.ChildPos)
	}
	return buf, nil
}

// DumpNode encodes n and appends it to s, returning the offset of the
// node's fixed header - that offset is the node's identity throughout
// the rest of the tree.
func DumpNode(s storage.Storage, n Node) (int64, error) {
	buf, err := n.Encode()
	if err != nil {
		return 0, err
	}
	pos, err := s.Append(buf)
	if err != nil {
		return 0, ctdberr.New(ctdberr.IoError, "dump-node", err)
	}
	return pos, nil
}

// decodeNodeFixed parses just the NodeFixed-byte header, returning the
// node (without Items populated) and the item count to read next.
func decodeNodeFixed(buf []byte) (Node, uint8, error) {
	if len(buf) < NodeFixed {
		return Node{}, 0, corrupt("decode-node", errors.New("node header too short"))
	}
	r := codec.NewReader(buf)
	prefixLen, err := r.ReadU8()
	if err != nil {
		return Node{}, 0, corrupt("decode-node", err)
	}
	if prefixLen > KeyMax {
		return Node{}, 0, corrupt("decode-node", errors.New("prefix length exceeds KeyMax"))
	}
	paddedPrefix, err := r.ReadBytes(KeyMax)
	if err != nil {
		return Node{}, 0, corrupt("decode-node", err)
	}
	prefix := make([]byte, prefixLen)
	copy(prefix, paddedPrefix[:prefixLen])

	leafPos, err := r.ReadI64()
	if err != nil {
		return Node{}, 0, corrupt("decode-node", err)
	}
	count, err := r.ReadU8()
	if err != nil {
		return Node{}, 0, corrupt("decode-node", err)
	}
	return Node{Prefix: prefix, LeafPos: leafPos}, count, nil
}

func decodeItems(buf []byte, count uint8) ([]Item, error) {
	need := int(count) * ItemSize
	if len(buf) < need {
		return nil, corrupt("decode-node", errors.New("item table too short"))
	}
	items := make([]Item, count)
	r := codec.NewReader(buf[:need])
	for i := range items {
		b, err := r.ReadU8()
		if err != nil {
			return nil, corrupt("decode-node", err)
		}
		pos, err := r.ReadI64()
		if err != nil {
			return nil, corrupt("decode-node", err)
		}
		items[i] = Item{FirstByte: b, ChildPos: pos}
	}
	return items, nil
}

// LoadNode seeks to pos and reads both the fixed header and the
// variable-length child-item table that immediately follows it.
func LoadNode(s storage.Storage, pos int64) (Node, error) {
	if pos < 0 || pos >= s.Size() {
		return Node{}, corrupt("load-node", errors.New("node offset out of range"))
	}
	fixed := make([]byte, NodeFixed)
	if err := s.ReadAt(pos, fixed); err != nil {
		return Node{}, ctdberr.New(ctdberr.IoError, "load-node", err)
	}
	n, count, err := decodeNodeFixed(fixed)
	if err != nil {
		return Node{}, err
	}
	if count == 0 {
		return n, nil
	}
	itemsBuf := make([]byte, int(count)*ItemSize)
	if err := s.ReadAt(pos+NodeFixed, itemsBuf); err != nil {
		return Node{}, ctdberr.New(ctdberr.IoError, "load-node", err)
	}
	items, err := decodeItems(itemsBuf, count)
	if err != nil {
		return Node{}, err
	}
	n.Items = items
	return n, nil
}

// FindChild binary-searches the sorted item table for first-byte b.
func FindChild(items []Item, b byte) (childPos int64, ok bool) {
	i := sort.Search(len(items), func(i int) bool { return items[i].FirstByte >= b })
	if i < len(items) && items[i].FirstByte == b {
		return items[i].ChildPos, true
	}
	return 0, false
}

// WithChild returns a copy of items with (b, childPos) inserted or, if
// b is already present, replaced - keeping the table sorted and free of
// duplicate first bytes.
func WithChild(items []Item, b byte, childPos int64) ([]Item, error) {
	i := sort.Search(len(items), func(i int) bool { return items[i].FirstByte >= b })
	if i < len(items) && items[i].FirstByte == b {
		out := make([]Item, len(items))
		copy(out, items)
		out[i].ChildPos = childPos
		return out, nil
	}
	if len(items) >= MaxChildren {
		return nil, ctdberr.New(ctdberr.InternalError, "with-child", ErrNodeFull)
	}
	out := make([]Item, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, Item{FirstByte: b, ChildPos: childPos})
	out = append(out, items[i:]...)
	return out, nil
}
