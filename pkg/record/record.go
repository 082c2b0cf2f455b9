// Package record implements load/dump for ctdb's on-disk structures:
// Header, Footer, Node (with its inline child-item table), and Leaf.
// Every record has a fixed binary layout; Node's child-item table is
// the only variable-length part, and even that has a fixed 9-byte
// stride per entry.
//
// Encode/decode is direct and allocation-light, built over
// codec.Writer/Reader rather than reflection-based serialization.
package record

import "ctdb/pkg/ctdberr"

// File format constants.
const (
	HeaderSize  = 128
	KeyMax      = 64
	ValueMax    = 1 << 30 // 1 GiB
	NodeFixed   = 1 + KeyMax + 8 + 1 // prefix_len + prefix + leaf_pos + items_count
	ItemSize    = 9                 // first_byte (1) + child_node_pos (8)
	LeafSize    = 20                // version(8) + value_len(4) + value_pos(8)
	FooterSize  = 40                // cksum1(8) + tran_count(8) + del_count(8) + root_pos(8) + cksum2(8)
	Align       = 32
	Magic       = "ctdb"
	Version     = 1
	MaxChildren = 256
)

func corrupt(op string, cause error) error {
	return ctdberr.New(ctdberr.CorruptFormat, op, cause)
}

func invalid(op string, cause error) error {
	return ctdberr.New(ctdberr.InvalidArgument, op, cause)
}
