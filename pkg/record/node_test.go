package record

import (
	"path/filepath"
	"testing"

	"ctdb/pkg/storage"
)

func openTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.ctdb")
	s, err := storage.Open(path, HeaderSize, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNodeEncodeDecodeRoundTrip(t *testing.T) {
	n := Node{
		Prefix:  []byte("user:"),
		LeafPos: 512,
		Items: []Item{
			{FirstByte: 'a', ChildPos: 256},
			{FirstByte: 'z', ChildPos: 768},
		},
	}
	buf, err := n.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) != NodeFixed+2*ItemSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), NodeFixed+2*ItemSize)
	}

	fixed, count, err := decodeNodeFixed(buf[:NodeFixed])
	if err != nil {
		t.Fatalf("decodeNodeFixed: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if string(fixed.Prefix) != "user:" || fixed.LeafPos != 512 {
		t.Fatalf("fixed header mismatch: %+v", fixed)
	}

	items, err := decodeItems(buf[NodeFixed:], count)
	if err != nil {
		t.Fatalf("decodeItems: %v", err)
	}
	if len(items) != 2 || items[0].FirstByte != 'a' || items[1].FirstByte != 'z' {
		t.Fatalf("items mismatch: %+v", items)
	}
}

func TestNodeDumpLoadRoundTrip(t *testing.T) {
	s := openTestStorage(t)
	n := Node{
		Prefix:  []byte("x"),
		LeafPos: 0,
		Items: []Item{
			{FirstByte: 1, ChildPos: 200},
			{FirstByte: 2, ChildPos: 300},
			{FirstByte: 200, ChildPos: 400},
		},
	}
	pos, err := DumpNode(s, n)
	if err != nil {
		t.Fatalf("DumpNode: %v", err)
	}
	if pos != HeaderSize {
		t.Fatalf("pos = %d, want %d", pos, HeaderSize)
	}

	got, err := LoadNode(s, pos)
	if err != nil {
		t.Fatalf("LoadNode: %v", err)
	}
	if string(got.Prefix) != "x" || got.LeafPos != 0 || len(got.Items) != 3 {
		t.Fatalf("loaded node mismatch: %+v", got)
	}
	if got.Items[2].FirstByte != 200 || got.Items[2].ChildPos != 400 {
		t.Fatalf("items[2] mismatch: %+v", got.Items[2])
	}
}

func TestNodeLoadLeafOnlyNode(t *testing.T) {
	s := openTestStorage(t)
	n := Node{Prefix: []byte("leafonly"), LeafPos: 999}
	pos, err := DumpNode(s, n)
	if err != nil {
		t.Fatalf("DumpNode: %v", err)
	}
	got, err := LoadNode(s, pos)
	if err != nil {
		t.Fatalf("LoadNode: %v", err)
	}
	if len(got.Items) != 0 || got.LeafPos != 999 {
		t.Fatalf("got = %+v", got)
	}
}

func TestNodeEncodeRejectsOversizedPrefix(t *testing.T) {
	n := Node{Prefix: make([]byte, KeyMax+1)}
	if _, err := n.Encode(); err == nil {
		t.Fatal("expected error for prefix exceeding KeyMax")
	}
}

func TestFindChild(t *testing.T) {
	items := []Item{
		{FirstByte: 'a', ChildPos: 10},
		{FirstByte: 'm', ChildPos: 20},
		{FirstByte: 'z', ChildPos: 30},
	}
	if pos, ok := FindChild(items, 'm'); !ok || pos != 20 {
		t.Fatalf("FindChild('m') = %d, %v", pos, ok)
	}
	if _, ok := FindChild(items, 'b'); ok {
		t.Fatal("FindChild('b') should not be found")
	}
}

func TestWithChildInsertsSorted(t *testing.T) {
	var items []Item
	var err error
	items, err = WithChild(items, 'm', 1)
	if err != nil {
		t.Fatalf("WithChild: %v", err)
	}
	items, err = WithChild(items, 'a', 2)
	if err != nil {
		t.Fatalf("WithChild: %v", err)
	}
	items, err = WithChild(items, 'z', 3)
	if err != nil {
		t.Fatalf("WithChild: %v", err)
	}
	if len(items) != 3 || items[0].FirstByte != 'a' || items[1].FirstByte != 'm' || items[2].FirstByte != 'z' {
		t.Fatalf("items not sorted: %+v", items)
	}
}

func TestWithChildReplacesExisting(t *testing.T) {
	items := []Item{{FirstByte: 'a', ChildPos: 1}}
	items, err := WithChild(items, 'a', 99)
	if err != nil {
		t.Fatalf("WithChild: %v", err)
	}
	if len(items) != 1 || items[0].ChildPos != 99 {
		t.Fatalf("replace failed: %+v", items)
	}
}

func TestSaturatedItemTableContainsTopByte(t *testing.T) {
	items := make([]Item, MaxChildren)
	for i := range items {
		items[i] = Item{FirstByte: byte(i), ChildPos: int64(i)}
	}
	// MaxChildren == 256 matches the byte range exactly, so a table with
	// one entry per byte value 0..255 has no free first byte left and
	// WithChild on it can only take its replace path. This checks that
	// the last byte value, 255, is present in such a table; the capacity
	// guards in WithChild and itemsCount/Encode are not exercised here.
	if _, ok := FindChild(items, 255); !ok {
		t.Fatal("expected 255 to already be present in saturated table")
	}
}
