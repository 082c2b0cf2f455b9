package ctdb_test

import (
	"os"
	"path/filepath"
	"testing"

	"ctdb"
)

// These exercise crash safety: truncating the file at any byte
// position at or beyond the last successful footer's end offset must
// still leave at least one valid footer, and a subsequent open/begin
// must recover the committed state as of that prior commit.

func TestCrashSafetyTruncationAtFooterBoundaryRecoversPriorCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.ctdb")

	db, err := ctdb.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	tx1, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx1.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := tx1.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	sizeAfterFirst := db.Stat().Size

	tx2, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx2.Put([]byte("a"), []byte("2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := tx2.Put([]byte("b"), []byte("3")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	sizeAfterSecond := db.Stat().Size

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sizeAfterSecond <= sizeAfterFirst {
		t.Fatalf("expected second commit to grow the file: %d vs %d", sizeAfterSecond, sizeAfterFirst)
	}

	truncations := []int64{
		sizeAfterFirst,
		sizeAfterFirst + (sizeAfterSecond-sizeAfterFirst)/2,
		sizeAfterSecond - 1,
	}

	for _, cut := range truncations {
		copyPath := filepath.Join(t.TempDir(), "crash-copy.ctdb")
		copyFileTruncated(t, path, copyPath, cut)

		recovered, err := ctdb.Open(copyPath)
		if err != nil {
			t.Fatalf("Open after truncation at %d: %v", cut, err)
		}
		tx, err := recovered.Begin()
		if err != nil {
			t.Fatalf("Begin after truncation at %d: %v", cut, err)
		}
		got, err := tx.GetValue([]byte("a"))
		if err != nil {
			t.Fatalf("GetValue(a) after truncation at %d: %v", cut, err)
		}
		if string(got) != "1" {
			t.Fatalf("after truncation at %d: got %q, want %q (the prior commit's value)", cut, got, "1")
		}
		if err := recovered.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}

func copyFileTruncated(t *testing.T, src, dst string, n int64) {
	t.Helper()
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if n > int64(len(data)) {
		n = int64(len(data))
	}
	if err := os.WriteFile(dst, data[:n], 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestCrashSafetyFreshFileRecoversEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "header-only.ctdb")
	db, err := ctdb.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := ctdb.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	tx, err := reopened.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if tx.RootPos() != 0 {
		t.Fatalf("expected empty root, got %d", tx.RootPos())
	}
}
