package ctdb_test

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ctdb"
)

// This mirrors every Put/Del/Commit/Rollback call against a plain
// map[string][]byte oracle and asserts Get/Iterate agree with the
// oracle after each commit, using an op-sequence fuzz harness with
// go-cmp to diff mismatches.

type opKind int

const (
	opPut opKind = iota
	opDel
	opCommit
	opRollback
)

type op struct {
	kind  opKind
	key   string
	value string
}

func genOps(seed int64, n int) []op {
	r := rand.New(rand.NewSource(seed))
	keys := []string{"a", "b", "ab", "abc", "abcd", "b1", "car", "cart", "card", "z"}
	var ops []op
	for i := 0; i < n; i++ {
		switch r.Intn(5) {
		case 0, 1, 2:
			ops = append(ops, op{kind: opPut, key: keys[r.Intn(len(keys))], value: fmt.Sprintf("v%d", i)})
		case 3:
			ops = append(ops, op{kind: opDel, key: keys[r.Intn(len(keys))]})
		case 4:
			if r.Intn(2) == 0 {
				ops = append(ops, op{kind: opCommit})
			} else {
				ops = append(ops, op{kind: opRollback})
			}
		}
	}
	ops = append(ops, op{kind: opCommit})
	return ops
}

func cloneOracle(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func oracleSnapshot(m map[string]string) map[string][]byte {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = []byte(v)
	}
	return out
}

func TestDatabasePropertyAgreesWithOracle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "property.ctdb")
	db, err := ctdb.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	committed := map[string]string{} // last-committed oracle state

	for _, seed := range []int64{1, 2, 3, 4} {
		ops := genOps(seed, 60)

		working := cloneOracle(committed)
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("Begin: %v", err)
		}

		for i, o := range ops {
			switch o.kind {
			case opPut:
				if err := tx.Put([]byte(o.key), []byte(o.value)); err != nil {
					t.Fatalf("seed %d op %d Put(%q): %v", seed, i, o.key, err)
				}
				working[o.key] = o.value

			case opDel:
				if err := tx.Del([]byte(o.key)); err != nil {
					t.Fatalf("seed %d op %d Del(%q): %v", seed, i, o.key, err)
				}
				delete(working, o.key)

			case opCommit:
				if err := tx.Commit(); err != nil {
					t.Fatalf("seed %d op %d Commit: %v", seed, i, err)
				}
				committed = cloneOracle(working)
				assertMatchesOracle(t, db, committed)

				tx, err = db.Begin()
				if err != nil {
					t.Fatalf("Begin: %v", err)
				}
				working = cloneOracle(committed)

			case opRollback:
				if err := tx.Rollback(); err != nil {
					t.Fatalf("seed %d op %d Rollback: %v", seed, i, err)
				}
				assertMatchesOracle(t, db, committed)

				tx, err = db.Begin()
				if err != nil {
					t.Fatalf("Begin: %v", err)
				}
				working = cloneOracle(committed)
			}
		}
	}
}

func assertMatchesOracle(t *testing.T, db *ctdb.Database, oracle map[string]string) {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin for assertion: %v", err)
	}

	for key, want := range oracle {
		got, err := tx.GetValue([]byte(key))
		if err != nil {
			t.Fatalf("GetValue(%q): %v", key, err)
		}
		if string(got) != want {
			t.Fatalf("GetValue(%q) = %q, want %q", key, got, want)
		}
	}

	got, err := ctdb.Collect(tx, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := oracleSnapshot(oracle)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Collect mismatch (-want +got):\n%s", diff)
	}
}
