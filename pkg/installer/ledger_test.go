package installer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLedgerResolve(t *testing.T) {
	l := NewLedger()

	if seen := l.Resolve("lodash@4.17.21", false); seen {
		t.Error("first Resolve() = true, want false")
	}
	if seen := l.Resolve("lodash@4.17.21", false); !seen {
		t.Error("second Resolve() = false, want true")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestLedgerResolveConcurrent(t *testing.T) {
	l := NewLedger()

	var wg sync.WaitGroup
	var claimed atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !l.Resolve("shared@1.0.0", false) {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly one caller wins the claim; everyone else must back off.
	if claimed.Load() != 1 {
		t.Errorf("claimed = %d, want 1", claimed.Load())
	}
}

func TestLedgerAppend(t *testing.T) {
	l := NewLedger()
	l.Resolve("root@1.0.0", true)
	l.Append("root@1.0.0", "a@1.0.0")
	l.Append("root@1.0.0", "b@2.0.0")

	snap := l.Snapshot()
	root, ok := snap["root@1.0.0"]
	if !ok {
		t.Fatal("root entry missing from snapshot")
	}
	if !root.IsLatest {
		t.Error("root IsLatest = false, want true")
	}
	if len(root.Dependencies) != 2 {
		t.Errorf("dependencies = %v, want 2 entries", root.Dependencies)
	}
}

func TestLedgerAppendUnknownParent(t *testing.T) {
	l := NewLedger()
	l.Append("orphan@latest", "dep@1.0.0")

	snap := l.Snapshot()
	e, ok := snap["orphan@latest"]
	if !ok {
		t.Fatal("parent entry not created on demand")
	}
	if !e.IsLatest {
		t.Error("IsLatest = false, want true for @latest parent")
	}
	if len(e.Dependencies) != 1 || e.Dependencies[0] != "dep@1.0.0" {
		t.Errorf("dependencies = %v, want [dep@1.0.0]", e.Dependencies)
	}
}

func TestLedgerSnapshotIsolation(t *testing.T) {
	l := NewLedger()
	l.Resolve("root@1.0.0", false)
	l.Append("root@1.0.0", "a@1.0.0")

	snap := l.Snapshot()
	e := snap["root@1.0.0"]
	e.Dependencies = append(e.Dependencies, "mutated@0.0.0")

	if got := l.Snapshot()["root@1.0.0"]; len(got.Dependencies) != 1 {
		t.Errorf("ledger mutated through snapshot: %v", got.Dependencies)
	}
}

func TestLedgerAppendConcurrent(t *testing.T) {
	l := NewLedger()
	l.Resolve("root@1.0.0", false)

	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append("root@1.0.0", fmt.Sprintf("dep%d@1.0.0", n))
		}()
	}
	wg.Wait()

	if got := l.Snapshot()["root@1.0.0"]; len(got.Dependencies) != 20 {
		t.Errorf("dependencies = %d, want 20", len(got.Dependencies))
	}
}
