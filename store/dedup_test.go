package store

import (
	"fmt"
	"testing"
)

func TestDedupSeenRecord(t *testing.T) {
	d := NewDedupWindow()

	if d.Seen("m1") {
		t.Error("fresh id should not be seen")
	}
	d.Record("m1")
	if !d.Seen("m1") {
		t.Error("recorded id should be seen")
	}
	if d.Seen("m2") {
		t.Error("different id should not be seen")
	}

	// Recording twice must not grow the window.
	d.Record("m1")
	if d.Len() != 1 {
		t.Errorf("len: got %d, want 1", d.Len())
	}
}

func TestDedupEmptyIDIgnored(t *testing.T) {
	d := NewDedupWindow()
	d.Record("")
	if d.Len() != 0 {
		t.Errorf("empty id should not be recorded, len %d", d.Len())
	}
}

func TestDedupBoundedSize(t *testing.T) {
	d := NewDedupWindow()
	for i := 0; i < dedupCapacity*3; i++ {
		d.Record(fmt.Sprintf("m%d", i))
		if d.Len() > dedupCapacity {
			t.Fatalf("window exceeded %d at iteration %d: %d", dedupCapacity, i, d.Len())
		}
	}
}

func TestDedupBatchEviction(t *testing.T) {
	d := NewDedupWindow()
	for i := 0; i < dedupCapacity; i++ {
		d.Record(fmt.Sprintf("m%d", i))
	}
	if d.Len() != dedupCapacity {
		t.Fatalf("len: got %d, want %d", d.Len(), dedupCapacity)
	}

	// One more record evicts the oldest batch in a single step.
	d.Record("overflow")
	want := dedupCapacity - dedupEvictBatch + 1
	if d.Len() != want {
		t.Errorf("len after eviction: got %d, want %d", d.Len(), want)
	}
	if d.Seen("m0") {
		t.Error("oldest id should have been evicted")
	}
	if !d.Seen(fmt.Sprintf("m%d", dedupEvictBatch)) {
		t.Error("first survivor should still be seen")
	}
	if !d.Seen("overflow") {
		t.Error("new id should be seen")
	}
}

func TestDedupReset(t *testing.T) {
	d := NewDedupWindow()
	d.Record("m1")
	d.Reset()
	if d.Len() != 0 || d.Seen("m1") {
		t.Error("reset should discard all ids")
	}
}

func TestTempIDUnique(t *testing.T) {
	g := NewTempIDGen()
	seen := make(map[string]struct{})
	for i := 0; i < 10000; i++ {
		id := g.Next()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate temp id at iteration %d: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}
