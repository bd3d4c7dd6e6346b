package merkle

import (
	"testing"
)

func leaves(n int) []Hash {
	out := make([]Hash, n)
	for i := range out {
		out[i] = LeafHash(uint64(i), []byte{byte(i), byte(i + 1)})
	}
	return out
}

func TestBuildEmpty(t *testing.T) {
	root, entries := Build(nil)
	if root != EmptyRoot() {
		t.Fatalf("expected empty sentinel root")
	}
	if entries != nil {
		t.Fatalf("expected no entries for empty tree, got %d", len(entries))
	}
}

func TestBuildSingleChunk(t *testing.T) {
	ls := leaves(1)
	root, entries := Build(ls)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[Idx(0)] != ls[0] {
		t.Fatalf("entries[idx(0)] should equal the leaf hash")
	}
	if root == ls[0] {
		t.Fatalf("root must be distinct from the raw leaf hash (root finalization)")
	}
}

func TestBuildTwoChunks(t *testing.T) {
	ls := leaves(2)
	_, entries := Build(ls)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for N=2, got %d", len(entries))
	}
	if entries[Idx(0)] != ls[0] || entries[Idx(1)] != ls[1] {
		t.Fatalf("leaf positions mismatch for N=2")
	}
}

func TestBuildThreeChunks(t *testing.T) {
	ls := leaves(3)
	_, entries := Build(ls)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries for N=3, got %d", len(entries))
	}
	wantIdx := []uint64{0, 1, 3}
	for i, want := range wantIdx {
		if Idx(uint64(i)) != want {
			t.Fatalf("idx(%d) = %d, want %d", i, Idx(uint64(i)), want)
		}
		if entries[want] != ls[i] {
			t.Fatalf("entries[idx(%d)] should equal leaf %d's hash", i, i)
		}
	}
}

func TestSiblingsRoundTrip(t *testing.T) {
	for n := 1; n <= 17; n++ {
		ls := leaves(n)
		root, entries := Build(ls)
		for i := 0; i < n; i++ {
			sibs := Siblings(entries, uint64(n), uint64(i))
			got := RootFromPath(uint64(n), uint64(i), ls[i], sibs)
			if got != root {
				t.Fatalf("n=%d i=%d: recomputed root mismatch", n, i)
			}
		}
	}
}

func TestSiblingsRejectsWrongLeaf(t *testing.T) {
	ls := leaves(5)
	root, entries := Build(ls)
	sibs := Siblings(entries, 5, 2)
	wrong := LeafHash(2, []byte("tampered"))
	got := RootFromPath(5, 2, wrong, sibs)
	if got == root {
		t.Fatalf("tampered chunk must not reproduce the original root")
	}
}
