package verify

import (
	"bytes"
	"testing"

	"github.com/meshstore/meshnode/pkg/merkle"
)

func buildContent(n int) (root merkle.Hash, entries []merkle.Hash, chunks [][]byte) {
	chunks = make([][]byte, n)
	leaves := make([]merkle.Hash, n)
	for i := 0; i < n; i++ {
		chunks[i] = bytes.Repeat([]byte{byte(i + 1)}, 8)
		leaves[i] = merkle.LeafHash(uint64(i), chunks[i])
	}
	root, entries = merkle.Build(leaves)
	return
}

func TestVerifierAcceptsValidStream(t *testing.T) {
	root, entries, chunks := buildContent(5)
	v := New(root)
	for i, c := range chunks {
		sibs := merkle.Siblings(entries, uint64(len(chunks)), uint64(i))
		if err := v.FeedProof(Proof{Total: uint64(len(chunks)), Siblings: sibs}); err != nil {
			t.Fatalf("FeedProof(%d): %v", i, err)
		}
		if err := v.FeedChunk(c); err != nil {
			t.Fatalf("FeedChunk(%d): %v", i, err)
		}
	}
	if !v.IsDone() {
		t.Fatalf("expected verifier to be done after all chunks fed")
	}
}

func TestVerifierRejectsTamperedChunk(t *testing.T) {
	root, entries, chunks := buildContent(3)
	v := New(root)
	sibs := merkle.Siblings(entries, 3, 0)
	if err := v.FeedProof(Proof{Total: 3, Siblings: sibs}); err != nil {
		t.Fatalf("FeedProof: %v", err)
	}
	tampered := append([]byte{}, chunks[0]...)
	tampered[0] ^= 0xFF
	if err := v.FeedChunk(tampered); err != ErrChunkMismatch {
		t.Fatalf("expected ErrChunkMismatch, got %v", err)
	}
}

func TestVerifierRejectsOutOfOrderChunk(t *testing.T) {
	root, _, _ := buildContent(2)
	v := New(root)
	if err := v.FeedChunk([]byte("x")); err != ErrUnexpectedChunk {
		t.Fatalf("expected ErrUnexpectedChunk, got %v", err)
	}
}

func TestVerifierEmptyStreamIsImmediatelyDone(t *testing.T) {
	v := New(merkle.EmptyRoot())
	if !v.IsDone() {
		t.Fatalf("expected empty-root verifier to be immediately done")
	}
	if err := v.FeedProof(Proof{Total: 1}); err != ErrAlreadyDone {
		t.Fatalf("expected ErrAlreadyDone, got %v", err)
	}
}

func TestVerifierRejectsMismatchedTotal(t *testing.T) {
	root, entries, _ := buildContent(4)
	v := New(root)
	sibs := merkle.Siblings(entries, 4, 0)
	if err := v.FeedProof(Proof{Total: 4, Siblings: sibs}); err != nil {
		t.Fatalf("FeedProof: %v", err)
	}
	if err := v.FeedChunk(bytes.Repeat([]byte{1}, 8)); err != nil {
		t.Fatalf("FeedChunk: %v", err)
	}
	if err := v.FeedProof(Proof{Total: 99, Siblings: sibs}); err != ErrMalformedProof {
		t.Fatalf("expected ErrMalformedProof for inconsistent total, got %v", err)
	}
}
