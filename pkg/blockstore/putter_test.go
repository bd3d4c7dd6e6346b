package blockstore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/meshstore/meshnode/pkg/chunk"
	"github.com/meshstore/meshnode/pkg/merkle"
)

// driveVerify feeds data through a verify-mode Putter chunk by chunk,
// computing each chunk's proof from the already-known tree entries —
// standing in for what the Stream Encoder/Frame Decoder do over the
// wire (exercised directly in pkg/transfer).
func driveVerify(t *testing.T, bs *Blockstore, root merkle.Hash, entries []merkle.Hash, total uint64, data []byte) (merkle.Hash, error) {
	t.Helper()
	p := bs.Put(&root)
	for i := uint64(0); i < total; i++ {
		start := i * chunk.Size
		end := start + chunk.Size
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		sibs := merkle.Siblings(entries, total, i)
		if err := p.FeedProof(EncodeProof(total, sibs)); err != nil {
			return merkle.Hash{}, err
		}
		if err := p.Write(data[start:end], Uncompressed); err != nil {
			return merkle.Hash{}, err
		}
	}
	return p.Finalize()
}

func TestVerifyRoundTrip(t *testing.T) {
	bsA, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data := make([]byte, 2*chunk.Size+1)
	for i := range data {
		data[i] = byte(i * 7)
	}
	root := putTrust(t, bsA, data)
	tree, err := bsA.GetTree(root)
	if err != nil || tree == nil {
		t.Fatalf("GetTree: %v, %v", tree, err)
	}
	total := chunk.Count(uint64(len(data)))

	bsB, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := driveVerify(t, bsB, root, tree.Entries, total, data)
	if err != nil {
		t.Fatalf("driveVerify: %v", err)
	}
	if got != root {
		t.Fatalf("verify root = %x, want %x", got, root)
	}
	if out := reconstruct(t, bsB, root); !bytes.Equal(out, data) {
		t.Fatalf("reconstructed mismatch")
	}
}

func TestVerifyRejectsTamperedChunk(t *testing.T) {
	bsA, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data := make([]byte, 2*chunk.Size)
	root := putTrust(t, bsA, data)
	tree, _ := bsA.GetTree(root)
	total := chunk.Count(uint64(len(data)))

	tampered := make([]byte, len(data))
	copy(tampered, data)
	tampered[chunk.Size] ^= 0xFF

	bsB, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, err = driveVerify(t, bsB, root, tree.Entries, total, tampered)
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindChunkMismatch {
		t.Fatalf("got %v, want KindChunkMismatch", err)
	}
	if got, _ := bsB.GetTree(root); got != nil {
		t.Fatalf("tree must not be committed after tamper rejection")
	}
}

func TestVerifyFeedProofRejectedInTrustMode(t *testing.T) {
	bs, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := bs.Put(nil)
	err = p.FeedProof(EncodeProof(1, nil))
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindUnexpectedProof {
		t.Fatalf("got %v, want KindUnexpectedProof", err)
	}
}

func TestVerifyIncompleteStreamFails(t *testing.T) {
	bsA, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data := make([]byte, 2*chunk.Size)
	root := putTrust(t, bsA, data)
	tree, _ := bsA.GetTree(root)

	bsB, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := bsB.Put(&root)
	sibs := merkle.Siblings(tree.Entries, 2, 0)
	if err := p.FeedProof(EncodeProof(2, sibs)); err != nil {
		t.Fatalf("FeedProof: %v", err)
	}
	if err := p.Write(data[:chunk.Size], Uncompressed); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, err = p.Finalize()
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindIncompleteStream {
		t.Fatalf("got %v, want KindIncompleteStream", err)
	}
}

func TestVerifyEmptyRoot(t *testing.T) {
	bs, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	root := merkle.EmptyRoot()
	p := bs.Put(&root)
	got, err := p.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got != root {
		t.Fatalf("got %x, want %x", got, root)
	}
}
