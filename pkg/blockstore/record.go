package blockstore

import (
	"fmt"

	"github.com/meshstore/meshnode/pkg/codec/cborcanon"
	"github.com/meshstore/meshnode/pkg/merkle"
)

// recordKind is the tagged union's explicit numeric discriminant, per
// §6's "Record encoding": 0 = Tree, 1 = Chunk.
type recordKind uint8

const (
	recordKindTree  recordKind = 0
	recordKindChunk recordKind = 1
)

// record is the on-disk tagged union stored under a content hash: a
// Tree record (a root's flat entries array) or a Chunk record (one
// chunk's bytes). It is the wire shape cborcanon serializes; Tree and
// Chunk below are the decoded, caller-facing views handed back by the
// façade.
type record struct {
	Kind    recordKind `cbor:"kind"`
	Entries [][32]byte `cbor:"entries,omitempty"`
	Bytes   []byte     `cbor:"bytes,omitempty"`
}

func encodeTreeRecord(entries []merkle.Hash) ([]byte, error) {
	raw := make([][32]byte, len(entries))
	for i, h := range entries {
		raw[i] = [32]byte(h)
	}
	return cborcanon.Marshal(&record{Kind: recordKindTree, Entries: raw})
}

func encodeChunkRecord(data []byte) ([]byte, error) {
	return cborcanon.Marshal(&record{Kind: recordKindChunk, Bytes: data})
}

func decodeRecord(data []byte) (*record, error) {
	var r record
	if err := cborcanon.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("blockstore: decode record: %w", err)
	}
	return &r, nil
}

// Tree is a read-only handle to a committed root's flat entries array.
// No caller mutates a returned Tree; it is cheap to share because the
// façade never recomputes or invalidates it once read.
type Tree struct {
	Entries []merkle.Hash
}

// Chunk is a read-only handle to one committed chunk's bytes.
type Chunk struct {
	Bytes []byte
}
