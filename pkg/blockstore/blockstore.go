package blockstore

import (
	"github.com/meshstore/meshnode/pkg/merkle"
	"github.com/meshstore/meshnode/pkg/store"
)

// Blockstore is the public façade described by spec §4.3: it serializes
// Tree/Chunk records through a Store backend and hands back read-only
// handles decoded from them. It never mutates a committed record.
type Blockstore struct {
	store *store.Store
}

// Open roots a Blockstore at dir, creating it (and its tmp
// subdirectory) if necessary. This is the façade's init operation.
func Open(dir string) (*Blockstore, error) {
	s, err := store.Open(dir)
	if err != nil {
		return nil, wrapErr(KindIO, "open store", err)
	}
	return &Blockstore{store: s}, nil
}

// GetTree reads the Tree record under hash, returning (nil, nil) if
// absent. A corrupted record is treated as a programming error and
// returned as a KindInternal *Error rather than silently swallowed.
func (b *Blockstore) GetTree(hash merkle.Hash) (*Tree, error) {
	raw, err := b.store.Fetch(hash)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, wrapErr(KindIO, "fetch tree", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, wrapErr(KindInternal, "corrupted tree record", err)
	}
	if rec.Kind != recordKindTree {
		return nil, newErr(KindInternal, "record under hash is not a Tree")
	}
	entries := make([]merkle.Hash, len(rec.Entries))
	for i, e := range rec.Entries {
		entries[i] = merkle.Hash(e)
	}
	return &Tree{Entries: entries}, nil
}

// GetChunk reads the Chunk record under chunkHash. index is advisory
// (for caching/telemetry call sites layered above the façade);
// correctness is entirely by hash.
func (b *Blockstore) GetChunk(index uint64, chunkHash merkle.Hash) (*Chunk, error) {
	raw, err := b.store.Fetch(chunkHash)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, wrapErr(KindIO, "fetch chunk", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, wrapErr(KindInternal, "corrupted chunk record", err)
	}
	if rec.Kind != recordKindChunk {
		return nil, newErr(KindInternal, "record under hash is not a Chunk")
	}
	return &Chunk{Bytes: rec.Bytes}, nil
}

// Put returns a Putter. If root is non-nil the Putter runs in verify
// mode against that expected root; otherwise it runs in trust mode and
// the caller discovers the root at Finalize.
func (b *Blockstore) Put(root *merkle.Hash) *Putter {
	if root != nil {
		return newVerifyPutter(b.store, *root)
	}
	return newTrustPutter(b.store)
}
