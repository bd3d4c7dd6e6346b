package blockstore

import (
	"github.com/meshstore/meshnode/pkg/chunk"
	"github.com/meshstore/meshnode/pkg/merkle"
	"github.com/meshstore/meshnode/pkg/store"
	"github.com/meshstore/meshnode/pkg/verify"
)

type putterMode int

const (
	modeTrust putterMode = iota
	modeVerify
)

// Putter is a two-mode ingestion handle, expressed per spec §9 as a
// single capability with variant state rather than dynamic dispatch:
// trust mode hashes while writing to build the tree, verify mode
// validates interleaved proofs and chunks against a known root. Both
// modes share Write, Finalize and FeedProof; FeedProof in trust mode
// always fails.
type Putter struct {
	st   *store.Store
	mode putterMode

	buf   []byte
	index uint64

	leaves    []merkle.Hash
	wroteAny  bool
	finalized bool

	// verify mode only
	root     merkle.Hash
	verifier *verify.Verifier
}

func newTrustPutter(st *store.Store) *Putter {
	return &Putter{st: st, mode: modeTrust}
}

func newVerifyPutter(st *store.Store, root merkle.Hash) *Putter {
	return &Putter{st: st, mode: modeVerify, root: root, verifier: verify.New(root)}
}

// FeedProof submits proof material ahead of the next chunk. In trust
// mode it always fails with KindUnexpectedProof: trust mode computes
// the tree itself and accepts no externally supplied proof.
func (p *Putter) FeedProof(data []byte) error {
	if p.finalized {
		return newErr(KindInternal, "feed_proof after finalize")
	}
	if p.mode == modeTrust {
		return newErr(KindUnexpectedProof, "trust-mode putter does not accept proofs")
	}
	total, siblings, ok := DecodeProof(data)
	if !ok {
		return newErr(KindMalformedStream, "proof frame has invalid length")
	}
	if err := p.verifier.FeedProof(verify.Proof{Total: total, Siblings: siblings}); err != nil {
		return classifyVerifierErr(err)
	}
	return nil
}

// Write appends data to the current chunk buffer, sealing (hashing and
// persisting) every full Size-byte chunk as it accumulates. tag must be
// Uncompressed; any other value fails with KindCompressionNotSupported
// without consuming data.
func (p *Putter) Write(data []byte, tag CompressionTag) error {
	if p.finalized {
		return newErr(KindInternal, "write after finalize")
	}
	if tag != Uncompressed {
		return newErr(KindCompressionNotSupported, "only Uncompressed is implemented")
	}
	if len(data) > 0 {
		p.wroteAny = true
	}
	p.buf = append(p.buf, data...)
	for len(p.buf) >= chunk.Size {
		if err := p.seal(p.buf[:chunk.Size]); err != nil {
			return err
		}
		p.buf = p.buf[chunk.Size:]
	}
	return nil
}

// seal hashes and persists one full-size (or, only at Finalize, final
// short) chunk, advancing the Putter's chunk index.
func (p *Putter) seal(data []byte) error {
	leaf := merkle.LeafHash(p.index, data)

	if p.mode == modeVerify {
		if err := p.verifier.FeedChunk(data); err != nil {
			return classifyVerifierErr(err)
		}
	}

	rec, err := encodeChunkRecord(data)
	if err != nil {
		return wrapErr(KindInternal, "encode chunk record", err)
	}
	if err := p.st.Insert(leaf, rec); err != nil {
		return wrapErr(KindIO, "persist chunk", err)
	}

	p.leaves = append(p.leaves, leaf)
	p.index++
	return nil
}

// Finalize seals any residual partial buffer as the final chunk,
// computes (or confirms) the root hash, persists the Tree record under
// it, and returns the root. A Putter must not be used after Finalize.
func (p *Putter) Finalize() (merkle.Hash, error) {
	if p.finalized {
		return merkle.Hash{}, newErr(KindInternal, "finalize called twice")
	}
	if len(p.buf) > 0 {
		if err := p.seal(p.buf); err != nil {
			return merkle.Hash{}, err
		}
		p.buf = nil
	}
	p.finalized = true

	root, entries := merkle.Build(p.leaves)

	if p.mode == modeVerify {
		if !p.verifier.IsDone() {
			return merkle.Hash{}, newErr(KindIncompleteStream, "finalize called before verifier completed")
		}
		if root != p.root {
			return merkle.Hash{}, newErr(KindHashMismatch, "finalized root does not match expected root")
		}
		root = p.root
	}

	rec, err := encodeTreeRecord(entries)
	if err != nil {
		return merkle.Hash{}, wrapErr(KindInternal, "encode tree record", err)
	}
	if err := p.st.Insert(root, rec); err != nil {
		return merkle.Hash{}, wrapErr(KindIO, "persist tree", err)
	}
	return root, nil
}

func classifyVerifierErr(err error) error {
	switch err {
	case verify.ErrMalformedProof:
		return newErr(KindMalformedStream, err.Error())
	case verify.ErrUnexpectedChunk:
		return newErr(KindMalformedStream, err.Error())
	case verify.ErrChunkMismatch:
		return newErr(KindChunkMismatch, err.Error())
	case verify.ErrAlreadyDone:
		return newErr(KindMalformedStream, err.Error())
	default:
		return wrapErr(KindInternal, "verifier error", err)
	}
}
