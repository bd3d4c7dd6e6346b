// Package verify implements the incremental verifier a Transfer Client
// uses to validate chunks as they stream in, before any of them touch
// disk under a trusted key.
package verify

import (
	"errors"

	"github.com/meshstore/meshnode/pkg/merkle"
)

// Sentinel errors classified by the caller into the blockstore's shared
// error taxonomy.
var (
	// ErrMalformedProof is returned when a proof frame's shape cannot
	// possibly belong to the tree implied by the target root (wrong
	// total chunk count, inconsistent sibling count).
	ErrMalformedProof = errors.New("verify: malformed proof")
	// ErrUnexpectedChunk is returned when feed_chunk is called without
	// a pending proof, i.e. out of the required proof/chunk order.
	ErrUnexpectedChunk = errors.New("verify: chunk fed without a preceding proof")
	// ErrChunkMismatch is returned when a chunk's leaf hash, combined
	// with its proof, does not reconstruct the target root.
	ErrChunkMismatch = errors.New("verify: chunk does not match its proof")
	// ErrAlreadyDone is returned when proof or chunk material is fed
	// after every expected chunk has already verified.
	ErrAlreadyDone = errors.New("verify: stream already complete")
)

// Proof is the sibling-hash material needed to authenticate one chunk.
type Proof struct {
	Total    uint64
	Siblings []merkle.Hash
}

// Verifier incrementally authenticates a stream of chunks against a
// known root hash, one proof/chunk pair at a time.
type Verifier struct {
	root    merkle.Hash
	total   uint64
	empty   bool
	index   uint64
	pending *Proof
}

// New creates a Verifier for the given root. If root is the empty-tree
// sentinel, the verifier is immediately done: an empty stream has no
// chunks to feed.
func New(root merkle.Hash) *Verifier {
	v := &Verifier{root: root}
	if root == merkle.EmptyRoot() {
		v.empty = true
	}
	return v
}

// FeedProof submits the proof for the next expected chunk. It must be
// followed by exactly one FeedChunk call before another FeedProof.
func (v *Verifier) FeedProof(p Proof) error {
	if v.IsDone() {
		return ErrAlreadyDone
	}
	if v.pending != nil {
		return ErrMalformedProof
	}
	if v.total == 0 {
		v.total = p.Total
	} else if v.total != p.Total {
		return ErrMalformedProof
	}
	if v.total == 0 {
		return ErrMalformedProof
	}
	wantSibs := depthAt(v.total, v.index)
	if len(p.Siblings) != wantSibs {
		return ErrMalformedProof
	}
	pcopy := p
	v.pending = &pcopy
	return nil
}

// FeedChunk validates data as the next chunk using the most recently
// fed proof, returning ErrChunkMismatch if it does not authenticate
// against the verifier's root.
func (v *Verifier) FeedChunk(data []byte) error {
	if v.IsDone() {
		return ErrAlreadyDone
	}
	if v.pending == nil {
		return ErrUnexpectedChunk
	}
	leaf := merkle.LeafHash(v.index, data)
	got := merkle.RootFromPath(v.pending.Total, v.index, leaf, v.pending.Siblings)
	if got != v.root {
		return ErrChunkMismatch
	}
	v.index++
	v.pending = nil
	return nil
}

// IsDone reports whether every expected chunk has verified.
func (v *Verifier) IsDone() bool {
	if v.empty {
		return true
	}
	return v.total > 0 && v.index >= v.total
}

// depthAt returns the number of sibling hashes chunk i requires in a
// tree of the given total size, matching the recursion Siblings uses.
func depthAt(total, i uint64) int {
	depth := 0
	low, high := uint64(0), total
	for high-low > 1 {
		left := largestPow2LessThan(high - low)
		mid := low + left
		if i < mid {
			high = mid
		} else {
			low = mid
		}
		depth++
	}
	return depth
}

func largestPow2LessThan(n uint64) uint64 {
	p := uint64(1)
	for p*2 < n {
		p *= 2
	}
	return p
}
