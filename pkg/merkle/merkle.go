// Package merkle builds the domain-separated BLAKE3 tree over a content
// stream's chunks and exposes the Bao-style flat addressing used to find
// a chunk's hash inside a tree's stored entries.
//
// lukechampine.com/blake3 exposes only Sum256/New(size, key) — a plain
// hash.Hash, not Bao's internal chaining-value tree — so the tree is
// built on top of that primitive with explicit domain tags, the same
// style of leaf/node/root tag bytes used across the pack's other Merkle
// implementations (other_examples/...JMDN_Merkletree...).
package merkle

import (
	"encoding/binary"
	"math/bits"

	"lukechampine.com/blake3"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

const (
	tagLeaf = 0x00
	tagNode = 0x01
	tagRoot = 0x02
)

// LeafHash hashes a single chunk under its stream index.
func LeafHash(index uint64, data []byte) Hash {
	h := blake3.New(32, nil)
	h.Write([]byte{tagLeaf})
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], index)
	h.Write(be[:])
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// nodeHash combines two child hashes into a plain (non-root) internal node.
func nodeHash(left, right Hash) Hash {
	h := blake3.New(32, nil)
	h.Write([]byte{tagNode})
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// finalizeRoot folds a root-finalization tag over the pre-root value,
// so the tree's root hash never collides with a same-shaped internal
// node value appearing elsewhere in the tree.
func finalizeRoot(preRoot Hash) Hash {
	h := blake3.New(32, nil)
	h.Write([]byte{tagRoot})
	h.Write(preRoot[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// EmptyRoot is the sentinel root hash for a zero-chunk (empty) stream.
func EmptyRoot() Hash {
	sum := blake3.Sum256(nil)
	return Hash(sum)
}

// Idx returns the position of chunk i's hash within a tree's entries
// array, per the flat post-order layout built by Build.
func Idx(i uint64) uint64 {
	return 2*i - uint64(bits.OnesCount64(i))
}

// largestPow2LessThan returns the largest power of two strictly less
// than n, for n >= 2. This is the standard Bao split rule: the left
// subtree always takes a full power-of-two prefix smaller than the
// whole, leaving the remainder (never empty) to the right.
func largestPow2LessThan(n uint64) uint64 {
	p := uint64(1)
	for p*2 < n {
		p *= 2
	}
	return p
}

// visitSubtree recursively lays out a non-root subtree of leaf hashes,
// appending every node it visits (leaves and internal combines alike)
// to the returned entries slice in post-order (children before parent).
func visitSubtree(leaves []Hash) (root Hash, entries []Hash) {
	n := len(leaves)
	if n == 1 {
		return leaves[0], []Hash{leaves[0]}
	}
	left := largestPow2LessThan(uint64(n))
	lh, lentries := visitSubtree(leaves[:left])
	rh, rentries := visitSubtree(leaves[left:])
	node := nodeHash(lh, rh)
	entries = append(lentries, rentries...)
	entries = append(entries, node)
	return node, entries
}

// Build computes a tree's root hash and its flat entries array from an
// ordered slice of leaf hashes. The root is excluded from entries: it is
// the key under which the Tree record itself is stored, not a member of
// its own array. Idx(i) gives the position of leaf i's hash within the
// returned entries slice.
func Build(leaves []Hash) (root Hash, entries []Hash) {
	n := len(leaves)
	if n == 0 {
		return EmptyRoot(), nil
	}
	if n == 1 {
		return finalizeRoot(leaves[0]), []Hash{leaves[0]}
	}
	left := largestPow2LessThan(uint64(n))
	lh, lentries := visitSubtree(leaves[:left])
	rh, rentries := visitSubtree(leaves[left:])
	pre := nodeHash(lh, rh)
	entries = append(lentries, rentries...)
	return finalizeRoot(pre), entries
}

// Siblings returns, for chunk index i within a stream of total chunks,
// the ordered list of sibling hashes needed to recompute the root given
// the chunk's own leaf hash, ordered from the root-level split down to
// the leaf's immediate sibling. It is the information an Incremental
// Verifier needs before it can accept chunk i.
func Siblings(entries []Hash, total uint64, i uint64) []Hash {
	var sibs []Hash
	var walk func(low, high uint64)
	walk = func(low, high uint64) {
		n := high - low
		if n == 1 {
			return
		}
		left := largestPow2LessThan(n)
		mid := low + left
		if i < mid {
			sibs = append(sibs, subtreeHash(entries, mid, high))
			walk(low, mid)
		} else {
			sibs = append(sibs, subtreeHash(entries, low, mid))
			walk(mid, high)
		}
	}
	walk(0, total)
	return sibs
}

// subtreeHash returns the combined hash of the subtree covering chunk
// range [low, high) without descending into it, used when that range
// does not contain the chunk being authenticated.
func subtreeHash(entries []Hash, low, high uint64) Hash {
	n := high - low
	if n == 1 {
		return entries[Idx(low)]
	}
	// The subtree's own combine hash is stored immediately after the
	// last entry contributed by its right child, i.e. at Idx(high) - 1
	// for any range that isn't the whole tree. We recompute this by
	// recursing the same split used at build time, reading only the
	// already-stored child hashes rather than rehashing chunk data.
	left := largestPow2LessThan(n)
	mid := low + left
	lh := subtreeHash(entries, low, mid)
	rh := subtreeHash(entries, mid, high)
	return nodeHash(lh, rh)
}

// RootFromPath reconstructs the pre-root value for chunk i given its leaf
// hash and the sibling path returned by Siblings, then finalizes it as
// a root (for total == 1 the leaf hash itself is finalized). Callers authenticate a chunk by comparing RootFromPath against the
// tree's known root hash.
func RootFromPath(total uint64, i uint64, leaf Hash, siblings []Hash) Hash {
	if total == 1 {
		return finalizeRoot(leaf)
	}
	cur := leaf
	low, high := uint64(0), total
	// Replay the same recursive split to learn, at each level, whether
	// the chunk's position was in the left or right half — this must
	// match the order Siblings walked them in (root-ward, so we must
	// first find the path top-down, then combine bottom-up).
	type step struct {
		siblingOnRight bool
	}
	var path []step
	for high-low > 1 {
		left := largestPow2LessThan(high - low)
		mid := low + left
		if i < mid {
			path = append(path, step{siblingOnRight: true})
			high = mid
		} else {
			path = append(path, step{siblingOnRight: false})
			low = mid
		}
	}
	// path is ordered root-to-leaf, same as siblings; walk both in
	// reverse to combine leaf-to-root.
	for idx := len(path) - 1; idx >= 0; idx-- {
		sib := siblings[idx]
		if path[idx].siblingOnRight {
			cur = nodeHash(cur, sib)
		} else {
			cur = nodeHash(sib, cur)
		}
	}
	return finalizeRoot(cur)
}
