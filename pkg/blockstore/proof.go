package blockstore

import (
	"encoding/binary"

	"github.com/meshstore/meshnode/pkg/merkle"
)

// EncodeProof serializes the sibling-hash material Verifier.FeedProof
// needs for one chunk into the byte form carried inside a wire Proof
// frame (§4.5): an 8-byte big-endian total chunk count followed by the
// siblings, 32 bytes each, ordered root-to-leaf as Siblings returns
// them. Both the Stream Encoder and Putter.FeedProof share this codec
// so a proof built on one side decodes unchanged on the other.
func EncodeProof(total uint64, siblings []merkle.Hash) []byte {
	out := make([]byte, 8+32*len(siblings))
	binary.BigEndian.PutUint64(out[:8], total)
	for i, h := range siblings {
		copy(out[8+32*i:8+32*(i+1)], h[:])
	}
	return out
}

// DecodeProof is the inverse of EncodeProof. It returns ok == false (it
// has no error result; the caller picks the error Kind) when the byte
// length isn't 8 + a whole number of 32-byte hashes.
func DecodeProof(b []byte) (total uint64, siblings []merkle.Hash, ok bool) {
	if len(b) < 8 || (len(b)-8)%32 != 0 {
		return 0, nil, false
	}
	total = binary.BigEndian.Uint64(b[:8])
	n := (len(b) - 8) / 32
	siblings = make([]merkle.Hash, n)
	for i := 0; i < n; i++ {
		copy(siblings[i][:], b[8+32*i:8+32*(i+1)])
	}
	return total, siblings, true
}
