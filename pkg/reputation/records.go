// Package reputation implements peer trust-score gossip: a signed,
// TTL'd record gossiped through the DHT and resolved with a CRDT rule
// on conflict, the same shape a name-ownership record would take, here
// carrying a peer's observed trust score instead of a name binding. It
// is an external collaborator pkg/blockstoreapi consults to order
// several peers known to hold a root hash — never part of the
// blockstore/transfer core itself; pkg/transfer/client does not use it.
package reputation

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/meshstore/meshnode/pkg/codec/cborcanon"
	"lukechampine.com/blake3"
)

// TrustRecord is one node's signed observation of a peer's trust
// score, gossiped through the DHT the same way a NameRecord is.
type TrustRecord struct {
	V       uint16  `cbor:"v"`       // Version (always 1)
	Swarm   string  `cbor:"swarm"`   // SwarmID
	Subject string  `cbor:"subject"` // BID being scored
	Score   float64 `cbor:"score"`   // Trust score, [0, 1]
	Author  string  `cbor:"author"`  // BID of the observer signing this record
	Ver     uint64  `cbor:"ver"`     // Monotonic version by author
	TS      uint64  `cbor:"ts"`      // Timestamp (ms since Unix epoch)
	Expire  uint64  `cbor:"expire"`  // Absolute ms epoch the observation decays at
	Sig     []byte  `cbor:"sig"`     // Ed25519 signature over canonical(...)
}

// DefaultTTL is how long a trust observation is gossiped before it
// decays and must be refreshed: well above the name system's short
// handle TTL, though far below its 90-day bare-name lease, since a
// trust score changes slowly relative to presence.
const DefaultTTL = 24 * time.Hour

// NewTrustRecord creates a TrustRecord for authorBID's observation of
// subjectBID's trust score.
func NewTrustRecord(swarmID, subjectBID, authorBID string, score float64, ver uint64) *TrustRecord {
	now := uint64(time.Now().UnixMilli())
	return &TrustRecord{
		V:       1,
		Swarm:   swarmID,
		Subject: subjectBID,
		Score:   clampScore(score),
		Author:  authorBID,
		Ver:     ver,
		TS:      now,
		Expire:  now + uint64(DefaultTTL.Milliseconds()),
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Sign signs the TrustRecord with the author's private key.
func (tr *TrustRecord) Sign(privateKey ed25519.PrivateKey) error {
	sigData, err := cborcanon.EncodeForSigning(tr, "sig")
	if err != nil {
		return fmt.Errorf("failed to encode TrustRecord for signing: %w", err)
	}
	tr.Sig = ed25519.Sign(privateKey, sigData)
	return nil
}

// IsExpired reports whether the observation has decayed past its TTL.
func (tr *TrustRecord) IsExpired() bool {
	return uint64(time.Now().UnixMilli()) > tr.Expire
}

// NeedsRefresh reports whether the record is past 60% of its TTL and
// its author should re-gossip a fresh observation, mirroring the name
// system's refresh ratio.
func (tr *TrustRecord) NeedsRefresh() bool {
	now := uint64(time.Now().UnixMilli())
	refreshTime := tr.TS + uint64(float64(tr.Expire-tr.TS)*0.6)
	return now >= refreshTime
}

// K_trust generates the DHT key a swarm's TrustRecords for subjectBID
// are stored under.
func K_trust(swarmID, subjectBID string) []byte {
	hasher := blake3.New(32, nil)
	hasher.Write([]byte("trust"))
	hasher.Write([]byte(swarmID))
	hasher.Write([]byte(subjectBID))
	return hasher.Sum(nil)
}
