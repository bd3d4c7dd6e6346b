package reputation

import (
	"context"
	"fmt"
	"strings"

	"github.com/meshstore/meshnode/internal/dht"
	"github.com/meshstore/meshnode/pkg/codec/cborcanon"
	"golang.org/x/text/unicode/norm"
)

// NormalizeLabel applies the same NFKC + trim normalization the name
// system uses for bare names, so a human-readable peer label entered
// at a CLI or displayed in a UI compares equal regardless of Unicode
// composition.
func NormalizeLabel(label string) string {
	return norm.NFKC.String(strings.TrimSpace(label))
}

// Resolver gossips and resolves TrustRecords through the DHT, the same
// way the name system's Resolver does for NameRecords: Publish stores
// a signed observation at its subject's DHT key, Lookup collects every
// live observation found there and resolves conflicts via the CRDT
// rule in CompareTrustRecords.
type Resolver struct {
	dht     *dht.DHT
	swarmID string
}

// NewResolver returns a Resolver gossiping trust observations over d
// for one swarm.
func NewResolver(d *dht.DHT, swarmID string) *Resolver {
	return &Resolver{dht: d, swarmID: swarmID}
}

// Publish stores a signed TrustRecord at its subject's DHT key.
func (r *Resolver) Publish(ctx context.Context, rec *TrustRecord) error {
	if len(rec.Sig) == 0 {
		return fmt.Errorf("reputation: record must be signed before publishing")
	}
	data, err := cborcanon.Marshal(rec)
	if err != nil {
		return fmt.Errorf("reputation: encode record: %w", err)
	}
	return r.dht.Put(ctx, K_trust(r.swarmID, rec.Subject), data)
}

// Lookup fetches the live trust observation(s) gossiped for subjectBID
// and resolves them into a ConflictSet. The DHT backend used here
// stores a single value per key (last Put wins at the storage layer,
// same as internal/dht's other record kinds), so in practice the
// ConflictSet holds at most one record; Lookup still goes through the
// CRDT path so a richer multi-value DHT backend can be dropped in
// without changing resolution logic.
func (r *Resolver) Lookup(ctx context.Context, subjectBID string) (*ConflictSet, error) {
	raw, err := r.dht.Get(ctx, K_trust(r.swarmID, subjectBID))
	if err != nil {
		return NewConflictSet(subjectBID, nil), nil
	}
	var rec TrustRecord
	if err := cborcanon.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("reputation: decode record: %w", err)
	}
	return NewConflictSet(subjectBID, []*TrustRecord{&rec}), nil
}

// SelectPeer picks the most-trusted BID among candidates according to
// each candidate's resolved trust score, falling back to the first
// candidate if no observations are available for any of them.
// pkg/blockstoreapi.Directory.FindProviders calls it to order provider
// addresses; pkg/transfer/client does not consult reputation data, so
// peer selection happens before a download is requested, never inside
// the core transfer itself.
func (r *Resolver) SelectPeer(ctx context.Context, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("reputation: no candidates to select from")
	}
	best := candidates[0]
	bestScore := -1.0
	for _, c := range candidates {
		cs, err := r.Lookup(ctx, c)
		if err != nil {
			return "", err
		}
		score := cs.AverageScore()
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best, nil
}
