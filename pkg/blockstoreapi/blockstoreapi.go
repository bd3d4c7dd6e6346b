// Package blockstoreapi is the provider-lookup glue between the
// blockstore/transfer core and peer discovery: it lets a node announce
// that it holds a root hash, and lets another node find peer addresses
// to request that root hash from. It is one of the "external
// collaborators [that] call the core only through the operations of
// §4" — it never reads or writes a Store directly, only root hashes
// and transport addresses.
package blockstoreapi

import (
	"context"
	"fmt"

	"github.com/meshstore/meshnode/internal/dht"
	"github.com/meshstore/meshnode/pkg/codec/cborcanon"
	"github.com/meshstore/meshnode/pkg/merkle"
	"github.com/meshstore/meshnode/pkg/reputation"
	"lukechampine.com/blake3"
)

// providerSet is the DHT-stored record of addresses known to serve a
// root hash, keyed the same way honeytag's presence records are.
type providerSet struct {
	Addrs []string `cbor:"addrs"`
}

// providerKey is the DHT key content under a root hash is announced.
func providerKey(root merkle.Hash) []byte {
	h := blake3.New(32, nil)
	h.Write([]byte("blockstore-provider"))
	h.Write(root[:])
	return h.Sum(nil)
}

// Directory announces and discovers providers for root hashes over a
// DHT, and optionally ranks discovered providers with a trust
// Resolver before handing them back to a caller.
type Directory struct {
	dht        *dht.DHT
	reputation *reputation.Resolver
}

// New returns a Directory over d. rep may be nil, in which case
// FindProviders returns addresses in discovery order without ranking.
func New(d *dht.DHT, rep *reputation.Resolver) *Directory {
	return &Directory{dht: d, reputation: rep}
}

// Announce records selfAddr as a provider of root, merging with any
// addresses already announced for that root.
func (dir *Directory) Announce(ctx context.Context, root merkle.Hash, selfAddr string) error {
	existing, err := dir.fetch(ctx, root)
	if err != nil {
		return err
	}
	for _, a := range existing.Addrs {
		if a == selfAddr {
			return nil
		}
	}
	existing.Addrs = append(existing.Addrs, selfAddr)
	return dir.store(ctx, root, existing)
}

// FindProviders returns the known provider addresses for root. If a
// reputation Resolver is configured, the best-trusted address is moved
// to the front (each address string is looked up as a trust subject
// as-is; no BID is parsed out of it); otherwise addresses are returned
// in announce order.
func (dir *Directory) FindProviders(ctx context.Context, root merkle.Hash) ([]string, error) {
	set, err := dir.fetch(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(set.Addrs) == 0 || dir.reputation == nil {
		return set.Addrs, nil
	}
	best, err := dir.reputation.SelectPeer(ctx, set.Addrs)
	if err != nil {
		return set.Addrs, nil
	}
	ordered := make([]string, 0, len(set.Addrs))
	ordered = append(ordered, best)
	for _, a := range set.Addrs {
		if a != best {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

func (dir *Directory) fetch(ctx context.Context, root merkle.Hash) (providerSet, error) {
	raw, err := dir.dht.Get(ctx, providerKey(root))
	if err != nil {
		return providerSet{}, nil
	}
	var set providerSet
	if err := cborcanon.Unmarshal(raw, &set); err != nil {
		return providerSet{}, fmt.Errorf("blockstoreapi: decode provider set: %w", err)
	}
	return set, nil
}

func (dir *Directory) store(ctx context.Context, root merkle.Hash, set providerSet) error {
	data, err := cborcanon.Marshal(set)
	if err != nil {
		return fmt.Errorf("blockstoreapi: encode provider set: %w", err)
	}
	return dir.dht.Put(ctx, providerKey(root), data)
}
