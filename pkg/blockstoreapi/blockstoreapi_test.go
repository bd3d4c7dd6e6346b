package blockstoreapi

import (
	"context"
	"testing"

	"github.com/meshstore/meshnode/internal/dht"
	"github.com/meshstore/meshnode/pkg/identity"
	"github.com/meshstore/meshnode/pkg/merkle"
)

func newTestDHT(t *testing.T) *dht.DHT {
	t.Helper()
	id, err := identity.GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	d, err := dht.New(&dht.Config{SwarmID: "test-swarm", Identity: id})
	if err != nil {
		t.Fatalf("dht.New: %v", err)
	}
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d
}

func TestAnnounceAndFindProviders(t *testing.T) {
	ctx := context.Background()
	d := newTestDHT(t)
	dir := New(d, nil)

	root := merkle.LeafHash(0, []byte("content"))
	if err := dir.Announce(ctx, root, "127.0.0.1:4242"); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	if err := dir.Announce(ctx, root, "127.0.0.1:4243"); err != nil {
		t.Fatalf("Announce second provider: %v", err)
	}
	// Re-announcing the same address is a no-op, not a duplicate entry.
	if err := dir.Announce(ctx, root, "127.0.0.1:4242"); err != nil {
		t.Fatalf("Announce idempotent: %v", err)
	}

	addrs, err := dir.FindProviders(ctx, root)
	if err != nil {
		t.Fatalf("FindProviders: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("got %d providers, want 2: %v", len(addrs), addrs)
	}
}

func TestFindProvidersEmptyForUnknownRoot(t *testing.T) {
	ctx := context.Background()
	d := newTestDHT(t)
	dir := New(d, nil)

	root := merkle.LeafHash(0, []byte("never announced"))
	addrs, err := dir.FindProviders(ctx, root)
	if err != nil {
		t.Fatalf("FindProviders: %v", err)
	}
	if len(addrs) != 0 {
		t.Fatalf("got %d providers for unannounced root, want 0", len(addrs))
	}
}
