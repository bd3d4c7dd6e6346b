package agent

import (
	"context"
	"testing"
	"time"

	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/identity"
	"github.com/meshstore/meshnode/pkg/transport/tcp"
)

func TestAgentDirectoryIntegration(t *testing.T) {
	id, err := identity.GenerateIdentity()
	if err != nil {
		t.Fatalf("Failed to generate identity: %v", err)
	}
	bs, err := blockstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open blockstore: %v", err)
	}

	a := New(id, bs, "127.0.0.1:0", tcp.New())
	a.SetSwarmID("test-swarm")

	if err := a.InitializeDHT(); err != nil {
		t.Fatalf("Failed to initialize DHT: %v", err)
	}

	if a.GetDHT() == nil {
		t.Fatal("DHT instance not created")
	}
	if a.Directory() == nil {
		t.Fatal("Directory not created")
	}
	if a.Reputation() == nil {
		t.Fatal("Reputation resolver not created")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Failed to start agent: %v", err)
	}
	if a.State() != StateRunning {
		t.Errorf("Expected agent state to be running, got %s", a.State())
	}

	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Failed to stop agent: %v", err)
	}
	if a.State() != StateStopped {
		t.Errorf("Expected agent state to be stopped, got %s", a.State())
	}
}

func TestAgentDirectoryNilBeforeInitialize(t *testing.T) {
	id, err := identity.GenerateIdentity()
	if err != nil {
		t.Fatalf("Failed to generate identity: %v", err)
	}
	bs, err := blockstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open blockstore: %v", err)
	}

	a := New(id, bs, "127.0.0.1:0", tcp.New())
	a.SetSwarmID("test-swarm")

	if a.GetDHT() != nil {
		t.Error("DHT should be nil before initialization")
	}
	if a.Directory() != nil {
		t.Error("Directory should be nil before initialization")
	}
	if a.Reputation() != nil {
		t.Error("Reputation should be nil before initialization")
	}
}
