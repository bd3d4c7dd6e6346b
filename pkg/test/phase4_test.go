// Package test provides a multi-agent test harness for the
// content-delivery domain: several Agents, each with its own
// blockstore and listener, driven through real put/start/download
// cycles end to end.
package test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/meshstore/meshnode/pkg/agent"
	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/identity"
	"github.com/meshstore/meshnode/pkg/reputation"
	"github.com/meshstore/meshnode/pkg/transfer/client"
	"github.com/meshstore/meshnode/pkg/transport/tcp"
)

// TestHarness runs several Agents concurrently against their own
// blockstores, each reachable on its own loopback address.
type TestHarness struct {
	agents     []*agent.Agent
	identities []*identity.Identity
	addrs      []string
	dirs       []string
	swarmID    string
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewTestHarness creates a new test harness with numAgents agents, each
// listening on a distinct loopback port starting at basePort.
func NewTestHarness(numAgents int, swarmID string) (*TestHarness, error) {
	if numAgents < 1 {
		return nil, fmt.Errorf("need at least 1 agent")
	}

	ctx, cancel := context.WithCancel(context.Background())

	harness := &TestHarness{
		agents:     make([]*agent.Agent, 0, numAgents),
		identities: make([]*identity.Identity, 0, numAgents),
		addrs:      make([]string, 0, numAgents),
		dirs:       make([]string, 0, numAgents),
		swarmID:    swarmID,
		ctx:        ctx,
		cancel:     cancel,
	}

	const basePort = 29500
	for i := 0; i < numAgents; i++ {
		id, err := identity.GenerateIdentity()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to generate identity for agent %d: %w", i, err)
		}

		dir, err := os.MkdirTemp("", "meshnode-harness-*")
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create blockstore dir for agent %d: %w", i, err)
		}
		bs, err := blockstore.Open(dir)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open blockstore for agent %d: %w", i, err)
		}

		addr := fmt.Sprintf("127.0.0.1:%d", basePort+i)
		a := agent.New(id, bs, addr, tcp.New())
		if err := a.SetSwarmID(swarmID); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to set swarm ID for agent %d: %w", i, err)
		}

		harness.identities = append(harness.identities, id)
		harness.agents = append(harness.agents, a)
		harness.addrs = append(harness.addrs, addr)
		harness.dirs = append(harness.dirs, dir)
	}

	return harness, nil
}

// Start starts all agents in the test harness.
func (h *TestHarness) Start() error {
	for i, a := range h.agents {
		if err := a.Start(h.ctx); err != nil {
			return fmt.Errorf("failed to start agent %d: %w", i, err)
		}
	}
	return nil
}

// Stop stops all agents in the test harness and removes their
// blockstore directories.
func (h *TestHarness) Stop() error {
	h.cancel()

	var errs []error
	for i, a := range h.agents {
		if err := a.Stop(h.ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop agent %d: %w", i, err))
		}
	}
	for _, dir := range h.dirs {
		os.RemoveAll(dir)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors stopping agents: %v", errs)
	}
	return nil
}

// GetAgent returns an agent by index.
func (h *TestHarness) GetAgent(index int) *agent.Agent {
	if index < 0 || index >= len(h.agents) {
		return nil
	}
	return h.agents[index]
}

// GetAgentCount returns the number of agents.
func (h *TestHarness) GetAgentCount() int {
	return len(h.agents)
}

// TestSwarmFormation tests that every agent in a swarm comes up with a
// DHT-backed directory and reputation resolver and reaches the running
// state.
func TestSwarmFormation(t *testing.T) {
	harness, err := NewTestHarness(5, "test-swarm")
	if err != nil {
		t.Fatalf("Failed to create test harness: %v", err)
	}
	defer harness.Stop()

	if err := harness.Start(); err != nil {
		t.Fatalf("Failed to start test harness: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < harness.GetAgentCount(); i++ {
		a := harness.GetAgent(i)
		if a == nil {
			t.Fatalf("Agent %d is nil", i)
		}
		if a.GetDHT() == nil {
			t.Errorf("Agent %d does not have a DHT initialized", i)
		}
		if a.Directory() == nil {
			t.Errorf("Agent %d does not have a directory initialized", i)
		}
		if a.Reputation() == nil {
			t.Errorf("Agent %d does not have a reputation resolver initialized", i)
		}
		if a.State() != agent.StateRunning {
			t.Errorf("Agent %d is not running, state: %s", i, a.State())
		}
	}
}

// TestCrossAgentDownload tests a full put/serve/download cycle across
// two independently running agents: agent0 stores content and serves
// it over its Transfer Server, agent1 downloads it over a real TCP
// connection including the Hello handshake.
func TestCrossAgentDownload(t *testing.T) {
	harness, err := NewTestHarness(2, "test-swarm")
	if err != nil {
		t.Fatalf("Failed to create test harness: %v", err)
	}
	defer harness.Stop()

	if err := harness.Start(); err != nil {
		t.Fatalf("Failed to start test harness: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	server := harness.GetAgent(0)
	downloader := harness.GetAgent(1)

	putter := server.Blockstore().Put(nil)
	content := []byte("content shared across the swarm")
	if err := putter.Write(content, blockstore.Uncompressed); err != nil {
		t.Fatalf("Failed to write content: %v", err)
	}
	root, err := putter.Finalize()
	if err != nil {
		t.Fatalf("Failed to finalize content: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.RequestDownload(ctx, tcp.New(), harness.addrs[0], downloader.Identity(), harness.swarmID, root, downloader.Blockstore())
	if err != nil {
		t.Fatalf("Failed to download content: %v", err)
	}

	tree, err := downloader.Blockstore().GetTree(root)
	if err != nil {
		t.Fatalf("Failed to read downloaded tree: %v", err)
	}
	if tree == nil {
		t.Fatal("Downloaded tree is missing locally")
	}
}

// TestAgentRestartAfterStop tests that a stopped agent can be started
// again and reaches the running state.
func TestAgentRestartAfterStop(t *testing.T) {
	harness, err := NewTestHarness(1, "test-swarm")
	if err != nil {
		t.Fatalf("Failed to create test harness: %v", err)
	}
	defer harness.Stop()

	a := harness.GetAgent(0)
	ctx := context.Background()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Failed to start agent: %v", err)
	}
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Failed to stop agent: %v", err)
	}
	if a.State() != agent.StateStopped {
		t.Fatalf("Expected agent to be stopped, got %s", a.State())
	}
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Failed to restart agent: %v", err)
	}
	if a.State() != agent.StateRunning {
		t.Errorf("Expected agent to be running after restart, got %s", a.State())
	}
}

// TestTrustRecordSigning tests that a reputation TrustRecord is
// properly signed by the observing identity, the content-delivery
// counterpart to verifying a gossip frame's signature.
func TestTrustRecordSigning(t *testing.T) {
	id, err := identity.GenerateIdentity()
	if err != nil {
		t.Fatalf("Failed to generate identity: %v", err)
	}
	subject, err := identity.GenerateIdentity()
	if err != nil {
		t.Fatalf("Failed to generate subject identity: %v", err)
	}

	tr := reputation.NewTrustRecord("test-swarm", subject.BID(), id.BID(), 0.8, 1)
	if err := tr.Sign(id.SigningPrivateKey); err != nil {
		t.Fatalf("Failed to sign trust record: %v", err)
	}
	if len(tr.Sig) == 0 {
		t.Error("Trust record signature is empty")
	}
}
