// Package agent implements the node's lifecycle and state management:
// start/stop a DHT-backed peer directory alongside a Transfer Server,
// so a single long-running process both answers inbound downloads and
// participates in provider discovery for the blockstore it serves.
package agent

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/meshstore/meshnode/internal/dht"
	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/blockstoreapi"
	"github.com/meshstore/meshnode/pkg/identity"
	"github.com/meshstore/meshnode/pkg/reputation"
	"github.com/meshstore/meshnode/pkg/transfer/server"
	"github.com/meshstore/meshnode/pkg/transport"
)

// State represents the current state of the agent
type State int

const (
	// StateStopped indicates the agent is not running
	StateStopped State = iota
	// StateStarting indicates the agent is in the process of starting
	StateStarting
	// StateRunning indicates the agent is running normally
	StateRunning
	// StateStopping indicates the agent is in the process of stopping
	StateStopping
	// StateError indicates the agent encountered an error
	StateError
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Agent represents a content-delivery node: a DHT-backed directory for
// provider/trust records, and a Transfer Server that answers download
// requests against a local Blockstore.
type Agent struct {
	mu       sync.RWMutex
	state    State
	identity *identity.Identity

	dht             *dht.DHT
	presenceManager *dht.PresenceManager
	bootstrap       *dht.Bootstrap
	swarmID         string

	blockstore  *blockstore.Blockstore
	directory   *blockstoreapi.Directory
	reputation  *reputation.Resolver
	transferSrv *server.Server
	listenAddr  string
	transport   transport.Transport

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new agent with the given identity, serving content out
// of bs and listening for transfer connections on listenAddr over t.
func New(id *identity.Identity, bs *blockstore.Blockstore, listenAddr string, t transport.Transport) *Agent {
	return &Agent{
		state:      StateStopped,
		identity:   id,
		blockstore: bs,
		listenAddr: listenAddr,
		transport:  t,
		done:       make(chan struct{}),
	}
}

// State returns the current state of the agent
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// setState sets the agent state (internal use)
func (a *Agent) setState(state State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
}

// Identity returns the agent's identity
func (a *Agent) Identity() *identity.Identity {
	return a.identity
}

// BID returns the agent's Bee ID
func (a *Agent) BID() string {
	if a.identity == nil {
		return ""
	}
	return a.identity.BID()
}

// SetSwarmID sets the swarm ID for the agent
func (a *Agent) SetSwarmID(swarmID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateRunning {
		return fmt.Errorf("cannot change swarm ID while agent is running")
	}

	a.swarmID = swarmID
	return nil
}

// GetSwarmID returns the current swarm ID
func (a *Agent) GetSwarmID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.swarmID
}

// InitializeDHT initializes the DHT, presence manager, bootstrap
// manager, and the blockstoreapi/reputation layers built on top of
// them.
func (a *Agent) InitializeDHT() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.swarmID == "" {
		return fmt.Errorf("swarm ID must be set before initializing DHT")
	}

	dhtConfig := &dht.Config{
		SwarmID:  a.swarmID,
		Identity: a.identity,
		Network:  nil, // Will be set when network layer is implemented
	}

	var err error
	a.dht, err = dht.New(dhtConfig)
	if err != nil {
		return fmt.Errorf("failed to create DHT: %w", err)
	}

	presenceConfig := &dht.PresenceConfig{
		SwarmID:      a.swarmID,
		Identity:     a.identity,
		Addresses:    []string{a.listenAddr},
		Capabilities: []string{"chunks/1", "dht/1"},
	}

	a.presenceManager, err = dht.NewPresenceManager(a.dht, presenceConfig)
	if err != nil {
		return fmt.Errorf("failed to create presence manager: %w", err)
	}

	bootstrapConfig := &dht.BootstrapConfig{
		DHT: a.dht,
	}

	a.bootstrap, err = dht.NewBootstrap(bootstrapConfig)
	if err != nil {
		return fmt.Errorf("failed to create bootstrap manager: %w", err)
	}

	a.reputation = reputation.NewResolver(a.dht, a.swarmID)
	a.directory = blockstoreapi.New(a.dht, a.reputation)

	return nil
}

// GetDHT returns the DHT instance (for testing/debugging)
func (a *Agent) GetDHT() *dht.DHT {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dht
}

// GetBootstrap returns the bootstrap manager
func (a *Agent) GetBootstrap() *dht.Bootstrap {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bootstrap
}

// Directory returns the provider/trust directory built over the DHT.
func (a *Agent) Directory() *blockstoreapi.Directory {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.directory
}

// Reputation returns the trust resolver built over the DHT.
func (a *Agent) Reputation() *reputation.Resolver {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.reputation
}

// Blockstore returns the agent's content store.
func (a *Agent) Blockstore() *blockstore.Blockstore {
	return a.blockstore
}

// Start starts the agent: the DHT/presence/bootstrap layer if a swarm
// ID has been set, then the Transfer Server accept loop.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()

	if a.state == StateRunning {
		a.mu.Unlock()
		return fmt.Errorf("agent is already running")
	}

	if a.state == StateStarting {
		a.mu.Unlock()
		return fmt.Errorf("agent is already starting")
	}

	a.state = StateStarting
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	a.mu.Unlock()

	if a.dht == nil && a.swarmID != "" {
		if err := a.InitializeDHT(); err != nil {
			a.cancel()
			a.setState(StateError)
			return fmt.Errorf("failed to initialize DHT: %w", err)
		}
	}

	if a.dht != nil {
		if err := a.dht.Start(a.ctx); err != nil {
			a.cancel()
			a.setState(StateError)
			return fmt.Errorf("failed to start DHT: %w", err)
		}
	}

	if a.presenceManager != nil {
		if err := a.presenceManager.Start(a.ctx); err != nil {
			a.cancel()
			a.setState(StateError)
			return fmt.Errorf("failed to start presence manager: %w", err)
		}
	}

	ln, err := a.transport.Listen(a.ctx, a.listenAddr, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		a.cancel()
		a.setState(StateError)
		return fmt.Errorf("failed to listen on %s: %w", a.listenAddr, err)
	}
	a.transferSrv = server.New(a.blockstore, a.identity, a.swarmID, ln)

	go a.run()

	time.Sleep(10 * time.Millisecond)

	a.setState(StateRunning)
	return nil
}

// Stop stops the agent
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()

	if a.state == StateStopped {
		a.mu.Unlock()
		return fmt.Errorf("agent is already stopped")
	}

	if a.state == StateStopping {
		a.mu.Unlock()
		return fmt.Errorf("agent is already stopping")
	}

	a.state = StateStopping

	if a.presenceManager != nil {
		if err := a.presenceManager.Stop(); err != nil {
			fmt.Printf("Error stopping presence manager: %v\n", err)
		}
	}

	if a.dht != nil {
		if err := a.dht.Stop(); err != nil {
			fmt.Printf("Error stopping DHT: %v\n", err)
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	a.mu.Unlock()

	select {
	case <-a.done:
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for agent to stop")
	case <-time.After(1 * time.Second):
	}

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()
	return nil
}

// run is the main agent loop: it drives the Transfer Server's accept
// loop until the agent's context is cancelled.
func (a *Agent) run() {
	defer close(a.done)

	fmt.Printf("meshnode agent started\n")
	fmt.Printf("BID: %s\n", a.BID())
	fmt.Printf("listening: %s\n", a.listenAddr)

	if err := a.transferSrv.Run(a.ctx); err != nil {
		fmt.Printf("transfer server stopped with error: %v\n", err)
	}
}
