// Package app is the minimal dependency-injection collection for the
// blockstore/transfer core (spec §6's "CLI / environment" surface):
// it loads a Config, opens a Blockstore rooted at its root_path, and
// can run a Transfer Server bound to its listen address. The rest of
// the constellation (consensus, RPC, DHT, reputation, handshake
// workers) is wired by the broader node entrypoints in cmd/bee; this
// collection only ever touches the core through pkg/blockstore and
// pkg/transfer, exactly as spec §1 requires of external collaborators.
package app

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/identity"
	"github.com/meshstore/meshnode/pkg/transfer/server"
	"github.com/meshstore/meshnode/pkg/transport"
	"github.com/meshstore/meshnode/pkg/transport/tcp"
)

// Config is the JSON-loadable configuration surface spec §6 calls for:
// a root_path for the store, a listen address for the server, and the
// swarm a node's Noise IK hello exchange authenticates into. It
// follows the teacher's pattern of a small per-subsystem Config struct
// with json tags (mirrored from its content.Config / identity config).
type Config struct {
	RootPath   string `json:"root_path"`
	ListenAddr string `json:"listen_addr"`
	SwarmID    string `json:"swarm_id"`
}

// LoadConfig reads a Config from a JSON file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("app: parse config: %w", err)
	}
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("app: config missing root_path")
	}
	if cfg.SwarmID == "" {
		cfg.SwarmID = "default"
	}
	return &cfg, nil
}

// App wires the core components a node needs to serve and accept
// blockstore transfers: a Blockstore rooted at Config.RootPath, the
// node's Identity, and a Transfer Server listening on Config.ListenAddr
// once authenticated by that identity's Noise IK hello.
type App struct {
	Config     *Config
	Blockstore *blockstore.Blockstore
	Identity   *identity.Identity
	Transport  transport.Transport
}

// New opens the Blockstore at cfg.RootPath, loads or creates the
// node's identity alongside it (mirroring the teacher CLI's
// loadOrCreateIdentity), and selects the TCP+TLS transport (QUIC is
// available via pkg/transport/quic for callers that want it; TCP is
// the dependency-light default for this entrypoint).
func New(cfg *Config) (*App, error) {
	bs, err := blockstore.Open(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("app: open blockstore: %w", err)
	}
	id, err := loadOrCreateIdentity(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("app: load identity: %w", err)
	}
	return &App{Config: cfg, Blockstore: bs, Identity: id, Transport: tcp.New()}, nil
}

func loadOrCreateIdentity(rootPath string) (*identity.Identity, error) {
	path := filepath.Join(rootPath, "identity.json")
	if _, err := os.Stat(path); err == nil {
		return identity.LoadFromFile(path)
	}
	id, err := identity.GenerateIdentity()
	if err != nil {
		return nil, err
	}
	if err := id.SaveToFile(path); err != nil {
		return nil, err
	}
	return id, nil
}

// Serve listens on Config.ListenAddr and runs the Transfer Server
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context, tlsConfig *tls.Config) error {
	ln, err := a.Transport.Listen(ctx, a.Config.ListenAddr, tlsConfig)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", a.Config.ListenAddr, err)
	}
	defer ln.Close()

	srv := server.New(a.Blockstore, a.Identity, a.Config.SwarmID, ln)
	return srv.Run(ctx)
}
