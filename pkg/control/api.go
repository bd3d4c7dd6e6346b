// Package control implements the node's local control API: a
// JSON-line request/response protocol a CLI or other local process
// drives over a Unix socket or loopback TCP connection to operate an
// Agent without linking against it directly.
package control

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/meshstore/meshnode/internal/dht"
	"github.com/meshstore/meshnode/pkg/agent"
	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/merkle"
	"github.com/meshstore/meshnode/pkg/transfer/client"
	"github.com/meshstore/meshnode/pkg/transport/tcp"
)

// Request represents a control API request
type Request struct {
	Method string                 `json:"method"`
	ID     string                 `json:"id"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Response represents a control API response
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Server implements the control API server
type Server struct {
	mu    sync.RWMutex
	agent *agent.Agent
}

// NewServer creates a new control API server
func NewServer(agent *agent.Agent) *Server {
	return &Server{
		agent: agent,
	}
}

// Serve starts the control API server on the given listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					continue // Continue accepting connections
				}
			}

			// Handle connection in goroutine
			go s.handleConnection(ctx, conn)
		}
	}
}

// handleConnection handles a single client connection
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var request Request
			if err := decoder.Decode(&request); err != nil {
				// Connection closed or invalid JSON
				return
			}

			response := s.handleRequest(ctx, request)

			if err := encoder.Encode(response); err != nil {
				// Failed to send response
				return
			}
		}
	}
}

// handleRequest processes a single API request
func (s *Server) handleRequest(ctx context.Context, request Request) Response {
	switch request.Method {
	case "GetInfo":
		return s.handleGetInfo(request)
	case "peers":
		return s.handleGetPeers(request)
	case "seeds.list":
		return s.handleSeedsList(request)
	case "seeds.add":
		return s.handleSeedsAdd(request)
	case "put":
		return s.handlePut(request)
	case "get":
		return s.handleGet(ctx, request)
	case "announce":
		return s.handleAnnounce(ctx, request)
	case "find_providers":
		return s.handleFindProviders(ctx, request)
	default:
		return Response{
			ID:    request.ID,
			Error: fmt.Sprintf("unknown method: %s", request.Method),
		}
	}
}

// handleGetInfo handles the GetInfo operation
func (s *Server) handleGetInfo(request Request) Response {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Response{
		ID: request.ID,
		Result: map[string]interface{}{
			"bid":      s.agent.BID(),
			"swarm_id": s.agent.GetSwarmID(),
			"state":    s.agent.State().String(),
		},
	}
}

// handleGetPeers handles the peers operation
func (s *Server) handleGetPeers(request Request) Response {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.agent.GetDHT()
	if d == nil {
		return Response{
			ID:    request.ID,
			Error: "DHT not initialized",
		}
	}

	nodes := d.GetAllNodes()
	peers := make([]map[string]interface{}, len(nodes))

	for i, node := range nodes {
		peers[i] = map[string]interface{}{
			"bid":       node.BID,
			"addrs":     node.Addrs,
			"last_seen": node.LastSeen.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	return Response{
		ID: request.ID,
		Result: map[string]interface{}{
			"peers": peers,
		},
	}
}

// handleSeedsList handles the seeds.list operation
func (s *Server) handleSeedsList(request Request) Response {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bootstrap := s.agent.GetBootstrap()
	if bootstrap == nil {
		return Response{
			ID:    request.ID,
			Error: "Bootstrap not initialized",
		}
	}

	seedNodes := bootstrap.GetSeedNodes()
	seeds := make([]map[string]interface{}, len(seedNodes))

	for i, seed := range seedNodes {
		seeds[i] = map[string]interface{}{
			"bid":   seed.BID,
			"addrs": seed.Addrs,
			"name":  seed.Name,
		}
	}

	return Response{
		ID: request.ID,
		Result: map[string]interface{}{
			"seeds": seeds,
		},
	}
}

// handleSeedsAdd handles the seeds.add operation
func (s *Server) handleSeedsAdd(request Request) Response {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bootstrap := s.agent.GetBootstrap()
	if bootstrap == nil {
		return Response{
			ID:    request.ID,
			Error: "Bootstrap not initialized",
		}
	}

	params := request.Params
	if params == nil {
		return Response{
			ID:    request.ID,
			Error: "parameters required",
		}
	}

	bid, ok := params["bid"].(string)
	if !ok || bid == "" {
		return Response{
			ID:    request.ID,
			Error: "bid parameter is required",
		}
	}

	addrsInterface, ok := params["addrs"]
	if !ok {
		return Response{
			ID:    request.ID,
			Error: "addrs parameter is required",
		}
	}

	var addrs []string
	if addrsList, ok := addrsInterface.([]interface{}); ok {
		addrs = make([]string, len(addrsList))
		for i, addr := range addrsList {
			if addrStr, ok := addr.(string); ok {
				addrs[i] = addrStr
			} else {
				return Response{
					ID:    request.ID,
					Error: "all addresses must be strings",
				}
			}
		}
	} else {
		return Response{
			ID:    request.ID,
			Error: "addrs must be an array of strings",
		}
	}

	name, _ := params["name"].(string) // Optional parameter

	seed := &dht.SeedNode{
		BID:   bid,
		Addrs: addrs,
		Name:  name,
	}

	if err := bootstrap.AddSeedNode(seed); err != nil {
		return Response{
			ID:    request.ID,
			Error: fmt.Sprintf("failed to add seed node: %v", err),
		}
	}

	return Response{
		ID: request.ID,
		Result: map[string]interface{}{
			"success": true,
			"message": "Seed node added successfully",
		},
	}
}

// handlePut stores base64-encoded content from params["data"] in the
// agent's blockstore and returns the resulting root hash hex-encoded.
func (s *Server) handlePut(request Request) Response {
	data, ok := request.Params["data"].(string)
	if !ok {
		return Response{
			ID:    request.ID,
			Error: "data parameter is required and must be a base64 string",
		}
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Response{
			ID:    request.ID,
			Error: fmt.Sprintf("invalid base64 data: %v", err),
		}
	}

	p := s.agent.Blockstore().Put(nil)
	if err := p.Write(raw, blockstore.Uncompressed); err != nil {
		return Response{
			ID:    request.ID,
			Error: fmt.Sprintf("failed to write content: %v", err),
		}
	}
	root, err := p.Finalize()
	if err != nil {
		return Response{
			ID:    request.ID,
			Error: fmt.Sprintf("failed to finalize content: %v", err),
		}
	}

	return Response{
		ID: request.ID,
		Result: map[string]interface{}{
			"root": hex.EncodeToString(root[:]),
		},
	}
}

// handleGet downloads a root hash from a peer address and reports the
// chunk count once committed locally; it does not return content
// bytes over the control channel.
func (s *Server) handleGet(ctx context.Context, request Request) Response {
	rootHex, ok := request.Params["root"].(string)
	if !ok {
		return Response{ID: request.ID, Error: "root parameter is required"}
	}
	peerAddr, ok := request.Params["peer_addr"].(string)
	if !ok {
		return Response{ID: request.ID, Error: "peer_addr parameter is required"}
	}
	root, err := decodeRoot(rootHex)
	if err != nil {
		return Response{ID: request.ID, Error: err.Error()}
	}

	if err := client.RequestDownload(ctx, tcp.New(), peerAddr, s.agent.Identity(), s.agent.GetSwarmID(), root, s.agent.Blockstore()); err != nil {
		return Response{ID: request.ID, Error: fmt.Sprintf("download failed: %v", err)}
	}

	tree, err := s.agent.Blockstore().GetTree(root)
	if err != nil || tree == nil {
		return Response{ID: request.ID, Error: "download reported success but tree is missing locally"}
	}

	chunks := 0
	for merkle.Idx(uint64(chunks)) < uint64(len(tree.Entries)) {
		chunks++
	}

	return Response{
		ID: request.ID,
		Result: map[string]interface{}{
			"root":   rootHex,
			"chunks": chunks,
		},
	}
}

// handleAnnounce records this node as a provider of a root hash.
func (s *Server) handleAnnounce(ctx context.Context, request Request) Response {
	dir := s.agent.Directory()
	if dir == nil {
		return Response{ID: request.ID, Error: "directory not initialized"}
	}
	rootHex, ok := request.Params["root"].(string)
	if !ok {
		return Response{ID: request.ID, Error: "root parameter is required"}
	}
	selfAddr, ok := request.Params["addr"].(string)
	if !ok {
		return Response{ID: request.ID, Error: "addr parameter is required"}
	}
	root, err := decodeRoot(rootHex)
	if err != nil {
		return Response{ID: request.ID, Error: err.Error()}
	}
	if err := dir.Announce(ctx, root, selfAddr); err != nil {
		return Response{ID: request.ID, Error: fmt.Sprintf("announce failed: %v", err)}
	}
	return Response{ID: request.ID, Result: map[string]interface{}{"success": true}}
}

// handleFindProviders looks up the known provider addresses for a root hash.
func (s *Server) handleFindProviders(ctx context.Context, request Request) Response {
	dir := s.agent.Directory()
	if dir == nil {
		return Response{ID: request.ID, Error: "directory not initialized"}
	}
	rootHex, ok := request.Params["root"].(string)
	if !ok {
		return Response{ID: request.ID, Error: "root parameter is required"}
	}
	root, err := decodeRoot(rootHex)
	if err != nil {
		return Response{ID: request.ID, Error: err.Error()}
	}
	addrs, err := dir.FindProviders(ctx, root)
	if err != nil {
		return Response{ID: request.ID, Error: fmt.Sprintf("find_providers failed: %v", err)}
	}
	return Response{ID: request.ID, Result: map[string]interface{}{"providers": addrs}}
}

func decodeRoot(rootHex string) (merkle.Hash, error) {
	var root merkle.Hash
	raw, err := hex.DecodeString(rootHex)
	if err != nil || len(raw) != len(root) {
		return root, fmt.Errorf("invalid root hash: %s", rootHex)
	}
	copy(root[:], raw)
	return root, nil
}
