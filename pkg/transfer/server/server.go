// Package server implements the Transfer Server side of the Blockstore
// Transfer Protocol: it accepts a 32-byte root-hash request per
// connection and streams the tree's chunks back via the wire Encoder.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/identity"
	"github.com/meshstore/meshnode/pkg/merkle"
	"github.com/meshstore/meshnode/pkg/security/noiseik"
	"github.com/meshstore/meshnode/pkg/transport"
	wireproto "github.com/meshstore/meshnode/pkg/transfer/wire"
)

// Server accepts inbound download requests against a Blockstore. It
// runs a background accept loop shaped after the teacher's
// agent.Supervisor: a context cancellation is the only shutdown
// signal, and shutdown waits for the loop to observe it before
// returning.
type Server struct {
	bs      *blockstore.Blockstore
	id      *identity.Identity
	swarmID string
	ln      transport.Listener

	mu   sync.Mutex
	done chan struct{}
}

// New returns a Server that serves content from bs to connections
// accepted on ln, authenticating each connection into swarmID via a
// Noise IK hello exchange signed with id before serving it.
func New(bs *blockstore.Blockstore, id *identity.Identity, swarmID string, ln transport.Listener) *Server {
	return &Server{bs: bs, id: id, swarmID: swarmID, ln: ln}
}

// Run accepts connections until ctx is cancelled, handling each one in
// its own goroutine. It returns once the accept loop has observed
// cancellation and stopped accepting new connections.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.done = make(chan struct{})
	s.mu.Unlock()
	defer close(s.done)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := s.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			if err := HandleConn(conn, s.bs, s.id, s.swarmID); err != nil {
				log.Printf("transfer server: connection from %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// serverHandshake runs the server side of the Noise IK hello exchange:
// receive the peer's ClientHello, reply with a signed ServerHello.
// Mirroring the teacher's own handshake code, BID resolution for
// ClientHello.Verify is left to a future name-lookup integration, so
// this authenticates swarm membership without yet verifying the
// client's signature.
func serverHandshake(conn io.ReadWriter, id *identity.Identity, swarmID string) error {
	var clientHello noiseik.ClientHello
	if err := wireproto.ReadHello(conn, &clientHello); err != nil {
		return fmt.Errorf("server: receive client hello: %w", err)
	}
	hs := noiseik.NewHandshake(id, swarmID)
	serverHello, err := hs.ProcessClientHello(&clientHello)
	if err != nil {
		return fmt.Errorf("server: process client hello: %w", err)
	}
	if err := wireproto.WriteHello(conn, serverHello); err != nil {
		return fmt.Errorf("server: send server hello: %w", err)
	}
	if !hs.IsComplete() {
		return fmt.Errorf("server: handshake did not complete")
	}
	return nil
}

// HandleConn serves a single connection end to end: run the hello
// handshake, read the 32-byte root hash, resolve the tree, stream every
// chunk. It is exported standalone (independent of any
// transport.Listener) so tests and alternative transports can drive it
// directly over any io.ReadWriter.
func HandleConn(conn io.ReadWriter, bs *blockstore.Blockstore, id *identity.Identity, swarmID string) error {
	if err := serverHandshake(conn, id, swarmID); err != nil {
		return err
	}
	var hash merkle.Hash
	if _, err := io.ReadFull(conn, hash[:]); err != nil {
		return fmt.Errorf("server: read request hash: %w", err)
	}

	tree, err := bs.GetTree(hash)
	if err != nil {
		return fmt.Errorf("server: get_tree: %w", err)
	}
	if tree == nil {
		// NotFound: close after writing nothing. The client's decoder
		// observes EOF before its verifier is done and reports
		// IncompleteStream, which is how NotFound surfaces across the
		// wire per spec §4.7.
		return nil
	}

	total := chunkCount(tree.Entries)
	enc := wireproto.NewEncoder(conn, tree.Entries, total)
	for i := uint64(0); i < total; i++ {
		idx := merkle.Idx(i)
		c, err := bs.GetChunk(i, tree.Entries[idx])
		if err != nil {
			return fmt.Errorf("server: get_chunk(%d): %w", i, err)
		}
		if c == nil {
			return fmt.Errorf("server: storage corruption: tree %x present but chunk %d missing", hash, i)
		}
		if err := enc.EncodeChunk(i, c.Bytes); err != nil {
			return fmt.Errorf("server: encode chunk %d: %w", i, err)
		}
	}
	return nil
}

// chunkCount derives the number of chunks a tree's entries array
// describes by walking Idx(i) until it runs out of range, the same
// addressing primitive §4.1 defines.
func chunkCount(entries []merkle.Hash) uint64 {
	var n uint64
	for merkle.Idx(n) < uint64(len(entries)) {
		n++
	}
	return n
}
