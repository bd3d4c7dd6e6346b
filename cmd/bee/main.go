// Package main implements the Bee CLI
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/meshstore/meshnode/pkg/agent"
	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/control"
	"github.com/meshstore/meshnode/pkg/identity"
	"github.com/meshstore/meshnode/pkg/merkle"
	"github.com/meshstore/meshnode/pkg/transport/tcp"
)

// Build-time variables set by ldflags
var (
	version    = "dev"
	buildTime  = "unknown"
	commitHash = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	case "start":
		if err := startCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "create":
		fmt.Println("Creating new swarm... (not implemented yet)")
	case "status":
		if err := statusCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "keygen":
		if err := keygenCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "peers":
		if err := peersCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "seeds":
		if err := seedsCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "announce":
		if err := announceCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "find-providers":
		if err := findProvidersCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "put":
		if err := putCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "get":
		if err := getCommand(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("Bee %s\n", version)
	fmt.Printf("Built: %s\n", buildTime)
	fmt.Printf("Commit: %s\n", commitHash)
}

func printUsage() {
	fmt.Printf(`Bee v%s - Mesh P2P mesh agent

Usage:
  bee <command> [options]

Commands:
  start          Start the bee agent daemon
  create         Swarm creation (not implemented; prints a notice only)
  status         Show agent status
  keygen         Generate new identity keys
  peers          Display discovered peer nodes
  seeds          Manage seed nodes (add/list)
  announce       Announce this node as a provider of a root hash
  find-providers Find peer addresses serving a root hash
  put            Store a file in the content network and return its root hash
  get            Retrieve content by root hash and reconstruct the original file
  version        Show version information
  help           Show this help message

Examples:
  # Start agent (join mode - default)
  bee start --swarm <swarm-id> --listen <addr>

  # Generate new identity
  bee keygen

  # Store a file in the content network
  bee put myfile.txt

  # Announce a root hash to the swarm
  bee announce 3f2504e0... 203.0.113.5:27488

  # Retrieve content by root hash
  bee get 3f2504e0... output.txt

For more information, visit: https://github.com/meshstore/meshnode

`, version)
}

// getIdentityPath returns the path to the identity file
func getIdentityPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "bee-identity.json"
	}
	return filepath.Join(homeDir, ".bee", "identity.json")
}

// loadOrCreateIdentity loads existing identity or creates a new one
func loadOrCreateIdentity() (*identity.Identity, error) {
	identityPath := getIdentityPath()

	// Try to load existing identity
	if _, err := os.Stat(identityPath); err == nil {
		return identity.LoadFromFile(identityPath)
	}

	// Create new identity
	fmt.Println("No existing identity found, generating new identity...")
	id, err := identity.GenerateIdentity()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(identityPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}

	// Save identity
	if err := id.SaveToFile(identityPath); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}

	fmt.Printf("New identity created and saved to %s\n", identityPath)
	return id, nil
}

// startCommand implements the start subcommand
func startCommand() error {
	fmt.Println("Starting bee agent...")

	var swarmID, listenAddr, storeDir string
	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--swarm":
			i++
			if i >= len(os.Args) {
				return fmt.Errorf("--swarm requires a value")
			}
			swarmID = os.Args[i]
		case "--listen":
			i++
			if i >= len(os.Args) {
				return fmt.Errorf("--listen requires a value")
			}
			listenAddr = os.Args[i]
		case "--store":
			i++
			if i >= len(os.Args) {
				return fmt.Errorf("--store requires a value")
			}
			storeDir = os.Args[i]
		}
	}
	if listenAddr == "" {
		listenAddr = "127.0.0.1:27488"
	}
	if storeDir == "" {
		storeDir = "./bee-data/blocks"
	}

	// Load or create identity
	id, err := loadOrCreateIdentity()
	if err != nil {
		return err
	}

	bs, err := blockstore.Open(storeDir)
	if err != nil {
		return fmt.Errorf("open blockstore: %w", err)
	}

	// Create agent
	a := agent.New(id, bs, listenAddr, tcp.New())
	if swarmID != "" {
		if err := a.SetSwarmID(swarmID); err != nil {
			return fmt.Errorf("failed to set swarm ID: %w", err)
		}
	}

	fmt.Printf("BID: %s\n", a.BID())

	// Start agent
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	// Create control API server
	server := control.NewServer(a)

	// Listen on TCP (for now, Unix socket can be added later)
	listener, err := net.Listen("tcp", "127.0.0.1:27777")
	if err != nil {
		return fmt.Errorf("failed to create control listener: %w", err)
	}
	defer listener.Close()

	fmt.Printf("Control API listening on %s\n", listener.Addr().String())

	// Start control API server
	go func() {
		if err := server.Serve(ctx, listener); err != nil {
			fmt.Printf("Control API error: %v\n", err)
		}
	}()

	// Keep running until interrupted
	fmt.Println("Agent running. Press Ctrl+C to stop.")
	select {} // Block forever
}

// statusCommand implements the status subcommand
func statusCommand() error {
	// Try to connect to control API
	conn, err := net.Dial("tcp", "127.0.0.1:27777")
	if err != nil {
		fmt.Println("Agent is not running")
		return nil
	}
	defer conn.Close()

	// Send GetInfo request
	request := control.Request{
		Method: "GetInfo",
		ID:     "status-check",
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(request); err != nil {
		return fmt.Errorf("failed to send status request: %w", err)
	}

	// Read response
	decoder := json.NewDecoder(conn)
	var response control.Response
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("failed to read status response: %w", err)
	}

	if response.Error != "" {
		return fmt.Errorf("status error: %s", response.Error)
	}

	// Print status
	result, ok := response.Result.(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected response format")
	}

	fmt.Println("Agent is running")
	fmt.Printf("BID: %v\n", result["bid"])
	fmt.Printf("Swarm: %v\n", result["swarm_id"])
	fmt.Printf("State: %v\n", result["state"])

	return nil
}

// keygenCommand implements the keygen subcommand
func keygenCommand() error {
	fmt.Println("Generating new identity...")

	// Generate new identity
	id, err := identity.GenerateIdentity()
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}

	// Get identity path
	identityPath := getIdentityPath()

	// Check if identity already exists
	if _, err := os.Stat(identityPath); err == nil {
		fmt.Printf("Warning: Identity already exists at %s\n", identityPath)
		fmt.Print("Overwrite? (y/N): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Identity generation cancelled")
			return nil
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(identityPath), 0700); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}

	// Save identity
	if err := id.SaveToFile(identityPath); err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}

	fmt.Printf("New identity generated and saved to %s\n", identityPath)
	fmt.Printf("BID: %s\n", id.BID())
	fmt.Printf("Honeytag: %s\n", id.Honeytag())

	return nil
}

// peersCommand implements the peers subcommand
func peersCommand() error {
	// Connect to control API
	conn, err := net.Dial("tcp", "127.0.0.1:27777")
	if err != nil {
		return fmt.Errorf("failed to connect to agent (is it running?): %w", err)
	}
	defer conn.Close()

	// Send peers request
	request := map[string]interface{}{
		"method": "peers",
	}

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	// Read response
	var response map[string]interface{}
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error
	if errMsg, exists := response["error"]; exists {
		return fmt.Errorf("agent error: %v", errMsg)
	}

	// Display peers
	result, _ := response["result"].(map[string]interface{})
	if peers, exists := result["peers"]; exists {
		if peerList, ok := peers.([]interface{}); ok {
			if len(peerList) == 0 {
				fmt.Println("No peers discovered yet")
				return nil
			}

			fmt.Printf("Discovered peers (%d):\n\n", len(peerList))
			for i, peer := range peerList {
				if peerMap, ok := peer.(map[string]interface{}); ok {
					fmt.Printf("%d. BID: %v\n", i+1, peerMap["bid"])
					if addrs, ok := peerMap["addrs"].([]interface{}); ok && len(addrs) > 0 {
						fmt.Printf("   Addresses: %v\n", addrs)
					}
					if lastSeen, ok := peerMap["last_seen"].(string); ok {
						fmt.Printf("   Last seen: %v\n", lastSeen)
					}
					fmt.Println()
				}
			}
		}
	}

	return nil
}

// seedsCommand implements the seeds subcommand
func seedsCommand() error {
	if len(os.Args) < 3 {
		fmt.Println("Usage:")
		fmt.Println("  bee seeds list              - List current seed nodes")
		fmt.Println("  bee seeds add <bid> <addr>  - Add a new seed node")
		fmt.Println("  bee seeds add <bid> <addr> <name> - Add a new seed node with name")
		return nil
	}

	subcommand := os.Args[2]
	switch subcommand {
	case "list":
		return seedsListCommand()
	case "add":
		return seedsAddCommand()
	default:
		return fmt.Errorf("unknown seeds subcommand: %s", subcommand)
	}
}

// seedsListCommand lists all configured seed nodes
func seedsListCommand() error {
	// Connect to control API
	conn, err := net.Dial("tcp", "127.0.0.1:27777")
	if err != nil {
		return fmt.Errorf("failed to connect to agent (is it running?): %w", err)
	}
	defer conn.Close()

	// Send seeds list request
	request := map[string]interface{}{
		"method": "seeds.list",
	}

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	// Read response
	var response map[string]interface{}
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error
	if errMsg, exists := response["error"]; exists {
		return fmt.Errorf("agent error: %v", errMsg)
	}

	// Display seeds
	result, _ := response["result"].(map[string]interface{})
	if seeds, exists := result["seeds"]; exists {
		if seedList, ok := seeds.([]interface{}); ok {
			if len(seedList) == 0 {
				fmt.Println("No seed nodes configured")
				return nil
			}

			fmt.Printf("Configured seed nodes (%d):\n\n", len(seedList))
			for i, seed := range seedList {
				if seedMap, ok := seed.(map[string]interface{}); ok {
					fmt.Printf("%d. BID: %v\n", i+1, seedMap["bid"])
					if name, ok := seedMap["name"].(string); ok && name != "" {
						fmt.Printf("   Name: %v\n", name)
					}
					if addrs, ok := seedMap["addrs"].([]interface{}); ok && len(addrs) > 0 {
						fmt.Printf("   Addresses: %v\n", addrs)
					}
					fmt.Println()
				}
			}
		}
	}

	return nil
}

// seedsAddCommand adds a new seed node
func seedsAddCommand() error {
	if len(os.Args) < 5 {
		return fmt.Errorf("usage: bee seeds add <bid> <addr> [name]")
	}

	bid := os.Args[3]
	addr := os.Args[4]
	name := ""
	if len(os.Args) > 5 {
		name = os.Args[5]
	}

	// Connect to control API
	conn, err := net.Dial("tcp", "127.0.0.1:27777")
	if err != nil {
		return fmt.Errorf("failed to connect to agent (is it running?): %w", err)
	}
	defer conn.Close()

	// Send seeds add request
	request := map[string]interface{}{
		"method": "seeds.add",
		"params": map[string]interface{}{
			"bid":   bid,
			"addrs": []string{addr},
			"name":  name,
		},
	}

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	// Read response
	var response map[string]interface{}
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error
	if errMsg, exists := response["error"]; exists {
		return fmt.Errorf("agent error: %v", errMsg)
	}

	fmt.Printf("Added seed node: %s\n", bid)
	if name != "" {
		fmt.Printf("Name: %s\n", name)
	}
	fmt.Printf("Address: %s\n", addr)

	return nil
}

// announceCommand implements the announce subcommand
func announceCommand() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: bee announce <root-hash-hex> <self-addr>")
	}
	rootHex := os.Args[2]
	selfAddr := os.Args[3]

	conn, err := net.Dial("tcp", "127.0.0.1:27777")
	if err != nil {
		return fmt.Errorf("failed to connect to agent (is it running?): %w", err)
	}
	defer conn.Close()

	request := control.Request{
		Method: "announce",
		ID:     "announce",
		Params: map[string]interface{}{
			"root": rootHex,
			"addr": selfAddr,
		},
	}
	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var response control.Response
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if response.Error != "" {
		return fmt.Errorf("announce failed: %s", response.Error)
	}

	fmt.Printf("✓ Announced %s at %s\n", rootHex, selfAddr)
	return nil
}

// findProvidersCommand implements the find-providers subcommand
func findProvidersCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: bee find-providers <root-hash-hex>")
	}
	rootHex := os.Args[2]

	conn, err := net.Dial("tcp", "127.0.0.1:27777")
	if err != nil {
		return fmt.Errorf("failed to connect to agent (is it running?): %w", err)
	}
	defer conn.Close()

	request := control.Request{
		Method: "find_providers",
		ID:     "find-providers",
		Params: map[string]interface{}{
			"root": rootHex,
		},
	}
	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var response control.Response
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if response.Error != "" {
		return fmt.Errorf("find_providers failed: %s", response.Error)
	}

	result, ok := response.Result.(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected response format")
	}
	addrs, _ := result["providers"].([]interface{})
	if len(addrs) == 0 {
		fmt.Println("No providers known")
		return nil
	}
	fmt.Printf("Providers for %s:\n", rootHex)
	for _, a := range addrs {
		fmt.Printf("  %v\n", a)
	}
	return nil
}

// putCommand implements the put subcommand
func putCommand() error {
	if len(os.Args) < 3 {
		fmt.Println("Usage: bee put <file>")
		fmt.Println("  Stores a file in the local blockstore and prints its root hash")
		fmt.Println("")
		fmt.Println("Options:")
		fmt.Println("  --store <dir>  Blockstore root directory (default: ./bee-data/blocks)")
		fmt.Println("")
		fmt.Println("Examples:")
		fmt.Println("  bee put document.pdf")
		return nil
	}

	var filePath, storeDir string
	i := 2
	for i < len(os.Args) {
		arg := os.Args[i]
		if arg == "--store" {
			if i+1 >= len(os.Args) {
				return fmt.Errorf("--store requires a value")
			}
			i++
			storeDir = os.Args[i]
		} else if arg[0] == '-' {
			return fmt.Errorf("unknown option: %s", arg)
		} else {
			if filePath != "" {
				return fmt.Errorf("multiple files not supported")
			}
			filePath = arg
		}
		i++
	}
	if filePath == "" {
		return fmt.Errorf("file path is required")
	}
	if storeDir == "" {
		storeDir = "./bee-data/blocks"
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	bs, err := blockstore.Open(storeDir)
	if err != nil {
		return fmt.Errorf("open blockstore: %w", err)
	}

	fmt.Printf("Processing file: %s\n", filePath)
	putter := bs.Put(nil)
	buf := make([]byte, 256*1024)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := putter.Write(buf[:n], blockstore.Uncompressed); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read %s: %w", filePath, readErr)
		}
	}
	root, err := putter.Finalize()
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	fmt.Println("✓ File stored")
	fmt.Printf("Root hash: %x\n", root)
	return nil
}

// getCommand implements the get subcommand
func getCommand() error {
	if len(os.Args) < 3 {
		fmt.Println("Usage: bee get <root-hash-hex> <output-file>")
		fmt.Println("  Retrieves content by root hash from the local blockstore")
		fmt.Println("")
		fmt.Println("Options:")
		fmt.Println("  --store <dir>  Blockstore root directory (default: ./bee-data/blocks)")
		fmt.Println("")
		fmt.Println("Examples:")
		fmt.Println("  bee get 3f2504e0... restored.txt")
		return nil
	}

	var rootHex, outputPath, storeDir string
	i := 2
	for i < len(os.Args) {
		arg := os.Args[i]
		if arg == "--store" {
			if i+1 >= len(os.Args) {
				return fmt.Errorf("--store requires a value")
			}
			i++
			storeDir = os.Args[i]
		} else if rootHex == "" {
			rootHex = arg
		} else if outputPath == "" {
			outputPath = arg
		} else {
			return fmt.Errorf("unexpected argument: %s", arg)
		}
		i++
	}
	if rootHex == "" || outputPath == "" {
		return fmt.Errorf("root hash and output file are required")
	}
	if storeDir == "" {
		storeDir = "./bee-data/blocks"
	}

	rootBytes, err := hex.DecodeString(rootHex)
	if err != nil || len(rootBytes) != 32 {
		return fmt.Errorf("invalid root hash: %s", rootHex)
	}
	var root merkle.Hash
	copy(root[:], rootBytes)

	bs, err := blockstore.Open(storeDir)
	if err != nil {
		return fmt.Errorf("open blockstore: %w", err)
	}
	tree, err := bs.GetTree(root)
	if err != nil {
		return fmt.Errorf("get_tree: %w", err)
	}
	if tree == nil {
		return fmt.Errorf("no content stored under root %s", rootHex)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outputPath, err)
	}
	defer out.Close()

	var total uint64
	for merkle.Idx(total) < uint64(len(tree.Entries)) {
		total++
	}
	for i := uint64(0); i < total; i++ {
		idx := merkle.Idx(i)
		c, err := bs.GetChunk(i, tree.Entries[idx])
		if err != nil {
			return fmt.Errorf("get_chunk(%d): %w", i, err)
		}
		if c == nil {
			return fmt.Errorf("storage corruption: chunk %d missing for root %s", i, rootHex)
		}
		if _, err := out.Write(c.Bytes); err != nil {
			return fmt.Errorf("write %s: %w", outputPath, err)
		}
	}

	fmt.Printf("✓ Retrieved %d chunks to %s\n", total, outputPath)
	return nil
}
