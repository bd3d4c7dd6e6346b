package control

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/meshstore/meshnode/pkg/agent"
	"github.com/meshstore/meshnode/pkg/blockstore"
	"github.com/meshstore/meshnode/pkg/identity"
	"github.com/meshstore/meshnode/pkg/transport/tcp"
)

func newTestAgent(t *testing.T) *agent.Agent {
	t.Helper()
	testIdentity, err := identity.GenerateIdentity()
	if err != nil {
		t.Fatalf("Failed to generate test identity: %v", err)
	}
	bs, err := blockstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open blockstore: %v", err)
	}
	return agent.New(testIdentity, bs, "127.0.0.1:0", tcp.New())
}

func roundTrip(t *testing.T, server *Server, request Request) Response {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		server.Serve(ctx, listener)
	}()
	time.Sleep(10 * time.Millisecond)

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}

	var response Response
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	return response
}

// TestControlAPIServer tests the control API server lifecycle
func TestControlAPIServer(t *testing.T) {
	server := NewServer(newTestAgent(t))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		if err := server.Serve(ctx, listener); err != nil && err != context.Canceled {
			t.Errorf("Server error: %v", err)
		}
	}()
	time.Sleep(10 * time.Millisecond)

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()
}

// TestGetInfoOperation tests the GetInfo control operation
func TestGetInfoOperation(t *testing.T) {
	server := NewServer(newTestAgent(t))

	response := roundTrip(t, server, Request{Method: "GetInfo", ID: "test-1"})

	if response.ID != "test-1" {
		t.Errorf("Expected response ID 'test-1', got %s", response.ID)
	}
	if response.Error != "" {
		t.Errorf("Unexpected error in response: %s", response.Error)
	}

	result, ok := response.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected result to be a map, got %T", response.Result)
	}
	if result["bid"] == "" {
		t.Error("Expected BID in result")
	}
	if result["state"] == "" {
		t.Error("Expected state in result")
	}
}

// TestPutOperation tests the put control operation
func TestPutOperation(t *testing.T) {
	server := NewServer(newTestAgent(t))

	data := base64.StdEncoding.EncodeToString([]byte("hello, mesh"))
	response := roundTrip(t, server, Request{
		Method: "put",
		ID:     "test-put",
		Params: map[string]interface{}{"data": data},
	})

	if response.Error != "" {
		t.Fatalf("Unexpected error in response: %s", response.Error)
	}
	result, ok := response.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected result to be a map, got %T", response.Result)
	}
	if result["root"] == "" {
		t.Error("Expected root in result")
	}
}

// TestPutOperationRejectsMissingData tests put with no data parameter
func TestPutOperationRejectsMissingData(t *testing.T) {
	server := NewServer(newTestAgent(t))

	response := roundTrip(t, server, Request{Method: "put", ID: "test-put-bad"})

	if response.Error == "" {
		t.Error("Expected error in response for missing data parameter")
	}
}

// TestUnknownMethod tests that an unrecognized method reports an error
func TestUnknownMethod(t *testing.T) {
	server := NewServer(newTestAgent(t))

	response := roundTrip(t, server, Request{Method: "bogus", ID: "test-unknown"})

	if response.Error == "" {
		t.Error("Expected error in response for unknown method")
	}
}
