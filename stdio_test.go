package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	transport "github.com/TangGee/go-mcp-transport"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestPipeTransportSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := validConfig(transport.KindPipe)
	deps := healthyDeps(t)
	serverSide, clientSide := mcp.NewInMemoryTransports()

	tr, err := transport.NewTransport(cfg, deps, transport.WithPipeTransport(serverSide))
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}
	if err := tr.Connect(ctx, transport.NewSDKServer(cfg, deps)); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer tr.Disconnect(ctx)

	if err := tr.Connect(ctx, transport.NewSDKServer(cfg, deps)); !errors.Is(err, transport.ErrAlreadyConnected) {
		t.Errorf("expected ErrAlreadyConnected on second connect, got %v", err)
	}

	info := tr.TransportInfo()
	if connected, _ := info.Details["connected"].(bool); !connected {
		t.Errorf("expected connected detail, got %v", info.Details)
	}
	if info.Details["input"] != "stdin" || info.Details["output"] != "stdout" {
		t.Errorf("unexpected stream details %v", info.Details)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, clientSide, nil)
	if err != nil {
		t.Fatalf("failed to connect client: %v", err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("failed to list tools: %v", err)
	}
	if len(tools.Tools) != 1 || tools.Tools[0].Name != "get_api_health" {
		t.Fatalf("unexpected tools %+v", tools.Tools)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_api_health",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}
	if res.IsError || len(res.Content) != 1 {
		t.Fatalf("unexpected tool result %+v", res)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var status map[string]string
	if err := json.Unmarshal([]byte(text.Text), &status); err != nil {
		t.Fatalf("failed to decode health status: %v", err)
	}
	if status["status"] != "ok" {
		t.Errorf("expected status ok, got %v", status)
	}

	doc, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "spec://s/specs"})
	if err != nil {
		t.Fatalf("failed to read resource: %v", err)
	}
	if len(doc.Contents) != 1 || !json.Valid([]byte(doc.Contents[0].Text)) {
		t.Errorf("expected one JSON document, got %+v", doc.Contents)
	}

	tr.Disconnect(ctx)
	if connected, _ := tr.TransportInfo().Details["connected"].(bool); connected {
		t.Error("expected disconnected after Disconnect")
	}
}

func TestPipeTransportRequiresServer(t *testing.T) {
	serverSide, _ := mcp.NewInMemoryTransports()
	tr := transport.NewPipeTransport(validConfig(transport.KindPipe), transport.WithPipeTransport(serverSide))

	if err := tr.Connect(context.Background(), nil); err == nil {
		t.Fatal("expected error connecting without a server, got nil")
	}
	if err := tr.Wait(); err != nil {
		t.Errorf("expected Wait to return immediately when not connected, got %v", err)
	}
	tr.Disconnect(context.Background())
}
