package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	transport "github.com/TangGee/go-mcp-transport"
	"github.com/tmaxmax/go-sse"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type eventStream struct {
	events chan sse.Event
	cancel context.CancelFunc
}

func newSSEServer(t *testing.T, deps *transport.Dependencies) (*transport.SSETransport, *httptest.Server) {
	t.Helper()

	tr := transport.NewSSETransport(validConfig(transport.KindStream), deps,
		transport.WithClock(func() time.Time { return fixedNow }))
	srv := httptest.NewServer(tr.Handler())
	t.Cleanup(srv.Close)
	return tr, srv
}

// subscribe opens an event stream. The stream is closed before the test server, so
// the server never waits on a live subscriber.
func subscribe(t *testing.T, url string) *eventStream {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("failed to subscribe: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected allow origin * on event stream, got %q", got)
	}

	s := &eventStream{
		events: make(chan sse.Event, 16),
		cancel: cancel,
	}
	go func() {
		defer close(s.events)
		defer resp.Body.Close()
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				return
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	t.Cleanup(cancel)
	return s
}

func (s *eventStream) next(t *testing.T) sse.Event {
	t.Helper()

	select {
	case ev, ok := <-s.events:
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return sse.Event{}
}

func waitSubscribers(t *testing.T, tr transport.Transport, want int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, _ := tr.TransportInfo().Details["subscribers"].(int)
		if got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", want, got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSSEConnectedEvent(t *testing.T) {
	_, srv := newSSEServer(t, nil)

	stream := subscribe(t, srv.URL+"/mcp/events")
	ev := stream.next(t)
	if ev.Type != "connected" {
		t.Fatalf("expected connected event, got %q", ev.Type)
	}

	var payload struct {
		ID     string               `json:"id"`
		Server transport.ServerInfo `json:"server"`
		Time   string               `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		t.Fatalf("failed to decode connected event: %v", err)
	}
	if payload.ID == "" {
		t.Error("expected subscriber id")
	}
	if payload.Server != (transport.ServerInfo{Name: "s", Version: "1.0.0"}) {
		t.Errorf("unexpected server info %+v", payload.Server)
	}
	if payload.Time != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected timestamp %s", payload.Time)
	}

	other := subscribe(t, srv.URL+"/mcp/events")
	var otherPayload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(other.next(t).Data), &otherPayload); err != nil {
		t.Fatalf("failed to decode connected event: %v", err)
	}
	if otherPayload.ID == payload.ID {
		t.Error("expected distinct subscriber ids")
	}
}

func TestSSEInitializeBroadcast(t *testing.T) {
	tr, srv := newSSEServer(t, nil)

	streams := []*eventStream{
		subscribe(t, srv.URL+"/mcp/events"),
		subscribe(t, srv.URL+"/mcp/events"),
	}
	for _, s := range streams {
		s.next(t)
	}
	waitSubscribers(t, tr, 2)

	status, body := post(t, srv.URL+"/mcp", `{"jsonrpc":"2.0","id":"init-1","method":"initialize","params":{}}`)
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	want := `{"jsonrpc":"2.0","id":"init-1","result":{"protocolVersion":"2024-11-05",` +
		`"capabilities":{},"serverInfo":{"name":"s","version":"1.0.0"}}}`
	if got := string(bytes.TrimSpace(body)); got != want {
		t.Errorf("unexpected initialize response\n got: %s\nwant: %s", got, want)
	}

	for i, s := range streams {
		ev := s.next(t)
		if ev.Type != "mcp-request" {
			t.Fatalf("subscriber %d: expected mcp-request event, got %q", i, ev.Type)
		}
		var payload struct {
			Request   transport.Request `json:"request"`
			Response  rpcResponse       `json:"response"`
			Timestamp string            `json:"timestamp"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			t.Fatalf("subscriber %d: failed to decode event: %v", i, err)
		}
		if payload.Request.Method != "initialize" {
			t.Errorf("subscriber %d: expected initialize request, got %s", i, payload.Request.Method)
		}
		if string(payload.Response.ID) != `"init-1"` {
			t.Errorf("subscriber %d: expected response id \"init-1\", got %s", i, payload.Response.ID)
		}
		if payload.Response.Result == nil {
			t.Errorf("subscriber %d: expected result in broadcast response", i)
		}
	}
}

func TestSSEUnsupportedMethod(t *testing.T) {
	_, srv := newSSEServer(t, nil)

	resp := call(t, srv.URL+"/mcp", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	if resp.Error == nil {
		t.Fatal("expected error, got nil")
	}
	if resp.Error.Code != transport.CodeMethodNotFound {
		t.Errorf("expected code %d, got %d", transport.CodeMethodNotFound, resp.Error.Code)
	}
	if want := "Method not supported in SSE transport: tools/list"; resp.Error.Message != want {
		t.Errorf("expected message %q, got %q", want, resp.Error.Message)
	}

	var data struct {
		SupportedMethods []string `json:"supportedMethods"`
		Recommendation   string   `json:"recommendation"`
	}
	if err := json.Unmarshal(resp.Error.Data, &data); err != nil {
		t.Fatalf("failed to decode error data: %v", err)
	}
	if len(data.SupportedMethods) != 1 || data.SupportedMethods[0] != "initialize" {
		t.Errorf("unexpected supported methods %v", data.SupportedMethods)
	}
	if data.Recommendation == "" {
		t.Error("expected a recommendation")
	}
}

func TestSSEExchangeErrors(t *testing.T) {
	_, srv := newSSEServer(t, nil)

	t.Run("parse error", func(t *testing.T) {
		status, body := post(t, srv.URL+"/mcp", `{broken`)
		if status != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", status)
		}
		var plain struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if err := json.Unmarshal(body, &plain); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if plain.Error != "Parse error" || plain.Details == "" {
			t.Errorf("unexpected parse error body %s", body)
		}
	})

	t.Run("wrongly typed member", func(t *testing.T) {
		resp := call(t, srv.URL+"/mcp", `{"jsonrpc":"2.0","id":9,"method":5}`)
		if resp.Error == nil || resp.Error.Code != transport.CodeInvalidRequest {
			t.Fatalf("expected invalid request error, got %+v", resp.Error)
		}
		if string(resp.ID) != "9" {
			t.Errorf("expected id 9, got %s", resp.ID)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, srv.URL+"/mcp/events", nil)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("failed to send request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
			t.Errorf("unexpected allow methods %q", got)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/mcp")
		if err != nil {
			t.Fatalf("failed to send request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected status 405, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nowhere")
		if err != nil {
			t.Fatalf("failed to send request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", resp.StatusCode)
		}
	})
}

type sseInfoBody struct {
	Transport   string         `json:"transport"`
	Subscribers int            `json:"subscribers"`
	Available   map[string]any `json:"availableViaHttpTransport"`
	Health      map[string]any `json:"health"`
}

func getInfo(t *testing.T, url string) sseInfoBody {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("failed to get info: %v", err)
	}
	defer resp.Body.Close()

	var info sseInfoBody
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode info: %v", err)
	}
	return info
}

func TestSSEInfo(t *testing.T) {
	t.Run("subscriber count", func(t *testing.T) {
		tr, srv := newSSEServer(t, nil)

		if info := getInfo(t, srv.URL+"/mcp/info"); info.Subscribers != 0 {
			t.Errorf("expected 0 subscribers, got %d", info.Subscribers)
		}

		stream := subscribe(t, srv.URL+"/mcp/events")
		stream.next(t)
		waitSubscribers(t, tr, 1)

		info := getInfo(t, srv.URL+"/mcp/info")
		if info.Transport != "sse" {
			t.Errorf("expected transport sse, got %s", info.Transport)
		}
		if want := tr.TransportInfo().Details["subscribers"]; info.Subscribers != want {
			t.Errorf("expected info subscribers to equal %v, got %d", want, info.Subscribers)
		}
		if info.Health != nil {
			t.Errorf("expected no health without provider, got %v", info.Health)
		}
		if info.Available["tools"] == nil {
			t.Error("expected HTTP surface to be listed")
		}

		stream.cancel()
		waitSubscribers(t, tr, 0)
	})

	t.Run("with health provider", func(t *testing.T) {
		_, srv := newSSEServer(t, healthyDeps(t))

		info := getInfo(t, srv.URL+"/mcp/info")
		if info.Health["status"] != "ok" {
			t.Errorf("expected health status ok, got %v", info.Health)
		}
	})
}

func TestSSEDisconnectClosesStreams(t *testing.T) {
	cfg := validConfig(transport.KindStream)
	cfg.Port = freePort(t)

	tr, err := transport.NewTransport(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create transport: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx, nil); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	eventsURL, _ := tr.TransportInfo().Details["eventsEndpoint"].(string)

	stream := subscribe(t, eventsURL)
	stream.next(t)
	waitSubscribers(t, tr, 1)

	tr.Disconnect(ctx)

	select {
	case _, ok := <-stream.events:
		if ok {
			t.Error("expected stream to end without further events")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for stream to close")
	}
	if got, _ := tr.TransportInfo().Details["subscribers"].(int); got != 0 {
		t.Errorf("expected no subscribers after disconnect, got %d", got)
	}
}
