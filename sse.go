package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tmaxmax/go-sse"
)

const (
	sseMessagePath = "/mcp"
	sseEventsPath  = "/mcp/events"
	sseInfoPath    = "/mcp/info"

	eventConnected  = "connected"
	eventMCPRequest = "mcp-request"

	sseRecommendation = "use the request/response channel for full functionality"
)

// SSETransport serves MCP over a persistent Server-Sent Events stream. Clients subscribe
// on GET /mcp/events and post JSON-RPC envelopes to POST /mcp, which answers only
// initialize. Every answered exchange is broadcast to all live subscribers as an
// mcp-request event.
//
// Instances should be created using NewSSETransport or NewTransport.
type SSETransport struct {
	cfg      Config
	deps     *Dependencies
	logger   *slog.Logger
	maxBody  int64
	now      func() time.Time
	listener *listener

	subscribers *registry
}

type connectedEvent struct {
	ID        string     `json:"id"`
	Server    ServerInfo `json:"server"`
	Timestamp string     `json:"timestamp"`
}

type requestEvent struct {
	Request   Request  `json:"request"`
	Response  Response `json:"response"`
	Timestamp string   `json:"timestamp"`
}

type unsupportedMethodData struct {
	SupportedMethods []string `json:"supportedMethods"`
	Recommendation   string   `json:"recommendation"`
}

type sseInfo struct {
	Transport     Kind               `json:"transport"`
	Server        ServerInfo         `json:"server"`
	Endpoints     sseEndpoints       `json:"endpoints"`
	Subscribers   int                `json:"subscribers"`
	Capabilities  ServerCapabilities `json:"capabilities"`
	AvailableHTTP httpSurface        `json:"availableViaHttpTransport"`
	Health        any                `json:"health,omitempty"`
}

type sseEndpoints struct {
	Events   string `json:"events"`
	Messages string `json:"messages"`
	Info     string `json:"info"`
}

type httpSurface struct {
	Tools     []string `json:"tools"`
	Resources []string `json:"resources"`
}

// NewSSETransport creates the stream channel. It does not validate its arguments; use
// NewTransport for that.
func NewSSETransport(cfg Config, deps *Dependencies, opts ...Option) *SSETransport {
	o := newOptions(KindStream, opts)
	return &SSETransport{
		cfg:         cfg,
		deps:        deps,
		logger:      o.logger,
		maxBody:     o.maxBodyBytes,
		now:         o.now,
		listener:    newListener(cfg, o),
		subscribers: newRegistry(o.logger),
	}
}

// Connect binds the listener and starts accepting subscribers and exchanges. The server
// handle is not used.
func (t *SSETransport) Connect(ctx context.Context, _ *mcp.Server) error {
	t.subscribers.open()
	return t.listener.start(ctx, t.Handler())
}

// Disconnect closes every live event stream, then the listener.
func (t *SSETransport) Disconnect(ctx context.Context) {
	t.subscribers.closeAll()
	t.listener.stop(ctx)
}

// TransportInfo implements Transport. The subscribers detail is the live registry size.
func (t *SSETransport) TransportInfo() Info {
	addr, connected := t.listener.address()
	base := "http://" + addr
	return Info{
		Kind: KindStream,
		Details: map[string]any{
			"address":         addr,
			"connected":       connected,
			"eventsEndpoint":  base + sseEventsPath,
			"messageEndpoint": base + sseMessagePath,
			"infoEndpoint":    base + sseInfoPath,
			"subscribers":     t.subscribers.len(),
		},
	}
}

// Handler returns the http.Handler serving the events, message and info routes.
func (t *SSETransport) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			writePreflight(w)
			return
		}
		w.Header().Set(headerAllowOrigin, corsAllowOrigin)

		var route func(http.ResponseWriter, *http.Request)
		method := http.MethodGet
		switch r.URL.Path {
		case sseEventsPath:
			route = t.handleEvents
		case sseMessagePath:
			route, method = t.handleMessage, http.MethodPost
		case sseInfoPath:
			route = t.handleInfo
		default:
			writeJSON(w, t.logger, http.StatusNotFound, plainError{Error: "Not found"})
			return
		}
		if r.Method != method {
			writeJSON(w, t.logger, http.StatusMethodNotAllowed, plainError{Error: "Method not allowed"})
			return
		}
		route(w, r)
	})
}

func (t *SSETransport) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		nErr := fmt.Errorf("failed to upgrade session: %w", err)
		t.logger.Error("failed to upgrade session", slog.String("err", nErr.Error()))
		http.Error(w, nErr.Error(), http.StatusInternalServerError)
		return
	}

	sub := newSubscriber(sess)
	id := uuid.New()
	defer func() {
		t.subscribers.remove(id)
		sub.wait()
		t.logger.Debug("subscriber disconnected", slog.String("subscriberID", id.String()))
	}()

	msg, err := t.eventMessage(eventConnected, connectedEvent{
		ID:        id.String(),
		Server:    ServerInfo{Name: t.cfg.ServerName, Version: t.cfg.ServerVersion},
		Timestamp: t.timestamp(),
	})
	if err != nil {
		t.logger.Error("failed to build connected event", slog.String("err", err.Error()))
		return
	}
	added, err := sub.greet(msg, func() bool { return t.subscribers.add(id, sub) })
	if err != nil {
		t.logger.Warn("failed to send connected event", slog.String("err", err.Error()))
		return
	}
	if !added {
		return
	}
	t.logger.Debug("subscriber connected", slog.String("subscriberID", id.String()))

	// Block until the client goes away, the subscriber is evicted, or the transport
	// disconnects.
	select {
	case <-r.Context().Done():
	case <-sub.done:
	}
}

func (t *SSETransport) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, t.maxBody)
	if err != nil {
		t.logger.Warn("failed to read request body", slog.String("err", err.Error()))
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, t.logger, status, plainError{Error: err.Error()})
		return
	}

	req, invalid, err := parseEnvelope(body)
	if err != nil {
		t.logger.Warn("failed to parse JSON-RPC envelope", slog.String("err", err.Error()))
		writeJSON(w, t.logger, http.StatusBadRequest, plainError{Error: errMsgParseError, Details: err.Error()})
		return
	}
	if invalid != nil {
		writeJSON(w, t.logger, http.StatusOK, invalid)
		return
	}

	resp := t.dispatch(req)
	writeJSON(w, t.logger, http.StatusOK, resp)

	msg, err := t.eventMessage(eventMCPRequest, requestEvent{
		Request:   req,
		Response:  resp,
		Timestamp: t.timestamp(),
	})
	if err != nil {
		t.logger.Error("failed to build broadcast event", slog.String("err", err.Error()))
		return
	}
	delivered := t.subscribers.broadcast(msg)
	t.logger.Debug("handled request",
		slog.String("method", req.Method),
		slog.String("id", req.ID.String()),
		slog.Int("delivered", delivered),
	)
}

func (t *SSETransport) dispatch(req Request) (resp Response) {
	defer recoverDispatch(t.logger, req, &resp)

	switch parseSSEMethod(req.Method) {
	case sseMethodInitialize:
		return newResult(req.ID, initializeResult(t.cfg, sseCapabilities()))
	case sseMethodUnsupported:
	}
	return newError(req.ID, CodeMethodNotFound,
		fmt.Sprintf("Method not supported in SSE transport: %s", req.Method),
		unsupportedMethodData{
			SupportedMethods: []string{MethodInitialize},
			Recommendation:   sseRecommendation,
		})
}

func (t *SSETransport) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := sseInfo{
		Transport: KindStream,
		Server:    ServerInfo{Name: t.cfg.ServerName, Version: t.cfg.ServerVersion},
		Endpoints: sseEndpoints{
			Events:   sseEventsPath,
			Messages: sseMessagePath,
			Info:     sseInfoPath,
		},
		Subscribers:  t.subscribers.len(),
		Capabilities: sseCapabilities(),
		AvailableHTTP: httpSurface{
			Tools:     toolNames(),
			Resources: resourceURIs(t.cfg),
		},
	}

	// The stream channel does not require a health provider, report it only if present.
	if health := t.deps.Health(); health != nil {
		status, err := health.CheckHealth(r.Context())
		if err != nil {
			t.logger.Warn("health check failed", slog.String("err", err.Error()))
			status = map[string]string{"error": err.Error()}
		}
		info.Health = status
	}

	writeJSON(w, t.logger, http.StatusOK, info)
}

func (t *SSETransport) eventMessage(eventType string, payload any) (*sse.Message, error) {
	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	msg := &sse.Message{
		Type: sse.Type(eventType),
	}
	msg.AppendData(string(bs))
	return msg, nil
}

func (t *SSETransport) timestamp() string {
	return t.now().UTC().Format(time.RFC3339Nano)
}
