package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Kind identifies the delivery channel of a Transport.
type Kind string

const (
	// KindPipe carries MCP over the process's standard input and output.
	KindPipe Kind = "stdio"
	// KindRequestResponse answers one JSON-RPC envelope per HTTP exchange.
	KindRequestResponse Kind = "http"
	// KindStream pushes exchanges to Server-Sent Events subscribers.
	KindStream Kind = "sse"
)

// Known reports whether k is one of the channel kinds this package can build.
func (k Kind) Known() bool {
	switch k {
	case KindPipe, KindRequestResponse, KindStream:
		return true
	default:
		return false
	}
}

// Config describes the transport to build. Host and Port are only consulted by the
// socket-based kinds.
type Config struct {
	Kind          Kind
	Host          string
	Port          int
	ServerName    string
	ServerVersion string
}

// Transport is the contract shared by every channel variant. Callers should depend on
// this interface only, never on a concrete variant.
type Transport interface {
	// Connect binds the channel and starts accepting traffic. It returns once the
	// channel is ready, for socket-based channels once the listener is bound. A bind
	// failure is reported as a *BindError.
	//
	// srv is the protocol runtime. The stdio channel requires it, the socket channels
	// dispatch requests themselves and ignore it.
	Connect(ctx context.Context, srv *mcp.Server) error

	// Disconnect releases the channel. Socket-based channels close their live
	// connections before closing the listener. Disconnect is safe to call on a
	// transport that was never connected, and safe to call more than once.
	Disconnect(ctx context.Context)

	// TransportInfo returns a diagnostic snapshot of the channel. It has no side effects.
	TransportInfo() Info
}

// Info is the diagnostic snapshot returned by Transport.TransportInfo. The keys in
// Details depend on the channel kind.
type Info struct {
	Kind    Kind           `json:"kind"`
	Details map[string]any `json:"details"`
}

// Option configures a transport built by NewTransport or one of the variant constructors.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	pipeTransport   mcp.Transport
	maxBodyBytes    int64
	shutdownTimeout time.Duration
	now             func() time.Time
}

const (
	defaultMaxBodyBytes    = 4 << 20
	defaultShutdownTimeout = 5 * time.Second
)

func newOptions(kind Kind, opts []Option) options {
	o := options{
		logger:          slog.Default(),
		maxBodyBytes:    defaultMaxBodyBytes,
		shutdownTimeout: defaultShutdownTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(
		slog.String("package", "go-mcp-transport"),
		slog.String("component", string(kind)),
	)
	return o
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPipeTransport replaces the SDK transport the stdio channel binds to. It defaults
// to mcp.StdioTransport; tests usually pass one half of mcp.NewInMemoryTransports.
func WithPipeTransport(t mcp.Transport) Option {
	return func(o *options) {
		o.pipeTransport = t
	}
}

// WithMaxBodyBytes caps the size of an accepted request body. Larger bodies are
// rejected with 413.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodyBytes = n
		}
	}
}

// WithShutdownTimeout bounds how long Disconnect waits for in-flight exchanges when the
// caller's context has no deadline of its own.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
