package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PipeTransport binds the process's standard input and output to an MCP server runtime.
// It has no protocol logic of its own: framing and dispatch belong to the MCP Go SDK.
//
// Instances should be created using NewPipeTransport or NewTransport.
type PipeTransport struct {
	cfg    Config
	logger *slog.Logger
	pipe   mcp.Transport

	mu      sync.Mutex
	session *mcp.ServerSession
}

// NewPipeTransport creates the stdio channel. The SDK transport defaults to
// mcp.StdioTransport and can be replaced with WithPipeTransport.
func NewPipeTransport(cfg Config, opts ...Option) *PipeTransport {
	o := newOptions(KindPipe, opts)
	pipe := o.pipeTransport
	if pipe == nil {
		pipe = &mcp.StdioTransport{}
	}
	return &PipeTransport{
		cfg:    cfg,
		logger: o.logger,
		pipe:   pipe,
	}
}

// Connect starts a session of srv over the pipe. It returns once the session is
// established on the SDK side; the handshake itself is driven by the client.
func (t *PipeTransport) Connect(ctx context.Context, srv *mcp.Server) error {
	if srv == nil {
		return errNilServer
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return ErrAlreadyConnected
	}

	session, err := srv.Connect(ctx, t.pipe, nil)
	if err != nil {
		return err
	}
	t.session = session
	t.logger.Info("connected", slog.String("sessionID", session.ID()))
	return nil
}

// Disconnect closes the session, which releases the pipe.
func (t *PipeTransport) Disconnect(context.Context) {
	t.mu.Lock()
	session := t.session
	t.session = nil
	t.mu.Unlock()

	if session == nil {
		return
	}
	if err := session.Close(); err != nil {
		t.logger.Warn("failed to close session", slog.String("err", err.Error()))
	}
	t.logger.Info("disconnected")
}

// Wait blocks until the connected session ends, for instance because the client closed
// standard input. It returns immediately when not connected.
func (t *PipeTransport) Wait() error {
	t.mu.Lock()
	session := t.session
	t.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Wait()
}

// TransportInfo implements Transport.
func (t *PipeTransport) TransportInfo() Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	details := map[string]any{
		"input":     "stdin",
		"output":    "stdout",
		"connected": t.session != nil,
	}
	if t.session != nil {
		details["sessionID"] = t.session.ID()
	}
	return Info{Kind: KindPipe, Details: details}
}
