package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const readHeaderTimeout = 15 * time.Second

// listener owns the bound socket and the http.Server of a socket-based channel.
type listener struct {
	addr            string
	logger          *slog.Logger
	shutdownTimeout time.Duration

	mu     sync.Mutex
	ln     net.Listener
	srv    *http.Server
	served chan struct{}
}

func newListener(cfg Config, o options) *listener {
	return &listener{
		addr:            net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		logger:          o.logger,
		shutdownTimeout: o.shutdownTimeout,
	}
}

// start binds the socket and serves handler in the background. It returns once the
// listener is bound.
func (l *listener) start(ctx context.Context, handler http.Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.srv != nil {
		return ErrAlreadyConnected
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return &BindError{Addr: l.addr, Err: err}
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	served := make(chan struct{})

	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("server stopped unexpectedly", slog.String("err", err.Error()))
		}
	}()

	l.ln = ln
	l.srv = srv
	l.served = served
	l.logger.Info("listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// stop closes the listener and waits for in-flight exchanges. Long-lived streams must
// already be released by the caller. It never fails; when the grace period runs out the
// remaining connections are closed forcibly.
func (l *listener) stop(ctx context.Context) {
	l.mu.Lock()
	srv, served := l.srv, l.served
	l.srv, l.ln, l.served = nil, nil, nil
	l.mu.Unlock()

	if srv == nil {
		return
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.shutdownTimeout)
		defer cancel()
	}

	if err := srv.Shutdown(ctx); err != nil {
		l.logger.Warn("graceful shutdown failed, closing connections", slog.String("err", err.Error()))
		_ = srv.Close()
	}
	<-served
	l.logger.Info("stopped listening", slog.String("addr", l.addr))
}

// address returns the bound address when connected, the configured one otherwise.
func (l *listener) address() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return l.ln.Addr().String(), true
	}
	return l.addr, false
}
