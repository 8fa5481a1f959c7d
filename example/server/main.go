package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	transport "github.com/TangGee/go-mcp-transport"
	"github.com/TangGee/go-mcp-transport/config"
	"github.com/TangGee/go-mcp-transport/servers/health"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	// Standard output belongs to the stdio channel, so logs always go to standard error.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(*configPath, logger); err != nil {
		logger.Error("server exited", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	tcfg := cfg.TransportConfig()

	checker := health.NewChecker(tcfg.ServerVersion)
	deps, err := transport.NewDependencies(transport.Services{
		Health:           checker,
		SpecDocumentPath: cfg.Spec.Path,
	})
	if err != nil {
		return err
	}

	tr, err := transport.NewTransport(tcfg, deps, transport.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tr.Connect(ctx, transport.NewSDKServer(tcfg, deps)); err != nil {
		return fmt.Errorf("failed to connect %s transport: %w", tcfg.Kind, err)
	}
	logger.Info("transport connected", slog.Any("info", tr.TransportInfo()))

	if pipe, ok := tr.(*transport.PipeTransport); ok {
		// The session also ends when the client closes standard input.
		go func() {
			if err := pipe.Wait(); err != nil {
				logger.Warn("session ended", slog.String("err", err.Error()))
			}
			stop()
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr.Disconnect(shutdownCtx)
	logger.Info("transport disconnected")
	return nil
}
