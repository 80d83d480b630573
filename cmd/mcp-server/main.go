// Command mcp-server exposes the built-in tools over newline-delimited
// JSON-RPC on stdio, or over Server-Sent Events with --transport sse.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"code.cloudfoundry.org/lager/v3"
	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/mcp-chat/internal/config"
	"github.com/petasbytes/mcp-chat/internal/fsops"
	"github.com/petasbytes/mcp-chat/internal/mcp"
	"github.com/petasbytes/mcp-chat/internal/metrics"
	"github.com/petasbytes/mcp-chat/internal/telemetry"
	"github.com/petasbytes/mcp-chat/tools"
)

const shutdownTimeout = 5 * time.Second

type ServerCommand struct {
	Transport string        `long:"transport" default:"stdio" choice:"stdio" choice:"sse" description:"Transport to serve on."`
	Addr      string        `long:"addr" default:"127.0.0.1:8000" description:"Listen address for the sse transport."`
	Strict    bool          `long:"strict" description:"Reject tool requests until initialize has succeeded."`
	ReadRoot  string        `long:"read-root" description:"Directory tools may read from (default: working directory)."`
	WriteRoot string        `long:"write-root" description:"Directory tools may write to (default: read root)."`
	Timeout   time.Duration `long:"tool-timeout" description:"Per-call tool timeout."`
	LogLevel  string        `long:"log-level" description:"debug, info, error or fatal."`
}

// apply overlays explicitly set flags on cfg.
func (cmd ServerCommand) apply(cfg config.Config) config.Config {
	if cmd.Strict {
		cfg.StrictSession = true
	}
	if cmd.ReadRoot != "" {
		cfg.ReadRoot = cmd.ReadRoot
	}
	if cmd.WriteRoot != "" {
		cfg.WriteRoot = cmd.WriteRoot
	}
	if cmd.Timeout > 0 {
		cfg.ToolTimeout = cmd.Timeout
	}
	if cmd.LogLevel != "" {
		cfg.LogLevel = cmd.LogLevel
	}
	return cfg
}

func main() {
	var cmd ServerCommand
	parser := flags.NewParser(&cmd, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		handleError(err)
	}

	cfg, err := config.Load()
	if err != nil {
		handleError(err)
	}
	cfg = cmd.apply(cfg)
	if err := cfg.Validate(); err != nil {
		handleError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func handleError(err error) {
	if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
		fmt.Println(err)
		os.Exit(0)
	}
	fmt.Fprintf(os.Stderr, "error: %s\n", err)
	os.Exit(1)
}

// run serves until stdin closes (stdio) or ctx is cancelled. Logs go to
// stderr; stdout carries only protocol messages.
func run(ctx context.Context, cmd ServerCommand, cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) error {
	telemetry.Configure(cfg.ObserveJSON, cfg.ArtifactsDir)
	logger := cfg.NewLogger("mcp-server", stderr)

	fs, err := fsops.New(cfg.ReadRoot, cfg.WriteRoot)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(reg)

	executor := tools.NewExecutor(tools.Default(fs), tools.WithTimeout(cfg.ToolTimeout), tools.WithRecorder(rec))
	newDispatcher := func() *mcp.Dispatcher {
		return mcp.NewDispatcher(executor, logger, mcp.WithStrictSession(cfg.StrictSession), mcp.WithMetrics(rec))
	}

	logger.Info("started", lager.Data{
		"transport":  cmd.Transport,
		"read-root":  fs.ReadRoot(),
		"write-root": fs.WriteRoot(),
		"strict":     cfg.StrictSession,
		"timeout":    cfg.ToolTimeout.String(),
	})

	switch cmd.Transport {
	case "sse":
		return serveSSE(ctx, logger, cmd.Addr, mcp.NewSSEServer(newDispatcher, logger, mcp.WithSSEMetrics(rec, reg)))
	default:
		rec.SessionOpened()
		defer rec.SessionClosed()
		return mcp.NewStdioServer(newDispatcher(), stdin, stdout, logger).Serve(ctx)
	}
}

func serveSSE(ctx context.Context, logger lager.Logger, addr string, srv *mcp.SSEServer) error {
	g, ctx := errgroup.WithContext(ctx)

	// Event streams end with ctx so Shutdown does not wait on them.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		logger.Info("listening", lager.Data{"addr": addr})
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting-down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
