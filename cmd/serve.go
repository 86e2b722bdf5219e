package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/tools/inbox_tools"
)

func newServeCmd() *cobra.Command {
	var (
		yolo        bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server on standard input/output so
AI assistants can read and manage your inbox through the backend. The server
uses the session stored by 'inboxchat login'.

Safety Mode:
  By default, the server operates in read-only mode, providing only safe operations.
  Use --yolo to enable write operations (sending replies and emails, trashing emails).

Metrics:
  With INSTRUMENTATION_ENABLED=true and the prometheus exporter, --metrics-addr
  (or METRICS_ADDR) serves /metrics, /healthz and /readyz on a separate port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr == "" {
				metricsAddr = os.Getenv("METRICS_ADDR")
			}
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				return runServe(ctx, cmd, a, !yolo, metricsAddr)
			})
		},
	}

	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable write operations (send and delete)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve metrics and health probes on this address, e.g. "+server.DefaultMetricsAddr)
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, a *app, readOnly bool, metricsAddr string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithListLimits(a.cfg.EmailLimit, a.cfg.CategorizeLimit),
	}
	if a.provider.Enabled() {
		opts = append(opts,
			server.WithMetrics(a.provider.Metrics()),
			server.WithAuditLogger(instrumentation.NewAuditLogger(a.logger, a.instrConfig.AuditLogging)),
		)
	}
	serverContext, err := server.NewServerContext(ctx, a.client, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := newMCPServer()
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	if readOnly {
		a.logger.Info("starting MCP server in read-only mode (use --yolo to enable write operations)")
	} else {
		a.logger.Info("starting MCP server with write operations enabled")
	}
	if !a.session.Authenticated() {
		a.logger.Warn("not signed in, tools will fail until `inboxchat login` is run")
	}

	var metricsServer *server.MetricsServer
	health := server.NewHealthChecker(serverContext)
	if metricsAddr != "" {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsAddr,
			InstrumentationProvider: a.provider,
			Health:                  health,
			Logger:                  a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server (set INSTRUMENTATION_ENABLED=true and METRICS_EXPORTER=prometheus): %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// stdin closing ends the session, so stop the metrics server too
		defer cancel()
		stdio := mcpserver.NewStdioServer(mcpSrv)
		stdio.SetErrorLogger(slog.NewLogLogger(a.logger.Handler(), slog.LevelError))
		err := stdio.Listen(gctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			health.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("error during metrics server shutdown", logging.Err(err))
			}
			return nil
		})
	}

	return g.Wait()
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("inboxchat", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
}

// registerAllTools registers all MCP tools
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := inbox_tools.RegisterInboxTools(mcpSrv, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register inbox tools: %w", err)
	}
	return nil
}
