package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/replydesk/internal/logging"
	"github.com/teemow/replydesk/internal/server"
	"github.com/teemow/replydesk/internal/tools/triage_tools"
)

func newServeCmd() *cobra.Command {
	var (
		account        string
		calendarID     string
		stateFile      string
		model          string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server for AI assistant integration",
		Long: `Start a Model Context Protocol server on stdio that exposes the triage
system to AI assistants: running inbox passes, inspecting the
dashboard, thread histories, proposals, confirmed events, and sent
history, and resolving pending human review items.

With --metrics a Prometheus endpoint and health probes are served on a
dedicated port alongside the stdio transport.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(account, calendarID, stateFile, model, metricsEnabled, metricsAddr)
		},
	}

	addTriageFlags(cmd, &account, &calendarID, &stateFile, &model)
	cmd.Flags().BoolVar(&metricsEnabled, "metrics", false, "Serve Prometheus metrics and health probes. Can also use METRICS_ENABLED env var")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Address for the metrics server. Can also use METRICS_ADDR env var")
	return cmd
}

func runServe(account, calendarID, stateFile, model string, metricsEnabled bool, metricsAddr string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !metricsEnabled && os.Getenv("METRICS_ENABLED") == "true" {
		metricsEnabled = true
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" && metricsAddr == server.DefaultMetricsAddr {
		metricsAddr = addr
	}

	provider, sc, err := newTriageContext(ctx, account, calendarID, stateFile, model)
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Shutdown(); err != nil {
			slog.Error("failed to shut down triage system", logging.Err(err))
		}
		shutdownProvider(ctx, provider)
	}()

	health := server.NewHealthChecker(sc)

	var metricsServer *server.MetricsServer
	if metricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsAddr,
			InstrumentationProvider: provider,
		}, health)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("failed to shut down metrics server", logging.Err(err))
			}
		}()
	}

	mcpSrv := mcpserver.NewMCPServer("replydesk", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)

	if err := triage_tools.RegisterTriageTools(mcpSrv, sc, provider.Metrics()); err != nil {
		return fmt.Errorf("failed to register triage tools: %w", err)
	}

	health.SetReady(true)
	defer health.SetReady(false)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Give in-flight tool calls a moment to finish before teardown.
		time.Sleep(100 * time.Millisecond)
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
