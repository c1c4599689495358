package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/studybuddy/internal/api"
	"github.com/kalambet/studybuddy/internal/config"
)

var serveMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the settings API on localhost (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the settings server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP over stdio")
}

func runServer(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeFn, err := openSettings(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer closeFn()

	if target, err := store.Target(ctx); err != nil {
		printWarning("settings storage unavailable: %v", err)
	} else {
		slog.Info("settings storage ready", "backend", store.Backend().Name(), "target", target)
	}

	handler := api.NewAppHandler(api.AppDeps{
		Settings:       store,
		Token:          cfg.Server.Token,
		Version:        version,
		MaxBodyBytes:   int64(cfg.Server.MaxBodyBytes),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printStep("studybuddy listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if serveMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Settings: store, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func showStatus(ctx context.Context) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var health struct {
		OK bool `json:"ok"`
	}
	resp, err := client.get(ctx, "/system/healthz")
	if err != nil {
		printStatus("Server", "stopped")
		return nil
	}
	if err := decodeJSON(resp, &health); err != nil {
		printStatus("Server", "unhealthy (%v)", err)
		return nil
	}
	if !health.OK {
		printStatus("Server", "unhealthy")
		return nil
	}
	printStatus("Server", "%s", colorize(colorGreen, "running"))

	var ver map[string]string
	if resp, err := client.get(ctx, "/system/version"); err == nil && decodeJSON(resp, &ver) == nil {
		printStatus("Version", "%s", ver["version"])
	}

	var target api.TargetResponse
	resp, err = client.get(ctx, "/settings/target")
	if err != nil {
		return err
	}
	if err := decodeJSON(resp, &target); err != nil {
		printStatus("Settings", "%s", colorize(colorYellow, fmt.Sprintf("unavailable (%v)", err)))
		return nil
	}
	printStatus("Backend", "%s", target.Backend)
	printStatus("Target", "%s", target.Target)
	return nil
}
