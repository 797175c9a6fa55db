package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maiiam/maiiam/internal/api"
	"github.com/maiiam/maiiam/internal/config"
	"github.com/maiiam/maiiam/internal/inference"
	"github.com/maiiam/maiiam/internal/remote"
	"github.com/maiiam/maiiam/internal/research"
	"github.com/maiiam/maiiam/internal/session"
	"github.com/maiiam/maiiam/internal/snapshot"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the maiiam server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running maiiam server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show maiiam system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "maiiam.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "maiiam version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.EnsureAPIToken(config.DefaultBackend())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("maiiam is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("maiiam is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire the remote client, audit log, and object registry.
	callLog := remote.NewCallLog(0)
	client := remote.New(remote.Config{
		BaseURL:     cfg.Remote.BaseURL,
		BearerToken: cfg.Remote.BearerToken,
		AppID:       cfg.Remote.AppID,
		UsageKey:    cfg.Remote.UsageKey,
	}, callLog)
	registry := remote.NewRegistry()
	engine := inference.New(client, registry)

	// Restore the prior state vector, if a recent snapshot exists.
	snapStore := snapshot.NewStore(cfg.Storage.DataDir)
	sess := session.New(client, engine, snapStore)
	if v := snapStore.Load(); v != nil {
		sess.Restore(*v)
		slog.Info("restored state snapshot")
	}

	// Establish the agent eagerly; a failure here is non-fatal and is
	// retried on first use.
	if err := sess.EnsureAgent(ctx); err != nil {
		slog.Warn("agent bootstrap failed, will retry on first message", "error", err)
	}

	runner := research.NewRunner(client, registry, sess, time.Duration(cfg.Research.WaitSeconds)*time.Second)

	deps := api.Deps{
		Session:  sess,
		Research: runner,
		Calls:    callLog,
		Objects:  registry,
		Deleter:  client,
		Token:    apiToken,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// Serve HTTP and the MCP stdio transport side by side.
	g, gctx := errgroup.WithContext(ctx)

	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})
	slog.Info("MCP server started (stdio transport)")

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "maiiam listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Best-effort cleanup of server-side objects created this run.
		if errs := registry.ReleaseAll(shutdownCtx, client); len(errs) > 0 {
			slog.Warn("some remote objects were not released", "failed", len(errs))
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("maiiam is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop maiiam (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to maiiam (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := httpClient.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Remote service", "%s", cfg.Remote.BaseURL)

	// Show session details if the server is running.
	if running {
		if client, err := newAPIClient(); err == nil {
			var view struct {
				Dominant  string  `json:"dominant"`
				Score     float64 `json:"score"`
				Exchanges int     `json:"exchanges"`
			}
			if resp, err := client.get(context.Background(), "/state"); err == nil {
				if decodeJSON(resp, &view) == nil {
					printStatus("Dominant state", "%s (%.0f%%)", view.Dominant, view.Score)
					printStatus("Exchanges", "%d", view.Exchanges)
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
