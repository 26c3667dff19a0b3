package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openagora/dashsync/internal/config"
	"github.com/openagora/dashsync/internal/metrics"
	"github.com/openagora/dashsync/internal/session"
	"github.com/openagora/dashsync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/dashboard.local.yaml", "path to config file")
	rooms := flag.String("rooms", "", "comma-separated rooms to join on connect")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting dashboard sync",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"api_url", cfg.API.BaseURL,
		"ws_url", cfg.API.WSURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New(nil)

	sess, err := session.New(cfg,
		session.WithLogger(logger),
		session.WithMetrics(m),
	)
	if err != nil {
		logger.Error("failed to build session", "error", err)
		os.Exit(1)
	}

	if err := sess.Start(ctx); err != nil {
		logger.Error("failed to start session", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		sess.Close(shutdownCtx)
	}()

	for _, room := range splitRooms(*rooms) {
		if err := sess.JoinRoom(room); err != nil {
			logger.Error("failed to join room", "room", room, "error", err)
			os.Exit(1)
		}
		logger.Info("joined room", "room", room)
	}

	// Metrics and health server
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHTTPHandler(cfg.Metrics.Path, sess),
	}

	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Periodic state summary
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := sess.Snapshot()
				rs := sess.RouterStats()
				logger.Info("sync state",
					"connection", sess.ConnectionState().String(),
					"pending", len(snap.Pending),
					"online", len(snap.Presence),
					"activity", len(snap.Activity),
					"dispatched", rs.EventsDispatched,
					"duplicates", rs.DuplicatesDropped,
				)
			}
		}
	}()

	logger.Info("dashboard sync running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	logger.Info("dashboard sync stopped")
}

func splitRooms(s string) []string {
	var out []string
	for _, room := range strings.Split(s, ",") {
		if room = strings.TrimSpace(room); room != "" {
			out = append(out, room)
		}
	}
	return out
}

// createHTTPHandler serves metrics, health, and a read-model debug view.
func createHTTPHandler(metricsPath string, sess *session.Session) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		state := sess.ConnectionState().String()
		stats := sess.ConnectionStats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["push_channel"] = map[string]any{
			"state": state,
			"epoch": stats.Epoch,
			"rooms": stats.Rooms,
		}
		if state != "connected" {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/state", func(w http.ResponseWriter, r *http.Request) {
		snap := sess.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"pending":  snap.Pending,
			"counters": snap.Counters,
			"presence": snap.Presence,
			"flagged":  snap.Flagged,
			"activity": snap.Activity,
		})
	})

	return mux
}
