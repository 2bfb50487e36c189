package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/notegest/internal/api"
	"github.com/dgallion1/notegest/internal/config"
	"github.com/dgallion1/notegest/internal/hostclient"
	"github.com/dgallion1/notegest/internal/memhost"
	"github.com/dgallion1/notegest/internal/notebook"
	"github.com/dgallion1/notegest/internal/pipeline"
	"github.com/dgallion1/notegest/internal/stats"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the host: a remote one when configured, otherwise the
	// fixture notebook served in-process and over the bridge endpoints.
	var (
		hosts  pipeline.HostFactory
		bridge *memhost.Bridge
		remote *hostclient.Client
	)
	if cfg.HostURL != "" {
		c, err := hostclient.New(cfg.HostURL, cfg.HostAPIKey, hostclient.Options{
			Timeout: cfg.HostTimeout,
			HTTP2:   cfg.HostHTTP2,
		})
		if err != nil {
			log.Error("host client", "error", err)
			os.Exit(1)
		}
		hosts, remote = c, c
	} else {
		nb, err := notebook.Load(cfg.FixturePath)
		if err != nil {
			log.Error("load fixture", "path", cfg.FixturePath, "error", err)
			os.Exit(1)
		}
		bridge = memhost.NewBridge(nb, log)
		hosts = bridge
	}

	// Initialize pipeline.
	commits := stats.NewCommitStats(cfg.StatsWindow)
	orch := pipeline.NewOrchestrator(cfg, hosts, commits, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, bridge, commits, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if remote != nil {
			remote.Close()
		}
	}()

	log.Info("starting notegest", "port", cfg.Port, "remote_host", cfg.HostURL != "")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
