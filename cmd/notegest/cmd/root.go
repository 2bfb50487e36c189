package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/notegest/internal/config"
	"github.com/dgallion1/notegest/internal/hostclient"
	"github.com/dgallion1/notegest/internal/memhost"
	"github.com/dgallion1/notegest/internal/notebook"
	"github.com/dgallion1/notegest/internal/pipeline"
)

type rootOpts struct {
	fixture    string
	hostURL    string
	hostAPIKey string
	http2      bool
	debug      bool
}

var rootOpt rootOpts

func newRootCmd() *cobra.Command {
	rootOpt = rootOpts{}
	rootCmd := &cobra.Command{
		Use:   "notegest",
		Short: "Export notebook sections over the batched host protocol.",
		Long: `notegest walks every page of the active notebook section, one batch per
step, and writes the rich text, images, ink and tables it finds as markdown,
HTML, docx or JSON records.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newExportCmd(), newImportCmd(), newMCPCmd())

	rootCmd.PersistentFlags().StringVar(&rootOpt.fixture, "fixture", "", "notebook fixture to serve in-process (default $FIXTURE_PATH)")
	rootCmd.PersistentFlags().StringVar(&rootOpt.hostURL, "host-url", "", "remote host bridge URL (default $HOST_URL)")
	rootCmd.PersistentFlags().StringVar(&rootOpt.hostAPIKey, "host-api-key", "", "remote host API key (default $HOST_API_KEY)")
	rootCmd.PersistentFlags().BoolVar(&rootOpt.http2, "http2", false, "negotiate HTTP/2 with the remote host")
	rootCmd.PersistentFlags().BoolVarP(&rootOpt.debug, "debug", "d", false, "log every commit")
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "notegest: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if rootOpt.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the environment and applies flag overrides. A fixture
// flag wins over a host URL from the environment.
func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if rootOpt.fixture != "" {
		cfg.FixturePath = rootOpt.fixture
		cfg.HostURL = ""
	}
	if rootOpt.hostURL != "" {
		cfg.HostURL = rootOpt.hostURL
	}
	if rootOpt.hostAPIKey != "" {
		cfg.HostAPIKey = rootOpt.hostAPIKey
	}
	if rootOpt.http2 {
		cfg.HostHTTP2 = true
	}
	return cfg, cfg.Validate()
}

// openHosts returns the session factory cfg names and a func releasing it.
func openHosts(cfg config.Config, log *slog.Logger) (pipeline.HostFactory, func(), error) {
	if cfg.HostURL != "" {
		c, err := hostclient.New(cfg.HostURL, cfg.HostAPIKey, hostclient.Options{
			Timeout: cfg.HostTimeout,
			HTTP2:   cfg.HostHTTP2,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	nb, err := notebook.Load(cfg.FixturePath)
	if err != nil {
		return nil, nil, fmt.Errorf("load fixture: %w", err)
	}
	return memhost.NewBridge(nb, log), func() {}, nil
}
