package cmd

import (
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/dgallion1/notegest/internal/mcp"
	"github.com/dgallion1/notegest/internal/stats"
)

func newMCPCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve export tools over MCP (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger()
			hosts, release, err := openHosts(cfg, log)
			if err != nil {
				return err
			}
			defer release()

			s := mcp.NewServer(hosts, stats.NewCommitStats(time.Hour), log)
			if httpAddr != "" {
				log.Info("starting MCP server", "addr", httpAddr)
				return server.NewStreamableHTTPServer(s).Start(httpAddr)
			}
			log.Info("starting MCP server in stdio mode")
			return server.ServeStdio(s)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}
