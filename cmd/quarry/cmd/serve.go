package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	quarrymcp "github.com/quarrydocs/quarry/internal/mcp"
	"github.com/quarrydocs/quarry/internal/search"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve retrieval over MCP stdio",
		Long: `Run an MCP server on stdio exposing the retrieve and store_status
tools. stdout carries the protocol exclusively; logs go to the
configured log file or stderr.

Register with an MCP client as:
  command: quarry
  args: [serve]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	return cmd
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if !s.IndexBuilt() {
		logger.Warn("index_not_built",
			slog.String("store", cfg.Store.Dir),
			slog.String("hint", "retrieve calls will fail until 'quarry ingest' runs"))
	}

	retriever, err := search.NewRetriever(s, searchConfigFrom(cfg), logger)
	if err != nil {
		return err
	}

	server, err := quarrymcp.NewServer(retriever, s, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
