package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store and index status",
		Long: `Show document and chunk counts, index readiness, and the active
embedding model for the configured store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
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

	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out := output.New(cmd.OutOrStdout())
	out.Linef("Store: %s", cfg.Store.Dir)
	out.KV("Documents", stats.Documents)
	out.KV("Chunks", stats.Chunks)
	out.KV("Vectors", stats.Vectors)
	out.KV("Index built", stats.IndexBuilt)
	out.KV("Embedder", stats.EmbedderModel)
	out.KV("Dimensions", stats.Dimensions)
	if !stats.IndexBuilt {
		out.Newline()
		out.Warningf("indexes not built; run 'quarry ingest <dir>' or 'quarry index'")
	}
	return nil
}
