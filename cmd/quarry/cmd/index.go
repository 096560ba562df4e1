package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/internal/index"
	"github.com/quarrydocs/quarry/internal/output"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the retrieval indexes",
		Long: `Rebuild the vector and keyword indexes from the persisted chunks.
The new indexes are built aside and swapped in atomically; searches
against a previously built index keep working during the rebuild.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexRebuild(cmd.Context(), cmd)
		},
	}

	return cmd
}

func runIndexRebuild(ctx context.Context, cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

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

	coordinator := index.NewCoordinator(s, coordinatorConfigFrom(cfg, false), logger)

	start := time.Now()
	if err := coordinator.BuildIndex(ctx); err != nil {
		return err
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	out.Successf("indexed %d chunks (%d vectors) in %s",
		stats.Chunks, stats.Vectors, time.Since(start).Round(time.Millisecond))
	return nil
}
