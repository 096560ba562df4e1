package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/internal/index"
	"github.com/quarrydocs/quarry/internal/output"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	include    []string
	exclude    []string
	workers    int
	skipIndex  bool
	noIgnore   bool
	noProgress bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Chunk, embed, and index documents",
		Long: `Walk a directory, chunk every matching document, embed the chunks,
persist them, and rebuild the retrieval indexes.

Malformed documents (unterminated code fences, empty files) are skipped
and reported. Patterns from .gitignore and .quarryignore at the ingest
root are honored.

Examples:
  quarry ingest docs/
  quarry ingest . --include '**/*.md' --exclude 'drafts/**'
  quarry ingest notes/ --offline`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runIngest(cmd.Context(), cmd, root, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Include globs (default: **/*.md, **/*.markdown, **/*.txt)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Exclude globs")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent ingest workers (default: from config)")
	cmd.Flags().BoolVar(&opts.skipIndex, "skip-index", false, "Ingest only; do not rebuild the indexes")
	cmd.Flags().BoolVar(&opts.noIgnore, "no-ignore", false, "Do not honor .gitignore/.quarryignore")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, root string, opts ingestOptions) error {
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

	coordCfg := coordinatorConfigFrom(cfg, !opts.noProgress)
	if len(opts.include) > 0 {
		coordCfg.IncludeGlobs = opts.include
	}
	if len(opts.exclude) > 0 {
		coordCfg.ExcludeGlobs = opts.exclude
	}
	if opts.workers > 0 {
		coordCfg.Workers = opts.workers
	}
	coordCfg.DisableIgnoreFiles = opts.noIgnore

	coordinator := index.NewCoordinator(s, coordCfg, logger)

	var report *index.Report
	if opts.skipIndex {
		report, err = coordinator.Ingest(ctx, root)
	} else {
		report, err = coordinator.IngestAndIndex(ctx, root)
	}
	if err != nil {
		return err
	}

	out.Successf("ingested %d of %d files (%d chunks) in %s",
		report.FilesIngested, report.FilesScanned, report.ChunksCreated,
		report.Duration.Round(time.Millisecond))
	for _, skipped := range report.Skipped {
		out.Warningf("skipped %s: %s", skipped.Origin, skipped.Reason)
	}
	if opts.skipIndex {
		out.Indent("indexes not rebuilt; run 'quarry index' before searching")
	}
	return nil
}
