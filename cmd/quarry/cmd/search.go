package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/internal/output"
	"github.com/quarrydocs/quarry/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK   int
	mode   string
	filter string
	format string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the index",
		Long: `Query the index. The default mode fuses BM25 keyword search and
semantic vector search with reciprocal rank fusion; --mode selects a
single source instead.

Examples:
  quarry search "how is overlap configured"
  quarry search "rrf constant" --mode bm25 --top-k 5
  quarry search "chunk boundaries" --filter 'origin=docs/' --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of results (default: from config)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Retrieval mode: hybrid, vss, bm25")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter expression, e.g. 'exclude=id1,id2 origin=docs/'")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
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

	retriever, err := search.NewRetriever(s, searchConfigFrom(cfg), logger)
	if err != nil {
		return err
	}

	filter, err := search.ParseFilter(opts.filter)
	if err != nil {
		return err
	}
	searchOpts := search.Options{TopK: opts.topK, Filter: filter}

	var results search.QueryResult
	switch opts.mode {
	case "hybrid":
		results, err = retriever.Retrieve(ctx, query, searchOpts)
	case "vss":
		results, err = retriever.RetrieveVSS(ctx, query, searchOpts)
	case "bm25":
		results, err = retriever.RetrieveBM25(ctx, query, searchOpts)
	default:
		return fmt.Errorf("unknown mode %q (use hybrid, vss, or bm25)", opts.mode)
	}
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return renderResults(cmd, query, results)
}

// renderResults prints results in human-readable form.
func renderResults(cmd *cobra.Command, query string, results search.QueryResult) error {
	out := output.New(cmd.OutOrStdout())

	if len(results) == 0 {
		out.Linef("No results for %q", query)
		return nil
	}

	out.Linef("Found %d results for %q:", len(results), query)
	out.Newline()
	for i, r := range results {
		location := r.Origin
		if len(r.HeadingPath) > 0 {
			location = fmt.Sprintf("%s > %s", r.Origin, strings.Join(r.HeadingPath, " > "))
		}
		out.Linef("%d. %s (score: %.3f)", i+1, location, r.Score)
		out.Snippet(r.Text, 3)
		out.Newline()
	}
	return nil
}
