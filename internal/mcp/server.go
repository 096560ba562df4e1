package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarrydocs/quarry/internal/search"
	"github.com/quarrydocs/quarry/internal/store"
	"github.com/quarrydocs/quarry/pkg/version"
)

// RetrieveInput are the arguments of the retrieve tool.
type RetrieveInput struct {
	Query  string `json:"query" jsonschema:"the retrieval query text"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 10"`
	Mode   string `json:"mode,omitempty" jsonschema:"retrieval mode: hybrid, vss, or bm25 (default hybrid)"`
	Filter string `json:"filter,omitempty" jsonschema:"filter expression, e.g. 'exclude=id1,id2 origin=docs/'"`
}

// RetrieveOutput is the structured result of the retrieve tool.
type RetrieveOutput struct {
	Results []ResultOutput `json:"results" jsonschema:"ranked retrieval results"`
}

// ResultOutput is one retrieval hit in tool-call form.
type ResultOutput struct {
	ChunkID      string   `json:"chunk_id" jsonschema:"stable chunk identifier, usable in exclude filters"`
	Score        float64  `json:"score" jsonschema:"combined relevance score between 0 and 1"`
	Text         string   `json:"text" jsonschema:"chunk text"`
	HeadingPath  []string `json:"heading_path,omitempty" jsonschema:"enclosing section headings, outermost first"`
	Origin       string   `json:"origin" jsonschema:"source document origin"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"keyword terms that matched"`
}

// StoreStatusInput has no arguments.
type StoreStatusInput struct{}

// StoreStatusOutput reports store and index state.
type StoreStatusOutput struct {
	Documents     int    `json:"documents" jsonschema:"number of stored documents"`
	Chunks        int    `json:"chunks" jsonschema:"number of stored chunks"`
	Vectors       int    `json:"vectors" jsonschema:"number of indexed vectors"`
	IndexBuilt    bool   `json:"index_built" jsonschema:"whether the retrieval indexes are ready"`
	EmbedderModel string `json:"embedder_model" jsonschema:"active embedding model"`
	Dimensions    int    `json:"dimensions" jsonschema:"embedding dimension"`
}

// Server exposes the retriever over MCP stdio.
type Server struct {
	retriever *search.Retriever
	store     *store.Store
	logger    *slog.Logger
	mcp       *mcp.Server
}

// NewServer creates an MCP server wrapping a retriever and its store.
func NewServer(retriever *search.Retriever, st *store.Store, logger *slog.Logger) (*Server, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		retriever: retriever,
		store:     st,
		logger:    logger,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "quarry",
				Version: version.Short(),
			},
			nil,
		),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers the retrieve and store_status tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "retrieve",
		Description: "Retrieve the most relevant document excerpts for a query using hybrid " +
			"vector and keyword search. Pass previously returned chunk_ids in an exclude " +
			"filter to avoid repeated excerpts.",
	}, s.retrieveHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "store_status",
		Description: "Report document and chunk counts, index readiness, and the active embedding model.",
	}, s.storeStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 2))
}

// retrieveHandler executes a retrieval query.
func (s *Server) retrieveHandler(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (
	*mcp.CallToolResult,
	RetrieveOutput,
	error,
) {
	if input.Query == "" {
		return nil, RetrieveOutput{}, NewInvalidParamsError("query parameter is required")
	}

	filter, err := search.ParseFilter(input.Filter)
	if err != nil {
		return nil, RetrieveOutput{}, MapError(err)
	}

	opts := search.Options{TopK: input.TopK, Filter: filter}

	var results search.QueryResult
	switch input.Mode {
	case "", "hybrid":
		results, err = s.retriever.Retrieve(ctx, input.Query, opts)
	case "vss":
		results, err = s.retriever.RetrieveVSS(ctx, input.Query, opts)
	case "bm25":
		results, err = s.retriever.RetrieveBM25(ctx, input.Query, opts)
	default:
		return nil, RetrieveOutput{}, NewInvalidParamsError("mode must be hybrid, vss, or bm25")
	}
	if err != nil {
		s.logger.Warn("retrieve_failed",
			slog.String("query", input.Query),
			slog.String("error", err.Error()))
		return nil, RetrieveOutput{}, MapError(err)
	}

	output := RetrieveOutput{Results: make([]ResultOutput, 0, len(results))}
	for _, r := range results {
		output.Results = append(output.Results, ResultOutput{
			ChunkID:      r.ChunkID,
			Score:        r.Score,
			Text:         r.Text,
			HeadingPath:  r.HeadingPath,
			Origin:       r.Origin,
			MatchedTerms: r.MatchedTerms,
		})
	}
	return nil, output, nil
}

// storeStatusHandler reports store statistics.
func (s *Server) storeStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StoreStatusInput) (
	*mcp.CallToolResult,
	StoreStatusOutput,
	error,
) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, StoreStatusOutput{}, MapError(err)
	}
	return nil, StoreStatusOutput{
		Documents:     stats.Documents,
		Chunks:        stats.Chunks,
		Vectors:       stats.Vectors,
		IndexBuilt:    stats.IndexBuilt,
		EmbedderModel: stats.EmbedderModel,
		Dimensions:    stats.Dimensions,
	}, nil
}

// Run serves MCP over stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp_server_started", slog.String("transport", "stdio"))
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
