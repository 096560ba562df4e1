//go:build ignore

// Generates a synthetic markdown corpus for ingest benchmarking.
// Usage: go run scripts/generate-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numFiles  = flag.Int("files", 1000, "number of markdown files to generate")
	outputDir = flag.String("output", "testdata/bench", "output directory")
	seed      = flag.Int64("seed", 42, "random seed")
)

var topics = []string{
	"installation", "configuration", "indexing", "retrieval", "embeddings",
	"chunking", "troubleshooting", "migration", "deployment", "caching",
}

var sentences = []string{
	"The index is rebuilt atomically so queries never observe partial state.",
	"Overlap between adjacent chunks preserves context across boundaries.",
	"BM25 scores favor rare terms that appear often within a single chunk.",
	"Embedding batches are sized to balance throughput against memory.",
	"Heading paths record the enclosing sections from the document root.",
	"Stale vectors are dropped lazily during search rather than eagerly.",
	"Configuration values can be overridden with environment variables.",
	"Oversized code blocks are kept intact and flagged instead of split.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		topic := topics[rng.Intn(len(topics))]
		path := filepath.Join(*outputDir, fmt.Sprintf("%s-%04d.md", topic, i))
		if err := os.WriteFile(path, []byte(document(rng, topic, i)), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	fmt.Printf("generated %d files in %s\n", *numFiles, *outputDir)
}

func document(rng *rand.Rand, topic string, n int) string {
	out := fmt.Sprintf("# %s guide %d\n\n", topic, n)
	for s := 0; s < 3+rng.Intn(4); s++ {
		out += fmt.Sprintf("## Section %d\n\n", s+1)
		for p := 0; p < 2+rng.Intn(3); p++ {
			for w := 0; w < 3+rng.Intn(4); w++ {
				out += sentences[rng.Intn(len(sentences))] + " "
			}
			out += "\n\n"
		}
	}
	return out
}
