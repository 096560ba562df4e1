package chunk

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// para builds a paragraph of exactly n characters ending with a period,
// composed of full words so fixtures have realistic sentence breaks.
func para(n int) string {
	s := strings.Repeat("quarry stores chunked markdown text for retrieval. ", 64)
	s = strings.TrimRight(s[:n-1], " ")
	return s + strings.Repeat(".", n-len(s))
}

func TestChunkEmptyDocument(t *testing.T) {
	c := New(DefaultConfig())

	_, err := c.Chunk(Document{Origin: "docs/empty.md", Text: "  \n\n  "})
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeDocumentEmpty, qerrors.GetCode(err))
}

func TestChunkSmallDocument(t *testing.T) {
	c := New(DefaultConfig())

	doc := Document{Origin: "docs/small.md", Text: "A single short paragraph.\n"}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "A single short paragraph.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 25, chunks[0].EndOffset)
	assert.False(t, chunks[0].Oversize)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestChunkOverlapWindows(t *testing.T) {
	// Four paragraphs totalling 3200 characters. With target 1600 and
	// overlap 0.5 this must produce exactly three chunks with windows
	// near 0-1600, 800-2400, 1600-3200.
	text := para(798) + "\n\n" + para(798) + "\n\n" + para(798) + "\n\n" + para(800)
	require.Len(t, text, 3200)

	c := New(Config{TargetChunkSize: 1600, OverlapRatio: 0.5})
	chunks, err := c.Chunk(Document{Origin: "docs/long.md", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.InDelta(t, 1600, chunks[0].EndOffset, 100)
	assert.InDelta(t, 800, chunks[1].StartOffset, 100)
	assert.InDelta(t, 2400, chunks[1].EndOffset, 100)
	assert.InDelta(t, 1600, chunks[2].StartOffset, 100)
	assert.Equal(t, 3200, chunks[2].EndOffset)

	// Adjacent overlap stays near overlap_ratio * target.
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].EndOffset - chunks[i].StartOffset
		assert.InDelta(t, 800, overlap, 100, "overlap between chunk %d and %d", i-1, i)
	}
}

func TestChunkBoundariesNeverMidWord(t *testing.T) {
	text := para(798) + "\n\n" + para(798) + "\n\n" + para(798) + "\n\n" + para(800)
	c := New(Config{TargetChunkSize: 500, OverlapRatio: 0.25})

	chunks, err := c.Chunk(Document{Origin: "docs/long.md", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, ck := range chunks {
		require.True(t, ck.StartOffset >= 0 && ck.StartOffset < ck.EndOffset)
		require.True(t, ck.EndOffset <= len(text))
		assert.Equal(t, text[ck.StartOffset:ck.EndOffset], ck.Text)

		if ck.StartOffset > 0 {
			prev := rune(text[ck.StartOffset-1])
			assert.True(t, unicode.IsSpace(prev), "chunk starts mid-word at %d", ck.StartOffset)
		}
		if ck.EndOffset < len(text) {
			next := rune(text[ck.EndOffset])
			assert.True(t, unicode.IsSpace(next), "chunk ends mid-word at %d", ck.EndOffset)
		}
	}
}

func TestChunkBoundaryHeadings(t *testing.T) {
	text := "# Install\n\nRun the installer.\n\n# Usage\n\nInvoke the binary.\n"
	c := New(DefaultConfig())

	chunks, err := c.Chunk(Document{Origin: "docs/guide.md", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Contains(t, chunks[0].Text, "Run the installer.")
	assert.NotContains(t, chunks[0].Text, "Usage")
	assert.Equal(t, []string{"Install"}, chunks[0].HeadingPath)

	assert.Contains(t, chunks[1].Text, "Invoke the binary.")
	assert.Equal(t, []string{"Usage"}, chunks[1].HeadingPath)
}

func TestChunkNestedHeadingPath(t *testing.T) {
	text := "# Guide\n\n## Setup\n\nInstall dependencies first.\n"
	cfg := DefaultConfig()
	cfg.BoundaryHeadingLevels = map[int]bool{2: true}
	c := New(cfg)

	chunks, err := c.Chunk(Document{Origin: "docs/nested.md", Text: text})
	require.NoError(t, err)

	// The level-1 segment holds only its heading and yields no chunk.
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"Guide", "Setup"}, chunks[0].HeadingPath)
	assert.Contains(t, chunks[0].Text, "Install dependencies first.")
}

func TestChunkOversizeCodeFence(t *testing.T) {
	code := strings.Repeat("x", 2000)
	text := "Intro para.\n\n```\n" + code + "\n```\n"
	c := New(Config{TargetChunkSize: 1600, OverlapRatio: 0.5})

	chunks, err := c.Chunk(Document{Origin: "docs/fence.md", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Intro para.", chunks[0].Text)
	assert.False(t, chunks[0].Oversize)

	assert.True(t, chunks[1].Oversize, "long fence should be emitted unsplit")
	assert.True(t, strings.HasPrefix(chunks[1].Text, "```"))
	assert.Contains(t, chunks[1].Text, code)
}

func TestChunkIndentedSegmentStart(t *testing.T) {
	// A segment whose first paragraph starts with whitespace, followed by a
	// fence too long to split. The second chunk's overlap window snaps back
	// onto the first chunk's trimmed start; the first chunk must not be
	// emitted twice.
	text := "  ab cd.\n\n```\n" + strings.Repeat("x", 500) + "\n```\n"
	c := New(Config{TargetChunkSize: 100, OverlapRatio: 0.5})

	chunks, err := c.Chunk(Document{Origin: "docs/indent.md", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "ab cd.", chunks[0].Text)
	assert.True(t, chunks[1].Oversize)

	seen := make(map[string]bool)
	for i, ck := range chunks {
		assert.False(t, seen[ck.ID], "duplicate chunk id %s", ck.ID)
		seen[ck.ID] = true
		if i > 0 {
			assert.Greater(t, ck.StartOffset, chunks[i-1].StartOffset)
		}
	}
}

func TestChunkUnterminatedFence(t *testing.T) {
	text := "Intro.\n\n```go\nfunc main() {}\n"
	c := New(DefaultConfig())

	_, err := c.Chunk(Document{Origin: "docs/bad.md", Text: text})
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeChunking, qerrors.GetCode(err))
}

func TestChunkDeterministic(t *testing.T) {
	text := "# Top\n\n" + para(798) + "\n\n- item one\n- item two\n\n" + para(500) + "\n"
	c := New(Config{TargetChunkSize: 400, OverlapRatio: 0.5})
	doc := Document{Origin: "docs/det.md", Text: text}

	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunkOrderingMatchesDocument(t *testing.T) {
	text := para(798) + "\n\n" + para(798) + "\n\n" + para(798)
	c := New(Config{TargetChunkSize: 600, OverlapRatio: 0.25})

	chunks, err := c.Chunk(Document{Origin: "docs/order.md", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].StartOffset, chunks[i-1].StartOffset)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}.applyDefaults()
	assert.Equal(t, DefaultTargetChunkSize, cfg.TargetChunkSize)
	assert.Equal(t, DefaultOverlapRatio, cfg.OverlapRatio)
	assert.True(t, cfg.BoundaryHeadingLevels[1])
	assert.True(t, cfg.BoundaryHeadingLevels[2])
}

func TestGenerateChunkIDStable(t *testing.T) {
	a := generateChunkID("docs/a.md", 0)
	b := generateChunkID("docs/a.md", 0)
	other := generateChunkID("docs/a.md", 100)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Len(t, a, 16)
}
