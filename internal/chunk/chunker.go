package chunk

import (
	"sort"
	"strings"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// Chunker splits normalized markdown documents into overlapping chunks
// aligned to semantic boundaries.
type Chunker struct {
	cfg Config
}

// New creates a Chunker. Zero values in cfg are replaced with defaults.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.applyDefaults()}
}

// Chunk splits a document into ordered, overlapping chunks. Chunking is
// deterministic: the same document and configuration always produce
// identical boundaries and heading paths.
func (c *Chunker) Chunk(doc Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, qerrors.New(qerrors.ErrCodeDocumentEmpty, "document has no content", nil).
			WithDetail("origin", doc.Origin)
	}

	blocks, err := parseBlocks(doc)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	for _, seg := range c.segment(blocks) {
		chunks = append(chunks, c.chunkSegment(doc, seg)...)
	}
	return chunks, nil
}

// segment groups blocks into hard segments at boundary heading levels.
// Chunks never span a segment boundary.
func (c *Chunker) segment(blocks []block) [][]block {
	var segments [][]block
	var cur []block
	for _, b := range blocks {
		if b.kind == blockHeading && c.cfg.BoundaryHeadingLevels[b.level] && len(cur) > 0 {
			segments = append(segments, cur)
			cur = nil
		}
		cur = append(cur, b)
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments
}

// chunkSegment walks a segment accumulating text up to the target size,
// closing each chunk at the best preceding semantic break and re-entering
// with the configured overlap.
func (c *Chunker) chunkSegment(doc Document, seg []block) []Chunk {
	// Segments holding only headings carry no body content.
	hasBody := false
	for _, b := range seg {
		if b.kind != blockHeading {
			hasBody = true
			break
		}
	}
	if !hasBody {
		return nil
	}

	segStart := seg[0].start
	segEnd := seg[len(seg)-1].end
	overlap := int(c.cfg.OverlapRatio * float64(c.cfg.TargetChunkSize))

	breaks := collectBreaks(doc.Text, seg)

	var chunks []Chunk
	// Start on content. makeChunk trims whitespace from emitted chunks, so
	// a whitespace start here would make the progress guard below compare
	// against an offset no chunk actually uses, re-emitting the first chunk
	// when the overlap snaps back onto its trimmed start.
	start := segStart
	for start < segEnd && isSpaceByte(doc.Text[start]) {
		start++
	}
	for {
		end, oversize := c.closeChunk(seg, breaks, start, segEnd)
		if ck, ok := c.makeChunk(doc, seg, start, end, oversize); ok {
			chunks = append(chunks, ck)
		}
		if end >= segEnd {
			break
		}
		next := end
		if !oversize {
			next = snapBack(doc.Text, breaks, end-overlap, segStart)
		}
		if next <= start {
			// Progress guarantee: abandon the overlap rather than loop.
			next = end
		}
		start = next
	}
	return chunks
}

// closeChunk finds the end offset for a chunk starting at start. Prefers
// the last block end within the target window, then the last sentence end,
// then the last whitespace run. A block with no internal break that exceeds
// the target on its own is emitted whole with oversize=true.
func (c *Chunker) closeChunk(seg []block, breaks segmentBreaks, start, segEnd int) (int, bool) {
	target := c.cfg.TargetChunkSize
	if segEnd-start <= target {
		return segEnd, false
	}
	limit := start + target

	for _, positions := range [][]int{breaks.blockEnds, breaks.sentences, breaks.whitespace} {
		if e := lastBreakWithin(positions, start, limit); e > 0 {
			// Absorb a short trailing remainder instead of emitting a
			// sliver chunk that is almost entirely overlap.
			if segEnd-e < target/10 {
				return segEnd, false
			}
			return e, false
		}
	}

	// No break in the window: the block containing start is atomic
	// (a long code fence, or a run without whitespace).
	for _, b := range seg {
		if b.end > start {
			return b.end, true
		}
	}
	return segEnd, false
}

// makeChunk trims boundaries inward to the nearest non-whitespace and
// materializes the chunk. Returns false for whitespace-only spans.
func (c *Chunker) makeChunk(doc Document, seg []block, start, end int, oversize bool) (Chunk, bool) {
	text := doc.Text
	for start < end && isSpaceByte(text[start]) {
		start++
	}
	for end > start && isSpaceByte(text[end-1]) {
		end--
	}
	if start >= end {
		return Chunk{}, false
	}
	return Chunk{
		ID:          generateChunkID(doc.Origin, start),
		Origin:      doc.Origin,
		Text:        text[start:end],
		StartOffset: start,
		EndOffset:   end,
		HeadingPath: headingPathAt(seg, start),
		Oversize:    oversize,
	}, true
}

// segmentBreaks holds the sorted break candidates for one segment,
// in descending order of preference.
type segmentBreaks struct {
	blockEnds  []int // paragraph, list item, heading, fence ends
	sentences  []int // offset just past .!? followed by whitespace
	whitespace []int // offset of a whitespace byte
}

// collectBreaks scans segment blocks for break candidates. Code fence
// interiors are opaque: no sentence or whitespace breaks inside them.
func collectBreaks(text string, seg []block) segmentBreaks {
	var br segmentBreaks
	for _, b := range seg {
		br.blockEnds = append(br.blockEnds, b.end)
		if b.kind == blockCodeFence {
			continue
		}
		for i := b.start; i < b.end; i++ {
			ch := text[i]
			switch {
			case (ch == '.' || ch == '!' || ch == '?') && i+1 < b.end && isSpaceByte(text[i+1]):
				br.sentences = append(br.sentences, i+1)
			case isSpaceByte(ch):
				br.whitespace = append(br.whitespace, i)
			}
		}
	}
	return br
}

// lastBreakWithin returns the largest position p with start < p <= limit,
// or 0 if none exists.
func lastBreakWithin(positions []int, start, limit int) int {
	i := sort.SearchInts(positions, limit+1) - 1
	if i >= 0 && positions[i] > start {
		return positions[i]
	}
	return 0
}

// snapBack moves pos to the nearest preceding semantic break, clamped to
// floor, then skips forward over whitespace so the chunk starts on content.
func snapBack(text string, br segmentBreaks, pos, floor int) int {
	best := floor
	for _, positions := range [][]int{br.blockEnds, br.sentences, br.whitespace} {
		if v := lastBreakWithin(positions, floor-1, pos); v > best {
			best = v
		}
	}
	for best < len(text) && isSpaceByte(text[best]) {
		best++
	}
	return best
}

// headingPathAt returns the heading path of the block whose span contains
// the offset, root-first.
func headingPathAt(seg []block, offset int) []string {
	var path []string
	for _, b := range seg {
		if b.start > offset {
			break
		}
		path = b.headingPath
	}
	return path
}

func isSpaceByte(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
