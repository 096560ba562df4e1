package chunk

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// blockKind classifies a structural block.
type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockListItem
	blockCodeFence
)

// block is a structural unit of a document with byte offsets into the text.
type block struct {
	kind  blockKind
	start int // inclusive byte offset
	end   int // exclusive byte offset

	// Heading blocks only.
	level int
	title string

	// headingPath is the heading stack in scope at this block, root-first.
	// Populated by parseBlocks after the block structure is known.
	headingPath []string
}

var (
	// Matches headings: # Title through ###### Title.
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

	// Matches list item starts: -, *, + or ordered markers like "1." / "2)".
	listItemPattern = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+`)

	// Matches fence delimiters: ``` or ~~~ with optional info string.
	fencePattern = regexp.MustCompile("^(```|~~~)")
)

// parseBlocks splits document text into structural blocks, preserving byte
// offsets and heading nesting. Returns a ChunkingError for malformed
// structure (unterminated code fence).
func parseBlocks(doc Document) ([]block, error) {
	text := doc.Text
	var blocks []block

	// Heading stack for levels 1-6, root-first path construction.
	var headingStack [6]string

	snapshotPath := func() []string {
		var path []string
		for _, h := range headingStack {
			if h != "" {
				path = append(path, h)
			}
		}
		return path
	}

	var current *block
	closeCurrent := func() {
		if current != nil {
			blocks = append(blocks, *current)
			current = nil
		}
	}

	pos := 0
	for pos < len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		var next int
		if lineEnd == -1 {
			lineEnd = len(text)
			next = len(text)
		} else {
			lineEnd += pos
			next = lineEnd + 1
		}
		line := text[pos:lineEnd]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			// Blank line closes the current block.
			closeCurrent()

		case fencePattern.MatchString(trimmed):
			closeCurrent()
			fenceEnd, err := scanFence(text, next, trimmed[:3])
			if err != nil {
				return nil, qerrors.ChunkingError(doc.Origin, "unterminated code fence", nil).
					WithDetail("offset", strconv.Itoa(pos))
			}
			blocks = append(blocks, block{
				kind:        blockCodeFence,
				start:       pos,
				end:         fenceEnd,
				headingPath: snapshotPath(),
			})
			pos = fenceEnd
			continue

		case headingPattern.MatchString(line):
			closeCurrent()
			m := headingPattern.FindStringSubmatch(line)
			level := len(m[1])
			title := m[2]

			// Update heading stack: set this level, clear deeper levels.
			headingStack[level-1] = title
			for i := level; i < 6; i++ {
				headingStack[i] = ""
			}

			blocks = append(blocks, block{
				kind:        blockHeading,
				start:       pos,
				end:         lineEnd,
				level:       level,
				title:       title,
				headingPath: snapshotPath(),
			})

		case listItemPattern.MatchString(line):
			// Each list item starts its own block.
			closeCurrent()
			current = &block{
				kind:        blockListItem,
				start:       pos,
				headingPath: snapshotPath(),
			}
			current.end = lineEnd

		default:
			if current == nil {
				current = &block{
					kind:        blockParagraph,
					start:       pos,
					headingPath: snapshotPath(),
				}
			}
			current.end = lineEnd
		}

		pos = next
	}
	closeCurrent()

	return blocks, nil
}

// scanFence scans from the line after the opening fence until the closing
// delimiter. Returns the exclusive end offset (past the closing fence line).
func scanFence(text string, bodyStart int, delim string) (int, error) {
	pos := bodyStart
	for pos < len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		var next int
		if lineEnd == -1 {
			lineEnd = len(text)
			next = len(text)
		} else {
			lineEnd += pos
			next = lineEnd + 1
		}
		if strings.HasPrefix(strings.TrimSpace(text[pos:lineEnd]), delim) {
			return lineEnd, nil
		}
		pos = next
	}
	return 0, errUnterminatedFence
}

var errUnterminatedFence = errors.New("unterminated code fence")
