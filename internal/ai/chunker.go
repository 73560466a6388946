package ai

import (
	"strings"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// Chunker splits text into overlapping windows measured in characters.
// A window that does not reach the end of the text is cut after its last
// sentence terminator or line break when that break lies past the window
// midpoint.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, appErr.Invalid("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, appErr.Invalid("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split returns the non-empty chunks of text in document order. An empty or
// whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	var chunks []string
	for _, w := range c.windows(runes) {
		if chunk := strings.TrimSpace(string(runes[w.start:w.end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

type window struct {
	start int
	end   int
}

func (c *Chunker) windows(runes []rune) []window {
	n := len(runes)
	var out []window
	start := 0
	for start < n {
		end := start + c.size
		if end >= n {
			end = n
		} else if bp := lastBreak(runes[start:end]); bp > c.size/2 {
			end = start + bp + 1
		}
		out = append(out, window{start: start, end: end})
		if end == n {
			break
		}
		next := end - c.overlap
		if next <= start {
			// a snapped window shorter than the overlap would stall
			next = end
		}
		start = next
	}
	return out
}

func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}
