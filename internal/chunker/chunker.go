package chunker

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of characters shared between consecutive chunks.
	DefaultOverlap = 200
)

// separators are the split boundaries tried in priority order. Paragraph
// breaks first, then line breaks, then sentence ends, then plain whitespace.
// A hard character cut is the fallback when none of these appear in a window.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

// Document is the raw input to chunking. It is not retained after the
// chunks are produced.
type Document struct {
	ID         string
	Filename   string
	Extension  string
	Text       string
	UploadedAt time.Time
}

// Chunk is a bounded span of a document's text, the unit of embedding and
// retrieval. CharStart/CharEnd are byte offsets into the document text and
// always satisfy CharEnd-CharStart == len(Text).
type Chunk struct {
	ID         string
	DocumentID string
	Sequence   int
	Text       string
	CharStart  int
	CharEnd    int
	SourceName string
	SourceExt  string
}

// Chunker splits document text into overlapping passages, preferring
// semantic boundaries over arbitrary cuts. Size and overlap are measured
// in characters, so multi-byte text gets the same budget as ASCII.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Non-positive size or overlap fall back to the
// defaults; an overlap that would prevent forward progress is clamped.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits the document into ordered chunks of at most the configured
// size. Consecutive chunks overlap by the configured amount: each chunk
// after the first starts at the previous chunk's end minus the overlap.
// Documents with no visible text produce zero chunks.
func (c *Chunker) Chunk(doc Document) []Chunk {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	seq := 0

	for start < len(text) {
		end := c.cut(text, start)

		chunks = append(chunks, Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Sequence:   seq,
			Text:       text[start:end],
			CharStart:  start,
			CharEnd:    end,
			SourceName: doc.Filename,
			SourceExt:  doc.Extension,
		})
		seq++

		if end == len(text) {
			break
		}

		start = retreat(text, end, c.overlap)
	}

	return chunks
}

// cut returns the end byte offset of the chunk starting at start. The
// remainder fits in one chunk when short enough; otherwise the separator
// cascade is tried in order, and a hard character cut is the last resort.
func (c *Chunker) cut(text string, start int) int {
	limit := advance(text, start, c.size)
	if limit == len(text) {
		return limit
	}

	// A break is only usable if it leaves enough behind for the next chunk
	// to advance past this one's start.
	floor := advance(text, start, c.overlap+1)
	if min := advance(text, start, c.size/2); min > floor {
		floor = min
	}

	for _, sep := range separators {
		// Last occurrence inside the window, so chunks stay as large as
		// the boundary allows. The separator belongs to the left chunk.
		idx := strings.LastIndex(text[start:limit], sep)
		if idx < 0 {
			continue
		}
		end := start + idx + len(sep)
		if end >= floor {
			return end
		}
	}

	// Hard cut. limit already sits on a rune boundary.
	return limit
}

// advance returns the byte offset n characters past start, capped at the
// end of text.
func advance(text string, start, n int) int {
	for ; n > 0 && start < len(text); n-- {
		_, w := utf8.DecodeRuneInString(text[start:])
		start += w
	}
	return start
}

// retreat returns the byte offset n characters before end, floored at 0.
func retreat(text string, end, n int) int {
	for ; n > 0 && end > 0; n-- {
		_, w := utf8.DecodeLastRuneInString(text[:end])
		end -= w
	}
	return end
}
