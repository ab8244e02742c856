package chunker

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxSize = 700
	DefaultOverlap = 10
)

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceSplit  = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)
	runsOfSpace    = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
)

// Chunker splits normalized document text into overlapping chunks bounded by
// MaxSize characters. Overlap is the number of trailing characters of each
// chunk that are repeated as the prefix of the next one, so adjacent chunks
// share context across the cut.
type Chunker struct {
	maxSize int
	overlap int
}

func New(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// Normalize collapses runs of spaces and tabs into single spaces and trims
// each line, while keeping blank lines so paragraph boundaries survive.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = runsOfSpace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Chunk normalizes text and packs paragraphs greedily into chunks. A
// paragraph that does not fit on its own is split into sentences; a single
// sentence longer than the budget is emitted whole rather than cut mid-word.
func (c *Chunker) Chunk(text string) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	// Overlap text is prepended after packing, so pack against the reduced
	// budget to keep emitted chunks within maxSize.
	budget := c.maxSize - c.overlap
	if budget <= 0 {
		budget = c.maxSize
	}

	var pieces []string
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= budget {
			pieces = append(pieces, para)
			continue
		}
		pieces = append(pieces, splitSentences(para)...)
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		current.Reset()
		if len(chunks) > 0 && c.overlap > 0 {
			// The prefix is capped by the room left under maxSize, so overlap
			// never pushes a chunk past the limit on its own.
			n := c.overlap
			if room := c.maxSize - len(chunk); n > room {
				n = room
			}
			if n > 0 {
				prev := chunks[len(chunks)-1]
				if len(prev) > n {
					prev = prev[len(prev)-n:]
				}
				chunk = prev + chunk
			}
		}
		chunks = append(chunks, chunk)
	}

	for _, piece := range pieces {
		sep := 0
		if current.Len() > 0 {
			sep = 1
		}
		if current.Len()+sep+len(piece) > budget && current.Len() > 0 {
			flush()
			sep = 0
		}
		if sep == 1 {
			current.WriteByte(' ')
		}
		current.WriteString(piece)

		// An atomic piece can exceed the budget on its own; emit it as is.
		if current.Len() > budget {
			flush()
		}
	}
	flush()

	return chunks
}

func splitSentences(para string) []string {
	matches := sentenceSplit.FindAllStringSubmatch(para, -1)
	if len(matches) == 0 {
		return []string{para}
	}

	var sentences []string
	consumed := 0
	for _, m := range matches {
		s := strings.TrimSpace(m[1])
		if s != "" {
			sentences = append(sentences, s)
		}
		consumed += len(m[0])
	}
	// Trailing text without terminal punctuation is still a sentence.
	if rest := strings.TrimSpace(para[consumed:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func (c *Chunker) MaxSize() int { return c.maxSize }
func (c *Chunker) Overlap() int { return c.overlap }
