package pipeline

import (
	"iter"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize      = 500
	DefaultOverlap        = 1
	DefaultMinChunkLength = 20
)

// dashRun matches a dash run with any surrounding whitespace, using the same
// whitespace set as isSpace.
var dashRun = regexp.MustCompile(`[\s\x{0B}\x{1C}-\x{1F}\x{85}\p{Z}]*[-–—]+[\s\x{0B}\x{1C}-\x{1F}\x{85}\p{Z}]*`)

// isSpace is unicode.IsSpace plus the ASCII separators U+001C..U+001F.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1C && r <= 0x1F)
}

// Normalize flattens line breaks, turns dash runs into spaces and collapses whitespace.
func Normalize(text string) string {
	text = strings.NewReplacer("\n", " ", "\r", " ").Replace(text)
	text = dashRun.ReplaceAllString(text, " ")
	return strings.Join(strings.FieldsFunc(text, isSpace), " ")
}

// SplitSentences splits after every '.', '!' or '?' that is followed by at least
// one space. The spaces are dropped; empty sentences are skipped.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
		default:
			continue
		}
		j := i + 1
		for j < len(text) && text[j] == ' ' {
			j++
		}
		if j == i+1 {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Chunker groups sentences into chunks of at most Size characters, carrying the
// last Overlap sentences of each chunk into the next one. A single sentence longer
// than Size still becomes (part of) a chunk; sentences are never cut.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a Chunker. Non-positive sizes fall back to DefaultChunkSize
// and negative overlaps to zero.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunks returns a lazy, restartable sequence of chunks for text.
func (c *Chunker) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		var current []string
		length := 0
		for _, sentence := range SplitSentences(Normalize(text)) {
			n := utf8.RuneCountInString(sentence)
			if length+n <= c.size {
				current = append(current, sentence)
				length += n
				continue
			}
			if len(current) > 0 {
				if !yield(strings.Join(current, " ")) {
					return
				}
				current = c.retained(current)
				length = totalLength(current)
			}
			current = append(current, sentence)
			length += n
		}
		if len(current) > 0 {
			yield(strings.Join(current, " "))
		}
	}
}

// Split collects Chunks into a slice.
func (c *Chunker) Split(text string) []string {
	return slices.Collect(c.Chunks(text))
}

// retained returns the trailing overlap sentences as a fresh slice.
func (c *Chunker) retained(sentences []string) []string {
	if c.overlap == 0 {
		return nil
	}
	from := len(sentences) - c.overlap
	if from < 0 {
		from = 0
	}
	return slices.Clone(sentences[from:])
}

func totalLength(sentences []string) int {
	n := 0
	for _, s := range sentences {
		n += utf8.RuneCountInString(s)
	}
	return n
}

// LongEnough reports whether chunk has at least min characters once trimmed.
func LongEnough(chunk string, min int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(chunk)) >= min
}

// FilterShort drops chunks shorter than min characters after trimming.
func FilterShort(chunks iter.Seq[string], min int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for chunk := range chunks {
			if !LongEnough(chunk, min) {
				continue
			}
			if !yield(chunk) {
				return
			}
		}
	}
}
