package pipeline

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "First sentence here. Second one is here! Third? Fourth."

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"line breaks", "a\nb\r\nc", "a b c"},
		{"dash runs", "Go — Python-Java  --  Rust", "Go Python Java Rust"},
		{"whitespace runs", "  lots \t of\t\tspace  ", "lots of space"},
		{"empty", "", ""},
		{"only whitespace", " \n\r\t ", ""},
		{"vertical tab and separators", "cb\v z\u2028z\u2029?\u0085end", "cb z z ? end"},
		{"nbsp and file separators", "a\u00a0\u00a0b\x1c\x1fc", "a b c"},
		{"dash between exotic spaces", "Go\v—\u2028Rust", "Go Rust"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"terminators", "One. Two! Three? Four", []string{"One.", "Two!", "Three?", "Four"}},
		{"no space after period", "v1.2 is out. Yes", []string{"v1.2 is out.", "Yes"}},
		{"several spaces", "One.   Two.", []string{"One.", "Two."}},
		{"trailing terminator", "Done.", []string{"Done."}},
		{"empty", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitSentences(tc.in))
		})
	}
}

func TestChunksGreedyWithOverlap(t *testing.T) {
	got := NewChunker(40, 1).Split(sample)
	assert.Equal(t, []string{
		"First sentence here. Second one is here!",
		"Second one is here! Third? Fourth.",
	}, got)
}

func TestChunksWithoutOverlapReconstructText(t *testing.T) {
	text := "Alice studied Computer Science at the University.\nShe then joined Acme Corp — a startup — as an engineer! " +
		"Did she lead a team? Yes, a team of five. She also speaks French and German."
	chunks := NewChunker(60, 0).Split(text)
	require.NotEmpty(t, chunks)

	assert.Equal(t, Normalize(text), strings.Join(chunks, " "))
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestChunksOverlapCarriesLastSentence(t *testing.T) {
	text := "Sentence number one is here. Sentence number two is here. Sentence number three is here. Sentence number four is here."
	chunks := NewChunker(60, 1).Split(text)
	require.Len(t, chunks, 3)

	for i := 0; i+1 < len(chunks); i++ {
		prev := SplitSentences(chunks[i])
		next := SplitSentences(chunks[i+1])
		assert.Equal(t, prev[len(prev)-1], next[0], "chunk %d should start with the last sentence of chunk %d", i+1, i)
	}
}

func TestChunksSplitPointSentenceReappears(t *testing.T) {
	// Sentence A is 30 characters and B is 25, so they cannot share a 50 character chunk.
	a := strings.Repeat("a", 29) + "."
	b := strings.Repeat("b", 24) + "."
	chunks := NewChunker(50, 1).Split(a + " " + b)

	assert.Equal(t, []string{a, a + " " + b}, chunks)
}

func TestChunksOverlapLargerThanChunkKeepsWholeChunk(t *testing.T) {
	got := NewChunker(40, 5).Split(sample)
	assert.Equal(t, []string{
		"First sentence here. Second one is here!",
		"First sentence here. Second one is here! Third?",
		"First sentence here. Second one is here! Third? Fourth.",
	}, got)
}

func TestChunksOversizedSentence(t *testing.T) {
	long := strings.Repeat("x", 30) + "."
	text := long + " " + long + " " + long

	t.Run("no overlap gives one sentence per chunk", func(t *testing.T) {
		chunks := NewChunker(10, 0).Split(text)
		assert.Equal(t, []string{long, long, long}, chunks)
	})

	t.Run("overlap admits exactly one new sentence", func(t *testing.T) {
		chunks := NewChunker(10, 1).Split(text)
		assert.Equal(t, []string{long, long + " " + long, long + " " + long}, chunks)
	})
}

func TestChunksSizeBound(t *testing.T) {
	text := strings.Repeat("This is a sentence of moderate length. ", 40)
	for _, c := range NewChunker(120, 0).Split(text) {
		var sum int
		for _, s := range SplitSentences(c) {
			sum += utf8.RuneCountInString(s)
		}
		assert.LessOrEqual(t, sum, 120)
	}
}

func TestChunksCountsCharactersNotBytes(t *testing.T) {
	// Each sentence is 10 characters but 19 bytes.
	s := "ééééééééé."
	chunks := NewChunker(20, 0).Split(s + " " + s + " " + s)
	assert.Equal(t, []string{s + " " + s, s}, chunks)
}

func TestChunksNeverKeepWhitespaceControls(t *testing.T) {
	text := "First line.\vSecond\u2028line. Third\u0085line! Fourth\x1dline?"
	for _, c := range NewChunker(15, 1).Split(text) {
		assert.NotContainsf(t, c, "\v", "chunk %q", c)
		assert.NotContainsf(t, c, "\u2028", "chunk %q", c)
		assert.NotContainsf(t, c, "\u0085", "chunk %q", c)
		assert.NotContainsf(t, c, "\x1d", "chunk %q", c)
	}
	assert.Equal(t, "First line. Second line. Third line! Fourth line?", strings.Join(NewChunker(500, 0).Split(text), " "))
}

func TestChunksEmptyInput(t *testing.T) {
	assert.Empty(t, NewChunker(500, 1).Split(""))
	assert.Empty(t, NewChunker(500, 1).Split(" \n — \r "))
}

func TestChunksSequenceIsLazyAndRestartable(t *testing.T) {
	seq := NewChunker(40, 1).Chunks(sample)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	var taken []string
	for c := range seq {
		taken = append(taken, c)
		break
	}
	assert.Equal(t, first[:1], taken)
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -3)
	assert.Equal(t, DefaultChunkSize, c.size)
	assert.Equal(t, 0, c.overlap)
}

func TestFilterShort(t *testing.T) {
	in := slices.Values([]string{"short.", "   padded but short   ", "this chunk is long enough to keep"})
	got := slices.Collect(FilterShort(in, DefaultMinChunkLength))
	assert.Equal(t, []string{"this chunk is long enough to keep"}, got)

	assert.True(t, LongEnough(strings.Repeat("a", 20), 20))
	assert.False(t, LongEnough("  "+strings.Repeat("a", 19)+"  ", 20))
}
