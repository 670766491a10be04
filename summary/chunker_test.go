package summary

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewSplitterRejectsBadSizes(t *testing.T) {
	_, err := NewSplitter(0, 0)
	assert.Error(t, err)
	_, err = NewSplitter(100, 100)
	assert.Error(t, err)
	_, err = NewSplitter(100, -1)
	assert.Error(t, err)
}

func TestSplitEmpty(t *testing.T) {
	s, err := NewSplitter(10000, 1000)
	require.NoError(t, err)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split(strings.Repeat(" \n", 6000)))
}

func TestSplitShortInputIsOneChunk(t *testing.T) {
	s, err := NewSplitter(10000, 1000)
	require.NoError(t, err)

	text := "  short transcript\n\nwith paragraphs  "
	assert.Equal(t, []string{text}, s.Split(text))

	exact := strings.Repeat("ab", 5000)
	assert.Equal(t, []string{exact}, s.Split(exact))
}

func TestSplitWithoutOverlapReconstructsExactly(t *testing.T) {
	s, err := NewSplitter(50, 0)
	require.NoError(t, err)

	text := words(200) + "\n\n" + words(30) + "\nend"
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.NotEmpty(t, c)
		assert.LessOrEqual(t, runeLen(c), 50)
	}
}

func TestSplitWithOverlapCoversInput(t *testing.T) {
	const size, overlap = 60, 15
	s, err := NewSplitter(size, overlap)
	require.NoError(t, err)

	text := words(300)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)

	prevStart, prevEnd := -1, 0
	for i, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), size, "chunk %d too large", i)

		idx := strings.Index(text[prevStart+1:], c)
		require.GreaterOrEqual(t, idx, 0, "chunk %d not found in order", i)
		start := prevStart + 1 + idx

		assert.LessOrEqual(t, start, prevEnd, "gap before chunk %d", i)
		if i > 0 {
			assert.LessOrEqual(t, prevEnd-start, overlap, "chunk %d overlaps too much", i)
		}
		prevStart, prevEnd = start, start+len(c)
	}
	assert.Equal(t, len(text), prevEnd)
}

func TestSplitFallsBackToCharacters(t *testing.T) {
	s, err := NewSplitter(10, 2)
	require.NoError(t, err)

	text := strings.Repeat("가나다라마바사", 5)
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 10)
	}
	assert.True(t, strings.HasPrefix(text, chunks[0]))
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	s, err := NewSplitter(30, 0)
	require.NoError(t, err)

	first := "first paragraph is here.\n\n"
	second := "second one follows it."
	chunks := s.Split(first + second)

	assert.Equal(t, []string{first, second}, chunks)
}

func TestSplitDefaultConfigOnLongTranscript(t *testing.T) {
	s, err := NewSplitter(10000, 1000)
	require.NoError(t, err)

	text := words(5000)
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c), 10000)
	}
	assert.True(t, strings.HasPrefix(text, chunks[0]))
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestSplitFoldsBlankRunIntoPreviousChunk(t *testing.T) {
	s, err := NewSplitter(10, 0)
	require.NoError(t, err)

	text := "hello\n\n\n" + strings.Repeat("x", 25)
	chunks := s.Split(text)

	assert.Equal(t, []string{"hello\n\n\n", strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitFoldsLeadingBlankIntoNextChunk(t *testing.T) {
	s, err := NewSplitter(10, 0)
	require.NoError(t, err)

	text := "\n\n" + "abc\n" + strings.Repeat("y", 12)
	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	assert.Equal(t, "\n\nabc\n", chunks[0])
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitNeverEmitsBlankChunks(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	alphabet := []string{"a", "b", " ", "\n", "\n\n", "  "}

	for i := 0; i < 3000; i++ {
		size := 5 + rng.Intn(20)
		s, err := NewSplitter(size, rng.Intn(size))
		require.NoError(t, err)

		var sb strings.Builder
		for n := rng.Intn(120); n > 0; n-- {
			sb.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		text := sb.String()

		for _, c := range s.Split(text) {
			require.NotEmpty(t, strings.TrimSpace(c), "blank chunk for %q (size %d)", text, size)
			require.LessOrEqual(t, runeLen(c), size, "oversized chunk for %q", text)
		}
	}
}
