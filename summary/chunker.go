package summary

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter breaks text into overlapping chunks of at most ChunkSize runes,
// preferring to cut at the earliest separator in Separators that occurs.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, errors.Errorf("chunk overlap %d must be in [0, %d)", chunkOverlap, chunkSize)
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}, nil
}

// Split returns the chunks of text in order. Separators stay attached to the
// piece before them. No chunk is whitespace only: blank runs join a
// neighbouring chunk when it has room and are dropped otherwise.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if runeLen(text) <= s.ChunkSize {
		return []string{text}
	}
	return s.foldBlank(s.split(text, s.Separators))
}

// foldBlank appends a whitespace-only chunk to the chunk before it, or
// prepends it to the chunk after it. A blank chunk and a neighbour from the
// same merge window never fit together, so only adjacent text is joined.
func (s *Splitter) foldBlank(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	var pending string
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			if pending != "" && runeLen(pending)+runeLen(c) <= s.ChunkSize {
				c = pending + c
			}
			pending = ""
			out = append(out, c)
			continue
		}
		if n := len(out); pending == "" && n > 0 && runeLen(out[n-1])+runeLen(c) <= s.ChunkSize {
			out[n-1] += c
			continue
		}
		pending += c
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	sep, rest := pickSeparator(text, separators)

	var chunks, fitting []string
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) <= s.ChunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting)...)
			fitting = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
			continue
		}
		chunks = append(chunks, s.split(piece, rest)...)
	}
	if len(fitting) > 0 {
		chunks = append(chunks, s.merge(fitting)...)
	}
	return chunks
}

// merge packs pieces into windows of at most ChunkSize runes. After each
// emitted window, pieces are dropped from its front until what remains fits
// within ChunkOverlap and leaves room for the next piece.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks []string
		window []string
		sizes  []int
		total  int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.ChunkSize && len(window) > 0 {
			chunks = append(chunks, strings.Join(window, ""))
			for total > s.ChunkOverlap || (total > 0 && total+n > s.ChunkSize) {
				total -= sizes[0]
				window, sizes = window[1:], sizes[1:]
			}
		}
		window = append(window, piece)
		sizes = append(sizes, n)
		total += n
	}
	if len(window) > 0 {
		chunks = append(chunks, strings.Join(window, ""))
	}
	return chunks
}

func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

func splitKeep(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, len(text))
		for len(text) > 0 {
			_, size := utf8.DecodeRuneInString(text)
			pieces = append(pieces, text[:size])
			text = text[size:]
		}
		return pieces
	}
	pieces := strings.SplitAfter(text, sep)
	if pieces[len(pieces)-1] == "" {
		pieces = pieces[:len(pieces)-1]
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
