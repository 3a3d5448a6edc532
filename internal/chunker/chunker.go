// Package chunker splits extracted document text into overlapping windows.
//
// Sizes and offsets are counted in runes. Consecutive pieces share exactly
// Overlap runes, so dropping the first Overlap runes of every piece after the
// first and concatenating yields the input text again.
package chunker

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200

	// PageSeparator joins page texts before splitting.
	PageSeparator = "\n\n"
)

type Piece struct {
	Index int
	Page  int
	Start int // rune offset, inclusive
	End   int // rune offset, exclusive
	Text  string
}

type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a chunker with the 1000/200 defaults.
func Default() *Chunker {
	return &Chunker{size: DefaultSize, overlap: DefaultOverlap}
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the pieces of text with Page left at 1. Whitespace-only input yields nil.
func (c *Chunker) Split(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var pieces []Piece
	for start := 0; ; start += step {
		end := min(start+c.size, len(runes))
		pieces = append(pieces, Piece{
			Index: len(pieces),
			Page:  1,
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return pieces
}

// SplitPages splits the joined page texts and attributes every piece to the
// page holding its first rune. Separator runes belong to the preceding page.
func (c *Chunker) SplitPages(pages []string) []Piece {
	if len(pages) == 0 {
		return nil
	}

	starts := make([]int, len(pages))
	offset := 0
	sepLen := len([]rune(PageSeparator))
	for i, p := range pages {
		starts[i] = offset
		offset += len([]rune(p))
		if i < len(pages)-1 {
			offset += sepLen
		}
	}

	pieces := c.Split(strings.Join(pages, PageSeparator))
	for i := range pieces {
		// last page whose start is <= piece start
		page := sort.Search(len(starts), func(j int) bool { return starts[j] > pieces[i].Start })
		pieces[i].Page = max(page, 1)
	}
	return pieces
}

// SplitWithPageCount is for callers that only know the page count. The page
// number is approximated as index mod pageCount + 1 and is not a true mapping.
func (c *Chunker) SplitWithPageCount(text string, pageCount int) []Piece {
	pieces := c.Split(text)
	if pageCount <= 0 {
		return pieces
	}
	for i := range pieces {
		pieces[i].Page = pieces[i].Index%pageCount + 1
	}
	return pieces
}
