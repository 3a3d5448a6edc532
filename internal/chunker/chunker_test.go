package chunker

import (
	"reflect"
	"strings"
	"testing"
)

// reassemble drops the shared overlap from every piece after the first.
func reassemble(pieces []Piece, overlap int) string {
	var sb strings.Builder
	for i, p := range pieces {
		r := []rune(p.Text)
		if i > 0 {
			r = r[overlap:]
		}
		sb.WriteString(string(r))
	}
	return sb.String()
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		size, overlap int
		ok            bool
	}{
		{1000, 200, true},
		{10, 0, true},
		{0, 0, false},
		{-5, 0, false},
		{10, -1, false},
		{10, 10, false},
		{10, 11, false},
	}
	for _, tc := range cases {
		_, err := New(tc.size, tc.overlap)
		if (err == nil) != tc.ok {
			t.Errorf("New(%d, %d) error = %v, want ok=%v", tc.size, tc.overlap, err, tc.ok)
		}
	}
}

func TestSplitWindows(t *testing.T) {
	c, err := New(10, 3)
	if err != nil {
		t.Fatal(err)
	}
	text := "abcdefghijklmnopqrstuvwxyz"
	pieces := c.Split(text)

	want := []string{"abcdefghij", "hijklmnopq", "opqrstuvwx", "vwxyz"}
	if len(pieces) != len(want) {
		t.Fatalf("expected %d pieces, got %d", len(want), len(pieces))
	}
	for i, p := range pieces {
		if p.Index != i {
			t.Errorf("piece %d has index %d", i, p.Index)
		}
		if p.Text != want[i] {
			t.Errorf("piece %d = %q, want %q", i, p.Text, want[i])
		}
		if i > 0 {
			prev := []rune(pieces[i-1].Text)
			if string(prev[len(prev)-3:]) != string([]rune(p.Text)[:3]) {
				t.Errorf("pieces %d and %d do not share the overlap", i-1, i)
			}
		}
	}
}

func TestSplitExactFit(t *testing.T) {
	c, _ := New(10, 3)
	// 17 runes: second window ends exactly at the end, no redundant third piece
	pieces := c.Split("abcdefghijklmnopq")
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	if pieces[1].End != 17 {
		t.Fatalf("expected last piece to end at 17, got %d", pieces[1].End)
	}
}

func TestSplitShortAndEmpty(t *testing.T) {
	c := Default()
	if got := c.Split("   \n\t "); got != nil {
		t.Fatalf("expected nil for whitespace-only text, got %v", got)
	}
	pieces := c.Split("short text")
	if len(pieces) != 1 || pieces[0].Text != "short text" {
		t.Fatalf("expected a single short piece, got %+v", pieces)
	}
}

func TestSplitDeterministicAndReconstructs(t *testing.T) {
	c, _ := New(50, 12)
	text := strings.Repeat("Cells are the basic unit of life. Écoles et übung. ", 40)

	first := c.Split(text)
	second := c.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("split is not deterministic")
	}
	if got := reassemble(first, c.Overlap()); got != text {
		t.Fatalf("reassembled text differs from input")
	}
}

func TestSplitPagesTruePages(t *testing.T) {
	c, _ := New(10, 2)
	pages := []string{"aaaaaaaaaaaa", "bbbbbbbbbbbb", "cccc"}
	pieces := c.SplitPages(pages)

	// page starts: 0, 14, 28
	for _, p := range pieces {
		var want int
		switch {
		case p.Start < 14:
			want = 1
		case p.Start < 28:
			want = 2
		default:
			want = 3
		}
		if p.Page != want {
			t.Errorf("piece %d starting at %d: page %d, want %d", p.Index, p.Start, p.Page, want)
		}
	}
	if got := reassemble(pieces, c.Overlap()); got != strings.Join(pages, PageSeparator) {
		t.Fatalf("reassembled page text differs")
	}
	if len(pieces) != 4 || pieces[3].Page != 2 {
		t.Fatalf("expected 4 pieces with the last starting on page 2, got %+v", pieces)
	}
}

func TestSplitWithPageCountApproximation(t *testing.T) {
	c, _ := New(10, 0)
	pieces := c.SplitWithPageCount(strings.Repeat("x", 50), 2)
	wantPages := []int{1, 2, 1, 2, 1}
	for i, p := range pieces {
		if p.Page != wantPages[i] {
			t.Errorf("piece %d page %d, want %d", i, p.Page, wantPages[i])
		}
	}
}
