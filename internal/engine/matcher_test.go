package engine

import "testing"

func TestCommonPrefixLen(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "cat", 0},
		{"c", "cat", 1},
		{"ca", "cat", 2},
		{"cat", "cat", 3},
		{"cat ", "cat ", 4},
		{"cax", "cat", 2},
		{"xat", "cat", 0},
		{"cats", "cat ", 3},
	}
	for _, tt := range tests {
		if got := CommonPrefixLen(tt.a, tt.b); got != tt.want {
			t.Errorf("CommonPrefixLen(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCharsBefore(t *testing.T) {
	words := Words("the cat sat")
	tests := []struct {
		i, want int
	}{
		{0, 0},
		{1, 4},
		{2, 8},
		{3, 12},
	}
	for _, tt := range tests {
		if got := CharsBefore(words, tt.i); got != tt.want {
			t.Errorf("CharsBefore(%d) = %d, want %d", tt.i, got, tt.want)
		}
	}
}

func TestWordsCompleted(t *testing.T) {
	passage := "the cat sat"
	tests := []struct {
		chars, want int
	}{
		{0, 0},
		{3, 0},
		{4, 1},  // "the "
		{8, 2},  // "the cat "
		{10, 2}, // mid "sat"
		{11, 3}, // passage end counts the final word
	}
	for _, tt := range tests {
		if got := WordsCompleted(passage, tt.chars); got != tt.want {
			t.Errorf("WordsCompleted(%d) = %d, want %d", tt.chars, got, tt.want)
		}
	}
}
