package engine

import "strings"

// CommonPrefixLen returns how many leading characters a and b share.
func CommonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Words splits a passage into its space-separated words.
func Words(passage string) []string {
	return strings.Split(passage, " ")
}

// CharsBefore returns the absolute character offset of word i in the
// passage, counting the space after each earlier word.
func CharsBefore(words []string, i int) int {
	n := 0
	for w := 0; w < i && w < len(words); w++ {
		n += len(words[w]) + 1
	}
	return n
}

// WordsCompleted returns how many whole words a charsTyped offset covers.
// The final word has no trailing space, so reaching the passage end counts it.
func WordsCompleted(passage string, chars int) int {
	if chars <= 0 {
		return 0
	}
	if chars >= len(passage) {
		return strings.Count(passage, " ") + 1
	}
	return strings.Count(passage[:chars], " ")
}
