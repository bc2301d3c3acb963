package services

import "strings"

const (
	sampleHeadRunes   = 6000
	sampleTailRunes   = 6000
	sampleMiddleRunes = 2000 // on each side of the midpoint
	sampleSeparator   = "\n\n[...]\n\n"
)

// SampleText reduces oversized text to its head, a window around the middle and
// its tail. Text at or under ceiling runes is returned unchanged.
func SampleText(text string, ceiling int) string {
	runes := []rune(text)
	n := len(runes)
	if n <= ceiling {
		return text
	}

	head := runes[:min(sampleHeadRunes, n)]

	mid := n / 2
	from := max(mid-sampleMiddleRunes, 0)
	to := min(mid+sampleMiddleRunes, n)
	middle := runes[from:to]

	tail := runes[max(n-sampleTailRunes, 0):]

	var b strings.Builder
	b.Grow(len(head) + len(middle) + len(tail) + 2*len(sampleSeparator))
	b.WriteString(string(head))
	b.WriteString(sampleSeparator)
	b.WriteString(string(middle))
	b.WriteString(sampleSeparator)
	b.WriteString(string(tail))
	return b.String()
}

// truncateRunes caps text at limit runes without splitting a character.
func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
