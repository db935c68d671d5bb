package chunker

import "strings"

// Window splits text into fixed-size rune windows with overlap.
type Window struct {
	size    int
	overlap int
}

// NewWindow creates a window chunker. The overlap is clamped below size so
// that every step makes forward progress.
func NewWindow(size, overlap int) *Window {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Window{size: size, overlap: overlap}
}

// Split produces the ordered sequence of trimmed windows covering text.
// Each window spans [start, min(start+size, len)); the next one starts
// overlap runes before the previous end. Windows that are empty after
// trimming are dropped. Empty input yields nil.
func (w *Window) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for start < n {
		end := start + w.size
		if end > n {
			end = n
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == n {
			break
		}
		start = end - w.overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
