package chunker

import (
	"path/filepath"
	"strings"

	"imaging-rag/internal/domain"
)

// ForFile returns the chunker suited to the given file: markdown files get
// the heading-aware chunker, everything else the plain window chunker.
func ForFile(path string, size, overlap int) domain.Chunker {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return NewMarkdown(size, overlap)
	default:
		return NewWindow(size, overlap)
	}
}
