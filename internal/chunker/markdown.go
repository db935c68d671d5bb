package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown splits markdown documents along heading boundaries so that a
// chunk never straddles two sections. Sections larger than the window size
// are re-split by the window chunker.
type Markdown struct {
	window *Window
}

// NewMarkdown creates a markdown chunker with the given window parameters
// for oversized sections.
func NewMarkdown(size, overlap int) *Markdown {
	return &Markdown{window: NewWindow(size, overlap)}
}

// Split parses the markdown AST and emits one chunk per heading section.
// Documents without headings fall through to plain window chunking.
func (m *Markdown) Split(input string) []string {
	source := []byte(input)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var sections []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch node := n.(type) {
			case *ast.Heading:
				flush()
				current.WriteString(headingText(node, source))
				current.WriteString("\n\n")
				return ast.WalkSkipChildren, nil
			case *ast.Text:
				current.Write(node.Segment.Value(source))
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				// code block content is carried in line segments, not
				// Text children
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					current.Write(seg.Value(source))
				}
				current.WriteString("\n")
				return ast.WalkSkipChildren, nil
			}
		} else if _, ok := n.(*ast.Paragraph); ok {
			current.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})
	flush()

	if len(sections) <= 1 {
		return m.window.Split(input)
	}

	var chunks []string
	for _, section := range sections {
		chunks = append(chunks, m.window.Split(section)...)
	}
	return chunks
}

func headingText(node ast.Node, source []byte) string {
	var buf strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}
