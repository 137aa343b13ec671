// Package chunk splits source documents into retrievable spans. Markdown is
// split at header boundaries with the header hierarchy preserved; oversized
// sections are further split into overlapping windows so every chunk fits
// the embedding model comfortably.
package chunk

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

const (
	// DefaultMaxChunkSize caps chunk length in bytes before a section is
	// split into windows.
	DefaultMaxChunkSize = 1000

	// DefaultOverlap is the number of bytes carried over between adjacent
	// windows of a split section.
	DefaultOverlap = 100
)

// Chunk represents a span of a document with header context.
type Chunk struct {
	Index      int    // Position in document (0, 1, 2...)
	HeaderPath string // Hierarchy: "# Doc Title > ## Section Name"
	Content    string // Chunk content WITH header path prepended
	RawContent string // Original content without header prefix
}

// Chunker splits documents at header boundaries while preserving context.
type Chunker struct {
	parser       goldmark.Markdown
	maxChunkSize int
	overlap      int
}

// Options configures chunk sizing. Zero values fall back to defaults.
type Options struct {
	MaxChunkSize int
	Overlap      int
}

// NewChunker creates a chunker configured with a goldmark parser.
func NewChunker(opts Options) *Chunker {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.MaxChunkSize {
		opts.Overlap = DefaultOverlap
	}
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Chunker{
		parser:       md,
		maxChunkSize: opts.MaxChunkSize,
		overlap:      opts.Overlap,
	}
}

// ChunkDocument splits a document at H1 and H2 boundaries with header
// hierarchy preservation, then splits any oversized section into
// overlapping windows. Each chunk carries its header path prepended for
// context during retrieval. Documents without headers are treated as plain
// text and windowed directly.
func (c *Chunker) ChunkDocument(source []byte) ([]Chunk, error) {
	reader := text.NewReader(source)
	doc := c.parser.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),   // Include H1
		toc.MaxDepth(2),   // Split at H1 and H2 only
		toc.Compact(true), // Remove empty items
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	// No headers: window the entire document as plain text.
	if len(tree.Items) == 0 {
		return c.windowSection("", strings.TrimSpace(string(source)), nil), nil
	}

	var chunks []Chunk
	c.extractChunks(doc, source, tree.Items, nil, &chunks)
	return chunks, nil
}

// extractChunks recursively walks TOC items to extract section content with
// header paths, windowing each section as it goes.
func (c *Chunker) extractChunks(doc ast.Node, source []byte, items toc.Items, ancestors []string, chunks *[]Chunk) {
	for i, item := range items {
		currentPath := append(ancestors, string(item.Title))
		headerPath := formatHeaderPath(currentPath)

		headerNode := findHeaderByID(doc, string(item.ID))
		if headerNode == nil {
			continue
		}

		// Determine content boundaries: next sibling header, or the next
		// same-or-higher-level header for the last item at this level.
		startLine := headerNode.Lines().At(0)
		var endLine text.Segment
		if i+1 < len(items) {
			nextHeader := findHeaderByID(doc, string(items[i+1].ID))
			if nextHeader != nil {
				endLine = nextHeader.Lines().At(0)
			}
		} else {
			endLine = findNextHeaderBoundary(doc, headerNode, headerNode.(*ast.Heading).Level)
		}

		content := extractContent(source, startLine, endLine)
		*chunks = append(*chunks, c.windowSection(headerPath, content, chunks)...)

		// Process children (H2 under H1)
		if len(item.Items) > 0 {
			c.extractChunks(doc, source, item.Items, currentPath, chunks)
		}
	}
}

// windowSection turns one section into one or more chunks, splitting at
// whitespace near the size cap with overlap between windows. The existing
// chunks slice is only consulted for index numbering.
func (c *Chunker) windowSection(headerPath, content string, existing *[]Chunk) []Chunk {
	base := 0
	if existing != nil {
		base = len(*existing)
	}

	makeChunk := func(idx int, raw string) Chunk {
		withHeader := raw
		if headerPath != "" {
			withHeader = fmt.Sprintf("%s\n\n%s", headerPath, raw)
		}
		return Chunk{
			Index:      idx,
			HeaderPath: headerPath,
			RawContent: raw,
			Content:    withHeader,
		}
	}

	if len(content) <= c.maxChunkSize {
		return []Chunk{makeChunk(base, content)}
	}

	var out []Chunk
	step := c.maxChunkSize - c.overlap
	for start := 0; start < len(content); start += step {
		end := start + c.maxChunkSize
		if end >= len(content) {
			out = append(out, makeChunk(base+len(out), strings.TrimSpace(content[start:])))
			break
		}
		// Back off to the nearest whitespace so windows don't cut words.
		cut := end
		for cut > start+step && !isSpace(content[cut-1]) {
			cut--
		}
		if cut == start+step {
			cut = end
		}
		out = append(out, makeChunk(base+len(out), strings.TrimSpace(content[start:cut])))
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	if len(path) == 0 {
		return ""
	}

	var parts []string
	for i, segment := range path {
		prefix := strings.Repeat("#", i+1)
		parts = append(parts, fmt.Sprintf("%s %s", prefix, segment))
	}

	return strings.Join(parts, " > ")
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			heading := n.(*ast.Heading)
			headingID, ok := heading.AttributeString("id")
			if ok && string(headingID.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// findNextHeaderBoundary finds the next header at the same or higher level
// after the given node.
func findNextHeaderBoundary(root ast.Node, current ast.Node, currentLevel int) text.Segment {
	var nextHeader ast.Node
	foundCurrent := false

	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if n.Kind() == ast.KindHeading {
			heading := n.(*ast.Heading)

			if !foundCurrent {
				if n == current {
					foundCurrent = true
				}
				return ast.WalkContinue, nil
			}

			if heading.Level <= currentLevel {
				nextHeader = n
				return ast.WalkStop, nil
			}
		}

		return ast.WalkContinue, nil
	})

	if nextHeader != nil {
		return nextHeader.Lines().At(0)
	}

	// No next header found - extract to EOF.
	return text.Segment{}
}

// extractContent extracts text between start and end line segments.
func extractContent(source []byte, start text.Segment, end text.Segment) string {
	var buf bytes.Buffer

	if end.Start == 0 && end.Stop == 0 {
		buf.Write(source[start.Start:])
	} else {
		buf.Write(source[start.Start:end.Start])
	}

	return strings.TrimSpace(buf.String())
}
