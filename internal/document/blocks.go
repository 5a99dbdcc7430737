// Package document extracts ordered speech blocks from markdown. Each
// heading, paragraph, list item and code block becomes one block with a
// sequential id, the unit the playback engine dispatches to the
// synthesizer.
package document

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"readaloud/tts"
)

// Parse converts markdown source into an ordered block list. Ids are
// sequential starting at 1; blank blocks are dropped.
func Parse(source []byte) []tts.Block {
	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(source))

	var blocks []tts.Block
	nextID := 1

	add := func(content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		blocks = append(blocks, tts.Block{ID: nextID, Text: content})
		nextID++
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			add(inlineText(n, source))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			add(rawLines(n, source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return blocks
}

// inlineText flattens the inline children of a block node into plain text.
// Line breaks inside a paragraph become single spaces.
func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder

	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.AutoLink:
			sb.Write(t.URL(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return sb.String()
}

// rawLines joins the raw source lines of a code block.
func rawLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}
