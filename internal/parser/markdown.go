package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/notegest/internal/notebook"
)

// MarkdownParser handles Markdown files using goldmark. Each level-1
// heading starts a page; pipe tables become notebook tables and a paragraph
// holding only an image becomes an image paragraph.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*notebook.Section, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	render := func(n ast.Node) string {
		var buf bytes.Buffer
		if err := md.Renderer().Render(&buf, src, n); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}

	b := newBuilder(baseTitle(filename))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := blockText(node, src)
			if node.Level == 1 {
				b.page(title)
				continue
			}
			b.text(title, render(node))
		case *extast.Table:
			b.table(tableRows(node, src))
		case *ast.ThematicBreak:
		case *ast.Paragraph:
			if img, ok := onlyImage(node); ok {
				b.image(string(img.Destination), blockText(img, src))
				continue
			}
			b.text(blockText(node, src), render(node))
		default:
			b.text(blockText(n, src), render(n))
		}
	}

	return b.section(), nil
}

func onlyImage(p *ast.Paragraph) (*ast.Image, bool) {
	if p.ChildCount() != 1 {
		return nil, false
	}
	img, ok := p.FirstChild().(*ast.Image)
	return img, ok
}

func tableRows(t *extast.Table, src []byte) [][]string {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, blockText(cell, src))
		}
		rows = append(rows, cells)
	}
	return rows
}

// blockText gets the plain text of a goldmark AST node. Code blocks keep
// their raw lines; nested blocks are separated by newlines.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	switch n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			buf.Write(c.Value(src))
			if c.HardLineBreak() || c.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(c.Value)
		default:
			if c.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(blockText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
