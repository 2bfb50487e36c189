// Package richtext turns the host's rendered rich-text markup into markdown,
// plain text and the list of links it contains.
package richtext

import (
	"fmt"
	"html"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	xhtml "golang.org/x/net/html"
)

// Normalized is the sink-facing form of one rich text node.
type Normalized struct {
	Markdown string
	Plain    string
	Links    []string
}

// Normalize converts markup to markdown and extracts its plain text and
// hyperlink targets. When markup is empty, text is treated as one paragraph.
func Normalize(text, markup string) (Normalized, error) {
	if strings.TrimSpace(markup) == "" {
		if text == "" {
			return Normalized{}, nil
		}
		markup = "<p>" + html.EscapeString(text) + "</p>"
	}
	doc, err := xhtml.Parse(strings.NewReader(markup))
	if err != nil {
		return Normalized{}, fmt.Errorf("parse rich text markup: %w", err)
	}
	md, err := htmltomarkdown.ConvertNode(doc)
	if err != nil {
		return Normalized{}, fmt.Errorf("convert rich text to markdown: %w", err)
	}
	n := Normalized{
		Markdown: strings.TrimSpace(string(md)),
		Plain:    textContent(doc),
		Links:    links(doc),
	}
	if n.Plain == "" {
		n.Plain = strings.TrimSpace(text)
	}
	return n, nil
}

func textContent(n *xhtml.Node) string {
	var buf strings.Builder
	var extract func(*xhtml.Node)
	extract = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.Data {
			case "script", "style", "head":
				return
			case "br":
				buf.WriteString("\n")
			}
		}
		if n.Type == xhtml.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
		if n.Type == xhtml.ElementNode && blocks[n.Data] {
			buf.WriteString("\n")
		}
	}
	extract(n)
	lines := strings.Split(buf.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

var blocks = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// links returns href targets in document order, without duplicates.
func links(n *xhtml.Node) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" && !seen[attr.Val] {
					seen[attr.Val] = true
					out = append(out, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
