package parser

import (
	"strings"

	"github.com/dgallion1/notegest/internal/notebook"
)

// builder accumulates pages. Content added before the first page break
// lands on a page titled after the document.
type builder struct {
	title string
	pages []*notebook.Page
	cur   *notebook.Outline
}

func newBuilder(title string) *builder {
	return &builder{title: title}
}

// page starts a new page.
func (b *builder) page(title string) {
	b.pages = append(b.pages, &notebook.Page{Title: title})
	b.cur = nil
}

func (b *builder) outline() *notebook.Outline {
	if len(b.pages) == 0 {
		b.page(b.title)
	}
	if b.cur == nil {
		p := b.pages[len(b.pages)-1]
		b.cur = &notebook.Outline{}
		p.Contents = append(p.Contents, &notebook.Content{Type: "Outline", Outline: b.cur})
	}
	return b.cur
}

func (b *builder) add(p *notebook.Paragraph) {
	o := b.outline()
	o.Paragraphs = append(o.Paragraphs, p)
}

// text adds a rich text paragraph. markup is optional.
func (b *builder) text(text, markup string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.add(richText(text, markup))
}

func (b *builder) image(link, description string) {
	if link == "" {
		return
	}
	b.add(&notebook.Paragraph{
		Type:  "Image",
		Image: &notebook.Image{Link: link, Description: description},
	})
}

func (b *builder) table(rows [][]string) {
	if len(rows) == 0 {
		return
	}
	t := &notebook.Table{}
	for _, row := range rows {
		r := &notebook.Row{}
		for _, cell := range row {
			c := &notebook.Cell{}
			if cell = strings.TrimSpace(cell); cell != "" {
				c.Paragraphs = []*notebook.Paragraph{richText(cell, "")}
			}
			r.Cells = append(r.Cells, c)
		}
		t.Rows = append(t.Rows, r)
	}
	b.add(&notebook.Paragraph{Type: "Table", Table: t})
}

func (b *builder) section() *notebook.Section {
	return &notebook.Section{Name: b.title, Pages: b.pages}
}

func richText(text, markup string) *notebook.Paragraph {
	return &notebook.Paragraph{
		Type:     "RichText",
		RichText: &notebook.RichText{Text: text, HTML: markup},
	}
}
