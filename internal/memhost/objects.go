package memhost

import (
	"html"
	"strings"

	"github.com/dgallion1/notegest/internal/notebook"
)

// object is the host-side view of a notebook node. Property names are
// canonical (camelCase); lookups ignore case.
type object interface {
	id() string
	class() string
	scalars() map[string]any
	links() map[string]object
	collections() map[string][]object
}

func lookup[V any](m map[string]V, name string) (V, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

type sectionObj struct{ s *notebook.Section }

func (o sectionObj) id() string    { return o.s.ID }
func (o sectionObj) class() string { return "Section" }
func (o sectionObj) scalars() map[string]any {
	return map[string]any{"id": o.s.ID, "name": o.s.Name}
}
func (o sectionObj) links() map[string]object { return nil }
func (o sectionObj) collections() map[string][]object {
	pages := make([]object, len(o.s.Pages))
	for i, p := range o.s.Pages {
		pages[i] = pageObj{p}
	}
	return map[string][]object{"pages": pages}
}

type pageObj struct{ p *notebook.Page }

func (o pageObj) id() string    { return o.p.ID }
func (o pageObj) class() string { return "Page" }
func (o pageObj) scalars() map[string]any {
	return map[string]any{"id": o.p.ID, "title": o.p.Title}
}
func (o pageObj) links() map[string]object { return nil }
func (o pageObj) collections() map[string][]object {
	contents := make([]object, len(o.p.Contents))
	for i, c := range o.p.Contents {
		contents[i] = contentObj{c}
	}
	return map[string][]object{"contents": contents}
}

type contentObj struct{ c *notebook.Content }

func (o contentObj) id() string    { return o.c.ID }
func (o contentObj) class() string { return "PageContent" }
func (o contentObj) scalars() map[string]any {
	return map[string]any{"id": o.c.ID, "type": o.c.Type}
}
func (o contentObj) links() map[string]object {
	l := map[string]object{"outline": nil, "image": nil}
	if o.c.Outline != nil {
		l["outline"] = outlineObj{o.c.Outline}
	}
	if o.c.Image != nil {
		l["image"] = imageObj{o.c.Image}
	}
	return l
}
func (o contentObj) collections() map[string][]object {
	return map[string][]object{"inkWords": inkWords(o.c.InkWords)}
}

func inkWords(ws []*notebook.InkWord) []object {
	out := make([]object, len(ws))
	for i, w := range ws {
		out[i] = inkWordObj{w}
	}
	return out
}

type outlineObj struct{ o *notebook.Outline }

func (o outlineObj) id() string    { return o.o.ID }
func (o outlineObj) class() string { return "Outline" }
func (o outlineObj) scalars() map[string]any {
	return map[string]any{"id": o.o.ID}
}
func (o outlineObj) links() map[string]object { return nil }
func (o outlineObj) collections() map[string][]object {
	return map[string][]object{"paragraphs": paragraphs(o.o.Paragraphs)}
}

func paragraphs(ps []*notebook.Paragraph) []object {
	out := make([]object, len(ps))
	for i, p := range ps {
		out[i] = paragraphObj{p}
	}
	return out
}

type paragraphObj struct{ p *notebook.Paragraph }

func (o paragraphObj) id() string    { return o.p.ID }
func (o paragraphObj) class() string { return "Paragraph" }
func (o paragraphObj) scalars() map[string]any {
	return map[string]any{"id": o.p.ID, "type": o.p.Type}
}
func (o paragraphObj) links() map[string]object {
	l := map[string]object{"richText": nil, "image": nil, "table": nil}
	if o.p.RichText != nil {
		l["richText"] = richTextObj{o.p.RichText}
	}
	if o.p.Image != nil {
		l["image"] = imageObj{o.p.Image}
	}
	if o.p.Table != nil {
		l["table"] = tableObj{o.p.Table}
	}
	return l
}
func (o paragraphObj) collections() map[string][]object {
	return map[string][]object{"inkWords": inkWords(o.p.InkWords)}
}

type richTextObj struct{ r *notebook.RichText }

func (o richTextObj) id() string    { return o.r.ID }
func (o richTextObj) class() string { return "RichText" }
func (o richTextObj) scalars() map[string]any {
	return map[string]any{"id": o.r.ID, "text": o.r.Text, "languageId": o.r.LanguageID}
}
func (o richTextObj) links() map[string]object         { return nil }
func (o richTextObj) collections() map[string][]object { return nil }

// html renders the rich text the way the host's getHtml does: stored markup
// when there is some, otherwise the escaped text as one paragraph.
func (o richTextObj) html() string {
	if o.r.HTML != "" {
		return o.r.HTML
	}
	return "<p>" + html.EscapeString(o.r.Text) + "</p>"
}

type imageObj struct{ i *notebook.Image }

func (o imageObj) id() string    { return o.i.ID }
func (o imageObj) class() string { return "Image" }
func (o imageObj) scalars() map[string]any {
	return map[string]any{
		"id":          o.i.ID,
		"link":        o.i.Link,
		"hyperlink":   o.i.Hyperlink,
		"description": o.i.Description,
		"width":       o.i.Width,
		"height":      o.i.Height,
	}
}
func (o imageObj) links() map[string]object         { return nil }
func (o imageObj) collections() map[string][]object { return nil }

type inkWordObj struct{ w *notebook.InkWord }

func (o inkWordObj) id() string    { return o.w.ID }
func (o inkWordObj) class() string { return "InkWord" }
func (o inkWordObj) scalars() map[string]any {
	return map[string]any{
		"id":                o.w.ID,
		"languageId":        o.w.LanguageID,
		"wordPossibilities": append([]string(nil), o.w.Possibilities...),
	}
}
func (o inkWordObj) links() map[string]object         { return nil }
func (o inkWordObj) collections() map[string][]object { return nil }

type tableObj struct{ t *notebook.Table }

func (o tableObj) id() string    { return o.t.ID }
func (o tableObj) class() string { return "Table" }
func (o tableObj) scalars() map[string]any {
	return map[string]any{"id": o.t.ID, "rowCount": len(o.t.Rows), "columnCount": o.t.ColumnCount()}
}
func (o tableObj) links() map[string]object { return nil }
func (o tableObj) collections() map[string][]object {
	rows := make([]object, len(o.t.Rows))
	for i, r := range o.t.Rows {
		rows[i] = rowObj{r, i}
	}
	return map[string][]object{"rows": rows}
}

type rowObj struct {
	r     *notebook.Row
	index int
}

func (o rowObj) id() string    { return o.r.ID }
func (o rowObj) class() string { return "TableRow" }
func (o rowObj) scalars() map[string]any {
	return map[string]any{"id": o.r.ID, "rowIndex": o.index, "cellCount": len(o.r.Cells)}
}
func (o rowObj) links() map[string]object { return nil }
func (o rowObj) collections() map[string][]object {
	cells := make([]object, len(o.r.Cells))
	for i, c := range o.r.Cells {
		cells[i] = cellObj{c, o.index, i}
	}
	return map[string][]object{"cells": cells}
}

type cellObj struct {
	c        *notebook.Cell
	row, col int
}

func (o cellObj) id() string    { return o.c.ID }
func (o cellObj) class() string { return "TableCell" }
func (o cellObj) scalars() map[string]any {
	return map[string]any{"id": o.c.ID, "rowIndex": o.row, "cellIndex": o.col}
}
func (o cellObj) links() map[string]object { return nil }
func (o cellObj) collections() map[string][]object {
	return map[string][]object{"paragraphs": paragraphs(o.c.Paragraphs)}
}
