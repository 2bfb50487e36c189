package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/notegest/internal/remote"
	"github.com/dgallion1/notegest/internal/richtext"
)

// Leaf handlers request exactly what they emit and commit once.

func (e *Exporter) exportOutline(ctx context.Context, w *walk, content *remote.Handle) error {
	outline := w.c.Nav(content, "outline")
	release := w.tr.Track(outline)
	defer release()
	w.c.Load(outline, "id,paragraphs/id,paragraphs/type")
	if err := w.commit(ctx); err != nil {
		return fmt.Errorf("load outline of %s: %w", content.ID(), err)
	}
	paragraphs, err := outline.Items("paragraphs")
	if err != nil {
		return err
	}
	return foldSeq(ctx, paragraphs, func(ctx context.Context, _ int, p *remote.Handle) error {
		return e.visitParagraph(ctx, w, p)
	})
}

func (e *Exporter) exportRichText(ctx context.Context, w *walk, paragraph *remote.Handle) error {
	rt := w.c.Nav(paragraph, "richText")
	release := w.tr.Track(rt)
	defer release()
	w.c.Load(rt, "id,text,languageId")
	markup := w.c.HTML(rt)
	if err := w.commit(ctx); err != nil {
		return fmt.Errorf("load rich text of %s: %w", paragraph.ID(), err)
	}

	r := props{h: rt}
	text := r.str("text")
	lang := r.str("languageId")
	if r.err != nil {
		return r.err
	}
	html, err := markup.Value()
	if err != nil {
		return err
	}
	n, err := richtext.Normalize(text, html)
	if err != nil {
		return fmt.Errorf("rich text %s: %w", rt.ID(), err)
	}
	// Hosts may leave text empty on markup-only nodes.
	if strings.TrimSpace(text) == "" {
		text = n.Plain
	}
	return w.emit(ctx, Record{
		Kind:       ParagraphRichText.String(),
		NodeID:     rt.ID(),
		Text:       text,
		HTML:       html,
		Markdown:   n.Markdown,
		LanguageID: lang,
		Links:      n.Links,
	})
}

// exportImage handles both image paragraphs and free-floating page images.
func (e *Exporter) exportImage(ctx context.Context, w *walk, owner *remote.Handle) error {
	img := w.c.Nav(owner, "image")
	release := w.tr.Track(img)
	defer release()
	w.c.Load(img, "id,link,hyperlink,description,width,height")
	var encoded *remote.Result
	if e.opts.IncludeImageBytes {
		encoded = w.c.Base64Image(img)
	}
	if err := w.commit(ctx); err != nil {
		return fmt.Errorf("load image of %s: %w", owner.ID(), err)
	}

	r := props{h: img}
	data := &ImageData{
		Link:        r.str("link"),
		Hyperlink:   r.str("hyperlink"),
		Description: r.str("description"),
		Width:       r.num("width"),
		Height:      r.num("height"),
	}
	if r.err != nil {
		return r.err
	}
	if encoded != nil {
		b64, err := encoded.Value()
		if err != nil {
			return err
		}
		data.Base64 = b64
	}
	return w.emit(ctx, Record{
		Kind:   ParagraphImage.String(),
		NodeID: img.ID(),
		Text:   data.Description,
		Image:  data,
	})
}

// exportInk emits the recognized words of a paragraph or page-level ink
// node, best candidate first. Recognized is index aligned with Words; a word
// without candidates reads as "".
func (e *Exporter) exportInk(ctx context.Context, w *walk, owner *remote.Handle) error {
	w.c.Load(owner, "inkWords/id,inkWords/languageId,inkWords/wordPossibilities")
	if err := w.commit(ctx); err != nil {
		return fmt.Errorf("load ink words of %s: %w", owner.ID(), err)
	}
	words, err := owner.Items("inkWords")
	if err != nil {
		return err
	}
	ink := &InkData{
		Words:      make([][]string, 0, len(words)),
		Recognized: make([]string, 0, len(words)),
	}
	var lang string
	var text []string
	for _, word := range words {
		candidates, err := word.Strings("wordPossibilities")
		if err != nil {
			return err
		}
		if lang == "" {
			if lang, err = word.String("languageId"); err != nil {
				return err
			}
		}
		ink.Words = append(ink.Words, candidates)
		best := ""
		if len(candidates) > 0 {
			best = candidates[0]
			text = append(text, best)
		}
		ink.Recognized = append(ink.Recognized, best)
	}
	return w.emit(ctx, Record{
		Kind:       ParagraphInk.String(),
		NodeID:     owner.ID(),
		Text:       strings.Join(text, " "),
		LanguageID: lang,
		Ink:        ink,
	})
}

// tableProps loads the whole grid plus the text of every rich-text cell
// paragraph in one commit.
const tableProps = "id,rowCount,columnCount,rows/id,rows/cells/id," +
	"rows/cells/paragraphs/id,rows/cells/paragraphs/type,rows/cells/paragraphs/richText/text"

// exportTable emits the grid as one record, then walks every cell's
// paragraphs, row by row, with the paragraph dispatch table.
func (e *Exporter) exportTable(ctx context.Context, w *walk, paragraph *remote.Handle) error {
	tbl := w.c.Nav(paragraph, "table")
	release := w.tr.Track(tbl)
	defer release()
	w.c.Load(tbl, tableProps)
	if err := w.commit(ctx); err != nil {
		return fmt.Errorf("load table of %s: %w", paragraph.ID(), err)
	}

	r := props{h: tbl}
	data := &TableData{Rows: int(r.num("rowCount")), Columns: int(r.num("columnCount"))}
	if r.err != nil {
		return r.err
	}
	type cellStep struct {
		ref        CellRef
		paragraphs []*remote.Handle
	}
	var steps []cellStep
	rows, err := tbl.Items("rows")
	if err != nil {
		return err
	}
	for ri, row := range rows {
		cells, err := row.Items("cells")
		if err != nil {
			return err
		}
		line := make([]string, 0, len(cells))
		for ci, cell := range cells {
			paragraphs, err := cell.Items("paragraphs")
			if err != nil {
				return err
			}
			text, err := cellText(paragraphs)
			if err != nil {
				return err
			}
			line = append(line, text)
			steps = append(steps, cellStep{
				ref:        CellRef{TableID: tbl.ID(), Row: ri, Column: ci},
				paragraphs: paragraphs,
			})
		}
		data.Cells = append(data.Cells, line)
	}
	if err := w.emit(ctx, Record{Kind: ParagraphTable.String(), NodeID: tbl.ID(), Table: data}); err != nil {
		return err
	}

	return foldSeq(ctx, steps, func(ctx context.Context, _ int, s cellStep) error {
		cw := *w
		cw.cell = &s.ref
		return foldSeq(ctx, s.paragraphs, func(ctx context.Context, _ int, p *remote.Handle) error {
			return e.visitParagraph(ctx, &cw, p)
		})
	})
}

func cellText(paragraphs []*remote.Handle) (string, error) {
	var parts []string
	for _, p := range paragraphs {
		rt, err := p.Link("richText")
		if err != nil {
			return "", err
		}
		if rt == nil {
			continue
		}
		text, err := rt.String("text")
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// props reads several properties of one handle, keeping the first error.
type props struct {
	h   *remote.Handle
	err error
}

func (p *props) str(name string) string {
	if p.err != nil {
		return ""
	}
	v, err := p.h.String(name)
	p.err = err
	return v
}

func (p *props) num(name string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := p.h.Float(name)
	p.err = err
	return v
}
