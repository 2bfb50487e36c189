package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/notegest/internal/export"
)

// DocxSink writes records into a Word document: a Heading1 paragraph per
// page, a Word table per table record and one paragraph per other record.
type DocxSink struct {
	mu   sync.Mutex
	doc  *docx.Docx
	page string
}

func NewDocxSink(title string) *DocxSink {
	s := &DocxSink{doc: docx.New().WithDefaultTheme()}
	if title != "" {
		s.doc.AddParagraph().Style("Title").AddText(title).Size("36").Bold()
	}
	return s
}

func (s *DocxSink) Emit(_ context.Context, r export.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.PageID != s.page {
		s.page = r.PageID
		title := r.PageTitle
		if title == "" {
			title = r.PageID
		}
		s.doc.AddParagraph().Style("Heading1").AddText(title).Size("28").Bold()
	}
	switch {
	case r.Table != nil:
		s.addTable(r.Table)
	case r.Image != nil:
		text := "[image]"
		if r.Image.Description != "" {
			text = "[image: " + r.Image.Description + "]"
		}
		if r.Image.Hyperlink != "" {
			text += " " + r.Image.Hyperlink
		}
		s.doc.AddParagraph().AddText(text)
	case r.Cell != nil:
	case r.Text != "":
		for _, line := range strings.Split(r.Text, "\n") {
			s.doc.AddParagraph().AddText(line)
		}
	}
	return nil
}

func (s *DocxSink) addTable(t *export.TableData) {
	cols := t.Columns
	for _, row := range t.Cells {
		cols = max(cols, len(row))
	}
	if len(t.Cells) == 0 || cols == 0 {
		return
	}
	tbl := s.doc.AddTable(len(t.Cells), cols, 0, nil)
	for i, row := range t.Cells {
		for j, text := range row {
			tbl.TableRows[i].TableCells[j].AddParagraph().AddText(text)
		}
	}
}

// WriteTo writes the .docx archive to w.
func (s *DocxSink) WriteTo(w io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.doc.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("write docx: %w", err)
	}
	return n, nil
}
