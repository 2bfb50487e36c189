package sink

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yuin/goldmark"

	"github.com/dgallion1/notegest/internal/export"
)

// MarkdownSink renders records into one markdown document with a heading
// per page.
type MarkdownSink struct {
	title string

	mu   sync.Mutex
	buf  strings.Builder
	page string
}

func NewMarkdownSink(title string) *MarkdownSink {
	s := &MarkdownSink{title: title}
	if title != "" {
		fmt.Fprintf(&s.buf, "# %s\n\n", title)
	}
	return s
}

func (s *MarkdownSink) Emit(_ context.Context, r export.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.PageID != s.page {
		s.page = r.PageID
		title := r.PageTitle
		if title == "" {
			title = r.PageID
		}
		fmt.Fprintf(&s.buf, "## %s\n\n", title)
	}
	switch {
	case r.Table != nil:
		writeTable(&s.buf, r.Table)
	case r.Image != nil:
		alt := r.Image.Description
		src := r.Image.Link
		if r.Image.Base64 != "" {
			src = "data:image/png;base64," + r.Image.Base64
		}
		if src == "" {
			fmt.Fprintf(&s.buf, "_[image: %s]_\n\n", alt)
			break
		}
		img := fmt.Sprintf("![%s](%s)", alt, src)
		if r.Image.Hyperlink != "" {
			img = fmt.Sprintf("[%s](%s)", img, r.Image.Hyperlink)
		}
		s.buf.WriteString(img + "\n\n")
	case r.Cell != nil:
		// Cell contents already appear in the table.
	case r.Markdown != "":
		s.buf.WriteString(r.Markdown + "\n\n")
	case r.Text != "":
		s.buf.WriteString(r.Text + "\n\n")
	}
	return nil
}

func writeTable(buf *strings.Builder, t *export.TableData) {
	cols := t.Columns
	for _, row := range t.Cells {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return
	}
	line := func(cells []string) {
		buf.WriteString("|")
		for i := 0; i < cols; i++ {
			var c string
			if i < len(cells) {
				c = strings.ReplaceAll(strings.ReplaceAll(cells[i], "|", `\|`), "\n", "<br>")
			}
			buf.WriteString(" " + c + " |")
		}
		buf.WriteString("\n")
	}
	rows := t.Cells
	if len(rows) == 0 {
		rows = [][]string{nil}
	}
	line(rows[0])
	buf.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
	for _, row := range rows[1:] {
		line(row)
	}
	buf.WriteString("\n")
}

// Markdown returns the document built so far.
func (s *MarkdownSink) Markdown() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// HTML renders the document with goldmark.
func (s *MarkdownSink) HTML() (string, error) {
	var out bytes.Buffer
	if err := goldmark.New().Convert([]byte(s.Markdown()), &out); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out.String(), nil
}
