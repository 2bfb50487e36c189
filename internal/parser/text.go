package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/notegest/internal/notebook"
)

// TextParser handles plain text files: one page, one paragraph per block of
// non-blank lines.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*notebook.Section, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newBuilder(baseTitle(filename))
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			b.text(current.String(), "")
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	b.text(current.String(), "")

	return b.section(), nil
}
