package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/notegest/internal/notebook"
)

// CSVParser handles CSV files. Rows are grouped into tables of batchSize
// data rows, one page per table, each repeating the header row.
type CSVParser struct{}

const batchSize = 20

func (p *CSVParser) Parse(r io.Reader, filename string) (*notebook.Section, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	b := newBuilder(baseTitle(filename))
	if len(records) == 0 {
		return b.section(), nil
	}

	headers := records[0]
	dataRows := records[1:]
	if len(dataRows) == 0 {
		b.table([][]string{headers})
		return b.section(), nil
	}

	for i := 0; i < len(dataRows); i += batchSize {
		end := min(i+batchSize, len(dataRows))
		b.page(fmt.Sprintf("Rows %d-%d", i+2, end+1)) // 1-indexed, skip header
		rows := append([][]string{headers}, dataRows[i:end]...)
		b.table(rows)
	}

	return b.section(), nil
}
