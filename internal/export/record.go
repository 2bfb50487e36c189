package export

import "context"

// Record is one normalized leaf emitted to a Sink.
type Record struct {
	Seq       int      `json:"seq"`
	Kind      string   `json:"type"`
	PageID    string   `json:"page_id"`
	PageTitle string   `json:"page_title"`
	NodeID    string   `json:"node_id"`
	Cell      *CellRef `json:"cell,omitempty"`

	Text       string   `json:"text,omitempty"`
	HTML       string   `json:"html,omitempty"`
	Markdown   string   `json:"markdown,omitempty"`
	LanguageID string   `json:"language_id,omitempty"`
	Links      []string `json:"links,omitempty"`

	Image *ImageData `json:"image,omitempty"`
	Ink   *InkData   `json:"ink,omitempty"`
	Table *TableData `json:"table,omitempty"`
}

// CellRef places a record inside a table cell.
type CellRef struct {
	TableID string `json:"table_id"`
	Row     int    `json:"row"`
	Column  int    `json:"column"`
}

type ImageData struct {
	Link        string  `json:"link,omitempty"`
	Hyperlink   string  `json:"hyperlink,omitempty"`
	Description string  `json:"description,omitempty"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Base64      string  `json:"base64,omitempty"`
}

// InkData holds every recognition candidate per word and the best guess.
// Recognized[i] is the first candidate of Words[i], or "" when it has none.
type InkData struct {
	Words      [][]string `json:"words"`
	Recognized []string   `json:"recognized"`
}

type TableData struct {
	Rows    int        `json:"rows"`
	Columns int        `json:"columns"`
	Cells   [][]string `json:"cells"`
}

// Sink receives records in traversal order. An Emit error aborts the pass.
type Sink interface {
	Emit(ctx context.Context, r Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Record) error

func (f SinkFunc) Emit(ctx context.Context, r Record) error { return f(ctx, r) }

// Summary describes a finished or aborted pass.
type Summary struct {
	RunID      string `json:"run_id"`
	Pages      int    `json:"pages"`
	Contents   int    `json:"contents"`
	Paragraphs int    `json:"paragraphs"`
	Records    int    `json:"records"`
	Skipped    int    `json:"skipped"`
	Commits    int    `json:"commits"`
}
