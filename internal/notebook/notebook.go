package notebook

// Notebook is the root of an in-memory notebook.
type Notebook struct {
	Name     string     `yaml:"name" json:"name"`
	Sections []*Section `yaml:"sections" json:"sections"`
}

// Section is an ordered list of pages.
type Section struct {
	ID    string  `yaml:"id" json:"id"`
	Name  string  `yaml:"name" json:"name"`
	Pages []*Page `yaml:"pages" json:"pages"`
}

// Page holds top-level content nodes in document order.
type Page struct {
	ID       string     `yaml:"id" json:"id"`
	Title    string     `yaml:"title" json:"title"`
	Contents []*Content `yaml:"contents" json:"contents"`
}

// Content is a page-level node: an outline, a free-floating image, ink, or
// something the exporter does not understand.
type Content struct {
	ID      string   `yaml:"id" json:"id"`
	Type    string   `yaml:"type" json:"type"` // Outline, Image, Ink, Other
	Outline *Outline `yaml:"outline,omitempty" json:"outline,omitempty"`
	Image   *Image   `yaml:"image,omitempty" json:"image,omitempty"`
	// InkWords holds recognized handwriting drawn directly on the page.
	InkWords []*InkWord `yaml:"inkWords,omitempty" json:"inkWords,omitempty"`
}

// Outline is a container of paragraphs.
type Outline struct {
	ID         string       `yaml:"id" json:"id"`
	Paragraphs []*Paragraph `yaml:"paragraphs" json:"paragraphs"`
}

// Paragraph is one block inside an outline or a table cell.
type Paragraph struct {
	ID       string     `yaml:"id" json:"id"`
	Type     string     `yaml:"type" json:"type"` // RichText, Image, Ink, Table, Other
	RichText *RichText  `yaml:"richText,omitempty" json:"richText,omitempty"`
	Image    *Image     `yaml:"image,omitempty" json:"image,omitempty"`
	InkWords []*InkWord `yaml:"inkWords,omitempty" json:"inkWords,omitempty"`
	Table    *Table     `yaml:"table,omitempty" json:"table,omitempty"`
}

// RichText is formatted text. HTML is the host's rendering; when empty the
// host renders Text itself.
type RichText struct {
	ID         string `yaml:"id" json:"id"`
	Text       string `yaml:"text" json:"text"`
	HTML       string `yaml:"html,omitempty" json:"html,omitempty"`
	LanguageID string `yaml:"languageId,omitempty" json:"languageId,omitempty"`
}

// Image describes an embedded picture. Base64 holds the encoded bytes.
type Image struct {
	ID          string  `yaml:"id" json:"id"`
	Link        string  `yaml:"link,omitempty" json:"link,omitempty"`
	Hyperlink   string  `yaml:"hyperlink,omitempty" json:"hyperlink,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Width       float64 `yaml:"width" json:"width"`
	Height      float64 `yaml:"height" json:"height"`
	Base64      string  `yaml:"base64,omitempty" json:"base64,omitempty"`
}

// InkWord is one handwritten word with its recognition candidates, best first.
type InkWord struct {
	ID            string   `yaml:"id" json:"id"`
	LanguageID    string   `yaml:"languageId,omitempty" json:"languageId,omitempty"`
	Possibilities []string `yaml:"possibilities" json:"possibilities"`
}

// Table is a grid of cells, each holding its own paragraphs.
type Table struct {
	ID   string `yaml:"id" json:"id"`
	Rows []*Row `yaml:"rows" json:"rows"`
}

// Row is one table row.
type Row struct {
	ID    string  `yaml:"id" json:"id"`
	Cells []*Cell `yaml:"cells" json:"cells"`
}

// Cell is one table cell.
type Cell struct {
	ID         string       `yaml:"id" json:"id"`
	Paragraphs []*Paragraph `yaml:"paragraphs" json:"paragraphs"`
}

// ColumnCount returns the widest row's cell count.
func (t *Table) ColumnCount() int {
	n := 0
	for _, r := range t.Rows {
		if len(r.Cells) > n {
			n = len(r.Cells)
		}
	}
	return n
}
