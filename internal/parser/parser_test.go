package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/notegest/internal/notebook"
)

// flatten lists each page's paragraphs as "Type:text" strings.
func flatten(s *notebook.Section) map[string][]string {
	out := make(map[string][]string)
	for _, p := range s.Pages {
		out[p.Title] = []string{}
		for _, c := range p.Contents {
			if c.Outline == nil {
				continue
			}
			for _, para := range c.Outline.Paragraphs {
				switch para.Type {
				case "RichText":
					out[p.Title] = append(out[p.Title], "RichText:"+para.RichText.Text)
				case "Image":
					out[p.Title] = append(out[p.Title], "Image:"+para.Image.Link)
				case "Table":
					out[p.Title] = append(out[p.Title], "Table:"+tableText(para.Table))
				}
			}
		}
	}
	return out
}

func tableText(t *notebook.Table) string {
	var rows []string
	for _, r := range t.Rows {
		var cells []string
		for _, c := range r.Cells {
			var parts []string
			for _, p := range c.Paragraphs {
				parts = append(parts, p.RichText.Text)
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		rows = append(rows, strings.Join(cells, ","))
	}
	return strings.Join(rows, ";")
}

func equal(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestMarkdownParser_PagesPerTopHeading(t *testing.T) {
	input := `Preamble text.

# Trip

Intro *text*.

## Packing

- passport
- socks

![map of the route](https://example.com/map.png)

| Day | Stop |
| --- | ---- |
| 1   | Lyon |

# Budget

Around 900 EUR.
`
	p := &MarkdownParser{}
	s, err := p.Parse(strings.NewReader(input), "trip.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Name != "trip" {
		t.Errorf("expected section name %q, got %q", "trip", s.Name)
	}
	if len(s.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(s.Pages))
	}
	pages := flatten(s)
	equal(t, pages["trip"], []string{"RichText:Preamble text."})
	equal(t, pages["Trip"], []string{
		"RichText:Intro text.",
		"RichText:Packing",
		"RichText:passport\nsocks",
		"Image:https://example.com/map.png",
		"Table:Day,Stop;1,Lyon",
	})
	equal(t, pages["Budget"], []string{"RichText:Around 900 EUR."})

	intro := s.Pages[1].Contents[0].Outline.Paragraphs[0].RichText
	if intro.HTML != "<p>Intro <em>text</em>.</p>" {
		t.Errorf("expected rendered html, got %q", intro.HTML)
	}
	img := s.Pages[1].Contents[0].Outline.Paragraphs[3].Image
	if img.Description != "map of the route" {
		t.Errorf("expected alt text as description, got %q", img.Description)
	}
}

func TestMarkdownParser_CodeBlockKeepsLines(t *testing.T) {
	input := "```\nline one\nline two\n```\n"
	s, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "code.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	equal(t, flatten(s)["code"], []string{"RichText:line one\nline two"})
}

func TestHTMLParser(t *testing.T) {
	input := `<html><head><title>Recipes</title><script>var x;</script></head><body>
<nav>skip me</nav>
<h1>Bread</h1>
<p>Mix <b>flour</b> and water.<img src="dough.png" alt="dough"></p>
<h2>Timing</h2>
<ul><li>rise 2h</li><li>bake 40m</li></ul>
<table><thead><tr><th>Item</th><th>Qty</th></tr></thead><tbody><tr><td>flour</td><td>500g</td></tr></tbody></table>
<h1>Soup</h1>
<img src="soup.png" alt="bowl">
</body></html>`
	s, err := (&HTMLParser{}).Parse(strings.NewReader(input), "food.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "Recipes" {
		t.Errorf("expected <title> as section name, got %q", s.Name)
	}
	pages := flatten(s)
	equal(t, pages["Bread"], []string{
		"RichText:Mix flour and water.",
		"Image:dough.png",
		"RichText:Timing",
		"RichText:rise 2h",
		"RichText:bake 40m",
		"Table:Item,Qty;flour,500g",
	})
	equal(t, pages["Soup"], []string{"Image:soup.png"})

	mix := s.Pages[0].Contents[0].Outline.Paragraphs[0].RichText
	if !strings.Contains(mix.HTML, "<b>flour</b>") {
		t.Errorf("expected markup to be kept, got %q", mix.HTML)
	}
}

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\n\nSecond paragraph.\n\nThird paragraph."
	s, err := (&TextParser{}).Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Pages) != 1 || s.Pages[0].Title != "notes" {
		t.Fatalf("expected one page titled notes, got %+v", s.Pages)
	}
	equal(t, flatten(s)["notes"], []string{
		"RichText:First paragraph line one.\nFirst paragraph line two.",
		"RichText:Second paragraph.",
		"RichText:Third paragraph.",
	})
}

func TestTextParser_EmptyInput(t *testing.T) {
	s, err := (&TextParser{}).Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Pages) != 0 {
		t.Errorf("expected no pages for empty input, got %d", len(s.Pages))
	}
}

func TestCSVParser_BatchesRows(t *testing.T) {
	var in strings.Builder
	in.WriteString("name,qty\n")
	for i := range 25 {
		in.WriteString("item")
		in.WriteString(strings.Repeat("x", i%3))
		in.WriteString(",1\n")
	}
	s, err := (&CSVParser{}).Parse(strings.NewReader(in.String()), "stock.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(s.Pages))
	}
	if s.Pages[0].Title != "Rows 2-21" || s.Pages[1].Title != "Rows 22-26" {
		t.Errorf("unexpected page titles %q, %q", s.Pages[0].Title, s.Pages[1].Title)
	}
	tbl := s.Pages[1].Contents[0].Outline.Paragraphs[0].Table
	if len(tbl.Rows) != 6 {
		t.Errorf("expected header plus 5 rows, got %d", len(tbl.Rows))
	}
	if got := tbl.Rows[0].Cells[0].Paragraphs[0].RichText.Text; got != "name" {
		t.Errorf("expected header row first, got %q", got)
	}
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	s, err := (&CSVParser{}).Parse(strings.NewReader("a,b\n"), "h.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	equal(t, flatten(s)["h"], []string{"Table:a,b"})
}

func TestDOCXParser(t *testing.T) {
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().Style("Title").AddText("Garden")
	doc.AddParagraph().AddText("loose note")
	doc.AddParagraph().Style("Heading1").AddText("Beds")
	doc.AddParagraph().Style("Heading2").AddText("North <bed>")
	doc.AddParagraph().AddText("peas")
	tbl := doc.AddTable(2, 2, 0, nil)
	for i, row := range [][]string{{"bed", "crop"}, {"N", "peas"}} {
		for j, text := range row {
			tbl.TableRows[i].TableCells[j].AddParagraph().AddText(text)
		}
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		t.Fatalf("write docx: %v", err)
	}

	s, err := (&DOCXParser{}).Parse(&buf, "garden.docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "Garden" {
		t.Errorf("expected Title paragraph as section name, got %q", s.Name)
	}
	pages := flatten(s)
	equal(t, pages["Garden"], []string{"RichText:loose note"})
	equal(t, pages["Beds"], []string{
		"RichText:North <bed>",
		"RichText:peas",
		"Table:bed,crop;N,peas",
	})
	heading := s.Pages[1].Contents[0].Outline.Paragraphs[0].RichText
	if heading.HTML != "<h2>North &lt;bed&gt;</h2>" {
		t.Errorf("expected escaped heading markup, got %q", heading.HTML)
	}
}

func TestPDFSection(t *testing.T) {
	s := pdfSection("scan", "first para\nstill first\n\nsecond para\f\f  \fthird page")
	if len(s.Pages) != 2 {
		t.Fatalf("expected 2 non-empty pages, got %d", len(s.Pages))
	}
	pages := flatten(s)
	equal(t, pages["Page 1"], []string{"RichText:first para\nstill first", "RichText:second para"})
	equal(t, pages["Page 4"], []string{"RichText:third page"})
}

func TestImport(t *testing.T) {
	nb, err := Import(strings.NewReader("# One\n\nhello\n"), "dir/notes.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nb.Name != "notes" || len(nb.Sections) != 1 {
		t.Fatalf("unexpected notebook %+v", nb)
	}
	page := nb.Sections[0].Pages[0]
	if page.ID == "" || page.Contents[0].Outline.Paragraphs[0].RichText.ID == "" {
		t.Error("expected ids to be assigned")
	}

	if _, err := Import(strings.NewReader(""), "empty.txt"); err == nil {
		t.Error("expected error for a document with no content")
	}
	if _, err := Import(strings.NewReader("x"), "slides.pptx"); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if !IsSupportedExtension("A.DOCX") || IsSupportedExtension("a.pptx") {
		t.Error("unexpected extension support")
	}
}
