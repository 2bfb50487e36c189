package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/notegest/internal/memhost"
	"github.com/dgallion1/notegest/internal/notebook"
	"github.com/dgallion1/notegest/internal/remote"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type collector struct {
	mu      sync.Mutex
	records []Record
	failAt  int
}

func (c *collector) Emit(_ context.Context, r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && len(c.records)+1 == c.failAt {
		return errors.New("sink unavailable")
	}
	c.records = append(c.records, r)
	return nil
}

func fixture(t *testing.T, doc string) *notebook.Notebook {
	t.Helper()
	nb, err := notebook.Parse([]byte(doc), ".yaml")
	require.NoError(t, err)
	return nb
}

// recorder remembers every request the host served.
type recorder struct {
	host *memhost.Host
	reqs []*remote.SyncRequest
}

func (r *recorder) Sync(ctx context.Context, req *remote.SyncRequest) (*remote.SyncResponse, error) {
	r.reqs = append(r.reqs, req)
	return r.host.Sync(ctx, req)
}

func run(t *testing.T, host remote.Host, opts Options) (*collector, Summary, error) {
	t.Helper()
	sink := &collector{}
	sum, err := New(quiet, opts).Run(context.Background(), remote.NewClient(host, "test", quiet), sink)
	return sink, sum, err
}

const helloDoc = `
sections:
  - id: s1
    pages:
      - id: p1
        title: Greeting
        contents:
          - id: c1
            type: Outline
            outline:
              paragraphs:
                - type: RichText
                  richText: {text: Hello}
`

func TestScenarioSingleRichText(t *testing.T) {
	host := memhost.New(fixture(t, helloDoc), quiet)
	sink, sum, err := run(t, host, Options{})
	require.NoError(t, err)

	require.Len(t, sink.records, 1)
	r := sink.records[0]
	require.Equal(t, "RichText", r.Kind)
	require.Equal(t, "Hello", r.Text)
	require.Equal(t, "p1", r.PageID)
	require.Equal(t, "Greeting", r.PageTitle)
	require.Equal(t, "<p>Hello</p>", r.HTML)
	require.Equal(t, "Hello", r.Markdown)
	require.Equal(t, 1, r.Seq)

	require.Equal(t, 1, sum.Pages)
	require.Equal(t, 1, sum.Records)
	require.Equal(t, host.Syncs(), sum.Commits)
	require.True(t, host.Balanced(), "outstanding: %v", host.Outstanding())
}

const imageDoc = `
sections:
  - id: s1
    pages:
      - id: p1
        title: Pictures
        contents:
          - type: Outline
            outline:
              paragraphs:
                - type: Image
                  image:
                    id: img1
                    width: 100
                    height: 50
                    hyperlink: http://x
                    description: a cat
                    base64: QUJD
`

func TestScenarioImage(t *testing.T) {
	rec := &recorder{host: memhost.New(fixture(t, imageDoc), quiet)}
	sink, _, err := run(t, rec, Options{})
	require.NoError(t, err)
	require.Len(t, sink.records, 1)
	img := sink.records[0].Image
	require.NotNil(t, img)
	require.Equal(t, "Image", sink.records[0].Kind)
	require.Equal(t, 100.0, img.Width)
	require.Equal(t, 50.0, img.Height)
	require.Equal(t, "http://x", img.Hyperlink)
	require.Equal(t, "a cat", img.Description)
	require.Empty(t, img.Base64)

	for _, req := range rec.reqs {
		for _, op := range req.Ops {
			require.NotEqual(t, remote.ActionGetBase64Image, op.Action)
		}
	}
}

func TestImageBytesWhenRequested(t *testing.T) {
	host := memhost.New(fixture(t, imageDoc), quiet)
	sink, _, err := run(t, host, Options{IncludeImageBytes: true})
	require.NoError(t, err)
	require.Len(t, sink.records, 1)
	require.Equal(t, "QUJD", sink.records[0].Image.Base64)
}

const threePages = `
sections:
  - id: s1
    pages:
      - id: p1
        title: One
        contents:
          - type: Outline
            outline:
              paragraphs:
                - type: RichText
                  richText: {text: first}
      - id: p2
        title: Two
        contents:
          - type: Outline
            outline:
              paragraphs:
                - type: RichText
                  richText: {text: second}
      - id: p3
        title: Three
        contents:
          - type: Outline
            outline:
              paragraphs:
                - type: RichText
                  richText: {text: third}
`

func TestScenarioFailureOnSecondPage(t *testing.T) {
	host := memhost.New(fixture(t, threePages), quiet)
	host.FailOnOp(remote.ActionNavigateToPage, "p2")

	sink, sum, err := run(t, host, Options{})
	var hce *remote.HostCommunicationError
	require.ErrorAs(t, err, &hce)
	require.Equal(t, "InjectedFailure", hce.Code)
	require.Equal(t, "p2", hce.DebugInfo["target"])

	require.Len(t, sink.records, 1)
	require.Equal(t, "first", sink.records[0].Text)
	require.Equal(t, []string{"p1"}, host.Activations())
	require.Equal(t, 1, sum.Pages)
	require.True(t, host.Balanced(), "outstanding: %v", host.Outstanding())
}

func TestPagesVisitedInOrderOneAtATime(t *testing.T) {
	host := memhost.New(fixture(t, threePages), quiet)
	rec := &recorder{host: host}
	sink, sum, err := run(t, rec, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, sum.Pages)
	require.Equal(t, []string{"p1", "p2", "p3"}, host.Activations())

	var texts []string
	for _, r := range sink.records {
		texts = append(texts, r.Text)
	}
	require.Equal(t, []string{"first", "second", "third"}, texts)

	// A page is activated only after everything under the previous page has
	// been requested.
	var pageOfLoad []string
	active := ""
	for _, req := range rec.reqs {
		for _, op := range req.Ops {
			if op.Action == remote.ActionNavigateToPage {
				require.NotEqual(t, active, op.Target)
				active = op.Target
			}
			if op.Action == remote.ActionGetHTML {
				pageOfLoad = append(pageOfLoad, active)
			}
		}
	}
	require.Equal(t, []string{"p1", "p2", "p3"}, pageOfLoad)
}

func TestEmptySection(t *testing.T) {
	host := memhost.New(fixture(t, "sections:\n  - id: s1\n"), quiet)
	sink, sum, err := run(t, host, Options{})
	require.NoError(t, err)
	require.Empty(t, sink.records)
	require.Zero(t, sum.Pages)
	require.Empty(t, host.Activations())
	require.True(t, host.Balanced())
}

func dispatchDoc(kind string) string {
	return `
sections:
  - pages:
      - id: p1
        contents:
          - type: Outline
            outline:
              paragraphs:
                - id: para
                  type: ` + kind + `
                  richText: {text: t}
                  image: {width: 1, height: 1}
                  table: {rows: []}
`
}

func TestParagraphDispatchCompleteness(t *testing.T) {
	kinds := []ParagraphKind{ParagraphRichText, ParagraphImage, ParagraphInk, ParagraphTable, ParagraphOther}
	for _, want := range kinds {
		t.Run(want.String(), func(t *testing.T) {
			e := New(quiet, Options{})
			var calls []ParagraphKind
			for _, k := range kinds {
				e.paragraphHandlers[k] = func(_ context.Context, _ *walk, node *remote.Handle) error {
					require.Equal(t, "para", node.ID())
					calls = append(calls, k)
					return nil
				}
			}
			host := memhost.New(fixture(t, dispatchDoc(want.String())), quiet)
			_, err := e.Run(context.Background(), remote.NewClient(host, "test", quiet), &collector{})
			require.NoError(t, err)
			require.Equal(t, []ParagraphKind{want}, calls)
			require.True(t, host.Balanced())
		})
	}
}

func TestUnknownKindsAreSkipped(t *testing.T) {
	doc := `
sections:
  - pages:
      - id: p1
        contents:
          - type: Equation
          - type: Outline
            outline:
              paragraphs:
                - type: Hologram
                - type: RichText
                  richText: {text: after}
          - type: Other
`
	host := memhost.New(fixture(t, doc), quiet)
	sink, sum, err := run(t, host, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, sum.Skipped)
	require.Equal(t, 3, sum.Contents)
	require.Equal(t, 2, sum.Paragraphs)
	require.Len(t, sink.records, 1)
	require.Equal(t, "after", sink.records[0].Text)
	require.True(t, host.Balanced())
}

func TestParseKinds(t *testing.T) {
	k, err := ParseParagraphKind("richtext")
	require.NoError(t, err)
	require.Equal(t, ParagraphRichText, k)

	_, err = ParseContentKind("Equation")
	var uk *UnhandledKindError
	require.ErrorAs(t, err, &uk)
	require.Equal(t, "Equation", uk.Kind)
	require.Equal(t, "content", uk.Node)

	for k := range contentKinds {
		parsed, err := ParseContentKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}
}

const fullDoc = `
sections:
  - id: s1
    pages:
      - id: p1
        title: Everything
        contents:
          - id: c1
            type: Outline
            outline:
              id: o1
              paragraphs:
                - id: para-rt
                  type: RichText
                  richText:
                    id: rt1
                    text: Intro
                    html: '<p>Intro <a href="https://example.com">link</a></p>'
                    languageId: en-US
                - id: para-img
                  type: Image
                  image: {id: img1, width: 10, height: 20, link: http://img}
                - id: para-ink
                  type: Ink
                  inkWords:
                    - {id: w1, languageId: en-US, possibilities: [hello, hallo]}
                    - {id: w0}
                    - {id: w2, possibilities: [world]}
                - id: para-tbl
                  type: Table
                  table:
                    id: t1
                    rows:
                      - id: r1
                        cells:
                          - id: c11
                            paragraphs:
                              - {id: cp11, type: RichText, richText: {id: crt11, text: A1}}
                          - id: c12
                            paragraphs:
                              - {id: cp12, type: RichText, richText: {id: crt12, text: B1}}
                      - id: r2
                        cells:
                          - id: c21
                            paragraphs:
                              - {id: cp21, type: Image, image: {id: cimg, width: 1, height: 1}}
                          - id: c22
                            paragraphs:
                              - {id: cp22, type: RichText, richText: {id: crt22, text: B2}}
          - id: c2
            type: Image
            image: {id: img2, width: 5, height: 5, description: floating}
          - id: c3
            type: Ink
            inkWords:
              - {id: w3, possibilities: [scribble]}
      - id: p2
        title: Second
        contents:
          - type: Outline
            outline:
              paragraphs:
                - type: RichText
                  richText: {text: tail}
`

func TestFullPage(t *testing.T) {
	host := memhost.New(fixture(t, fullDoc), quiet)
	sink, sum, err := run(t, host, Options{})
	require.NoError(t, err)

	var kinds, nodes []string
	for _, r := range sink.records {
		kinds = append(kinds, r.Kind)
		nodes = append(nodes, r.NodeID)
	}
	require.Equal(t, []string{"RichText", "Image", "Ink", "Table", "RichText", "RichText", "Image", "RichText", "Image", "Ink", "RichText"}, kinds)
	require.Equal(t, []string{"rt1", "img1", "para-ink", "t1", "crt11", "crt12", "cimg", "crt22", "img2", "c3", "richtext-1"}, nodes)

	rt := sink.records[0]
	require.Equal(t, []string{"https://example.com"}, rt.Links)
	require.Equal(t, "en-US", rt.LanguageID)
	require.Contains(t, rt.Markdown, "[link](https://example.com)")

	ink := sink.records[2]
	require.Len(t, ink.Ink.Words, 3)
	require.Equal(t, []string{"hello", "hallo"}, ink.Ink.Words[0])
	require.Empty(t, ink.Ink.Words[1])
	require.Equal(t, []string{"world"}, ink.Ink.Words[2])
	require.Equal(t, []string{"hello", "", "world"}, ink.Ink.Recognized)
	require.Equal(t, "hello world", ink.Text)
	require.Equal(t, "en-US", ink.LanguageID)

	tbl := sink.records[3]
	require.Equal(t, 2, tbl.Table.Rows)
	require.Equal(t, 2, tbl.Table.Columns)
	require.Equal(t, [][]string{{"A1", "B1"}, {"", "B2"}}, tbl.Table.Cells)
	require.Nil(t, tbl.Cell)

	require.Equal(t, &CellRef{TableID: "t1", Row: 0, Column: 0}, sink.records[4].Cell)
	require.Equal(t, &CellRef{TableID: "t1", Row: 0, Column: 1}, sink.records[5].Cell)
	require.Equal(t, &CellRef{TableID: "t1", Row: 1, Column: 0}, sink.records[6].Cell)
	require.Equal(t, &CellRef{TableID: "t1", Row: 1, Column: 1}, sink.records[7].Cell)
	require.Nil(t, sink.records[8].Cell)

	require.Equal(t, "floating", sink.records[8].Image.Description)
	require.Equal(t, []string{"scribble"}, sink.records[9].Ink.Recognized)
	require.Equal(t, "p2", sink.records[10].PageID)

	for i, r := range sink.records {
		require.Equal(t, i+1, r.Seq)
	}
	require.Equal(t, 2, sum.Pages)
	require.True(t, host.Balanced(), "outstanding: %v", host.Outstanding())
	tracks, untracks := host.TrackTotals()
	require.Equal(t, tracks, untracks)
	require.NotZero(t, tracks)
}

// Forcing a failure into every handler in turn must leave the host with
// every track matched by one untrack.
func TestTrackingBalancedUnderFailures(t *testing.T) {
	hasProp := func(p string) func(remote.Op) bool {
		return func(op remote.Op) bool { return op.Action == remote.ActionLoad && slices.Contains(op.Props, p) }
	}
	cases := map[string]func(remote.Op) bool{
		"section":   hasProp("pages/title"),
		"navigate":  func(op remote.Op) bool { return op.Action == remote.ActionNavigateToPage },
		"activate":  func(op remote.Op) bool { return op.Action == remote.ActionActivePage },
		"contents":  hasProp("contents/type"),
		"outline":   hasProp("paragraphs/type"),
		"rich text": func(op remote.Op) bool { return op.Action == remote.ActionGetHTML },
		"image":     hasProp("hyperlink"),
		"ink":       hasProp("inkwords/wordpossibilities"),
		"table":     hasProp("rowcount"),
		"cell text": func(op remote.Op) bool { return op.Action == remote.ActionGetHTML && op.Target == "crt22" },
		"floating":  func(op remote.Op) bool { return op.Action == remote.ActionLoad && op.Target == "c2/image" },
	}
	for name, match := range cases {
		t.Run(name, func(t *testing.T) {
			host := memhost.New(fixture(t, fullDoc), quiet)
			host.FailWhen(match)
			_, _, err := run(t, host, Options{})
			var hce *remote.HostCommunicationError
			require.ErrorAs(t, err, &hce)
			require.True(t, host.Balanced(), "outstanding: %v unbalanced: %d", host.Outstanding(), host.Unbalanced())
		})
	}
}

func TestTrackingBalancedUnderTransportFailures(t *testing.T) {
	clean := &recorder{host: memhost.New(fixture(t, fullDoc), quiet)}
	_, _, err := run(t, clean, Options{})
	require.NoError(t, err)

	for n, req := range clean.reqs {
		lifecycleOnly := true
		for _, op := range req.Ops {
			if op.Action != remote.ActionTrack && op.Action != remote.ActionUntrack {
				lifecycleOnly = false
			}
		}
		if lifecycleOnly {
			continue
		}
		host := memhost.New(fixture(t, fullDoc), quiet)
		host.FailOnSync(n+1, errors.New("connection reset"))
		_, _, err := run(t, host, Options{})
		require.Error(t, err, "sync %d", n+1)
		require.True(t, host.Balanced(), "sync %d: outstanding %v", n+1, host.Outstanding())
	}
}

func TestSinkFailureAbortsWithBalancedTracking(t *testing.T) {
	host := memhost.New(fixture(t, fullDoc), quiet)
	sink := &collector{failAt: 4}
	_, err := New(quiet, Options{}).Run(context.Background(), remote.NewClient(host, "test", quiet), sink)
	require.ErrorContains(t, err, "sink unavailable")
	require.Len(t, sink.records, 3)
	require.True(t, host.Balanced(), "outstanding: %v", host.Outstanding())
}

func TestCancelledContext(t *testing.T) {
	host := memhost.New(fixture(t, helloDoc), quiet)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(quiet, Options{}).Run(ctx, remote.NewClient(host, "test", quiet), &collector{})
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, host.Balanced())
}

func TestFoldSeq(t *testing.T) {
	var seen []int
	err := foldSeq(context.Background(), []int{1, 2, 3}, func(_ context.Context, i, v int) error {
		seen = append(seen, v)
		if v == 2 {
			return errors.New("stop")
		}
		return nil
	})
	require.EqualError(t, err, "stop")
	require.Equal(t, []int{1, 2}, seen)

	require.NoError(t, foldSeq(context.Background(), nil, func(context.Context, int, string) error {
		t.Fatal("step called for empty input")
		return nil
	}))
}

func TestRichTextFallsBackToMarkupText(t *testing.T) {
	host := memhost.New(fixture(t, `
sections:
  - pages:
      - id: p1
        title: Markup
        contents:
          - type: Outline
            outline:
              paragraphs:
                - type: RichText
                  richText: {html: "<p>only <b>markup</b></p>"}
`), quiet)
	sink, _, err := run(t, host, Options{})
	require.NoError(t, err)
	require.Len(t, sink.records, 1)
	require.Equal(t, "only markup", sink.records[0].Text)
	require.Equal(t, "only **markup**", sink.records[0].Markdown)
}
