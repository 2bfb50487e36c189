// Package export walks the active section of a host session and emits one
// normalized record per leaf node.
//
// The walk is a strict sequential fold: sibling k+1 is visited only after
// sibling k, including everything beneath it, has finished. The host keeps a
// single active-page cursor and rejects overlapping batches, so there is no
// concurrent variant.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dgallion1/notegest/internal/remote"
)

// Options tune what the leaf handlers request.
type Options struct {
	// IncludeImageBytes asks the host for each image's encoded bytes.
	IncludeImageBytes bool
}

// handler processes one node whose kind has already been resolved.
type handler func(ctx context.Context, w *walk, node *remote.Handle) error

// Exporter holds the dispatch tables. It is stateless between runs and safe
// to reuse; each Run needs its own remote.Client.
type Exporter struct {
	log  *slog.Logger
	opts Options

	contentHandlers   map[ContentKind]handler
	paragraphHandlers map[ParagraphKind]handler
}

func New(log *slog.Logger, opts Options) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	e := &Exporter{log: log, opts: opts}
	e.contentHandlers = map[ContentKind]handler{
		ContentOutline: e.exportOutline,
		ContentImage:   e.exportImage,
		ContentInk:     e.exportInk,
		ContentOther:   skip,
	}
	e.paragraphHandlers = map[ParagraphKind]handler{
		ParagraphRichText: e.exportRichText,
		ParagraphImage:    e.exportImage,
		ParagraphInk:      e.exportInk,
		ParagraphTable:    e.exportTable,
		ParagraphOther:    skip,
	}
	return e
}

func skip(context.Context, *walk, *remote.Handle) error { return nil }

// pass is the state shared by every step of one Run.
type pass struct {
	c       *remote.Client
	tr      *remote.Tracker
	sink    Sink
	log     *slog.Logger
	summary Summary
}

// walk is the position of a step: its page and, inside tables, its cell.
type walk struct {
	*pass
	pageID    string
	pageTitle string
	cell      *CellRef
}

func (w *walk) commit(ctx context.Context) error {
	return w.c.Commit(ctx)
}

func (w *walk) emit(ctx context.Context, r Record) error {
	w.summary.Records++
	r.Seq = w.summary.Records
	r.PageID = w.pageID
	r.PageTitle = w.pageTitle
	r.Cell = w.cell
	if err := w.sink.Emit(ctx, r); err != nil {
		return fmt.Errorf("emit %s %s: %w", r.Kind, r.NodeID, err)
	}
	return nil
}

// Run exports every page of the host's active section to sink, in order.
// The first failure aborts the pass; records already emitted stay emitted.
// Every handle tracked during the pass is released before Run returns.
func (e *Exporter) Run(ctx context.Context, c *remote.Client, sink Sink) (sum Summary, err error) {
	p := &pass{
		c:       c,
		tr:      remote.NewTracker(c, e.log),
		sink:    sink,
		log:     e.log,
		summary: Summary{RunID: uuid.NewString()},
	}
	log := e.log.With("run_id", p.summary.RunID, "session", c.Session())
	start := c.Commits()

	defer func() {
		if ferr := c.Flush(context.WithoutCancel(ctx)); ferr != nil {
			log.Warn("flush releases", "error", ferr)
		}
		if cerr := p.tr.Close(); cerr != nil {
			log.Warn("tracked handles leaked", "error", cerr)
		}
		p.summary.Commits = c.Commits() - start
		sum = p.summary
		if err != nil {
			log.Error("export pass failed", "error", err, "pages", sum.Pages, "records", sum.Records)
			return
		}
		log.Info("export pass complete", "pages", sum.Pages, "records", sum.Records, "skipped", sum.Skipped, "commits", sum.Commits)
	}()

	section := c.ActiveSection()
	release := p.tr.Track(section)
	defer release()
	c.Load(section, "id,name,pages/id,pages/title")
	if err := c.Commit(ctx); err != nil {
		return sum, fmt.Errorf("load active section: %w", err)
	}
	pages, err := section.Items("pages")
	if err != nil {
		return sum, err
	}
	log.Debug("section loaded", "section_id", section.ID(), "pages", len(pages))

	return sum, foldSeq(ctx, pages, func(ctx context.Context, _ int, page *remote.Handle) error {
		return e.visitPage(ctx, p, page)
	})
}

// foldSeq runs step over items one at a time, in order, stopping at the
// first error. Cancellation is checked between steps.
func foldSeq[T any](ctx context.Context, items []T, step func(context.Context, int, T) error) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(ctx, i, item); err != nil {
			return err
		}
	}
	return nil
}

// visitPage activates page, then exports its contents relative to the
// active-page cursor.
func (e *Exporter) visitPage(ctx context.Context, p *pass, page *remote.Handle) error {
	title, err := page.String("title")
	if err != nil {
		return err
	}
	p.c.NavigateToPage(page)
	if err := p.c.Commit(ctx); err != nil {
		return fmt.Errorf("navigate to page %s: %w", page.ID(), err)
	}

	active := p.c.ActivePage()
	release := p.tr.Track(active)
	defer release()
	p.c.Load(active, "id,title")
	if err := p.c.Commit(ctx); err != nil {
		return fmt.Errorf("load active page %s: %w", page.ID(), err)
	}
	if active.ID() != page.ID() {
		return fmt.Errorf("active page is %s after navigating to %s", active.ID(), page.ID())
	}
	p.summary.Pages++
	if t, err := active.String("title"); err == nil {
		title = t
	}
	w := &walk{pass: p, pageID: active.ID(), pageTitle: title}
	p.log.Debug("export page", "page_id", w.pageID, "title", title)
	return e.exportPage(ctx, w, active)
}

func (e *Exporter) exportPage(ctx context.Context, w *walk, page *remote.Handle) error {
	w.c.Load(page, "contents/id,contents/type")
	if err := w.commit(ctx); err != nil {
		return fmt.Errorf("load contents of page %s: %w", w.pageID, err)
	}
	contents, err := page.Items("contents")
	if err != nil {
		return err
	}
	return foldSeq(ctx, contents, func(ctx context.Context, _ int, content *remote.Handle) error {
		return e.visitContent(ctx, w, content)
	})
}

func (e *Exporter) visitContent(ctx context.Context, w *walk, content *remote.Handle) error {
	w.summary.Contents++
	typ, err := content.String("type")
	if err != nil {
		return err
	}
	kind, err := ParseContentKind(typ)
	if err != nil {
		return e.unhandled(w, content, err)
	}
	h, ok := e.contentHandlers[kind]
	if !ok {
		return e.unhandled(w, content, &UnhandledKindError{Node: "content", Kind: typ})
	}
	return h(ctx, w, content)
}

// visitParagraph tracks paragraph for the duration of its own step.
func (e *Exporter) visitParagraph(ctx context.Context, w *walk, paragraph *remote.Handle) error {
	w.summary.Paragraphs++
	release := w.tr.Track(paragraph)
	defer release()
	typ, err := paragraph.String("type")
	if err != nil {
		return err
	}
	kind, err := ParseParagraphKind(typ)
	if err != nil {
		return e.unhandled(w, paragraph, err)
	}
	h, ok := e.paragraphHandlers[kind]
	if !ok {
		return e.unhandled(w, paragraph, &UnhandledKindError{Node: "paragraph", Kind: typ})
	}
	return h(ctx, w, paragraph)
}

// unhandled logs a kind without a handler and skips the node.
func (e *Exporter) unhandled(w *walk, node *remote.Handle, err error) error {
	var uk *UnhandledKindError
	if !errors.As(err, &uk) {
		return err
	}
	uk.NodeID = node.ID()
	w.summary.Skipped++
	e.log.Warn("skipping node", "page_id", w.pageID, "node_id", node.ID(), "error", uk)
	return nil
}
