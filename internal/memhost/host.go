// Package memhost serves the host document-object protocol from an
// in-memory notebook. It backs local runs, the HTTP host bridge and the
// walker tests, and can be told to fail on a given sync or op.
package memhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgallion1/notegest/internal/notebook"
	"github.com/dgallion1/notegest/internal/remote"
)

// ErrOverlappingSync is returned when a sync arrives while another is still
// being served for the same session.
var ErrOverlappingSync = errors.New("memhost: overlapping sync")

// ErrUnknownSession is returned for a session id the bridge never issued.
var ErrUnknownSession = errors.New("memhost: unknown session")

// Host is one host session: a single active section and a single
// active-page slot.
type Host struct {
	nb    *notebook.Notebook
	log   *slog.Logger
	index map[string]object
	busy  atomic.Bool

	mu          sync.Mutex
	section     int
	active      string
	syncs       int
	ops         int
	tracked     map[string]int
	tracks      map[string]int
	untracks    map[string]int
	unbalanced  int
	activations []string
	failSync    map[int]error
	failOps     []func(remote.Op) bool
}

func New(nb *notebook.Notebook, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	h := &Host{
		nb:       nb,
		log:      log,
		index:    make(map[string]object),
		tracked:  make(map[string]int),
		tracks:   make(map[string]int),
		untracks: make(map[string]int),
		failSync: make(map[int]error),
	}
	h.indexNotebook()
	return h
}

func (h *Host) indexNotebook() {
	var addParas func(ps []*notebook.Paragraph)
	add := func(o object) {
		if o.id() != "" {
			h.index[o.id()] = o
		}
	}
	addParas = func(ps []*notebook.Paragraph) {
		for _, p := range ps {
			add(paragraphObj{p})
			if p.RichText != nil {
				add(richTextObj{p.RichText})
			}
			if p.Image != nil {
				add(imageObj{p.Image})
			}
			for _, w := range p.InkWords {
				add(inkWordObj{w})
			}
			if p.Table != nil {
				add(tableObj{p.Table})
				for ri, r := range p.Table.Rows {
					add(rowObj{r, ri})
					for ci, c := range r.Cells {
						add(cellObj{c, ri, ci})
						addParas(c.Paragraphs)
					}
				}
			}
		}
	}
	for _, s := range h.nb.Sections {
		add(sectionObj{s})
		for _, p := range s.Pages {
			add(pageObj{p})
			for _, c := range p.Contents {
				add(contentObj{c})
				if c.Outline != nil {
					add(outlineObj{c.Outline})
					addParas(c.Outline.Paragraphs)
				}
				if c.Image != nil {
					add(imageObj{c.Image})
				}
				for _, w := range c.InkWords {
					add(inkWordObj{w})
				}
			}
		}
	}
}

// SetActiveSection selects the section activeSection answers with.
func (h *Host) SetActiveSection(i int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.nb.Sections) {
		return fmt.Errorf("memhost: section %d out of range (have %d)", i, len(h.nb.Sections))
	}
	h.section = i
	return nil
}

// FailOnSync makes the n-th sync (1-based, counted over the host's
// lifetime) fail. A nil err yields a host-reported error response; a
// non-nil err is returned as a transport failure.
func (h *Host) FailOnSync(n int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failSync[n] = err
}

// FailOnOp rejects every batch containing an op with the given action
// whose target equals target. An empty target matches any target.
func (h *Host) FailOnOp(action remote.Action, target string) {
	h.FailWhen(func(op remote.Op) bool {
		return op.Action == action && (target == "" || op.Target == target)
	})
}

// FailWhen rejects every batch containing an op for which match is true.
func (h *Host) FailWhen(match func(remote.Op) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failOps = append(h.failOps, match)
}

// ClearFailures removes every injected failure.
func (h *Host) ClearFailures() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failSync = make(map[int]error)
	h.failOps = nil
}

func (h *Host) Sync(ctx context.Context, req *remote.SyncRequest) (*remote.SyncResponse, error) {
	if !h.busy.CompareAndSwap(false, true) {
		return nil, ErrOverlappingSync
	}
	defer h.busy.Store(false)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncs++
	h.ops += len(req.Ops)

	if err, ok := h.failSync[h.syncs]; ok {
		h.log.Debug("injected sync failure", "sync", h.syncs)
		if err != nil {
			return nil, err
		}
		return &remote.SyncResponse{Error: &remote.HostError{
			Code:      "InjectedFailure",
			Message:   fmt.Sprintf("sync %d rejected", h.syncs),
			DebugInfo: map[string]any{"sync": h.syncs},
		}}, nil
	}
	for _, op := range req.Ops {
		for _, match := range h.failOps {
			if match(op) {
				h.log.Debug("injected op failure", "action", op.Action, "target", op.Target)
				return &remote.SyncResponse{Error: (&opError{
					op:   op,
					code: "InjectedFailure",
					msg:  fmt.Sprintf("%s %s rejected", op.Action, op.Target),
				}).hostError()}, nil
			}
		}
	}

	b := &batch{h: h, refs: make(map[string]object), active: h.active}
	results := make([]remote.OpResult, 0, len(req.Ops))
	for _, op := range req.Ops {
		r, err := b.run(op)
		if err != nil {
			var oe *opError
			if errors.As(err, &oe) {
				return &remote.SyncResponse{Error: oe.hostError()}, nil
			}
			return nil, err
		}
		if r != nil {
			results = append(results, *r)
		}
	}
	b.apply()
	return &remote.SyncResponse{Results: results}, nil
}

// batch holds the effects of one sync until every op has succeeded.
type batch struct {
	h           *Host
	refs        map[string]object
	active      string
	activations []string
	tracks      []string
	untracks    []string
}

func (b *batch) run(op remote.Op) (*remote.OpResult, error) {
	switch op.Action {
	case remote.ActionActiveSection:
		if len(b.h.nb.Sections) == 0 {
			return nil, &opError{op: op, code: "ItemNotFound", msg: "notebook has no sections"}
		}
		obj := sectionObj{b.h.nb.Sections[b.h.section]}
		b.refs[op.Ref] = obj
		return &remote.OpResult{Seq: op.Seq, Object: &remote.Object{ID: obj.id(), Class: obj.class()}}, nil

	case remote.ActionActivePage:
		obj, ok := b.h.index[b.active]
		if b.active == "" || !ok {
			return nil, &opError{op: op, code: "ItemNotFound", msg: "no active page"}
		}
		b.refs[op.Ref] = obj
		return &remote.OpResult{Seq: op.Seq, Object: &remote.Object{ID: obj.id(), Class: obj.class()}}, nil

	case remote.ActionNavigateToPage:
		obj, err := b.resolve(op)
		if err != nil {
			return nil, err
		}
		if _, ok := obj.(pageObj); !ok {
			return nil, &opError{op: op, code: "InvalidArgument", msg: "navigation target is a " + obj.class()}
		}
		b.active = obj.id()
		b.activations = append(b.activations, obj.id())
		return nil, nil

	case remote.ActionLoad:
		obj, err := b.resolve(op)
		if err != nil {
			return nil, err
		}
		var props []string
		if len(op.Props) > 0 {
			props = op.Props
		}
		desc, err := describe(obj, props)
		if err != nil {
			return nil, &opError{op: op, code: "InvalidArgument", msg: err.Error()}
		}
		return &remote.OpResult{Seq: op.Seq, Object: desc}, nil

	case remote.ActionGetHTML:
		obj, err := b.resolve(op)
		if err != nil {
			return nil, err
		}
		rt, ok := obj.(richTextObj)
		if !ok {
			return nil, &opError{op: op, code: "InvalidArgument", msg: "getHtml on a " + obj.class()}
		}
		v := rt.html()
		return &remote.OpResult{Seq: op.Seq, Value: &v}, nil

	case remote.ActionGetBase64Image:
		obj, err := b.resolve(op)
		if err != nil {
			return nil, err
		}
		img, ok := obj.(imageObj)
		if !ok {
			return nil, &opError{op: op, code: "InvalidArgument", msg: "getBase64Image on a " + obj.class()}
		}
		v := img.i.Base64
		return &remote.OpResult{Seq: op.Seq, Value: &v}, nil

	case remote.ActionTrack, remote.ActionUntrack:
		obj, err := b.resolve(op)
		if err != nil {
			return nil, err
		}
		if op.Action == remote.ActionTrack {
			b.tracks = append(b.tracks, obj.id())
		} else {
			b.untracks = append(b.untracks, obj.id())
		}
		return nil, nil
	}
	return nil, &opError{op: op, code: "InvalidArgument", msg: fmt.Sprintf("unknown action %q", op.Action)}
}

// resolve follows op.Target: an object id or placeholder ref, then zero or
// more navigation properties separated by "/".
func (b *batch) resolve(op remote.Op) (object, error) {
	parts := strings.Split(op.Target, "/")
	var obj object
	var ok bool
	if strings.HasPrefix(parts[0], "$") {
		obj, ok = b.refs[parts[0]]
	} else {
		obj, ok = b.h.index[parts[0]]
	}
	if !ok || obj == nil {
		return nil, &opError{op: op, code: "ItemNotFound", msg: fmt.Sprintf("no object %q", parts[0])}
	}
	for _, nav := range parts[1:] {
		next, found := lookup(obj.links(), nav)
		if !found {
			return nil, &opError{op: op, code: "InvalidArgument", msg: fmt.Sprintf("%s has no navigation property %q", obj.class(), nav)}
		}
		if next == nil {
			return nil, &opError{op: op, code: "ItemNotFound", msg: fmt.Sprintf("%s %s has no %s", obj.class(), obj.id(), nav)}
		}
		obj = next
	}
	return obj, nil
}

func (b *batch) apply() {
	h := b.h
	h.active = b.active
	h.activations = append(h.activations, b.activations...)
	for _, id := range b.tracks {
		h.tracks[id]++
		h.tracked[id]++
	}
	for _, id := range b.untracks {
		h.untracks[id]++
		if h.tracked[id] == 0 {
			h.unbalanced++
			h.log.Warn("untrack without track", "id", id)
			continue
		}
		h.tracked[id]--
		if h.tracked[id] == 0 {
			delete(h.tracked, id)
		}
	}
}

// describe renders obj for a load of props. A nil props list describes
// every scalar property.
func describe(obj object, props []string) (*remote.Object, error) {
	out := &remote.Object{ID: obj.id(), Class: obj.class(), Props: make(map[string]any)}
	if props == nil {
		for k, v := range obj.scalars() {
			out.Props[k] = v
		}
		return out, nil
	}
	scalars, links, colls := obj.scalars(), obj.links(), obj.collections()
	names, nested := remote.SplitProps(props)
	for _, name := range names {
		sub := nested[name]
		if v, ok := lookup(scalars, name); ok {
			if len(sub) > 0 {
				return nil, fmt.Errorf("%s.%s is not navigable", obj.class(), name)
			}
			out.Props[name] = v
			continue
		}
		if l, ok := lookup(links, name); ok {
			if out.Links == nil {
				out.Links = make(map[string]*remote.Object)
			}
			if l == nil {
				out.Links[name] = nil
				continue
			}
			d, err := describe(l, sub)
			if err != nil {
				return nil, err
			}
			out.Links[name] = d
			continue
		}
		if list, ok := lookup(colls, name); ok {
			if out.Items == nil {
				out.Items = make(map[string][]*remote.Object)
			}
			items := make([]*remote.Object, 0, len(list))
			for _, item := range list {
				d, err := describe(item, sub)
				if err != nil {
					return nil, err
				}
				items = append(items, d)
			}
			out.Items[name] = items
			continue
		}
		return nil, fmt.Errorf("%s has no property %q", obj.class(), name)
	}
	return out, nil
}

type opError struct {
	op   remote.Op
	code string
	msg  string
}

func (e *opError) Error() string { return e.code + ": " + e.msg }

func (e *opError) hostError() *remote.HostError {
	return &remote.HostError{
		Code:    e.code,
		Message: e.msg,
		DebugInfo: map[string]any{
			"seq":    e.op.Seq,
			"action": string(e.op.Action),
			"target": e.op.Target,
		},
	}
}

// Syncs returns the number of syncs served, failed ones included.
func (h *Host) Syncs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.syncs
}

// Ops returns the number of ops received.
func (h *Host) Ops() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ops
}

// ActivePage returns the id of the active page, empty before the first
// navigation.
func (h *Host) ActivePage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Activations returns every page id navigated to, in order.
func (h *Host) Activations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.activations...)
}

// Tracks returns how many track and untrack ops object id received.
func (h *Host) Tracks(id string) (tracks, untracks int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tracks[id], h.untracks[id]
}

// TrackTotals sums track and untrack ops over every object.
func (h *Host) TrackTotals() (tracks, untracks int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, n := range h.tracks {
		tracks += n
	}
	for _, n := range h.untracks {
		untracks += n
	}
	return tracks, untracks
}

// Outstanding returns the ids still tracked, sorted.
func (h *Host) Outstanding() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.tracked))
	for id := range h.tracked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Balanced reports whether every track has been matched by one untrack and
// no untrack arrived without a track.
func (h *Host) Balanced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tracked) == 0 && h.unbalanced == 0
}

// Unbalanced returns the number of untracks that had no matching track.
func (h *Host) Unbalanced() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unbalanced
}
