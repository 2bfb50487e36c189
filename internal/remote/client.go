package remote

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

type opState int

const (
	opQueued opState = iota
	opDelivered
	opFailed
	opCancelled
)

type pendingOp struct {
	Op
	handle   *Handle // target, nil for activeSection/activePage
	produces *Handle // placeholder materialized by this op
	result   *Result
	state    opState
}

func (op *pendingOp) lifecycle() bool {
	return op.Action == ActionTrack || op.Action == ActionUntrack
}

// Result is a derived value (rendered HTML, encoded image) computed by the
// host during a commit.
type Result struct {
	op    *pendingOp
	value string
}

// Value returns the computed value once its batch has committed.
func (r *Result) Value() (string, error) {
	switch r.op.state {
	case opDelivered:
		return r.value, nil
	case opQueued:
		return "", violation("read "+string(r.op.Action), r.op.handle, "", "result read before its batch committed")
	default:
		return "", violation("read "+string(r.op.Action), r.op.handle, "", "batch did not commit")
	}
}

// Observer is told about every round trip.
type Observer interface {
	ObserveCommit(ops int, elapsed time.Duration, err error)
}

// Client accumulates requests against handles and resolves them in one
// round trip per Commit. Only one commit may be outstanding at a time.
//
// Queueing methods never return errors: the first misuse is remembered and
// reported by the next Commit, which then sends nothing.
type Client struct {
	host     Host
	session  string
	log      *slog.Logger
	observer Observer

	mu         sync.Mutex
	committing bool
	closed     bool
	queue      []*pendingOp
	loads      map[*Handle]*pendingOp
	nextRef    int
	gen        uint64
	commits    int
	err        error
}

func NewClient(host Host, session string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		host:    host,
		session: session,
		log:     log,
		loads:   make(map[*Handle]*pendingOp),
	}
}

// SetObserver installs o to receive commit timings.
func (c *Client) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// Session returns the host session id the client commits to.
func (c *Client) Session() string { return c.session }

// Commits returns the number of round trips performed so far.
func (c *Client) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

// Pending returns the number of queued ops.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close invalidates every handle issued by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.queue = nil
}

// ActiveSection returns a placeholder for the host's active section, usable
// in the current batch.
func (c *Client) ActiveSection() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.placeholderLocked(ActionActiveSection)
}

// ActivePage returns a placeholder for the host's active page, usable in the
// current batch. It names whatever page is active when the batch runs.
func (c *Client) ActivePage() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.placeholderLocked(ActionActivePage)
}

// Nav returns the node behind navigation property prop of h without a round
// trip. The returned handle is addressable in the current batch and
// materializes when a load on it commits.
func (c *Client) Nav(h *Handle, prop string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(prop)
	if !c.addressableLocked("navigate", h) {
		n := newHandle(c, h)
		n.nav = key
		n.failed = true
		return n
	}
	if l := h.links[key]; l != nil && h.resolved[key] {
		return l
	}
	if n := h.navs[key]; n != nil && !n.failed {
		return n
	}
	n := newHandle(c, h)
	n.nav = key
	h.navs[key] = n
	return n
}

// Load queues props for resolution on h. Props may be comma separated and
// may be paths into links or collections ("paragraphs/type"). Repeated
// requests before a commit merge into a single load.
func (c *Client) Load(h *Handle, props ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.addressableLocked("load", h) {
		return
	}
	names := ParseProps(props...)
	op, ok := c.loads[h]
	if !ok {
		op = c.enqueueLocked(ActionLoad, h)
		c.loads[h] = op
	}
	for _, p := range names {
		if !slices.Contains(op.Props, p) {
			op.Props = append(op.Props, p)
		}
		head, _, _ := strings.Cut(p, "/")
		h.pending[head] = true
	}
}

// NavigateToPage queues activation of page. The host has a single active
// page; the activation replaces whatever page was active.
func (c *Client) NavigateToPage(page *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.addressableLocked("navigateToPage", page) {
		return
	}
	c.enqueueLocked(ActionNavigateToPage, page)
}

// HTML queues rendering of a rich text node to markup.
func (c *Client) HTML(h *Handle) *Result {
	return c.derive(ActionGetHTML, h)
}

// Base64Image queues encoding of an image node's bytes.
func (c *Client) Base64Image(h *Handle) *Result {
	return c.derive(ActionGetBase64Image, h)
}

func (c *Client) derive(a Action, h *Handle) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.addressableLocked(string(a), h) {
		return &Result{op: &pendingOp{Op: Op{Action: a}, handle: h, state: opFailed}}
	}
	op := c.enqueueLocked(a, h)
	op.result = &Result{op: op}
	return op.result
}

// Commit sends every queued op in one round trip and applies the results.
// Either all of them become readable or none do. An empty queue commits
// without contacting the host.
func (c *Client) Commit(ctx context.Context) error {
	c.mu.Lock()
	if c.committing {
		c.mu.Unlock()
		return violation("commit", nil, "", "another commit is outstanding")
	}
	if c.closed {
		c.mu.Unlock()
		return violation("commit", nil, "", "client is closed")
	}
	if err := c.err; err != nil {
		c.err = nil
		c.discardRequestsLocked()
		c.mu.Unlock()
		return err
	}
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return nil
	}

	batch := c.queue
	c.queue = nil
	c.loads = make(map[*Handle]*pendingOp)
	c.committing = true

	req := &SyncRequest{Session: c.session, Ops: make([]Op, len(batch))}
	for i, op := range batch {
		op.Seq = i + 1
		if op.handle != nil {
			op.Target = op.handle.Target()
		}
		req.Ops[i] = op.Op
	}
	observer := c.observer
	c.mu.Unlock()

	start := time.Now()
	resp, err := c.host.Sync(ctx, req)
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.committing = false
	c.commits++

	if err != nil {
		err = &HostCommunicationError{Ops: len(batch), Message: err.Error(), Err: err}
	} else {
		err = c.applyLocked(batch, resp)
	}
	if observer != nil {
		observer.ObserveCommit(len(batch), elapsed, err)
	}
	if err != nil {
		c.failLocked(batch)
		c.log.Debug("commit failed", "session", c.session, "ops", len(batch), "error", err)
		return err
	}
	c.log.Debug("commit", "session", c.session, "ops", len(batch), "duration_ms", elapsed.Milliseconds())
	return nil
}

// Flush drops queued requests, forgets a pending misuse and commits only the
// queued track/untrack ops, so releases made during a failed pass still
// reach the host.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.err = nil
	c.discardRequestsLocked()
	c.mu.Unlock()
	return c.Commit(ctx)
}

func (c *Client) placeholderLocked(a Action) *Handle {
	c.nextRef++
	h := newHandle(c, nil)
	h.ref = fmt.Sprintf("$%d", c.nextRef)
	if c.closed {
		h.failed = true
		c.setErrLocked(violation(string(a), h, "", "client is closed"))
		return h
	}
	op := c.enqueueLocked(a, nil)
	op.Ref = h.ref
	op.produces = h
	h.producer = op
	return h
}

func (c *Client) enqueueLocked(a Action, h *Handle) *pendingOp {
	op := &pendingOp{Op: Op{Action: a}, handle: h}
	c.queue = append(c.queue, op)
	return op
}

func (c *Client) setErrLocked(err error) {
	if c.err == nil {
		c.err = err
	}
}

// addressableLocked reports whether ops may target h, recording a violation
// when they may not.
func (c *Client) addressableLocked(op string, h *Handle) bool {
	var reason string
	switch {
	case h == nil:
		reason = "nil handle"
	case c.closed:
		reason = "client is closed"
	case h.c != c:
		reason = "handle belongs to another client"
	case !c.reachable(h):
		reason = "handle used after invalidation"
	}
	if reason == "" {
		return true
	}
	c.setErrLocked(violation(op, h, "", reason))
	return false
}

func (c *Client) reachable(h *Handle) bool {
	switch {
	case h.failed:
		return false
	case h.materialized():
		return h.Live()
	case h.nav != "":
		return h.tracks > 0 || c.reachable(h.parent)
	case h.producer != nil:
		return h.producer.state == opQueued
	}
	return false
}

func (c *Client) discardRequestsLocked() {
	kept := c.queue[:0]
	for _, op := range c.queue {
		if op.lifecycle() {
			kept = append(kept, op)
			continue
		}
		c.abandonLocked(op, opCancelled)
	}
	c.queue = kept
	c.loads = make(map[*Handle]*pendingOp)
}

func (c *Client) cancelLocked(target *pendingOp) {
	c.queue = slices.DeleteFunc(c.queue, func(op *pendingOp) bool { return op == target })
	target.state = opCancelled
}

// failLocked abandons a rejected batch. The host applied none of it, so
// untracks go back on the queue for the next commit or Flush.
func (c *Client) failLocked(batch []*pendingOp) {
	var requeue []*pendingOp
	for _, op := range batch {
		if op.Action == ActionUntrack {
			requeue = append(requeue, op)
			continue
		}
		c.abandonLocked(op, opFailed)
	}
	if len(requeue) > 0 && !c.closed {
		c.queue = append(requeue, c.queue...)
	}
}

func (c *Client) abandonLocked(op *pendingOp, state opState) {
	op.state = state
	if op.produces != nil {
		op.produces.failed = true
	}
	if op.Action == ActionLoad && op.handle != nil {
		for _, p := range op.Props {
			head, _, _ := strings.Cut(p, "/")
			delete(op.handle.pending, head)
		}
	}
}

func (c *Client) applyLocked(batch []*pendingOp, resp *SyncResponse) error {
	if resp == nil {
		return &HostCommunicationError{Ops: len(batch), Message: "empty response"}
	}
	if resp.Error != nil {
		return &HostCommunicationError{
			Code:      resp.Error.Code,
			Message:   resp.Error.Message,
			DebugInfo: resp.Error.DebugInfo,
			Ops:       len(batch),
		}
	}

	results := make(map[int]OpResult, len(resp.Results))
	for _, r := range resp.Results {
		results[r.Seq] = r
	}
	// Validate everything first so a malformed response applies nothing.
	for _, op := range batch {
		r, ok := results[op.Seq]
		switch op.Action {
		case ActionLoad, ActionActivePage, ActionActiveSection:
			if !ok || r.Object == nil {
				return &HostCommunicationError{Ops: len(batch), Message: fmt.Sprintf("no object for op %d (%s %s)", op.Seq, op.Action, op.Target)}
			}
		case ActionGetHTML, ActionGetBase64Image:
			if !ok || r.Value == nil {
				return &HostCommunicationError{Ops: len(batch), Message: fmt.Sprintf("no value for op %d (%s %s)", op.Seq, op.Action, op.Target)}
			}
		}
	}

	c.gen++
	for _, op := range batch {
		r := results[op.Seq]
		op.state = opDelivered
		switch op.Action {
		case ActionActivePage, ActionActiveSection:
			c.applyObject(op.produces, r.Object, []string{})
		case ActionLoad:
			c.applyObject(op.handle, r.Object, op.Props)
		case ActionGetHTML, ActionGetBase64Image:
			op.result.value = *r.Value
		}
	}
	return nil
}

// applyObject records obj on h. A nil props list means the host sent every
// scalar property it has; otherwise exactly props become readable, with
// absent values reading as zero.
func (c *Client) applyObject(h *Handle, obj *Object, props []string) {
	h.gen = c.gen
	if obj.ID != "" {
		h.id = obj.ID
	}
	if obj.Class != "" {
		h.class = obj.Class
	}
	scalars := lowerKeys(obj.Props)
	links := lowerKeys(obj.Links)
	items := lowerKeys(obj.Items)

	if props == nil {
		for k, v := range scalars {
			h.values[k] = v
			h.markResolved(k)
		}
		for k, l := range links {
			c.applyLink(h, k, l, nil)
		}
		for k, list := range items {
			c.applyItems(h, k, list, nil)
		}
		return
	}

	names, nested := SplitProps(props)
	for _, name := range names {
		sub := nested[name]
		if l, ok := links[name]; ok {
			c.applyLink(h, name, l, sub)
			continue
		}
		if list, ok := items[name]; ok {
			c.applyItems(h, name, list, sub)
			continue
		}
		if v, ok := scalars[name]; ok {
			h.values[name] = v
		} else {
			delete(h.values, name)
		}
		h.markResolved(name)
	}
}

func (c *Client) applyLink(h *Handle, name string, obj *Object, sub []string) {
	defer h.markResolved(name)
	if obj == nil {
		h.links[name] = nil
		return
	}
	child := h.links[name]
	if child == nil || child.id != obj.ID {
		child = nil
		if n := h.navs[name]; n != nil && !n.failed && (n.id == "" || n.id == obj.ID) {
			child = n
		} else {
			child = newHandle(c, h)
			child.nav = name
		}
	}
	c.applyObject(child, obj, sub)
	h.links[name] = child
}

func (c *Client) applyItems(h *Handle, name string, list []*Object, sub []string) {
	defer h.markResolved(name)
	prev := make(map[string]*Handle, len(h.items[name]))
	for _, child := range h.items[name] {
		prev[child.id] = child
	}
	children := make([]*Handle, 0, len(list))
	for _, obj := range list {
		if obj == nil {
			continue
		}
		child := prev[obj.ID]
		if child == nil || obj.ID == "" {
			child = newHandle(c, h)
		}
		c.applyObject(child, obj, sub)
		children = append(children, child)
	}
	h.items[name] = children
}

func (h *Handle) markResolved(name string) {
	h.resolved[name] = true
	delete(h.pending, name)
}

func lowerKeys[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
