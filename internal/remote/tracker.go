package remote

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Tracker extends handle lifetimes across commits. Every Track must be
// paired with exactly one call of the release it returns; defer it right
// after tracking so it runs on every exit path.
type Tracker struct {
	c   *Client
	log *slog.Logger

	mu      sync.Mutex
	tracked map[*Handle]int
}

func NewTracker(c *Client, log *slog.Logger) *Tracker {
	if log == nil {
		log = c.log
	}
	return &Tracker{
		c:       c,
		log:     log,
		tracked: make(map[*Handle]int),
	}
}

// Track marks h as kept alive and returns its release. Calling release more
// than once is a no-op. A failed release is logged, never returned: it must
// not mask whatever error is unwinding the caller.
func (t *Tracker) Track(h *Handle) (release func()) {
	op, ok := t.c.track(h)
	if !ok {
		return func() {}
	}
	t.mu.Lock()
	t.tracked[h]++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := t.release(h, op); err != nil {
				t.log.Warn("release tracked handle", "handle", h.Target(), "error", err)
			}
		})
	}
}

func (t *Tracker) release(h *Handle, op *pendingOp) error {
	t.mu.Lock()
	n := t.tracked[h]
	if n == 0 {
		t.mu.Unlock()
		return violation("untrack", h, "", "handle is not tracked")
	}
	if n == 1 {
		delete(t.tracked, h)
	} else {
		t.tracked[h] = n - 1
	}
	t.mu.Unlock()
	return t.c.untrack(h, op)
}

// Outstanding returns the number of handles currently tracked.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracked)
}

// Close reports every handle still tracked.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[string]int, len(t.tracked))
	for h, n := range t.tracked {
		counts[h.Target()] += n
	}
	targets := make([]string, 0, len(counts))
	for target := range counts {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	var result *multierror.Error
	for _, target := range targets {
		result = multierror.Append(result, fmt.Errorf("handle %s tracked %d time(s) without release", target, counts[target]))
	}
	return result.ErrorOrNil()
}

func (c *Client) track(h *Handle) (*pendingOp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.addressableLocked("track", h) {
		return nil, false
	}
	h.tracks++
	return c.enqueueLocked(ActionTrack, h), true
}

// untrack drops the lifetime extension. A track still sitting in the queue
// is cancelled outright; one the host has seen gets a matching untrack.
func (c *Client) untrack(h *Handle, trackOp *pendingOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.tracks > 0 {
		h.tracks--
	}
	switch trackOp.state {
	case opQueued:
		c.cancelLocked(trackOp)
	case opDelivered:
		if c.closed {
			return violation("untrack", h, "", "client is closed")
		}
		c.enqueueLocked(ActionUntrack, h)
	}
	return nil
}
