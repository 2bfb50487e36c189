package remote

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Handle is a reference to a node living in the host. Its properties are
// only readable after the batch that requested them has committed.
//
// A handle stays valid while it is tracked, while it belongs to the most
// recent commit, or while the handle that produced it (its parent) is
// valid. Handles are not safe for concurrent use.
type Handle struct {
	c      *Client
	parent *Handle

	id    string
	ref   string // placeholder produced by an op in the current batch
	nav   string // navigation property on parent, for handles made by Client.Nav
	class string

	producer *pendingOp
	navs     map[string]*Handle

	values   map[string]any
	links    map[string]*Handle
	items    map[string][]*Handle
	resolved map[string]bool
	pending  map[string]bool

	gen    uint64 // commit generation that last materialized the handle
	tracks int
	failed bool // the op that would have materialized it failed
}

func newHandle(c *Client, parent *Handle) *Handle {
	return &Handle{
		c:        c,
		parent:   parent,
		values:   make(map[string]any),
		links:    make(map[string]*Handle),
		items:    make(map[string][]*Handle),
		resolved: make(map[string]bool),
		pending:  make(map[string]bool),
		navs:     make(map[string]*Handle),
	}
}

// ID returns the host-assigned id, empty until the handle is materialized.
func (h *Handle) ID() string { return h.id }

// Class returns the host object class ("Page", "Paragraph", ...).
func (h *Handle) Class() string { return h.class }

// Target is the address ops use for this handle.
func (h *Handle) Target() string {
	if h.id != "" {
		return h.id
	}
	if h.nav != "" && h.parent != nil {
		return h.parent.Target() + "/" + h.nav
	}
	return h.ref
}

// Tracked reports whether the handle currently has an outstanding track.
func (h *Handle) Tracked() bool { return h.tracks > 0 }

// Live reports whether the handle may still be used.
func (h *Handle) Live() bool {
	for x := h; x != nil; x = x.parent {
		if x.failed {
			return false
		}
		if x.tracks > 0 {
			return true
		}
		if x.gen != 0 && x.gen == x.c.gen {
			return true
		}
	}
	return false
}

// materialized reports whether a commit has named the node.
func (h *Handle) materialized() bool { return h.gen != 0 }

func (h *Handle) readable(op, prop string) error {
	if h.c.closed {
		return violation(op, h, prop, "client is closed")
	}
	// A queued load is reported as such even on a handle no commit has
	// materialized yet.
	if h.pending[prop] {
		return violation(op, h, prop, "property read before its batch committed")
	}
	if !h.Live() {
		return violation(op, h, prop, "handle used after invalidation")
	}
	if !h.resolved[prop] {
		return violation(op, h, prop, "property was never requested")
	}
	return nil
}

func (h *Handle) value(op, prop string) (any, error) {
	key := strings.ToLower(prop)
	if err := h.readable(op, key); err != nil {
		return nil, err
	}
	return h.values[key], nil
}

// String reads a string property. A requested property the host left unset
// reads as "".
func (h *Handle) String(prop string) (string, error) {
	v, err := h.value("read string", prop)
	if err != nil || v == nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return fmt.Sprint(s), nil
	}
}

// Float reads a numeric property.
func (h *Handle) Float(prop string) (float64, error) {
	v, err := h.value("read number", prop)
	if err != nil || v == nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, violation("read number", h, prop, fmt.Sprintf("value has type %T", v))
	}
}

// Int reads a numeric property truncated to int.
func (h *Handle) Int(prop string) (int, error) {
	f, err := h.Float(prop)
	return int(f), err
}

// Bool reads a boolean property.
func (h *Handle) Bool(prop string) (bool, error) {
	v, err := h.value("read bool", prop)
	if err != nil || v == nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, violation("read bool", h, prop, fmt.Sprintf("value has type %T", v))
	}
	return b, nil
}

// Strings reads a list-of-strings property.
func (h *Handle) Strings(prop string) ([]string, error) {
	v, err := h.value("read strings", prop)
	if err != nil || v == nil {
		return nil, err
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, violation("read strings", h, prop, fmt.Sprintf("element has type %T", item))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, violation("read strings", h, prop, fmt.Sprintf("value has type %T", v))
	}
}

// Link returns the node a navigation property points at, or nil when the
// host reported no such node (a Paragraph of type Ink has no image).
func (h *Handle) Link(prop string) (*Handle, error) {
	key := strings.ToLower(prop)
	if err := h.readable("read link", key); err != nil {
		return nil, err
	}
	return h.links[key], nil
}

// Items returns the members of a collection property in document order.
func (h *Handle) Items(prop string) ([]*Handle, error) {
	key := strings.ToLower(prop)
	if err := h.readable("read collection", key); err != nil {
		return nil, err
	}
	return h.items[key], nil
}
