package remote

import (
	"context"
	"strings"
)

// Action names an operation queued in a batch.
type Action string

const (
	ActionLoad           Action = "load"
	ActionActiveSection  Action = "activeSection"
	ActionActivePage     Action = "activePage"
	ActionNavigateToPage Action = "navigateToPage"
	ActionGetHTML        Action = "getHtml"
	ActionGetBase64Image Action = "getBase64Image"
	ActionTrack          Action = "track"
	ActionUntrack        Action = "untrack"
)

// Op is one queued operation on the wire.
//
// Target is either a host object id, a placeholder ref ("$3") produced by an
// earlier op in the same batch, or a navigation path rooted at one of those
// ("$3/outline", "pc-7/richText").
type Op struct {
	Seq    int      `json:"seq"`
	Action Action   `json:"action"`
	Target string   `json:"target,omitempty"`
	Props  []string `json:"props,omitempty"`
	Ref    string   `json:"ref,omitempty"`
}

// Object is the host's description of one node after a load.
type Object struct {
	ID    string               `json:"id"`
	Class string               `json:"class"`
	Props map[string]any       `json:"props,omitempty"`
	Links map[string]*Object   `json:"links,omitempty"`
	Items map[string][]*Object `json:"items,omitempty"`
}

// OpResult answers the op with the same Seq. Ops without a payload
// (navigation, track, untrack) may be omitted by the host.
type OpResult struct {
	Seq    int     `json:"seq"`
	Object *Object `json:"object,omitempty"`
	Value  *string `json:"value,omitempty"`
}

// HostError is the diagnostic detail a host attaches to a failed batch.
type HostError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	DebugInfo map[string]any `json:"debug_info,omitempty"`
}

// SyncRequest is the body of one round trip.
type SyncRequest struct {
	Session string `json:"session,omitempty"`
	Ops     []Op   `json:"ops"`
}

// SyncResponse is the host's answer to a SyncRequest. A non-nil Error means
// the whole batch failed and no result applies.
type SyncResponse struct {
	Results []OpResult `json:"results,omitempty"`
	Error   *HostError `json:"error,omitempty"`
}

// Host is the document-object protocol endpoint a Client commits to.
type Host interface {
	Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error)
}

// ParseProps flattens comma separated property lists ("id,title") into a
// de-duplicated, lower-cased list preserving first-seen order.
func ParseProps(props ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range props {
		for _, name := range strings.Split(p, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// SplitProps separates a property list into the first path segment of each
// entry and, per segment, the remaining sub-paths. "paragraphs/type" yields
// name "paragraphs" with nested["paragraphs"] = ["type"]. A bare name drops
// its nested entry: loading a link or collection by bare name means "all
// scalar properties of the linked node(s)".
func SplitProps(props []string) (names []string, nested map[string][]string) {
	nested = make(map[string][]string)
	bare := make(map[string]bool)
	seen := make(map[string]bool)
	for _, p := range props {
		head, rest, found := strings.Cut(p, "/")
		if !seen[head] {
			seen[head] = true
			names = append(names, head)
		}
		if found {
			nested[head] = append(nested[head], rest)
		} else {
			bare[head] = true
		}
	}
	for name := range bare {
		delete(nested, name)
	}
	return names, nested
}
