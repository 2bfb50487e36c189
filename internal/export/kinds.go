package export

import (
	"fmt"
	"strings"
)

// ContentKind discriminates page-level content nodes.
type ContentKind int

const (
	ContentOutline ContentKind = iota + 1
	ContentImage
	ContentInk
	ContentOther
)

var contentKinds = map[ContentKind]string{
	ContentOutline: "Outline",
	ContentImage:   "Image",
	ContentInk:     "Ink",
	ContentOther:   "Other",
}

func (k ContentKind) String() string {
	if s, ok := contentKinds[k]; ok {
		return s
	}
	return fmt.Sprintf("ContentKind(%d)", int(k))
}

// ParseContentKind maps the host's content type string to its kind.
func ParseContentKind(s string) (ContentKind, error) {
	for k, name := range contentKinds {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, &UnhandledKindError{Node: "content", Kind: s}
}

// ParagraphKind discriminates paragraphs inside outlines and table cells.
type ParagraphKind int

const (
	ParagraphRichText ParagraphKind = iota + 1
	ParagraphImage
	ParagraphInk
	ParagraphTable
	ParagraphOther
)

var paragraphKinds = map[ParagraphKind]string{
	ParagraphRichText: "RichText",
	ParagraphImage:    "Image",
	ParagraphInk:      "Ink",
	ParagraphTable:    "Table",
	ParagraphOther:    "Other",
}

func (k ParagraphKind) String() string {
	if s, ok := paragraphKinds[k]; ok {
		return s
	}
	return fmt.Sprintf("ParagraphKind(%d)", int(k))
}

// ParseParagraphKind maps the host's paragraph type string to its kind.
func ParseParagraphKind(s string) (ParagraphKind, error) {
	for k, name := range paragraphKinds {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, &UnhandledKindError{Node: "paragraph", Kind: s}
}

// UnhandledKindError reports a node whose kind has no handler. The walker
// logs it and skips the node; it never aborts a pass.
type UnhandledKindError struct {
	Node   string
	NodeID string
	Kind   string
}

func (e *UnhandledKindError) Error() string {
	msg := fmt.Sprintf("unhandled %s kind %q", e.Node, e.Kind)
	if e.NodeID != "" {
		msg += " (" + e.NodeID + ")"
	}
	return msg
}
