package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Load reads a notebook fixture from a .yaml, .yml or .json file.
func Load(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("notebook: read %s: %w", path, err)
	}
	nb, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("notebook: %s: %w", path, err)
	}
	return nb, nil
}

// Parse decodes a fixture. ext selects the format; anything other than
// ".json" is read as YAML.
func Parse(data []byte, ext string) (*Notebook, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("notebook: fixture is empty")
	}
	var nb Notebook
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &nb); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &nb); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	if err := nb.Normalize(); err != nil {
		return nil, err
	}
	return &nb, nil
}

// Normalize assigns ids to nodes that lack one and checks the notebook is
// usable: at least one section, unique ids, known node types and the
// payload each type needs.
func (nb *Notebook) Normalize() error {
	n := &normalizer{seen: make(map[string]string), counters: make(map[string]int)}
	if len(nb.Sections) == 0 {
		n.fail("notebook has no sections")
	}
	for _, s := range nb.Sections {
		n.id(&s.ID, "section")
		for _, p := range s.Pages {
			n.id(&p.ID, "page")
			for _, c := range p.Contents {
				n.content(c)
			}
		}
	}
	return n.errs.ErrorOrNil()
}

type normalizer struct {
	seen     map[string]string
	counters map[string]int
	errs     *multierror.Error
}

func (n *normalizer) fail(format string, args ...any) {
	n.errs = multierror.Append(n.errs, fmt.Errorf(format, args...))
}

func (n *normalizer) id(id *string, kind string) {
	if *id == "" {
		for {
			n.counters[kind]++
			candidate := fmt.Sprintf("%s-%d", kind, n.counters[kind])
			if _, taken := n.seen[candidate]; !taken {
				*id = candidate
				break
			}
		}
	}
	if prev, dup := n.seen[*id]; dup {
		n.fail("duplicate id %q (%s and %s)", *id, prev, kind)
		return
	}
	n.seen[*id] = kind
}

func (n *normalizer) content(c *Content) {
	n.id(&c.ID, "content")
	switch c.Type {
	case "Outline":
		if c.Outline == nil {
			n.fail("content %s: type Outline without outline", c.ID)
			return
		}
		n.id(&c.Outline.ID, "outline")
		for _, p := range c.Outline.Paragraphs {
			n.paragraph(p)
		}
	case "Image":
		if c.Image == nil {
			n.fail("content %s: type Image without image", c.ID)
			return
		}
		n.id(&c.Image.ID, "image")
	case "Ink":
		for _, w := range c.InkWords {
			n.id(&w.ID, "inkword")
		}
	case "":
		n.fail("content %s: missing type", c.ID)
	}
}

func (n *normalizer) paragraph(p *Paragraph) {
	n.id(&p.ID, "paragraph")
	switch p.Type {
	case "RichText":
		if p.RichText == nil {
			n.fail("paragraph %s: type RichText without richText", p.ID)
			return
		}
		n.id(&p.RichText.ID, "richtext")
	case "Image":
		if p.Image == nil {
			n.fail("paragraph %s: type Image without image", p.ID)
			return
		}
		n.id(&p.Image.ID, "image")
	case "Ink":
		for _, w := range p.InkWords {
			n.id(&w.ID, "inkword")
		}
	case "Table":
		if p.Table == nil {
			n.fail("paragraph %s: type Table without table", p.ID)
			return
		}
		n.id(&p.Table.ID, "table")
		for _, r := range p.Table.Rows {
			n.id(&r.ID, "row")
			for _, c := range r.Cells {
				n.id(&c.ID, "cell")
				for _, cp := range c.Paragraphs {
					n.paragraph(cp)
				}
			}
		}
	case "":
		n.fail("paragraph %s: missing type", p.ID)
	}
}
