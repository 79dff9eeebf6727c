package show

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"qlux/lib/curve"
	"qlux/lib/patch"
)

// Document is the unit of persistence: a patch, the looks it plays and the
// timeline that places them.
type Document struct {
	Name     string      `json:"name,omitempty" yaml:"name,omitempty"`
	Patch    patch.Patch `json:"patch" yaml:"patch"`
	Catalog  Catalog     `json:"catalog" yaml:"catalog"`
	Timeline Timeline    `json:"timeline" yaml:"timeline"`
}

func (d *Document) Validate() error {
	if err := d.Patch.Validate(); err != nil {
		return err
	}
	if err := d.Catalog.Validate(); err != nil {
		return err
	}
	return d.Timeline.Validate()
}

// Unresolved returns the ids of cues whose source is not in the catalog.
func (d *Document) Unresolved() []string {
	var out []string
	for _, c := range d.Timeline.Cues {
		if !d.Catalog.Has(c.Source) {
			out = append(out, c.ID)
		}
	}
	return out
}

func Read(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("show: decode: %w", err)
	}
	for _, c := range doc.Timeline.Cues {
		if len(c.Curve.Points) == 0 {
			c.Curve = curve.Flat()
		}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func Write(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("show: encode: %w", err)
	}
	return enc.Close()
}

func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Save(doc *Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
