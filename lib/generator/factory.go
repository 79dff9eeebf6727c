package generator

import (
	"fmt"

	"qlux/lib/dmx"
	"qlux/lib/patch"
	"qlux/lib/show"
)

// Factory builds generators for cue sources from a catalog and patch.
type Factory struct {
	Catalog *show.Catalog
	Patch   *patch.Patch
	Class   *patch.Classification
}

func (f *Factory) New(src show.Source) (Generator, error) {
	if f.Catalog == nil {
		return nil, fmt.Errorf("generator: %s %q: no catalog: %w", src.Kind, src.ID, dmx.ErrNotFound)
	}
	p := f.Patch
	if p == nil {
		p = &patch.Patch{}
	}
	class := f.Class
	if class == nil {
		class = patch.Classify(*p)
	}

	switch src.Kind {
	case show.SourceScene:
		s, err := f.Catalog.Scene(src.ID)
		if err != nil {
			return nil, err
		}
		return NewScene(s, p, class), nil
	case show.SourceChaser:
		c, err := f.Catalog.Chaser(src.ID)
		if err != nil {
			return nil, err
		}
		return NewChaser(c, p, class)
	case show.SourceEffect:
		e, err := f.Catalog.Effect(src.ID)
		if err != nil {
			return nil, err
		}
		return NewEffect(e, p, class), nil
	}
	return nil, fmt.Errorf("generator: unknown source kind %q: %w", src.Kind, dmx.ErrNotFound)
}
