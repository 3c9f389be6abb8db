package diff

import "github.com/lumiera-go/diffkit/pkg/record"

// taggedLayer pairs a layer with whether it belongs to the attribute scope
// (bound via Change/MutateAttrib) or the child scope (bound via Attach).
// after(ATTRIBS) only drains attribute-scoped layers; after(END) drains all.
type taggedLayer struct {
	layer      TreeMutator
	isAttrib   bool
}

// CompositeMutator is the "onion" of binding layers from spec.md §4.2: verbs
// propagate down the stack until a layer claims them; an unclaimed verb is a
// no-op returning failure, which the driver converts into a conflict.
type CompositeMutator struct {
	layers   []taggedLayer
	sizeHint int
}

// SizeHint reports the builder's bound on the assembled binding's size — the
// allocation hint spec.md §4.2 says the driver can use to size scope-frame
// storage. In this Go rendition it is advisory telemetry only (see
// DESIGN.md's note on the in-place buffer design pattern).
func (c *CompositeMutator) SizeHint() int { return c.sizeHint }

func (c *CompositeMutator) Init() error {
	for _, tl := range c.layers {
		if err := tl.layer.Init(); err != nil {
			return err
		}
	}

	return nil
}

func (c *CompositeMutator) HasSrc() bool {
	for _, tl := range c.layers {
		if tl.layer.HasSrc() {
			return true
		}
	}

	return false
}

func (c *CompositeMutator) MatchSrc(spec *record.Node) bool {
	for _, tl := range c.layers {
		if tl.layer.MatchSrc(spec) {
			return true
		}
	}

	return false
}

func (c *CompositeMutator) AcceptSrc(spec *record.Node) bool {
	for _, tl := range c.layers {
		if tl.layer.AcceptSrc(spec) {
			return true
		}
	}

	return false
}

func (c *CompositeMutator) SkipSrc(spec *record.Node) bool {
	for _, tl := range c.layers {
		if tl.layer.SkipSrc(spec) {
			return true
		}
	}

	return false
}

func (c *CompositeMutator) FindSrc(spec *record.Node) bool {
	for _, tl := range c.layers {
		if tl.layer.FindSrc(spec) {
			return true
		}
	}

	return false
}

// AcceptUntil routes ATTRIBS to attribute-scoped layers only and END to
// every layer, per spec.md §4.1's description of the two markers.
func (c *CompositeMutator) AcceptUntil(marker Marker) bool {
	ok := true

	for _, tl := range c.layers {
		if marker == MarkerAttribs && !tl.isAttrib {
			continue
		}

		if !tl.layer.AcceptUntil(marker) {
			ok = false
		}
	}

	return ok
}

func (c *CompositeMutator) InjectNew(spec *record.Node) bool {
	for _, tl := range c.layers {
		if tl.layer.InjectNew(spec) {
			return true
		}
	}

	return false
}

func (c *CompositeMutator) AssignElm(spec *record.Node) (bool, error) {
	for _, tl := range c.layers {
		ok, err := tl.layer.AssignElm(spec)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

func (c *CompositeMutator) MutateChild(spec *record.Node, frame *ScopeFrame) bool {
	for _, tl := range c.layers {
		if tl.layer.MutateChild(spec, frame) {
			return true
		}
	}

	return false
}

func (c *CompositeMutator) CompleteScope() bool {
	ok := true

	for _, tl := range c.layers {
		if !tl.layer.CompleteScope() {
			ok = false
		}
	}

	return ok
}
