package diff

import "github.com/lumiera-go/diffkit/pkg/record"

// CollectionSpec parameterises the homogeneous-collection binding from
// spec.md §4.2: an ordered container of comparable elements, bound by a
// matcher, a constructor, an assigner and an optional recursive
// child-mutator factory. A size-1 "collection" doubles as the
// attribute-field and object-valued-attribute bindings (see FieldLayer).
type CollectionSpec[T any] struct {
	// Get reads the container's current contents.
	Get func() []T
	// Set commits the new contents at scope completion.
	Set func([]T)
	// Identity extracts an element's identity, used for the default Match.
	Identity func(T) record.Identity
	// Match decides whether spec addresses elem. Defaults to identity equality.
	Match func(spec *record.Node, elem T) bool
	// Construct builds a new element from an ins() spec.
	Construct func(spec *record.Node) (T, error)
	// AssignPayload applies spec's payload onto an existing element, for set().
	AssignPayload func(elem *T, spec *record.Node) error
	// ChildMutator builds a nested mutator for the addressed element, for mut().
	// Nil if this collection's elements are never mut()-scoped.
	ChildMutator func(elem *T, frame *ScopeFrame) bool
	// Applicable is the layer's selector predicate (builder's
	// .isApplicableIf(selector)); nil means "always applicable", i.e. this
	// layer claims any verb none of the preceding layers claimed.
	Applicable func(spec *record.Node) bool
}

// collectionLayer is the concrete TreeMutator for one CollectionSpec.
// Source-buffer holes left by FindSrc are tracked by identity and cleaned
// up by a matching SkipSrc, exactly as spec.md §4.2 describes; any holes
// still open at CompleteScope are silently released (commit happens
// regardless — an unreleased hole is not itself a structure error).
type collectionLayer[T any] struct {
	spec  CollectionSpec[T]
	src   []T
	holes []record.Identity
	out   []T
}

// NewCollectionLayer builds the homogeneous-collection binding layer for spec.
func NewCollectionLayer[T any](spec CollectionSpec[T]) TreeMutator {
	return &collectionLayer[T]{spec: spec}
}

func (c *collectionLayer[T]) claims(spec *record.Node) bool {
	if c.spec.Applicable == nil {
		return true
	}

	return c.spec.Applicable(spec)
}

func (c *collectionLayer[T]) matchFn(spec *record.Node, elem T) bool {
	if c.spec.Match != nil {
		return c.spec.Match(spec, elem)
	}

	return c.spec.Identity(elem).Equal(spec.Identity())
}

func (c *collectionLayer[T]) Init() error {
	c.src = append([]T(nil), c.spec.Get()...)
	c.holes = nil
	c.out = nil

	return nil
}

func (c *collectionLayer[T]) HasSrc() bool { return len(c.src) > 0 }

func (c *collectionLayer[T]) MatchSrc(spec *record.Node) bool {
	if !c.claims(spec) || len(c.src) == 0 {
		return false
	}

	return c.matchFn(spec, c.src[0])
}

func (c *collectionLayer[T]) AcceptSrc(spec *record.Node) bool {
	if !c.MatchSrc(spec) {
		return false
	}

	c.out = append(c.out, c.src[0])
	c.src = c.src[1:]

	return true
}

// SkipSrc first tries to clean up a find-created hole addressed by spec's
// identity (the common case for the skip-after-find idiom), then falls
// back to discarding the current source element if it matches.
func (c *collectionLayer[T]) SkipSrc(spec *record.Node) bool {
	if !c.claims(spec) {
		return false
	}

	for i, h := range c.holes {
		if h.Equal(spec.Identity()) {
			c.holes = append(c.holes[:i], c.holes[i+1:]...)

			return true
		}
	}

	if len(c.src) == 0 || !c.matchFn(spec, c.src[0]) {
		return false
	}

	c.src = c.src[1:]

	return true
}

func (c *collectionLayer[T]) FindSrc(spec *record.Node) bool {
	if !c.claims(spec) {
		return false
	}

	for i, e := range c.src {
		if !c.matchFn(spec, e) {
			continue
		}

		c.out = append(c.out, e)
		c.holes = append(c.holes, c.spec.Identity(e))
		c.src = append(append([]T{}, c.src[:i]...), c.src[i+1:]...)

		return true
	}

	return false
}

func (c *collectionLayer[T]) AcceptUntil(_ Marker) bool {
	c.out = append(c.out, c.src...)
	c.src = nil

	return true
}

func (c *collectionLayer[T]) InjectNew(spec *record.Node) bool {
	if !c.claims(spec) || c.spec.Construct == nil {
		return false
	}

	elem, err := c.spec.Construct(spec)
	if err != nil {
		return false
	}

	c.out = append(c.out, elem)

	return true
}

func (c *collectionLayer[T]) AssignElm(spec *record.Node) (bool, error) {
	if !c.claims(spec) || c.spec.AssignPayload == nil {
		return false, nil
	}

	for i := range c.out {
		if c.spec.Identity(c.out[i]).Equal(spec.Identity()) {
			if err := c.spec.AssignPayload(&c.out[i], spec); err != nil {
				return false, err
			}

			return true, nil
		}
	}

	for i := range c.src {
		if c.spec.Identity(c.src[i]).Equal(spec.Identity()) {
			if err := c.spec.AssignPayload(&c.src[i], spec); err != nil {
				return false, err
			}

			return true, nil
		}
	}

	return false, nil
}

func (c *collectionLayer[T]) MutateChild(spec *record.Node, frame *ScopeFrame) bool {
	if !c.claims(spec) || c.spec.ChildMutator == nil {
		return false
	}

	for i := range c.out {
		if c.spec.Identity(c.out[i]).Equal(spec.Identity()) {
			frame.ScopeID = spec.Identity()

			return c.spec.ChildMutator(&c.out[i], frame)
		}
	}

	for i := range c.src {
		if c.spec.Identity(c.src[i]).Equal(spec.Identity()) {
			frame.ScopeID = spec.Identity()

			return c.spec.ChildMutator(&c.src[i], frame)
		}
	}

	return false
}

func (c *collectionLayer[T]) CompleteScope() bool {
	ok := len(c.src) == 0
	c.holes = nil
	c.spec.Set(c.out)

	return ok
}

// FieldLayer binds a single scalar attribute to a getter/setter pair — the
// attribute-field binding from spec.md §4.2 — expressed as a size-0-or-1
// CollectionSpec so it shares the collectionLayer's hole/commit semantics
// with the general container binding.
func FieldLayer(name string, get func() *record.Node, set func(*record.Node) error) TreeMutator {
	return NewCollectionLayer(CollectionSpec[*record.Node]{
		Applicable: func(spec *record.Node) bool { return spec.Identity().Symbol == name },
		Get: func() []*record.Node {
			if n := get(); n != nil {
				return []*record.Node{n}
			}

			return nil
		},
		Set: func(nodes []*record.Node) {
			if len(nodes) > 0 {
				_ = set(nodes[0])
			}
		},
		Identity:  func(n *record.Node) record.Identity { return n.Identity() },
		Construct: func(spec *record.Node) (*record.Node, error) { return spec.Clone(), nil },
		AssignPayload: func(elem **record.Node, spec *record.Node) error {
			if err := (*elem).AssignPayload(spec.Payload()); err != nil {
				return err
			}

			return set(*elem)
		},
	})
}

// ObjectAttribLayer binds a named attribute whose payload is itself a
// nested record, wiring a recursive mutator factory for mut() — the
// object-valued-attribute binding from spec.md §4.2.
func ObjectAttribLayer(
	name string,
	get func() *record.Node,
	set func(*record.Node) error,
	childMutator func(elem **record.Node, frame *ScopeFrame) bool,
) TreeMutator {
	return NewCollectionLayer(CollectionSpec[*record.Node]{
		Applicable: func(spec *record.Node) bool { return spec.Identity().Symbol == name },
		Get: func() []*record.Node {
			if n := get(); n != nil {
				return []*record.Node{n}
			}

			return nil
		},
		Set: func(nodes []*record.Node) {
			if len(nodes) > 0 {
				_ = set(nodes[0])
			}
		},
		Identity:      func(n *record.Node) record.Identity { return n.Identity() },
		Construct:     func(spec *record.Node) (*record.Node, error) { return spec.Clone(), nil },
		AssignPayload: func(elem **record.Node, spec *record.Node) error { return (*elem).AssignPayload(spec.Payload()) },
		ChildMutator:  childMutator,
	})
}
