package diff

import "github.com/lumiera-go/diffkit/pkg/record"

// Builder assembles a CompositeMutator declaratively, layer by layer, per
// the configuration surface in spec.md §6. Each call appends one layer;
// layers are tried in the order they were added, matching the "propagate
// down the stack" contract.
type Builder struct {
	layers  []taggedLayer
	scopeID record.Identity
}

// NewBuilder starts a binding for the scope addressed by scopeID.
func NewBuilder(scopeID record.Identity) *Builder {
	return &Builder{scopeID: scopeID}
}

// Change binds a named attribute to a setter/getter pair — builder option
// `change(name, setter)`.
func (b *Builder) Change(name string, get func() *record.Node, set func(*record.Node) error) *Builder {
	b.layers = append(b.layers, taggedLayer{layer: FieldLayer(name, get, set), isAttrib: true})

	return b
}

// MutateAttrib binds a named attribute to a recursive mutator factory —
// builder option `mutateAttrib(name, factory)`.
func (b *Builder) MutateAttrib(
	name string,
	get func() *record.Node,
	set func(*record.Node) error,
	childMutator func(elem **record.Node, frame *ScopeFrame) bool,
) *Builder {
	b.layers = append(b.layers, taggedLayer{
		layer:    ObjectAttribLayer(name, get, set, childMutator),
		isAttrib: true,
	})

	return b
}

// Attach binds an ordered container via the full collection spec — builder
// option `attach(collection, .matchElement(...), .constructFrom(...),
// .assignElement(...), .buildChildMutator(...), .isApplicableIf(...))`.
// asAttrib should be false for ordinary child collections; true only for a
// collection of named attributes (e.g. the generic-record binding's
// attribute side).
func Attach[T any](b *Builder, spec CollectionSpec[T], asAttrib bool) *Builder {
	b.layers = append(b.layers, taggedLayer{layer: NewCollectionLayer(spec), isAttrib: asAttrib})

	return b
}

// Use appends an already-constructed layer directly — the escape hatch for
// `attach(record)` (the pre-packaged generic-record binding) and for any
// caller-assembled layer.
func (b *Builder) Use(layer TreeMutator, asAttrib bool) *Builder {
	b.layers = append(b.layers, taggedLayer{layer: layer, isAttrib: asAttrib})

	return b
}

// OnSeqChange wraps everything built so far in a structural-change listener
// — builder option `onSeqChange(listener)`.
func (b *Builder) OnSeqChange(listener SeqChangeListener) *Builder {
	wrapped := b.buildComposite()
	b.layers = []taggedLayer{{layer: NewChangeListenerLayer(wrapped, b.scopeID, listener), isAttrib: false}}

	return b
}

// IgnoreAllChanges appends the terminal ignore-all sink — builder option
// `ignoreAllChanges()`. Nothing after this call can ever be reached.
func (b *Builder) IgnoreAllChanges() *Builder {
	b.layers = append(b.layers, taggedLayer{layer: NewIgnoreAllLayer(), isAttrib: false})

	return b
}

func (b *Builder) buildComposite() *CompositeMutator {
	return &CompositeMutator{layers: append([]taggedLayer(nil), b.layers...), sizeHint: len(b.layers)}
}

// Build finalises the binding, returning the assembled CompositeMutator and
// its size hint.
func (b *Builder) Build() *CompositeMutator {
	return b.buildComposite()
}
