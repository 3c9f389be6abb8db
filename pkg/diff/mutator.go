package diff

import "github.com/lumiera-go/diffkit/pkg/record"

// TreeMutator is the polymorphic sink the application driver drives: the
// set of mutation primitives a concrete binding must expose, per spec.md
// §4.2. A binding is assembled as a stack of layers; each layer implements
// this same contract and falls through to the next layer for verbs it does
// not claim.
type TreeMutator interface {
	// Init snapshots the scope's pre-existing contents into a source buffer
	// and places the cursor at its start. Called once before any primitive.
	Init() error

	// HasSrc reports whether source-buffer elements remain.
	HasSrc() bool

	// MatchSrc reports, without consuming, whether the current source
	// element's identity matches spec's.
	MatchSrc(spec *record.Node) bool

	// AcceptSrc emits the current source element into the new scope
	// contents and advances, if it matches spec. Returns false (no match,
	// no effect) otherwise.
	AcceptSrc(spec *record.Node) bool

	// SkipSrc discards the current source element if it matches spec.
	// Returns false (no match, no effect) otherwise.
	SkipSrc(spec *record.Node) bool

	// FindSrc searches forward in source for a match, consumes it and
	// emits it into the new contents, leaving a hole behind. Returns false
	// if no match exists in the remaining source.
	FindSrc(spec *record.Node) bool

	// AcceptUntil emits all source elements up to and including the first
	// that matches the given boundary marker.
	AcceptUntil(marker Marker) bool

	// InjectNew constructs a new element from spec and emits it.
	InjectNew(spec *record.Node) bool

	// AssignElm locates an already-emitted (or pre-existing) element by
	// identity and assigns spec's payload to it. Returns false if no layer
	// claims the identity; returns a logic error if the target rejects the
	// assignment due to a kind mismatch.
	AssignElm(spec *record.Node) (bool, error)

	// MutateChild locates the child identified by spec and requests that
	// it build a nested mutator into frame. Returns true if a mutator was
	// built (and frame.Mutator populated), false if spec is not claimed.
	MutateChild(spec *record.Node, frame *ScopeFrame) bool

	// CompleteScope is invoked before leaving a scope. Returns true iff no
	// pending source elements remain and all layers are consistent.
	CompleteScope() bool
}

// Buildable is implemented by application target data: constructing a
// mutator into the given scope frame is the single operation the
// consumer-facing interface requires (spec.md §6).
type Buildable interface {
	BuildMutator(frame *ScopeFrame) bool
}
