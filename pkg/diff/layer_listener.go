package diff

import "github.com/lumiera-go/diffkit/pkg/record"

// SeqChangeListener is invoked once per scope when any structural primitive
// (anything other than a pure AssignElm) succeeded in that scope — the
// granularity spec.md §9 notes as a deliberate choice, not per-primitive.
type SeqChangeListener func(scopeID record.Identity)

// changeListenerLayer wraps an inner mutator, observing structural changes.
// It is installed as the outermost layer via Builder.OnSeqChange so it sees
// every verb before the inner layers claim it.
type changeListenerLayer struct {
	inner     TreeMutator
	listener  SeqChangeListener
	scopeID   record.Identity
	triggered bool
}

// NewChangeListenerLayer wraps inner, invoking listener once per scope on
// the first structural change.
func NewChangeListenerLayer(inner TreeMutator, scopeID record.Identity, listener SeqChangeListener) TreeMutator {
	return &changeListenerLayer{inner: inner, listener: listener, scopeID: scopeID}
}

func (l *changeListenerLayer) fireIfStructural(ok bool) bool {
	if ok && !l.triggered {
		l.triggered = true
		l.listener(l.scopeID)
	}

	return ok
}

func (l *changeListenerLayer) Init() error               { return l.inner.Init() }
func (l *changeListenerLayer) HasSrc() bool               { return l.inner.HasSrc() }
func (l *changeListenerLayer) MatchSrc(spec *record.Node) bool { return l.inner.MatchSrc(spec) }

func (l *changeListenerLayer) AcceptSrc(spec *record.Node) bool {
	// Pure re-emission of an unchanged element is not structural.
	return l.inner.AcceptSrc(spec)
}

func (l *changeListenerLayer) SkipSrc(spec *record.Node) bool {
	return l.fireIfStructural(l.inner.SkipSrc(spec))
}

func (l *changeListenerLayer) FindSrc(spec *record.Node) bool {
	return l.fireIfStructural(l.inner.FindSrc(spec))
}

func (l *changeListenerLayer) AcceptUntil(marker Marker) bool { return l.inner.AcceptUntil(marker) }

func (l *changeListenerLayer) InjectNew(spec *record.Node) bool {
	return l.fireIfStructural(l.inner.InjectNew(spec))
}

func (l *changeListenerLayer) AssignElm(spec *record.Node) (bool, error) {
	// A pure payload assignment is explicitly not a structural change.
	return l.inner.AssignElm(spec)
}

func (l *changeListenerLayer) MutateChild(spec *record.Node, frame *ScopeFrame) bool {
	return l.inner.MutateChild(spec, frame)
}

func (l *changeListenerLayer) CompleteScope() bool { return l.inner.CompleteScope() }

// ignoreAllLayer is the terminal sink: every verb is accepted with no
// effect. Installed via Builder.IgnoreAllChanges so a scope the consumer
// does not care about never produces a conflict.
type ignoreAllLayer struct{}

// NewIgnoreAllLayer builds the terminal ignore-all sink layer.
func NewIgnoreAllLayer() TreeMutator { return ignoreAllLayer{} }

func (ignoreAllLayer) Init() error                                   { return nil }
func (ignoreAllLayer) HasSrc() bool                                  { return false }
func (ignoreAllLayer) MatchSrc(*record.Node) bool                    { return true }
func (ignoreAllLayer) AcceptSrc(*record.Node) bool                   { return true }
func (ignoreAllLayer) SkipSrc(*record.Node) bool                     { return true }
func (ignoreAllLayer) FindSrc(*record.Node) bool                     { return true }
func (ignoreAllLayer) AcceptUntil(Marker) bool                       { return true }
func (ignoreAllLayer) InjectNew(*record.Node) bool                   { return true }
func (ignoreAllLayer) AssignElm(*record.Node) (bool, error)          { return true, nil }
func (ignoreAllLayer) MutateChild(_ *record.Node, frame *ScopeFrame) bool {
	frame.Mutator = ignoreAllLayer{}

	return true
}

func (ignoreAllLayer) CompleteScope() bool { return true }
