package diff

import "github.com/lumiera-go/diffkit/pkg/record"

// frameState tracks the state machine of a single scope frame from
// spec.md §4.3: FRESH -> OPEN -> SETTLED, or OPEN -> ERROR.
type frameState int

const (
	frameFresh frameState = iota
	frameOpen
	frameSettled
	frameError
)

// ScopeFrame is a slot in the driver's scope stack: storage for one scope's
// mutator plus bookkeeping to detect unbalanced mut/emu. In the source this
// is an opaque inline buffer sized from a compile-time trait query; in Go
// the size hint is advisory telemetry only (see DESIGN.md).
type ScopeFrame struct {
	Mutator TreeMutator
	ScopeID record.Identity
	state   frameState
}

// NewScopeFrame returns a fresh, unopened frame addressed by scopeID.
func NewScopeFrame(scopeID record.Identity) *ScopeFrame {
	return &ScopeFrame{ScopeID: scopeID, state: frameFresh}
}

func (f *ScopeFrame) open() error {
	if err := f.Mutator.Init(); err != nil {
		f.state = frameError

		return err
	}

	f.state = frameOpen

	return nil
}
