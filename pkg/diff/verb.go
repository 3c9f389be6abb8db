// Package diff implements the Lumiera-style diff language: a small, closed
// vocabulary of verb tokens, the stream that carries them, and the
// application driver that interprets them against a TreeMutator binding.
package diff

import (
	"fmt"

	"github.com/lumiera-go/diffkit/pkg/record"
)

// Selector picks the TreeMutator primitive a Verb dispatches to. It plays
// the role the handler-function-pointer plays in the original double
// dispatch scheme: the verb carries the selector, the mutator's method
// table supplies the implementation.
type Selector int

// The full diff vocabulary: five list-diff verbs plus four tree-diff verbs.
const (
	SelIns Selector = iota
	SelDel
	SelPick
	SelFind
	SelSkip
	SelSet
	SelAfter
	SelMut
	SelEmu
)

// String names the selector for diagnostics.
func (s Selector) String() string {
	switch s {
	case SelIns:
		return "ins"
	case SelDel:
		return "del"
	case SelPick:
		return "pick"
	case SelFind:
		return "find"
	case SelSkip:
		return "skip"
	case SelSet:
		return "set"
	case SelAfter:
		return "after"
	case SelMut:
		return "mut"
	case SelEmu:
		return "emu"
	default:
		return "?"
	}
}

// Marker is the closed set of symbolic boundary markers accepted by
// after(marker). original_source leaves this as an arbitrary identity;
// this rendition closes it into an explicit enum (see SPEC_FULL.md).
type Marker int

// The two recognised after() markers.
const (
	MarkerNone Marker = iota
	MarkerAttribs
	MarkerEnd
)

func (m Marker) String() string {
	switch m {
	case MarkerAttribs:
		return "ATTRIBS"
	case MarkerEnd:
		return "END"
	default:
		return "NONE"
	}
}

// Verb is one token of the diff language: a selector plus exactly one value
// node argument (ins/del/pick/find/skip/set/mut/emu), or a selector plus a
// marker (after). Verb equality is identifier equality per spec.md §3.
type Verb struct {
	Arg      *record.Node
	ID       string
	Selector Selector
	Marker   Marker
}

// Equal reports verb identifier equality, the only equality the spec defines
// for verb tokens.
func (v Verb) Equal(other Verb) bool { return v.ID == other.ID }

// String renders the diagnostic wire form from spec.md §6.
func (v Verb) String() string {
	if v.Selector == SelAfter {
		return fmt.Sprintf("%s(%s)", v.Selector, v.Marker)
	}

	if v.Arg == nil {
		return fmt.Sprintf("%s()", v.Selector)
	}

	return fmt.Sprintf("%s(%s)", v.Selector, v.Arg)
}

func verb(id string, sel Selector, arg *record.Node) Verb {
	return Verb{ID: id, Selector: sel, Arg: arg}
}

// Ins builds an ins(e) verb: append a new element at the current output position.
func Ins(e *record.Node) Verb { return verb("ins", SelIns, e) }

// Del builds a del(e) verb: consume and discard the current input element, which must match e.
func Del(e *record.Node) Verb { return verb("del", SelDel, e) }

// Pick builds a pick(e) verb: consume the current input element, which must match e, and emit it.
func Pick(e *record.Node) Verb { return verb("pick", SelPick, e) }

// Find builds a find(e) verb: locate e forward in the remaining input, consume and emit it.
func Find(e *record.Node) Verb { return verb("find", SelFind, e) }

// Skip builds a skip(e) verb: consume and discard the current input element, used to clean up a find hole.
func Skip(e *record.Node) Verb { return verb("skip", SelSkip, e) }

// Set builds a set(e) verb: locate an already-emitted element whose identity equals e's and replace its payload.
func Set(e *record.Node) Verb { return verb("set", SelSet, e) }

// Mut builds a mut(e) verb: enter the nested scope of the element identified by e.
func Mut(e *record.Node) Verb { return verb("mut", SelMut, e) }

// Emu builds an emu(e) verb: leave the scope entered by the matching mut(e).
func Emu(e *record.Node) Verb { return verb("emu", SelEmu, e) }

// After builds an after(marker) verb: fast-forward to the ATTRIBS or END boundary.
func After(marker Marker) Verb {
	id := "after-end"
	if marker == MarkerAttribs {
		id = "after-attribs"
	}

	return Verb{ID: id, Selector: SelAfter, Marker: marker}
}
