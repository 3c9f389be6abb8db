package diff

import (
	"errors"
	"fmt"

	"github.com/lumiera-go/diffkit/pkg/record"
)

// The three terminal error taxonomies from spec.md §7, exposed as sentinels
// so callers discriminate with errors.Is rather than a bespoke Kind() enum —
// idiomatic Go, and the convention pkg/config and pkg/analyzers/burndown
// already use in this codebase.
var (
	// ErrConflict: the target's current shape contradicts the diff.
	ErrConflict = errors.New("diff: conflict")
	// ErrStructure: the diff is internally malformed (scope balance).
	ErrStructure = errors.New("diff: structure error")
	// ErrLogic: a set() assignment's payload kind is incompatible with the
	// addressed element's current kind.
	ErrLogic = errors.New("diff: logic error")
)

// ConflictError reports that del/pick/find/skip/after/set/mut could not be
// satisfied against the target's current shape. It carries the full scope
// nesting path (not just the innermost scope id), per the supplemented
// feature noted in SPEC_FULL.md, grounded on list-diff-application.hpp's
// richer diagnostic messages.
type ConflictError struct {
	Verb      Verb
	ScopePath []record.Identity
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("diff conflict applying %s in scope %s", e.Verb, formatScopePath(e.ScopePath))
}

// Unwrap lets callers match with errors.Is(err, diff.ErrConflict).
func (e *ConflictError) Unwrap() error { return ErrConflict }

// StructureError reports a malformed diff: unbalanced mut/emu, emu with
// pending source elements in the child scope, or emu attempting to pop the
// root scope.
type StructureError struct {
	Reason    string
	ScopePath []record.Identity
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("diff structure error: %s (scope %s)", e.Reason, formatScopePath(e.ScopePath))
}

// Unwrap lets callers match with errors.Is(err, diff.ErrStructure).
func (e *StructureError) Unwrap() error { return ErrStructure }

// LogicError reports a set() whose payload kind does not match the
// addressed element's current kind.
type LogicError struct {
	Verb  Verb
	Cause error
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("diff logic error applying %s: %v", e.Verb, e.Cause)
}

// Unwrap lets callers match with errors.Is(err, diff.ErrLogic), and reach
// the underlying record.ErrKindMismatch via errors.Is as well.
func (e *LogicError) Unwrap() []error { return []error{ErrLogic, e.Cause} }

func formatScopePath(path []record.Identity) string {
	if len(path) == 0 {
		return "/"
	}

	s := ""
	for _, id := range path {
		s += "/" + id.String()
	}

	return s
}
