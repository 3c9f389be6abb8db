package record

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies which variant of the closed payload set a Node holds.
type Kind int

// The closed set of leaf payload kinds, plus Record for nested payloads.
const (
	KindInt64 Kind = iota
	KindUint64
	KindBool
	KindDouble
	KindString
	KindTime
	KindDuration
	KindHash
	KindRecord
)

// String names the kind, used in diagnostic rendering.
func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int"
	case KindUint64:
		return "uint"
	case KindBool:
		return "bool"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindDuration:
		return "duration"
	case KindHash:
		return "hash"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// ErrKindMismatch is the logic error raised when a payload assignment targets
// a node of an incompatible variant.
var ErrKindMismatch = errors.New("payload kind mismatch")

// Payload is the tagged union of leaf values a Node may carry, or a nested
// Record. Only the field matching Kind is meaningful.
type Payload struct {
	Rec      *Record
	Str      string
	HashID   string
	Time     time.Time
	Dur      time.Duration
	I64      int64
	U64      uint64
	F64      float64
	Kind     Kind
	Bool     bool
}

// Int64 builds an int64 leaf payload.
func Int64(v int64) Payload { return Payload{Kind: KindInt64, I64: v} }

// Uint64 builds a uint64 leaf payload.
func Uint64(v uint64) Payload { return Payload{Kind: KindUint64, U64: v} }

// Bool builds a boolean leaf payload.
func Bool(v bool) Payload { return Payload{Kind: KindBool, Bool: v} }

// Double builds a floating point leaf payload.
func Double(v float64) Payload { return Payload{Kind: KindDouble, F64: v} }

// String builds a string leaf payload.
func String(v string) Payload { return Payload{Kind: KindString, Str: v} }

// Time builds a time-value leaf payload.
func Time(v time.Time) Payload { return Payload{Kind: KindTime, Time: v} }

// Duration builds a duration leaf payload.
func Duration(v time.Duration) Payload { return Payload{Kind: KindDuration, Dur: v} }

// HashID builds an opaque hash-id leaf payload.
func HashID(v string) Payload { return Payload{Kind: KindHash, HashID: v} }

// RecordPayload wraps a nested Record as a payload.
func RecordPayload(r *Record) Payload { return Payload{Kind: KindRecord, Rec: r} }

// Equal compares two payloads of the same kind. Callers must ensure the
// kinds already match (identity equality guarantees this within the
// framework); comparing across kinds panics since it is a logic error,
// never a legitimate framework operation.
func (p Payload) Equal(other Payload) bool {
	if p.Kind != other.Kind {
		panic(fmt.Sprintf("record: payload kind mismatch in equality: %s vs %s", p.Kind, other.Kind))
	}

	switch p.Kind {
	case KindInt64:
		return p.I64 == other.I64
	case KindUint64:
		return p.U64 == other.U64
	case KindBool:
		return p.Bool == other.Bool
	case KindDouble:
		return p.F64 == other.F64
	case KindString:
		return p.Str == other.Str
	case KindTime:
		return p.Time.Equal(other.Time)
	case KindDuration:
		return p.Dur == other.Dur
	case KindHash:
		return p.HashID == other.HashID
	case KindRecord:
		return p.Rec.Equal(other.Rec)
	default:
		return false
	}
}

func (p Payload) String() string {
	switch p.Kind {
	case KindInt64:
		return fmt.Sprintf("%d", p.I64)
	case KindUint64:
		return fmt.Sprintf("%d", p.U64)
	case KindBool:
		return fmt.Sprintf("%t", p.Bool)
	case KindDouble:
		return fmt.Sprintf("%g", p.F64)
	case KindString:
		return p.Str
	case KindTime:
		return p.Time.String()
	case KindDuration:
		return p.Dur.String()
	case KindHash:
		return p.HashID
	case KindRecord:
		return p.Rec.String()
	default:
		return "?"
	}
}

// Node is a tagged value node: an immutable identity plus a reassignable
// payload.
type Node struct {
	id      Identity
	payload Payload
}

// NewNode constructs a value node from an identity and payload. The kind
// carried by the identity's hash must match the payload's kind; callers
// build identities from NewAttribute/NewChild helpers that enforce this.
func NewNode(id Identity, payload Payload) *Node {
	return &Node{id: id, payload: payload}
}

// NewAttribute builds a named attribute node.
func NewAttribute(name string, payload Payload) *Node {
	return NewNode(NewAttributeIdentity(name, payload.Kind), payload)
}

// NewChild builds an anonymous child node.
func NewChild(payload Payload) *Node {
	return NewNode(AnonymousIdentity(payload.Kind), payload)
}

// NewNamedChild builds a child node that carries a name without attribute
// semantics (distinguished from an attribute by construction, via
// Identity.Role, not by the presence of a symbol alone) — used for keyed
// sub-records such as S1's "SUB".
func NewNamedChild(name string, payload Payload) *Node {
	return NewNode(NewChildIdentity(name, payload.Kind), payload)
}

// Identity returns the node's immutable identity.
func (n *Node) Identity() Identity { return n.id }

// Payload returns the node's current payload.
func (n *Node) Payload() Payload { return n.payload }

// Matches reports whether two nodes share identity — the criterion used by
// del/pick/find/set/mut/emu to locate a target element.
func (n *Node) Matches(other *Node) bool {
	return n.id.Equal(other.id)
}

// Equal reports full equality: same identity and equal payload. Per
// spec.md §3, mismatched-variant equality between matching identities is a
// logic error and is never expected to occur because identity folds in kind.
func (n *Node) Equal(other *Node) bool {
	if other == nil {
		return false
	}

	if !n.id.Equal(other.id) {
		return false
	}

	return n.payload.Equal(other.payload)
}

// AssignPayload replaces the payload while preserving identity. It fails
// with ErrKindMismatch if the new payload's kind differs from the current
// one — the single logic-error case in diff application (spec.md §7).
func (n *Node) AssignPayload(p Payload) error {
	if n.payload.Kind != p.Kind {
		return fmt.Errorf("record: assign %s: %w (have %s, got %s)", n.id, ErrKindMismatch, n.payload.Kind, p.Kind)
	}

	n.payload = p

	return nil
}

// Clone returns a deep-enough copy (nested records are cloned too) sharing
// no mutable state with the original.
func (n *Node) Clone() *Node {
	p := n.payload
	if p.Kind == KindRecord && p.Rec != nil {
		p.Rec = p.Rec.Clone()
	}

	return &Node{id: n.id, payload: p}
}

// String renders the node in the diagnostic wire form from spec.md §6:
// "ID("name")-hash-DataCap|«kind»|value".
func (n *Node) String() string {
	return fmt.Sprintf("ID(%q)-%x-DataCap|«%s»|%s", n.id.Symbol, n.id.Hash, n.payload.Kind, n.payload.String())
}
