// Package record implements the value-node / record data model the diff
// framework operates on: a tagged value with a stable identity, holding
// either a leaf payload or a nested record of attributes and children.
package record

import (
	"fmt"
	"hash/fnv"
	"sync/atomic"
)

// anonymousCounter hands out distinguishing values for anonymous identities,
// so two anonymous nodes never compare equal by accident within a process.
var anonymousCounter atomic.Uint64 //nolint:gochecknoglobals // process-wide identity source, mirrors a monotonic counter.

// Role distinguishes an attribute identity from a child identity at
// construction time — spec.md §3 requires the two sub-sequences be
// "distinguished by construction," not by whether a symbol happens to be
// present, since a named child (NewNamedChild) carries a Symbol exactly
// like an attribute does.
type Role int

// The two identity roles.
const (
	RoleChild Role = iota
	RoleAttribute
)

// Identity is the symbolic-name+hash key of a value node. It is immutable
// once a node is constructed and stable across payload reassignment.
type Identity struct {
	// Symbol is the attribute or named-child's name, or "" for an
	// anonymous child identity.
	Symbol string
	// Role records whether this identity was constructed as an attribute
	// or a child; it is the authoritative attribute/child discriminator,
	// independent of Symbol.
	Role Role
	// Hash distinguishes nodes that share a Symbol and Role (or are both
	// anonymous) and folds in the payload kind, so identities of
	// incompatible variants never collide.
	Hash uint64
}

// NewAttributeIdentity builds a named identity for a record attribute.
// The hash is derived from the symbol, kind and role so that an attribute
// and a child sharing a name and kind never collide.
func NewAttributeIdentity(symbol string, kind Kind) Identity {
	return Identity{Symbol: symbol, Role: RoleAttribute, Hash: identityHash(symbol, kind, RoleAttribute)}
}

// NewChildIdentity builds a named identity for a keyed child — a child
// that carries a symbol without attribute semantics (e.g. S1's "SUB").
func NewChildIdentity(symbol string, kind Kind) Identity {
	return Identity{Symbol: symbol, Role: RoleChild, Hash: identityHash(symbol, kind, RoleChild)}
}

// AnonymousIdentity builds a fresh hash-only identity for a child node that
// carries no symbolic name.
func AnonymousIdentity(kind Kind) Identity {
	n := anonymousCounter.Add(1)

	return Identity{Role: RoleChild, Hash: identityHash(fmt.Sprintf("#%d", n), kind, RoleChild)}
}

// IsAttribute reports whether this identity was constructed as an
// attribute, regardless of whether it carries a symbolic name.
func (id Identity) IsAttribute() bool {
	return id.Role == RoleAttribute
}

// Equal reports identity equality: same symbol, same role and same hash.
func (id Identity) Equal(other Identity) bool {
	return id.Symbol == other.Symbol && id.Role == other.Role && id.Hash == other.Hash
}

// String renders the identity in the diagnostic wire form used by verb
// rendering: "name-hexhash" or "-hexhash" when anonymous.
func (id Identity) String() string {
	return fmt.Sprintf("%s-%x", id.Symbol, id.Hash)
}

func identityHash(symbol string, kind Kind, role Role) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	_, _ = h.Write([]byte{byte(kind)})
	_, _ = h.Write([]byte{byte(role)})

	return h.Sum64()
}
