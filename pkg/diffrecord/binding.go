// Package diffrecord supplies the pre-packaged generic-record binding that
// spec.md §4.2 calls attach(record): a TreeMutator driven entirely by a
// *record.Record's own shape, requiring no per-schema Builder wiring. It is
// what a caller reaches for when the target shape is not known statically.
package diffrecord

import (
	"github.com/lumiera-go/diffkit/pkg/diff"
	"github.com/lumiera-go/diffkit/pkg/record"
)

// TypeTagAttr is the reserved attribute symbol the binding uses to expose a
// record's type tag as an ordinary attribute, so ins(X-type) in spec.md §8's
// S1 scenario addresses it uniformly with any other attribute rather than
// needing a dedicated verb.
const TypeTagAttr = "type-tag"

// Attach builds the generic-record binding for target: two collection
// layers (attributes, children) plus a type-tag pseudo-attribute layer, with
// recursive mut() support on both attributes and children whose payload is
// itself a nested record.
//
// attributeSpec and childSpec each filter on record.Identity.IsAttribute,
// the construction-time role a node gets from NewAttribute vs.
// NewChild/NewNamedChild (spec.md §3: the two sub-sequences are
// "distinguished by construction," never by scope phase or by whether a
// symbol happens to be present). That is what lets S1's populate sequence
// route ins(A)/ins(T)/ins(T)/ins(S) to the child layer correctly even
// though no after(ATTRIBS) has fired yet.
func Attach(target *record.Record) *diff.CompositeMutator {
	b := diff.NewBuilder(record.AnonymousIdentity(record.KindRecord))

	b.Use(typeTagLayer(target), true)
	diff.Attach(b, attributeSpec(target), true)
	diff.Attach(b, childSpec(target), false)

	return b.Build()
}

// typeTagLayer exposes target's type tag as a single synthetic attribute
// node, translated back into SetTypeTag on commit.
func typeTagLayer(target *record.Record) diff.TreeMutator {
	return diff.FieldLayer(
		TypeTagAttr,
		func() *record.Node {
			if target.TypeTag() == record.NilType {
				return nil
			}

			return record.NewAttribute(TypeTagAttr, record.String(target.TypeTag()))
		},
		func(n *record.Node) error {
			target.SetTypeTag(n.Payload().Str)

			return nil
		},
	)
}

func attributeSpec(target *record.Record) diff.CollectionSpec[*record.Node] {
	return diff.CollectionSpec[*record.Node]{
		Applicable:    func(spec *record.Node) bool { return spec.Identity().IsAttribute() },
		Get:           target.Attributes,
		Set:           target.SetAttributes,
		Identity:      (*record.Node).Identity,
		Construct:     func(spec *record.Node) (*record.Node, error) { return spec.Clone(), nil },
		AssignPayload: func(elem **record.Node, spec *record.Node) error { return (*elem).AssignPayload(spec.Payload()) },
		ChildMutator:  nestedRecordMutator,
	}
}

func childSpec(target *record.Record) diff.CollectionSpec[*record.Node] {
	return diff.CollectionSpec[*record.Node]{
		Applicable:    func(spec *record.Node) bool { return !spec.Identity().IsAttribute() },
		Get:           target.Children,
		Set:           target.SetChildren,
		Identity:      (*record.Node).Identity,
		Construct:     func(spec *record.Node) (*record.Node, error) { return spec.Clone(), nil },
		AssignPayload: func(elem **record.Node, spec *record.Node) error { return (*elem).AssignPayload(spec.Payload()) },
		ChildMutator:  nestedRecordMutator,
	}
}

// nestedRecordMutator implements the recursive case: elem's payload must
// already be KindRecord (mut() on a non-record-valued node is a logic
// error the driver surfaces independently), and the nested mutator is this
// same generic binding applied to the nested record.
func nestedRecordMutator(elem **record.Node, frame *diff.ScopeFrame) bool {
	p := (*elem).Payload()
	if p.Kind != record.KindRecord || p.Rec == nil {
		return false
	}

	frame.Mutator = Attach(p.Rec)

	return true
}

// Snapshot captures a deep, introspectable copy of target's current
// attribute and child sequences for test assertions, grounded on the
// original's test-mutation-target.hpp pattern of exposing a private probe
// surface solely for the test harness.
func Snapshot(target *record.Record) *record.Record {
	return target.Clone()
}
