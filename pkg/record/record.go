package record

import "strings"

// NilType is the default type tag of a record with none explicitly set.
const NilType = ""

// Record is a record value: an optional type tag plus two ordered, logically
// distinct sub-sequences — attributes and children — addressed uniformly by
// the diff language but kept apart here exactly as spec.md §3 requires.
type Record struct {
	typeTag  string
	attrs    []*Node
	children []*Node
}

// NewRecord builds an empty record with the given type tag (NilType for none).
func NewRecord(typeTag string) *Record {
	return &Record{typeTag: typeTag}
}

// TypeTag returns the record's type tag, or NilType if unset.
func (r *Record) TypeTag() string { return r.typeTag }

// SetTypeTag replaces the type tag.
func (r *Record) SetTypeTag(tag string) { r.typeTag = tag }

// Attributes returns the ordered attribute nodes. The returned slice is a
// live view; callers must not retain it across mutation.
func (r *Record) Attributes() []*Node { return r.attrs }

// Children returns the ordered child nodes. Same aliasing caveat as Attributes.
func (r *Record) Children() []*Node { return r.children }

// AppendAttribute appends an attribute node, preserving order.
func (r *Record) AppendAttribute(n *Node) { r.attrs = append(r.attrs, n) }

// AppendChild appends a child node, preserving order.
func (r *Record) AppendChild(n *Node) { r.children = append(r.children, n) }

// SetAttributes replaces the attribute sequence wholesale.
func (r *Record) SetAttributes(nodes []*Node) { r.attrs = nodes }

// SetChildren replaces the child sequence wholesale.
func (r *Record) SetChildren(nodes []*Node) { r.children = nodes }

// FindAttribute returns the first attribute matching name, its index, and
// whether it was found. Per spec.md §3, duplicate attribute names resolve
// to the first match in order.
func (r *Record) FindAttribute(name string) (*Node, int, bool) {
	for i, a := range r.attrs {
		if a.Identity().Symbol == name {
			return a, i, true
		}
	}

	return nil, -1, false
}

// Equal reports deep structural equality: same type tag, same attribute
// sequence, same child sequence, node-by-node.
func (r *Record) Equal(other *Record) bool {
	if other == nil {
		return false
	}

	if r.typeTag != other.typeTag {
		return false
	}

	return nodesEqual(r.attrs, other.attrs) && nodesEqual(r.children, other.children)
}

func nodesEqual(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}

	return true
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := &Record{typeTag: r.typeTag}
	clone.attrs = make([]*Node, len(r.attrs))

	for i, a := range r.attrs {
		clone.attrs[i] = a.Clone()
	}

	clone.children = make([]*Node, len(r.children))

	for i, c := range r.children {
		clone.children[i] = c.Clone()
	}

	return clone
}

// String renders a compact diagnostic form: "Type{attr=val,...}[child,...]".
func (r *Record) String() string {
	var b strings.Builder

	tag := r.typeTag
	if tag == NilType {
		tag = "_"
	}

	b.WriteString(tag)
	b.WriteByte('{')

	for i, a := range r.attrs {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(a.Identity().Symbol)
		b.WriteByte('=')
		b.WriteString(a.Payload().String())
	}

	b.WriteByte('}')
	b.WriteByte('[')

	for i, c := range r.children {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(c.Payload().String())
	}

	b.WriteByte(']')

	return b.String()
}
