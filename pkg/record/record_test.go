package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumiera-go/diffkit/pkg/record"
)

func TestRecordAttributesAndChildren(t *testing.T) {
	r := record.NewRecord("widget")
	require.Equal(t, "widget", r.TypeTag())

	attr := record.NewAttribute("name", record.String("alpha"))
	r.AppendAttribute(attr)

	child := record.NewChild(record.Int64(7))
	r.AppendChild(child)

	require.Equal(t, []*record.Node{attr}, r.Attributes())
	require.Equal(t, []*record.Node{child}, r.Children())

	found, idx, ok := r.FindAttribute("name")
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.True(t, found.Equal(attr))

	_, _, ok = r.FindAttribute("missing")
	require.False(t, ok)
}

func TestRecordFindAttributeFirstMatchWins(t *testing.T) {
	r := record.NewRecord(record.NilType)
	first := record.NewAttribute("dup", record.Int64(1))
	second := record.NewAttribute("dup", record.Int64(1))
	r.AppendAttribute(first)
	r.AppendAttribute(second)

	found, idx, ok := r.FindAttribute("dup")
	require.True(t, ok)
	require.Equal(t, 0, idx)
	require.Same(t, first, found)
}

func TestRecordCloneIsDeepAndIndependent(t *testing.T) {
	r := record.NewRecord("parent")
	nested := record.NewRecord("child")
	nested.AppendAttribute(record.NewAttribute("x", record.Int64(1)))
	r.AppendChild(record.NewChild(record.RecordPayload(nested)))

	clone := r.Clone()
	require.True(t, r.Equal(clone))

	nested.AppendAttribute(record.NewAttribute("y", record.Int64(2)))
	require.False(t, r.Equal(clone))
}

func TestNodeAssignPayloadKindMismatch(t *testing.T) {
	n := record.NewAttribute("count", record.Int64(1))

	err := n.AssignPayload(record.String("nope"))
	require.ErrorIs(t, err, record.ErrKindMismatch)

	require.NoError(t, n.AssignPayload(record.Int64(2)))
	require.Equal(t, int64(2), n.Payload().I64)
}

func TestNodeMatchesIdentityOnly(t *testing.T) {
	a := record.NewAttribute("k", record.Int64(1))
	b := record.NewAttribute("k", record.Int64(99))

	require.True(t, a.Matches(b))
	require.False(t, a.Equal(b))
}
