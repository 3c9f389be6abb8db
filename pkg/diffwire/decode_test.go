package diffwire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumiera-go/diffkit/pkg/diff"
	"github.com/lumiera-go/diffkit/pkg/diffwire"
	"github.com/lumiera-go/diffkit/pkg/record"
)

func TestDecodeValidDocument(t *testing.T) {
	doc := []byte(`{
		"verbs": [
			{"selector": "ins", "arg": {"symbol": "name", "role": "attribute", "kind": "string", "value": "alpha"}},
			{"selector": "after", "marker": "ATTRIBS"},
			{"selector": "mut", "arg": {"symbol": "sub", "role": "child", "kind": "record", "children": {"typeTag": "widget"}}},
			{"selector": "emu", "arg": {"symbol": "sub", "role": "child", "kind": "record"}},
			{"selector": "after", "marker": "END"}
		]
	}`)

	verbs, err := diffwire.Decode(doc)
	require.NoError(t, err)
	require.Len(t, verbs, 5)

	require.Equal(t, diff.SelIns, verbs[0].Selector)
	require.Equal(t, "alpha", verbs[0].Arg.Payload().Str)

	require.Equal(t, diff.SelAfter, verbs[1].Selector)
	require.Equal(t, diff.MarkerAttribs, verbs[1].Marker)

	require.Equal(t, diff.SelMut, verbs[2].Selector)
	require.Equal(t, record.KindRecord, verbs[2].Arg.Payload().Kind)
}

func TestDecodeRejectsUnknownSelectorAtSchemaLevel(t *testing.T) {
	doc := []byte(`{"verbs": [{"selector": "nope"}]}`)

	_, err := diffwire.Decode(doc)
	require.ErrorIs(t, err, diffwire.ErrSchema)
}

func TestDecodeRejectsMissingRequiredField(t *testing.T) {
	doc := []byte(`{"verbs": [{}]}`)

	_, err := diffwire.Decode(doc)
	require.ErrorIs(t, err, diffwire.ErrSchema)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	nested := record.NewRecord("widget")
	nested.AppendAttribute(record.NewAttribute("count", record.Int64(3)))

	verbs := []diff.Verb{
		diff.Ins(record.NewAttribute("label", record.String("hello"))),
		diff.After(diff.MarkerAttribs),
		diff.Ins(record.NewChild(record.RecordPayload(nested))),
		diff.After(diff.MarkerEnd),
	}

	raw, err := diffwire.Encode(verbs)
	require.NoError(t, err)

	decoded, err := diffwire.Decode(raw)
	require.NoError(t, err)
	require.Len(t, decoded, len(verbs))

	for i := range verbs {
		require.Equal(t, verbs[i].Selector, decoded[i].Selector)
	}

	require.Equal(t, record.KindRecord, decoded[2].Arg.Payload().Kind)
	require.Equal(t, int64(3), decoded[2].Arg.Payload().Rec.Attributes()[0].Payload().I64)
}

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	rec := record.NewRecord("widget")
	rec.AppendAttribute(record.NewAttribute("name", record.String("alpha")))
	rec.AppendChild(record.NewChild(record.Bool(true)))

	raw, err := diffwire.EncodeRecord(rec)
	require.NoError(t, err)

	decoded, err := diffwire.DecodeRecord(raw)
	require.NoError(t, err)
	require.True(t, rec.Equal(decoded))
}
