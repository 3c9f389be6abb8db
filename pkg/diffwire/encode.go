package diffwire

import (
	"encoding/json"
	"fmt"

	"github.com/lumiera-go/diffkit/pkg/diff"
	"github.com/lumiera-go/diffkit/pkg/record"
)

// Encode renders verbs as the JSON wire document Decode consumes.
func Encode(verbs []diff.Verb) ([]byte, error) {
	doc := wireDocument{Verbs: make([]wireVerb, 0, len(verbs))}

	for _, v := range verbs {
		wv, err := encodeVerb(v)
		if err != nil {
			return nil, err
		}

		doc.Verbs = append(doc.Verbs, wv)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("diffwire: encode: %w", err)
	}

	return raw, nil
}

func encodeVerb(v diff.Verb) (wireVerb, error) {
	wv := wireVerb{Selector: v.Selector.String()}

	if v.Selector == diff.SelAfter {
		wv.Marker = v.Marker.String()

		return wv, nil
	}

	if v.Arg == nil {
		return wv, nil
	}

	node, err := encodeNode(v.Arg)
	if err != nil {
		return wireVerb{}, err
	}

	wv.Arg = node

	return wv, nil
}

func encodeNode(n *record.Node) (*wireNode, error) {
	p := n.Payload()

	role := "child"
	if n.Identity().IsAttribute() {
		role = "attribute"
	}

	wn := &wireNode{Symbol: n.Identity().Symbol, Role: role, Kind: p.Kind.String()}

	var (
		raw []byte
		err error
	)

	switch p.Kind {
	case record.KindInt64:
		raw, err = json.Marshal(p.I64)
	case record.KindUint64:
		raw, err = json.Marshal(p.U64)
	case record.KindBool:
		raw, err = json.Marshal(p.Bool)
	case record.KindDouble:
		raw, err = json.Marshal(p.F64)
	case record.KindString:
		raw, err = json.Marshal(p.Str)
	case record.KindTime:
		raw, err = json.Marshal(p.Time)
	case record.KindDuration:
		raw, err = json.Marshal(p.Dur.String())
	case record.KindHash:
		raw, err = json.Marshal(p.HashID)
	case record.KindRecord:
		wr, rerr := encodeRecord(p.Rec)
		if rerr != nil {
			return nil, rerr
		}

		wn.Children = wr

		return wn, nil
	default:
		return nil, fmt.Errorf("diffwire: encode: unknown kind %s", p.Kind)
	}

	if err != nil {
		return nil, fmt.Errorf("diffwire: encode value: %w", err)
	}

	wn.Value = raw

	return wn, nil
}

func encodeRecord(rec *record.Record) (*wireRecord, error) {
	wr := &wireRecord{TypeTag: rec.TypeTag()}

	for _, a := range rec.Attributes() {
		n, err := encodeNode(a)
		if err != nil {
			return nil, err
		}

		wr.Attributes = append(wr.Attributes, *n)
	}

	for _, c := range rec.Children() {
		n, err := encodeNode(c)
		if err != nil {
			return nil, err
		}

		wr.Children = append(wr.Children, *n)
	}

	return wr, nil
}
