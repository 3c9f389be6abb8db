// Package diffwire ingests diff verb streams from the JSON wire format: a
// validate-then-decode pipeline, grounded on cmd/uast/validate.go's
// gojsonschema.NewGoLoader/gojsonschema.Validate pattern, feeding a
// strict decoder into the in-memory diff.Verb/record.Node model.
package diffwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lumiera-go/diffkit/pkg/diff"
	"github.com/lumiera-go/diffkit/pkg/record"
)

// ErrSchema reports that a wire document failed schema validation.
var ErrSchema = errors.New("diffwire: schema validation failed")

// ErrUnknownSelector reports a verb whose selector is outside the closed
// vocabulary — should not occur once schema validation has already run, but
// checked again defensively since the schema's enum is duplicated by hand.
var ErrUnknownSelector = errors.New("diffwire: unknown selector")

type wireDocument struct {
	Verbs []wireVerb `json:"verbs"`
}

type wireVerb struct {
	Selector string    `json:"selector"`
	Marker   string    `json:"marker,omitempty"`
	Arg      *wireNode `json:"arg,omitempty"`
}

type wireNode struct {
	Symbol   string          `json:"symbol"`
	Role     string          `json:"role"`
	Kind     string          `json:"kind"`
	Value    json.RawMessage `json:"value,omitempty"`
	Children *wireRecord     `json:"children,omitempty"`
}

type wireRecord struct {
	TypeTag    string     `json:"typeTag,omitempty"`
	Attributes []wireNode `json:"attributes,omitempty"`
	Children   []wireNode `json:"children,omitempty"`
}

// Decode validates raw against the wire schema, then translates it into an
// ordered []diff.Verb ready for diff.FromSlice.
func Decode(raw []byte) ([]diff.Verb, error) {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	docLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("diffwire: validate: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}

	var doc wireDocument

	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("diffwire: decode: %w", err)
	}

	verbs := make([]diff.Verb, 0, len(doc.Verbs))

	for _, wv := range doc.Verbs {
		v, err := decodeVerb(wv)
		if err != nil {
			return nil, err
		}

		verbs = append(verbs, v)
	}

	return verbs, nil
}

func decodeVerb(wv wireVerb) (diff.Verb, error) {
	var arg *record.Node

	if wv.Arg != nil {
		n, err := decodeNode(*wv.Arg)
		if err != nil {
			return diff.Verb{}, err
		}

		arg = n
	}

	switch wv.Selector {
	case "ins":
		return diff.Ins(arg), nil
	case "del":
		return diff.Del(arg), nil
	case "pick":
		return diff.Pick(arg), nil
	case "find":
		return diff.Find(arg), nil
	case "skip":
		return diff.Skip(arg), nil
	case "set":
		return diff.Set(arg), nil
	case "mut":
		return diff.Mut(arg), nil
	case "emu":
		return diff.Emu(arg), nil
	case "after":
		marker := diff.MarkerEnd
		if wv.Marker == "ATTRIBS" {
			marker = diff.MarkerAttribs
		}

		return diff.After(marker), nil
	default:
		return diff.Verb{}, fmt.Errorf("%w: %q", ErrUnknownSelector, wv.Selector)
	}
}

// decodeNode rebuilds a node from its wire form, re-deriving the
// construction-time attribute/child distinction from the explicit Role
// field rather than from Symbol's presence — a named child (e.g. S1's
// "SUB") carries a symbol just like an attribute does, so Role alone
// decides which record.New* constructor applies.
func decodeNode(wn wireNode) (*record.Node, error) {
	payload, err := decodePayload(wn)
	if err != nil {
		return nil, err
	}

	if wn.Role == "attribute" {
		return record.NewAttribute(wn.Symbol, payload), nil
	}

	if wn.Symbol == "" {
		return record.NewChild(payload), nil
	}

	return record.NewNamedChild(wn.Symbol, payload), nil
}

func decodePayload(wn wireNode) (record.Payload, error) {
	switch wn.Kind {
	case "int":
		var v int64
		if err := unmarshalValue(wn.Value, &v); err != nil {
			return record.Payload{}, err
		}

		return record.Int64(v), nil
	case "uint":
		var v uint64
		if err := unmarshalValue(wn.Value, &v); err != nil {
			return record.Payload{}, err
		}

		return record.Uint64(v), nil
	case "bool":
		var v bool
		if err := unmarshalValue(wn.Value, &v); err != nil {
			return record.Payload{}, err
		}

		return record.Bool(v), nil
	case "double":
		var v float64
		if err := unmarshalValue(wn.Value, &v); err != nil {
			return record.Payload{}, err
		}

		return record.Double(v), nil
	case "string":
		var v string
		if err := unmarshalValue(wn.Value, &v); err != nil {
			return record.Payload{}, err
		}

		return record.String(v), nil
	case "time":
		var v time.Time
		if err := unmarshalValue(wn.Value, &v); err != nil {
			return record.Payload{}, err
		}

		return record.Time(v), nil
	case "duration":
		var v string
		if err := unmarshalValue(wn.Value, &v); err != nil {
			return record.Payload{}, err
		}

		d, err := time.ParseDuration(v)
		if err != nil {
			return record.Payload{}, fmt.Errorf("diffwire: parse duration %q: %w", v, err)
		}

		return record.Duration(d), nil
	case "hash":
		var v string
		if err := unmarshalValue(wn.Value, &v); err != nil {
			return record.Payload{}, err
		}

		return record.HashID(v), nil
	case "record":
		rec, err := decodeRecord(wn.Children)
		if err != nil {
			return record.Payload{}, err
		}

		return record.RecordPayload(rec), nil
	default:
		return record.Payload{}, fmt.Errorf("%w: unknown kind %q", ErrUnknownSelector, wn.Kind)
	}
}

func decodeRecord(wr *wireRecord) (*record.Record, error) {
	rec := record.NewRecord(record.NilType)

	if wr == nil {
		return rec, nil
	}

	rec.SetTypeTag(wr.TypeTag)

	for _, wn := range wr.Attributes {
		n, err := decodeNode(wn)
		if err != nil {
			return nil, err
		}

		rec.AppendAttribute(n)
	}

	for _, wn := range wr.Children {
		n, err := decodeNode(wn)
		if err != nil {
			return nil, err
		}

		rec.AppendChild(n)
	}

	return rec, nil
}

func unmarshalValue(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("diffwire: decode value: %w", err)
	}

	return nil
}
