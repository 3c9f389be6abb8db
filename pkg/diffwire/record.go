package diffwire

import (
	"encoding/json"
	"fmt"

	"github.com/lumiera-go/diffkit/pkg/record"
)

// DecodeRecord parses a standalone record document — the same {typeTag,
// attributes, children} shape used for a mut() argument's nested-record
// payload, but top-level — into a *record.Record target tree.
func DecodeRecord(raw []byte) (*record.Record, error) {
	var wr wireRecord

	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, fmt.Errorf("diffwire: decode record: %w", err)
	}

	return decodeRecord(&wr)
}

// EncodeRecord renders rec as the standalone record document DecodeRecord
// consumes.
func EncodeRecord(rec *record.Record) ([]byte, error) {
	wr, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(wr)
	if err != nil {
		return nil, fmt.Errorf("diffwire: encode record: %w", err)
	}

	return raw, nil
}
