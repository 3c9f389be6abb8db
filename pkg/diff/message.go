package diff

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"
)

// errLz4NoOutput reports that lz4.CompressBlock produced no output despite a
// CompressBlockBound-sized destination — should not occur in practice.
var errLz4NoOutput = errors.New("lz4 compress produced no output")

// snapshotWarnBytes is the approximate captured-snapshot size above which a
// diagnostic capture logs a size warning, mirroring how pkg/config-adjacent
// cache sizing thresholds are surfaced to operators in human-readable units.
const snapshotWarnBytes = 1 << 20 // 1 MiB of rendered verb text.

// Message is the opaque, once-consumable wrapper around a verb producer
// from spec.md §4.4. It owns the generator; dropping the Message (letting it
// be garbage collected) is the cooperative-cancellation story from §5 — no
// explicit close is required.
type Message struct {
	mu       sync.Mutex
	stream   Stream
	consumed bool
}

// NewMessage wraps a general producer Stream in a Message.
func NewMessage(stream Stream) *Message {
	return &Message{stream: stream}
}

// MessageFromSlice builds a Message from a braced-literal list of verbs,
// copying the producer onto the heap as the original's initialiser-list
// constructor does.
func MessageFromSlice(verbs []Verb) *Message {
	return NewMessage(FromSlice(verbs))
}

// Take hands the underlying Stream to the caller exactly once; subsequent
// calls return nil, modelling the move-only handle spec.md §9 recommends
// over the original's clone-while-in-flight hazard.
func (m *Message) Take() Stream {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consumed {
		return nil
	}

	m.consumed = true

	return m.stream
}

// Capture destructively materialises the remaining, not-yet-consumed tail
// of the stream into a buffer, replaces the underlying producer with an
// iterator over that buffer, and returns the captured verbs. Repeated calls
// yield successively shorter tails, per spec.md §4.4.
func (m *Message) Capture() []Verb {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tail []Verb

	for m.stream.HasNext() {
		v, err := m.stream.Next()
		if err != nil {
			break
		}

		tail = append(tail, v)
	}

	m.stream = FromSlice(tail)

	return tail
}

// Snapshot renders a captured tail in the "Diff--{v1, v2, …}" form spec.md
// §4.4 names. If size exceeds snapshotWarnBytes it is noted in human-
// readable units, a detail otherwise easy to lose in a raw byte count.
func Snapshot(verbs []Verb) string {
	parts := make([]string, len(verbs))
	for i, v := range verbs {
		parts[i] = v.String()
	}

	rendered := "Diff--{" + strings.Join(parts, ", ") + "}"

	if len(rendered) > snapshotWarnBytes {
		return fmt.Sprintf("%s (%s, truncated for logging)", rendered[:snapshotWarnBytes], humanize.Bytes(uint64(len(rendered))))
	}

	return rendered
}

// String renders the message's currently captured tail, capturing first if
// nothing has been captured yet.
func (m *Message) String() string {
	return Snapshot(m.Capture())
}

// CompressedSnapshot captures the remaining tail and LZ4-compresses its
// Diff--{...} rendering, the same CompressBlock/CompressBlockBound pattern
// internal/rbtree/lz4.go uses for its uint32 buffers — for spilling a large
// diagnostic snapshot to a log sink or spill file without paying the raw
// text size. The caller must keep the returned original length alongside
// the compressed bytes; DecompressSnapshot needs it to size its buffer.
func (m *Message) CompressedSnapshot() (compressed []byte, originalLen int, err error) {
	tail := m.Capture()
	if len(tail) == 0 {
		return nil, 0, nil
	}

	src := []byte(Snapshot(tail))

	dst := make([]byte, lz4.CompressBlockBound(len(src)))

	written, cErr := lz4.CompressBlock(src, dst, nil)
	if cErr != nil {
		return nil, 0, fmt.Errorf("diff: lz4 compress snapshot: %w", cErr)
	}

	if written == 0 {
		return nil, 0, fmt.Errorf("diff: lz4 compress snapshot: %w", errLz4NoOutput)
	}

	return dst[:written], len(src), nil
}

// DecompressSnapshot restores a snapshot previously produced by
// CompressedSnapshot. originalLen must be the length CompressedSnapshot
// returned alongside compressed.
func DecompressSnapshot(compressed []byte, originalLen int) (string, error) {
	if originalLen == 0 {
		return "", nil
	}

	dst := make([]byte, originalLen)

	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return "", fmt.Errorf("diff: lz4 decompress snapshot: %w", err)
	}

	return string(dst[:n]), nil
}
