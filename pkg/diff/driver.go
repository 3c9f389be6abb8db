package diff

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumiera-go/diffkit/pkg/record"
)

// tracerName is the OTel tracer name for this package, following the same
// per-package naming pkg/framework.Runner uses for its tracer.
const tracerName = "diffkit.diff"

// Driver is the application driver from spec.md §4.3: it holds a stack of
// scope frames and pulls verbs from a Stream one at a time, dispatching each
// to the active frame's mutator.
type Driver struct {
	logger          *slog.Logger
	metrics         *Metrics
	tracer          trace.Tracer
	stack           []*ScopeFrame
	maxScopeDepth   int
	sourceWarnBytes uint64
	maxDepthSeen    int
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger attaches a structured logger. The driver logs scope entry/exit
// at Debug and conflicts at Warn — never per-verb detail at Info, too hot a
// path (see SPEC_FULL.md's ambient-stack logging note).
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithMetrics attaches the OTel/Prometheus instrument set from
// pkg/observability-style wiring.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithMaxScopeDepth bounds nested mut()/emu() recursion, per
// config.DiffConfig.MaxScopeDepth; 0 (the zero value) disables the check.
func WithMaxScopeDepth(depth int) Option {
	return func(d *Driver) { d.maxScopeDepth = depth }
}

// WithSourceWarnBytes logs a Warn when a root binding's SizeHint — under a
// rough average-node-size estimate — crosses threshold bytes, per
// config.DiffConfig.SourceBufferWarnSize (parsed with humanize.ParseBytes
// by the caller, since the size estimate is advisory telemetry only; see
// DESIGN.md). 0 disables the check.
func WithSourceWarnBytes(threshold uint64) Option {
	return func(d *Driver) { d.sourceWarnBytes = threshold }
}

// WithTracer attaches the OTel tracer Apply spans are recorded against.
// When unset, Apply falls back to otel.Tracer(tracerName), the same
// fallback pattern as pkg/framework.Runner.tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Driver) { d.tracer = tracer }
}

func (d *Driver) getTracer() trace.Tracer {
	if d.tracer != nil {
		return d.tracer
	}

	return otel.Tracer(tracerName)
}

// sizeHinter is implemented by CompositeMutator; used only for the
// advisory size-warning log line.
type sizeHinter interface{ SizeHint() int }

// averageNodeBytes is the rough per-node size estimate used to translate a
// SizeHint count into a byte estimate for the warning threshold.
const averageNodeBytes = 64

// NewDriver constructs a Driver. A nil logger falls back to slog.Default(),
// nil metrics disables instrument recording.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Apply drives root through stream, starting at scope rootID. It returns
// the first ConflictError, StructureError or LogicError encountered; no
// partial rollback is attempted, per spec.md §4.5. The whole call is wrapped
// in a single "diff.apply" span, the same one-span-per-top-level-call shape
// pkg/framework.Runner.Run uses for its pipeline spans.
func (d *Driver) Apply(ctx context.Context, root TreeMutator, rootID record.Identity, stream Stream) error {
	ctx, span := d.getTracer().Start(ctx, "diff.apply", trace.WithAttributes(
		attribute.String("diff.root_scope", rootID.String()),
	))
	defer span.End()

	d.maxDepthSeen = 0

	err := d.applyInternal(ctx, root, rootID, stream)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(attribute.Int("diff.max_scope_depth", d.maxDepthSeen))

	return err
}

func (d *Driver) applyInternal(ctx context.Context, root TreeMutator, rootID record.Identity, stream Stream) error {
	start := time.Now()

	rootFrame := NewScopeFrame(rootID)
	rootFrame.Mutator = root

	if err := rootFrame.open(); err != nil {
		d.recordOutcome(ctx, start, "error")

		return err
	}

	d.stack = []*ScopeFrame{rootFrame}
	d.observeDepth(ctx)
	d.logger.DebugContext(ctx, "diff: root scope opened", "scope", rootID.String())
	d.warnIfLarge(ctx, root)

	for {
		active := d.top()
		if !stream.HasNext() {
			break
		}

		v, err := stream.Next()
		if err != nil {
			d.recordOutcome(ctx, start, "error")

			return err
		}

		if err := d.dispatch(ctx, active, v); err != nil {
			d.recordOutcome(ctx, start, "error")

			return err
		}
	}

	if !d.top().Mutator.CompleteScope() {
		err := &StructureError{Reason: "pending child scope not closed at stream end", ScopePath: d.scopePath()}
		d.recordOutcome(ctx, start, "error")

		return err
	}

	d.recordOutcome(ctx, start, "ok")

	return nil
}

// observeDepth records the current stack depth as the deepest seen so far,
// for the end-of-Apply span attribute and the scope-depth histogram.
func (d *Driver) observeDepth(ctx context.Context) {
	depth := len(d.stack)
	if depth > d.maxDepthSeen {
		d.maxDepthSeen = depth
	}

	if d.metrics != nil {
		d.metrics.RecordScopeDepth(ctx, depth)
	}
}

func (d *Driver) warnIfLarge(ctx context.Context, root TreeMutator) {
	if d.sourceWarnBytes == 0 {
		return
	}

	hinter, ok := root.(sizeHinter)
	if !ok {
		return
	}

	estimate := uint64(hinter.SizeHint()) * averageNodeBytes //nolint:gosec // estimate only, never security sensitive.
	if estimate > d.sourceWarnBytes {
		d.logger.WarnContext(ctx, "diff: source buffer size estimate exceeds warn threshold",
			"estimate_bytes", estimate, "threshold_bytes", d.sourceWarnBytes)
	}
}

func (d *Driver) recordOutcome(ctx context.Context, start time.Time, status string) {
	if d.metrics == nil {
		return
	}

	d.metrics.RecordApply(ctx, status, time.Since(start))
}

func (d *Driver) top() *ScopeFrame { return d.stack[len(d.stack)-1] }

func (d *Driver) scopePath() []record.Identity {
	path := make([]record.Identity, len(d.stack))
	for i, f := range d.stack {
		path[i] = f.ScopeID
	}

	return path
}

// dispatch applies one verb to the active frame's mutator, per the
// algorithm in spec.md §4.3. mut/emu are handled specially because they
// mutate the frame stack itself; every other verb maps directly onto one
// TreeMutator primitive.
func (d *Driver) dispatch(ctx context.Context, active *ScopeFrame, v Verb) error {
	m := active.Mutator

	switch v.Selector {
	case SelMut:
		return d.dispatchMut(ctx, active, v)
	case SelEmu:
		return d.dispatchEmu(ctx, v)
	case SelIns:
		return d.requireOK(m.InjectNew(v.Arg), v)
	case SelDel:
		return d.requireOK(m.SkipSrc(v.Arg), v)
	case SelPick:
		return d.requireOK(m.AcceptSrc(v.Arg), v)
	case SelFind:
		return d.requireOK(m.FindSrc(v.Arg), v)
	case SelSkip:
		return d.requireOK(m.SkipSrc(v.Arg), v)
	case SelAfter:
		return d.requireOK(m.AcceptUntil(v.Marker), v)
	case SelSet:
		ok, err := m.AssignElm(v.Arg)
		if err != nil {
			return &LogicError{Verb: v, Cause: err}
		}

		return d.requireOK(ok, v)
	default:
		return d.requireOK(false, v)
	}
}

func (d *Driver) requireOK(ok bool, v Verb) error {
	if ok {
		if d.metrics != nil {
			d.metrics.RecordVerb(context.Background(), v.Selector.String())
		}

		return nil
	}

	if d.metrics != nil {
		d.metrics.RecordConflict(context.Background(), v.Selector.String())
	}

	d.logger.Warn("diff: conflict", "verb", v.String(), "scope", formatScopePath(d.scopePath()))

	return &ConflictError{Verb: v, ScopePath: d.scopePath()}
}

func (d *Driver) dispatchMut(ctx context.Context, active *ScopeFrame, v Verb) error {
	if d.maxScopeDepth > 0 && len(d.stack) >= d.maxScopeDepth {
		return &StructureError{Reason: "max nested scope depth exceeded", ScopePath: d.scopePath()}
	}

	child := NewScopeFrame(v.Arg.Identity())
	if !active.Mutator.MutateChild(v.Arg, child) {
		return d.requireOK(false, v)
	}

	if err := child.open(); err != nil {
		return err
	}

	d.stack = append(d.stack, child)
	d.observeDepth(ctx)
	d.logger.DebugContext(ctx, "diff: scope entered", "scope", child.ScopeID.String())

	return nil
}

func (d *Driver) dispatchEmu(ctx context.Context, v Verb) error {
	if len(d.stack) < 2 { //nolint:mnd // root scope guard: fewer than 2 frames means there is no child to pop.
		return &StructureError{Reason: "emu at root scope", ScopePath: d.scopePath()}
	}

	active := d.top()
	if !active.ScopeID.Equal(v.Arg.Identity()) {
		return &StructureError{
			Reason:    "emu scope identity does not match the open mut",
			ScopePath: d.scopePath(),
		}
	}

	if !active.Mutator.CompleteScope() {
		active.state = frameError

		return &StructureError{Reason: "pending source elements remain in child scope", ScopePath: d.scopePath()}
	}

	active.state = frameSettled
	d.stack = d.stack[:len(d.stack)-1]
	d.logger.DebugContext(ctx, "diff: scope left", "scope", active.ScopeID.String())

	return nil
}
