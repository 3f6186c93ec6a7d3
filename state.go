package intercept

import (
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Segment identifies the tracing segment that was active when an
// intercepted call began. The zero value is the empty segment, used when
// no trace is in flight.
type Segment struct {
	span trace.SpanContext
}

// NewSegment wraps a span context in a Segment.
func NewSegment(sc trace.SpanContext) Segment {
	return Segment{span: sc}
}

// SpanContext returns the underlying span context.
func (s Segment) SpanContext() trace.SpanContext { return s.span }

// Valid reports whether the segment refers to a live trace.
func (s Segment) Valid() bool { return s.span.IsValid() }

// SegmentSource reports the tracing segment currently active for the
// calling goroutine's logical context. The tracer owns updates; this core
// only reads.
//
// Implementations must be safe for concurrent use and must return the
// zero Segment rather than failing when no segment is active.
type SegmentSource interface {
	Current() Segment
}

// SegmentSourceFunc is a function adapter for SegmentSource.
type SegmentSourceFunc func() Segment

// Current implements the SegmentSource interface.
func (f SegmentSourceFunc) Current() Segment { return f() }

// nopSegmentSource is the default source when no tracer is wired in.
type nopSegmentSource struct{}

func (nopSegmentSource) Current() Segment { return Segment{} }

// CallState links one begin call to its matching end call. It is created
// by a Begin entry point, carried by the injected call site across the
// original method body, and handed back to End. A CallState belongs to
// exactly one physical invocation and is never reused, even across
// recursive calls to the same target.
type CallState struct {
	id      uuid.UUID
	segment Segment
	payload any
}

func newCallState(segment Segment, payload any) CallState {
	return CallState{id: uuid.New(), segment: segment, payload: payload}
}

// ID returns the unique identifier of this invocation.
func (s CallState) ID() uuid.UUID { return s.id }

// Segment returns the tracing segment captured when the call began.
func (s CallState) Segment() Segment { return s.segment }

// Payload returns the opaque value produced by the integration's begin
// handler. It is nil when no handler ran or the handler failed.
func (s CallState) Payload() any { return s.payload }
