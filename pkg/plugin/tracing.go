package plugin

// TraceFunc opens a trace span named name and returns the function that
// closes it. Any tracer can be plugged in this way — a Prometheus
// histogram timer, an OpenTelemetry span, or a no-op in tests.
type TraceFunc func(name string) func()

// Tracing wraps pre_tick/post_tick with a pair of trace marks from a
// single TraceFunc, generalizing a profiling-vendor-specific wrapper
// into one that works with whatever tracer the caller supplies.
type Tracing struct {
	trace TraceFunc
	end   func()
}

// NewTracing returns a PreTicker/PostTicker pair driven by trace.
func NewTracing(trace TraceFunc) *Tracing {
	return &Tracing{trace: trace}
}

// PreTick implements PreTicker.
func (t *Tracing) PreTick() {
	t.end = t.trace("tick")
}

// PostTick implements PostTicker.
func (t *Tracing) PostTick() {
	if t.end != nil {
		t.end()
		t.end = nil
	}
}
