// Package intercept provides the dispatch core for call-site
// instrumentation: it connects methods intercepted by an injection layer
// to begin/end handlers declared by pluggable integrations.
//
// The package resolves, per unique call shape, a handler binding on first
// use, caches it for the life of the process, and guarantees that nothing
// an integration does — missing handlers, handler errors, handler panics,
// broken configuration — can alter or abort the instrumented call.
//
// # Quick Start
//
// Declare an integration with typed begin/end handlers:
//
//	httpIntegration := intercept.NewIntegration("http")
//
//	intercept.OnBegin1(httpIntegration, func(c *Client, req *http.Request) (any, error) {
//	    return startSpan(req), nil
//	})
//
//	intercept.OnEnd(httpIntegration, func(c *Client, resp *http.Response, callErr error, payload any) (*http.Response, error) {
//	    finishSpan(payload, resp, callErr)
//	    return resp, nil
//	})
//
// Create a dispatcher and register the integration:
//
//	d := intercept.New(intercept.WithSegmentSource(tracerSource))
//	d.AddIntegration(httpIntegration)
//
// The injection layer wraps each instrumented call site:
//
//	state := d.Begin1("http", client, req)
//	resp, err := client.do(req) // original method body
//	resp = d.End("http", client, resp, err, state).(*http.Response)
//
// # Design Philosophy
//
// Instrumentation must be invisible on failure. Every entry point returns
// a usable value on every path:
//
//   - No matching handler: the shape resolves to a cached no-op binding;
//     Begin returns a CallState with an empty payload, End returns the
//     original result.
//   - Handler returns an error or panics: contained at the entry point
//     boundary, reported only through hooks.
//   - Resolution itself fails: contained inside the resolver, cached as
//     a no-op so the failure is paid for once.
//
// The cost of this contract is silently missing telemetry for a call
// site; WithOnResolveMiss and the error hooks exist to make that silence
// observable.
//
// # Dispatch Entry Points
//
// Begin0 through Begin6 cover the common arities; BeginSlice takes boxed
// arguments and supports any arity. End handles calls with a result,
// EndVoid calls without one. The Go pair (result, error) stands in for
// "return value or exception": the injection layer passes both, and end
// handlers receive both.
//
// # Shape Resolution
//
// A shape is (integration, target type, argument types) for begin and
// (integration, target type, result type) for end. Matching is
// structural: a declaration matches when the target and every argument
// position is type-identical or assignable. When several declarations
// match, exact matches are counted across all positions and the highest
// count wins; ties go to registration order; fixed-arity declarations
// always outrank variadic ones.
//
// Resolution runs exactly once per shape, even under concurrent first
// use, and the resulting binding is immutable for the life of the
// process. The key space is bounded by the instrumented call sites, so
// the cache never needs eviction.
//
// # Call State and Segments
//
// Begin captures the currently active tracing segment (a wrapped
// OpenTelemetry span context, read from the SegmentSource) together with
// the begin handler's opaque payload into a CallState. The injection
// layer carries the CallState across the original method body and hands
// it to End, which passes the payload back to the end handler verbatim.
// Each CallState belongs to exactly one invocation.
//
// # Configuration
//
// LoadConfig reads INTERCEPT_ENABLED and, when INTERCEPT_INTEGRATIONS
// names a JSON or YAML file, a per-integration allow-list. A broken file
// disables instrumentation rather than erroring. Apply with WithConfig:
//
//	d := intercept.New(intercept.WithConfig(intercept.LoadConfig()))
//
// # Hooks
//
// Hooks provide observability without coupling to a logging or metrics
// system:
//
//	d := intercept.New(
//	    intercept.WithOnResolveMiss(func(s intercept.Shape) {
//	        slog.Warn("uninstrumented shape", "shape", s.String())
//	    }),
//	    intercept.WithOnBeginError(func(s intercept.Shape, err error) {
//	        metrics.Incr("intercept.begin_error", "integration:"+s.Integration)
//	    }),
//	)
//
// # Thread Safety
//
// Dispatcher is safe for concurrent use after configuration is complete.
// Do not call AddIntegration, or register handlers on an added
// integration, after dispatching has started.
package intercept
