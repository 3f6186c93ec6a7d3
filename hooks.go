package intercept

// Hooks provide observability over dispatch outcomes without coupling the
// core to a specific logging or metrics system. All hooks must be safe
// for concurrent use and must not panic.
//
// Resolution hooks (OnResolve, OnResolveMiss, OnDisabled) fire at most
// once per shape, when its binding is first resolved. Error hooks fire on
// every failing handler invocation.

// OnResolveFunc is called when a shape resolves to a real handler.
type OnResolveFunc func(shape Shape)

// OnResolveMissFunc is called when a shape resolves to the no-op binding
// because no handler matched or resolution failed.
type OnResolveMissFunc func(shape Shape)

// OnBeginErrorFunc is called when a begin handler returns an error or
// panics. The dispatched call proceeds with an empty payload.
type OnBeginErrorFunc func(shape Shape, err error)

// OnEndErrorFunc is called when an end handler returns an error or
// panics. The original result is preserved.
type OnEndErrorFunc func(shape Shape, err error)

// OnDisabledFunc is called when a shape is dispatched against an
// integration that configuration has disabled.
type OnDisabledFunc func(integration string)

// hooks holds all configured hook functions.
type hooks struct {
	onResolve     []OnResolveFunc
	onResolveMiss []OnResolveMissFunc
	onBeginError  []OnBeginErrorFunc
	onEndError    []OnEndErrorFunc
	onDisabled    []OnDisabledFunc
}

// WithOnResolve adds a hook called when a shape resolves to a real
// handler. Multiple hooks are called in order.
//
// Example:
//
//	intercept.WithOnResolve(func(s intercept.Shape) {
//	    slog.Debug("bound handler", "shape", s.String())
//	})
func WithOnResolve(fn OnResolveFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onResolve = append(d.hooks.onResolve, fn)
	}
}

// WithOnResolveMiss adds a hook called when a shape resolves to the
// no-op binding. This is the only signal that a call site is silently
// uninstrumented. Multiple hooks are called in order.
//
// Example:
//
//	intercept.WithOnResolveMiss(func(s intercept.Shape) {
//	    slog.Warn("no handler for shape", "shape", s.String())
//	})
func WithOnResolveMiss(fn OnResolveMissFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onResolveMiss = append(d.hooks.onResolveMiss, fn)
	}
}

// WithOnBeginError adds a hook called when a begin handler fails.
// Multiple hooks are called in order.
//
// Example:
//
//	intercept.WithOnBeginError(func(s intercept.Shape, err error) {
//	    metrics.Incr("intercept.begin_error", "integration:"+s.Integration)
//	})
func WithOnBeginError(fn OnBeginErrorFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onBeginError = append(d.hooks.onBeginError, fn)
	}
}

// WithOnEndError adds a hook called when an end handler fails.
// Multiple hooks are called in order.
func WithOnEndError(fn OnEndErrorFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onEndError = append(d.hooks.onEndError, fn)
	}
}

// WithOnDisabled adds a hook called when a shape is dispatched against a
// disabled integration. Fires at most once per shape.
func WithOnDisabled(fn OnDisabledFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onDisabled = append(d.hooks.onDisabled, fn)
	}
}

func (h *hooks) callOnResolve(shape Shape) {
	for _, fn := range h.onResolve {
		fn(shape)
	}
}

func (h *hooks) callOnResolveMiss(shape Shape) {
	for _, fn := range h.onResolveMiss {
		fn(shape)
	}
}

func (h *hooks) callOnBeginError(shape Shape, err error) {
	for _, fn := range h.onBeginError {
		fn(shape, err)
	}
}

func (h *hooks) callOnEndError(shape Shape, err error) {
	for _, fn := range h.onEndError {
		fn(shape, err)
	}
}

func (h *hooks) callOnDisabled(integration string) {
	for _, fn := range h.onDisabled {
		fn(integration)
	}
}
