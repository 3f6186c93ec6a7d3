package intercept

import (
	"fmt"
	"reflect"
)

// Dispatcher routes intercepted calls to integration handlers and owns
// the process-lifetime binding cache.
//
// Usage:
//  1. Create a dispatcher with New
//  2. Add integrations with AddIntegration
//  3. Have the injection layer call Begin*/End around instrumented calls
//
// Dispatcher is safe for concurrent use after configuration. Do not call
// AddIntegration after dispatching has started.
//
// Dispatch never fails. Every entry point returns a usable value no
// matter what an integration does: unresolvable shapes become cached
// no-op bindings, handler errors and panics are contained at the entry
// point boundary, and the instrumented call's own outcome is never
// altered except by an end handler that successfully returns an adjusted
// result.
type Dispatcher struct {
	integrations map[string]*Integration
	segments     SegmentSource
	cache        bindingCache
	hooks        hooks

	enabled bool
	// allow is a per-integration toggle from configuration. nil means
	// every registered integration is enabled.
	allow map[string]bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// New creates a Dispatcher with the given options.
//
// Example:
//
//	d := intercept.New(
//	    intercept.WithSegmentSource(tracerSource),
//	    intercept.WithConfig(intercept.LoadConfig()),
//	    intercept.WithOnResolveMiss(func(s intercept.Shape) {
//	        slog.Debug("no handler", "shape", s.String())
//	    }),
//	)
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		integrations: make(map[string]*Integration),
		segments:     nopSegmentSource{},
		enabled:      true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithSegmentSource sets the source of the currently active tracing
// segment. The default source always reports the empty segment.
func WithSegmentSource(src SegmentSource) Option {
	return func(d *Dispatcher) {
		d.segments = src
	}
}

// WithConfig applies loaded configuration: the global enable switch and
// per-integration toggles. Disabled integrations resolve every shape to
// the no-op binding.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) {
		d.enabled = cfg.Enabled
		if cfg.Integrations == nil {
			d.allow = nil
			return
		}
		d.allow = make(map[string]bool, len(cfg.Integrations))
		for _, ic := range cfg.Integrations {
			d.allow[ic.Name] = ic.Enabled
		}
	}
}

// AddIntegration registers an integration by name. Later registrations
// with the same name replace earlier ones.
func (d *Dispatcher) AddIntegration(i *Integration) {
	d.integrations[i.Name()] = i
}

func (d *Dispatcher) lookup(name string) (*Integration, bool) {
	i, ok := d.integrations[name]
	return i, ok
}

// integrationEnabled applies the global switch and the config allow-list.
func (d *Dispatcher) integrationEnabled(name string) bool {
	if !d.enabled {
		return false
	}
	if d.allow == nil {
		return true
	}
	return d.allow[name]
}

// Begin0 dispatches the begin of a zero-argument intercepted call.
func (d *Dispatcher) Begin0(integration string, target any) CallState {
	return d.begin(integration, target, nil)
}

// Begin1 dispatches the begin of a one-argument intercepted call.
func (d *Dispatcher) Begin1(integration string, target, a0 any) CallState {
	return d.begin(integration, target, []any{a0})
}

// Begin2 dispatches the begin of a two-argument intercepted call.
func (d *Dispatcher) Begin2(integration string, target, a0, a1 any) CallState {
	return d.begin(integration, target, []any{a0, a1})
}

// Begin3 dispatches the begin of a three-argument intercepted call.
func (d *Dispatcher) Begin3(integration string, target, a0, a1, a2 any) CallState {
	return d.begin(integration, target, []any{a0, a1, a2})
}

// Begin4 dispatches the begin of a four-argument intercepted call.
func (d *Dispatcher) Begin4(integration string, target, a0, a1, a2, a3 any) CallState {
	return d.begin(integration, target, []any{a0, a1, a2, a3})
}

// Begin5 dispatches the begin of a five-argument intercepted call.
func (d *Dispatcher) Begin5(integration string, target, a0, a1, a2, a3, a4 any) CallState {
	return d.begin(integration, target, []any{a0, a1, a2, a3, a4})
}

// Begin6 dispatches the begin of a six-argument intercepted call.
func (d *Dispatcher) Begin6(integration string, target, a0, a1, a2, a3, a4, a5 any) CallState {
	return d.begin(integration, target, []any{a0, a1, a2, a3, a4, a5})
}

// BeginSlice dispatches the begin of an intercepted call with boxed
// arguments. It supports any arity and is the fallback for calls above
// the specialized entry points.
func (d *Dispatcher) BeginSlice(integration string, target any, args []any) CallState {
	return d.begin(integration, target, args)
}

func (d *Dispatcher) begin(integration string, target any, args []any) CallState {
	argTypes := make([]reflect.Type, len(args))
	for i := range args {
		argTypes[i] = typeOfValue(args[i])
	}
	targetType := typeOfValue(target)
	key := beginKey(integration, targetType, argTypes)

	b := d.cache.getOrResolve(key, func() binding {
		if !d.integrationEnabled(integration) {
			d.hooks.callOnDisabled(integration)
			return binding{integration: integration, target: targetType, args: argTypes}
		}
		return d.resolveBegin(integration, targetType, argTypes)
	})

	segment := d.currentSegment()
	if b.beginInvoke == nil {
		return newCallState(segment, nil)
	}

	payload, err := invokeBegin(b, target, args)
	if err != nil {
		d.hooks.callOnBeginError(Shape{Integration: integration, Target: targetType, Args: argTypes}, err)
		return newCallState(segment, nil)
	}
	return newCallState(segment, payload)
}

// End dispatches the end of an intercepted call that produced result
// (nil if the call errored or returns nothing) and callErr (nil on
// success). state must be the CallState returned by the matching Begin
// call. The return value is the possibly adjusted result; on any handler
// failure the original result is returned unchanged.
func (d *Dispatcher) End(integration string, target, result any, callErr error, state CallState) any {
	targetType := typeOfValue(target)
	retType := typeOfValue(result)
	key := endKey(integration, targetType, retType)

	b := d.cache.getOrResolve(key, func() binding {
		if !d.integrationEnabled(integration) {
			d.hooks.callOnDisabled(integration)
			return binding{integration: integration, target: targetType, ret: retType}
		}
		return d.resolveEnd(integration, targetType, retType)
	})

	if b.endInvoke == nil {
		return result
	}

	adjusted, err := invokeEnd(b, target, result, callErr, state.Payload())
	if err != nil {
		d.hooks.callOnEndError(Shape{Integration: integration, Target: targetType, Result: retType, End: true}, err)
		return result
	}
	return adjusted
}

// EndVoid dispatches the end of an intercepted call with no return value
// beyond an error.
func (d *Dispatcher) EndVoid(integration string, target any, callErr error, state CallState) {
	_ = d.End(integration, target, nil, callErr, state)
}

// invokeBegin is the swallow boundary around integration begin handlers:
// a panicking handler is reported as an error, never propagated into the
// instrumented application.
func invokeBegin(b *binding, target any, args []any) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, &panicError{value: r}
		}
	}()
	return b.beginInvoke(target, args)
}

// invokeEnd is the swallow boundary around integration end handlers.
func invokeEnd(b *binding, target, result any, callErr error, payload any) (adjusted any, err error) {
	defer func() {
		if r := recover(); r != nil {
			adjusted, err = nil, &panicError{value: r}
		}
	}()
	return b.endInvoke(target, result, callErr, payload)
}

// currentSegment reads the active segment, degrading to the empty
// segment if a custom source misbehaves.
func (d *Dispatcher) currentSegment() (segment Segment) {
	defer func() {
		if r := recover(); r != nil {
			segment = Segment{}
		}
	}()
	return d.segments.Current()
}

// panicError wraps a recovered handler panic so hooks observe it as an
// ordinary error.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("handler panic: %v", e.value) }
