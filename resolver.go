package intercept

import "reflect"

// binding is the resolved, immutable invocation path for one shape key.
// A binding with no invoker is the no-op binding: it is what every
// failure mode resolves to, so dispatch never has an error path.
type binding struct {
	integration string
	target      reflect.Type
	args        []reflect.Type
	ret         reflect.Type

	beginInvoke func(target any, args []any) (any, error)
	endInvoke   func(target, result any, callErr error, payload any) (any, error)
}

// resolveBegin finds the best-matching begin handler for an observed
// shape. It never panics past this boundary: any failure, including a
// panic during matching, produces the no-op binding.
func (d *Dispatcher) resolveBegin(integration string, target reflect.Type, args []reflect.Type) (b binding) {
	b = binding{integration: integration, target: target, args: args}
	shape := Shape{Integration: integration, Target: target, Args: args}

	defer func() {
		if r := recover(); r != nil {
			b.beginInvoke = nil
			d.hooks.callOnResolveMiss(shape)
		}
	}()

	integ, ok := d.lookup(integration)
	if !ok {
		d.hooks.callOnResolveMiss(shape)
		return b
	}

	best := -1
	bestScore := 0
	for idx, h := range integ.begins {
		score, ok := matchBegin(h, target, args)
		if !ok {
			continue
		}
		if best < 0 || score > bestScore {
			best, bestScore = idx, score
		}
	}
	if best < 0 {
		d.hooks.callOnResolveMiss(shape)
		return b
	}

	b.beginInvoke = integ.begins[best].invoke
	d.hooks.callOnResolve(shape)
	return b
}

// resolveEnd is the end-shape counterpart of resolveBegin.
func (d *Dispatcher) resolveEnd(integration string, target, ret reflect.Type) (b binding) {
	b = binding{integration: integration, target: target, ret: ret}
	shape := Shape{Integration: integration, Target: target, Result: ret, End: true}

	defer func() {
		if r := recover(); r != nil {
			b.endInvoke = nil
			d.hooks.callOnResolveMiss(shape)
		}
	}()

	integ, ok := d.lookup(integration)
	if !ok {
		d.hooks.callOnResolveMiss(shape)
		return b
	}

	best := -1
	bestScore := 0
	for idx, h := range integ.ends {
		score, ok := matchEnd(h, target, ret)
		if !ok {
			continue
		}
		if best < 0 || score > bestScore {
			best, bestScore = idx, score
		}
	}
	if best < 0 {
		d.hooks.callOnResolveMiss(shape)
		return b
	}

	b.endInvoke = integ.ends[best].invoke
	d.hooks.callOnResolve(shape)
	return b
}

// matchBegin scores a begin declaration against an observed shape.
// Fixed-arity declarations carry a flat bonus so they always outrank
// variadic ones; within a tier, every exact type match adds one. Higher
// scores win; ties go to registration order (the caller keeps the first
// best).
func matchBegin(h beginHandler, target reflect.Type, args []reflect.Type) (score int, ok bool) {
	exact, ok := matchType(h.target, target)
	if !ok {
		return 0, false
	}
	if exact {
		score++
	}

	if h.variadic {
		return score, true
	}
	if len(h.args) != len(args) {
		return 0, false
	}
	// Tier bonus: a variadic declaration can score at most 1 (exact
	// target), so any matching fixed-arity declaration outranks it.
	score += 2
	for i, declared := range h.args {
		exact, ok := matchType(declared, args[i])
		if !ok {
			return 0, false
		}
		if exact {
			score++
		}
	}
	return score, true
}

// matchEnd scores an end declaration against an observed shape. A void
// declaration (nil ret) matches only a nil observed result; a typed
// declaration also matches nil, receiving its zero value.
func matchEnd(h endHandler, target, ret reflect.Type) (score int, ok bool) {
	exact, ok := matchType(h.target, target)
	if !ok {
		return 0, false
	}
	if exact {
		score++
	}

	if h.ret == nil {
		if ret != nil {
			return 0, false
		}
		return score, true
	}
	exact, ok = matchType(h.ret, ret)
	if !ok {
		return 0, false
	}
	if exact {
		score++
	}
	return score, true
}

// matchType reports whether an observed type satisfies a declared one.
// A nil observed type (the runtime type of an untyped nil value) matches
// anything without contributing exactness.
func matchType(declared, observed reflect.Type) (exact, ok bool) {
	if observed == nil {
		return false, true
	}
	if declared == observed {
		return true, true
	}
	return false, observed.AssignableTo(declared)
}
