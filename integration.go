package intercept

import "reflect"

// Integration is a pluggable module that declares begin and end handlers
// for the method shapes it wants to observe. Handlers are registered with
// the generic OnBegin*/OnEnd* functions, which capture the declared types
// for structural matching at dispatch time.
//
// When several declarations could match one observed shape, the most
// specific wins: exact type matches are counted across the target and
// every argument position, the highest count is chosen, and ties go to
// the handler registered first. Fixed-arity declarations always outrank
// variadic ones.
//
// Register all handlers before the integration is added to a Dispatcher
// that is already dispatching; registration is not synchronized.
type Integration struct {
	name   string
	begins []beginHandler
	ends   []endHandler
}

// NewIntegration creates an empty integration with the given name. The
// name is the identity used by dispatch entry points and configuration.
func NewIntegration(name string) *Integration {
	return &Integration{name: name}
}

// Name returns the integration's identity.
func (i *Integration) Name() string { return i.name }

// beginHandler is one declared begin shape with its type-erased invoker.
type beginHandler struct {
	target   reflect.Type
	args     []reflect.Type
	variadic bool
	invoke   func(target any, args []any) (any, error)
}

// endHandler is one declared end shape with its type-erased invoker.
// ret is nil for void declarations.
type endHandler struct {
	target reflect.Type
	ret    reflect.Type
	invoke func(target, result any, callErr error, payload any) (any, error)
}

// argAs converts a boxed argument back to its declared type. A nil boxed
// value becomes the declared type's zero value, so handlers never see a
// type assertion panic for nil arguments.
func argAs[A any](v any) A {
	if v == nil {
		var zero A
		return zero
	}
	return v.(A)
}

// OnBegin0 registers a begin handler for a zero-argument method on T.
// The returned payload is handed back verbatim to the matching end
// handler.
//
// These are package-level functions (not methods) due to Go generics
// limitations: methods cannot have type parameters independent of the
// receiver.
func OnBegin0[T any](i *Integration, fn func(target T) (any, error)) {
	i.begins = append(i.begins, beginHandler{
		target: typeOf[T](),
		invoke: func(target any, _ []any) (any, error) {
			return fn(argAs[T](target))
		},
	})
}

// OnBegin1 registers a begin handler for a one-argument method on T.
func OnBegin1[T, A0 any](i *Integration, fn func(target T, a0 A0) (any, error)) {
	i.begins = append(i.begins, beginHandler{
		target: typeOf[T](),
		args:   []reflect.Type{typeOf[A0]()},
		invoke: func(target any, args []any) (any, error) {
			return fn(argAs[T](target), argAs[A0](args[0]))
		},
	})
}

// OnBegin2 registers a begin handler for a two-argument method on T.
func OnBegin2[T, A0, A1 any](i *Integration, fn func(target T, a0 A0, a1 A1) (any, error)) {
	i.begins = append(i.begins, beginHandler{
		target: typeOf[T](),
		args:   []reflect.Type{typeOf[A0](), typeOf[A1]()},
		invoke: func(target any, args []any) (any, error) {
			return fn(argAs[T](target), argAs[A0](args[0]), argAs[A1](args[1]))
		},
	})
}

// OnBegin3 registers a begin handler for a three-argument method on T.
func OnBegin3[T, A0, A1, A2 any](i *Integration, fn func(target T, a0 A0, a1 A1, a2 A2) (any, error)) {
	i.begins = append(i.begins, beginHandler{
		target: typeOf[T](),
		args:   []reflect.Type{typeOf[A0](), typeOf[A1](), typeOf[A2]()},
		invoke: func(target any, args []any) (any, error) {
			return fn(argAs[T](target), argAs[A0](args[0]), argAs[A1](args[1]), argAs[A2](args[2]))
		},
	})
}

// OnBegin4 registers a begin handler for a four-argument method on T.
func OnBegin4[T, A0, A1, A2, A3 any](i *Integration, fn func(target T, a0 A0, a1 A1, a2 A2, a3 A3) (any, error)) {
	i.begins = append(i.begins, beginHandler{
		target: typeOf[T](),
		args:   []reflect.Type{typeOf[A0](), typeOf[A1](), typeOf[A2](), typeOf[A3]()},
		invoke: func(target any, args []any) (any, error) {
			return fn(argAs[T](target), argAs[A0](args[0]), argAs[A1](args[1]), argAs[A2](args[2]), argAs[A3](args[3]))
		},
	})
}

// OnBegin5 registers a begin handler for a five-argument method on T.
func OnBegin5[T, A0, A1, A2, A3, A4 any](i *Integration, fn func(target T, a0 A0, a1 A1, a2 A2, a3 A3, a4 A4) (any, error)) {
	i.begins = append(i.begins, beginHandler{
		target: typeOf[T](),
		args:   []reflect.Type{typeOf[A0](), typeOf[A1](), typeOf[A2](), typeOf[A3](), typeOf[A4]()},
		invoke: func(target any, args []any) (any, error) {
			return fn(argAs[T](target), argAs[A0](args[0]), argAs[A1](args[1]), argAs[A2](args[2]), argAs[A3](args[3]), argAs[A4](args[4]))
		},
	})
}

// OnBegin6 registers a begin handler for a six-argument method on T.
func OnBegin6[T, A0, A1, A2, A3, A4, A5 any](i *Integration, fn func(target T, a0 A0, a1 A1, a2 A2, a3 A3, a4 A4, a5 A5) (any, error)) {
	i.begins = append(i.begins, beginHandler{
		target: typeOf[T](),
		args:   []reflect.Type{typeOf[A0](), typeOf[A1](), typeOf[A2](), typeOf[A3](), typeOf[A4](), typeOf[A5]()},
		invoke: func(target any, args []any) (any, error) {
			return fn(argAs[T](target), argAs[A0](args[0]), argAs[A1](args[1]), argAs[A2](args[2]), argAs[A3](args[3]), argAs[A4](args[4]), argAs[A5](args[5]))
		},
	})
}

// OnBeginVariadic registers a begin handler that matches any argument
// count on T with boxed arguments. It is the fallback for arities above
// the specialized entry points; any fixed-arity declaration that matches
// a shape is preferred over it.
func OnBeginVariadic[T any](i *Integration, fn func(target T, args ...any) (any, error)) {
	i.begins = append(i.begins, beginHandler{
		target:   typeOf[T](),
		variadic: true,
		invoke: func(target any, args []any) (any, error) {
			return fn(argAs[T](target), args...)
		},
	})
}

// OnEnd registers an end handler for methods on T returning R. It
// receives the original result, the error the call returned (nil on
// success), and the payload produced by the matching begin handler. The
// returned R replaces the original result; return the result unchanged
// to leave the call's outcome alone.
func OnEnd[T, R any](i *Integration, fn func(target T, result R, callErr error, payload any) (R, error)) {
	i.ends = append(i.ends, endHandler{
		target: typeOf[T](),
		ret:    typeOf[R](),
		invoke: func(target, result any, callErr error, payload any) (any, error) {
			return fn(argAs[T](target), argAs[R](result), callErr, payload)
		},
	})
}

// OnEndVoid registers an end handler for methods on T with no return
// value beyond an error.
func OnEndVoid[T any](i *Integration, fn func(target T, callErr error, payload any) error) {
	i.ends = append(i.ends, endHandler{
		target: typeOf[T](),
		invoke: func(target, _ any, callErr error, payload any) (any, error) {
			return nil, fn(argAs[T](target), callErr, payload)
		},
	})
}
