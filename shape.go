package intercept

import (
	"reflect"
	"strings"
)

// maxSpecializedArity is the highest argument count with a specialized
// Begin entry point. Higher arities go through BeginSlice and contribute
// their extra argument types to the key's overflow field.
const maxSpecializedArity = 6

type handlerKind uint8

const (
	kindBegin handlerKind = iota
	kindEnd
)

// shapeKey uniquely identifies one observed call shape. It is comparable
// so it can key the binding cache directly. Argument types beyond the
// specialized set are folded into overflow as canonical names.
type shapeKey struct {
	integration string
	kind        handlerKind
	target      reflect.Type
	ret         reflect.Type
	arity       int
	args        [maxSpecializedArity]reflect.Type
	overflow    string
}

func beginKey(integration string, target reflect.Type, args []reflect.Type) shapeKey {
	key := shapeKey{
		integration: integration,
		kind:        kindBegin,
		target:      target,
		arity:       len(args),
	}
	for i, t := range args {
		if i < maxSpecializedArity {
			key.args[i] = t
			continue
		}
		if key.overflow != "" {
			key.overflow += "|"
		}
		key.overflow += typeIdent(t)
	}
	return key
}

func endKey(integration string, target, ret reflect.Type) shapeKey {
	return shapeKey{
		integration: integration,
		kind:        kindEnd,
		target:      target,
		ret:         ret,
	}
}

// Shape describes a call shape for hook callbacks. Types are nil for
// positions whose runtime value was nil.
type Shape struct {
	// Integration is the name the shape was dispatched against.
	Integration string

	// Target is the type of the instrumented instance.
	Target reflect.Type

	// Args holds the argument types of a begin shape, in order.
	Args []reflect.Type

	// Result is the return type of an end shape.
	Result reflect.Type

	// End reports whether this is an end shape rather than a begin shape.
	End bool
}

// String renders the shape for logging, e.g.
// "http: begin (*server.Conn, int, string)".
func (s Shape) String() string {
	var b strings.Builder
	b.WriteString(s.Integration)
	if s.End {
		b.WriteString(": end (")
		b.WriteString(typeIdent(s.Target))
		b.WriteString(") -> ")
		b.WriteString(typeIdent(s.Result))
		return b.String()
	}
	b.WriteString(": begin (")
	b.WriteString(typeIdent(s.Target))
	for _, t := range s.Args {
		b.WriteString(", ")
		b.WriteString(typeIdent(t))
	}
	b.WriteString(")")
	return b.String()
}

// typeOf returns the reflect.Type for a type parameter, including
// interface types, which reflect.TypeOf on a value cannot name.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// typeOfValue returns the dynamic type of v, or nil for a nil value.
func typeOfValue(v any) reflect.Type {
	if v == nil {
		return nil
	}
	return reflect.TypeOf(v)
}

// typeIdent returns a canonical identity string for a type. Named types
// use their full import path to avoid cross-package collisions.
func typeIdent(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if pkg := t.PkgPath(); pkg != "" {
		return pkg + "." + t.Name()
	}
	return t.String()
}
