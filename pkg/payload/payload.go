// Package payload implements the type-erased container that flows across
// every port in the pipeline graph. Nodes exchange Payloads rather than
// concrete frame types so that the graph-building layer never needs to
// know about Frame or buffer internals; type safety is recovered at the
// edges via Downcast, which fails with a diagnostic naming both the actual
// and requested types. Reference counting of a Payload's underlying frame
// (for nodes with more than one consumer, e.g. the cache node) is tracked
// by the caller, not by Payload itself.
package payload

import (
	"fmt"
	"reflect"
)

// Payload wraps an arbitrary value alongside the name of its concrete
// type, recorded at construction time so that a failed downcast can report
// exactly what was produced and what was expected.
type Payload struct {
	data     any
	typeName string
}

// New wraps value in a Payload, capturing its concrete type name for
// downcast diagnostics.
func New(value any) Payload {
	return Payload{data: value, typeName: reflect.TypeOf(value).String()}
}

// TypeName reports the concrete Go type the Payload was constructed from.
func (p Payload) TypeName() string {
	return p.typeName
}

// Downcast retrieves the payload's value as T. If the underlying value is
// not a T, it returns an error identifying the incompatible port types —
// the two nodes connected by this edge disagree about what flows between
// them.
func Downcast[T any](p Payload) (T, error) {
	v, ok := p.data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf(
			"payload containing %s cannot be made into %s: the nodes you connected have incompatible port types",
			p.typeName, reflect.TypeOf(zero),
		)
	}
	return v, nil
}

// MustDowncast is Downcast for call sites that have already validated the
// port types during graph construction and treat a mismatch as a
// programming error rather than a runtime condition to recover from.
func MustDowncast[T any](p Payload) T {
	v, err := Downcast[T](p)
	if err != nil {
		panic(err)
	}
	return v
}
