package models

// Upstream carries a prior stage's output in one of two shapes: the typed
// record produced in-process, or an untyped map restored from a checkpoint.
// Consumers must not inspect the shape themselves; they normalise it once.
type Upstream[T any] struct {
	typed *T
	raw   map[string]any
}

// Typed wraps an in-process stage result.
func Typed[T any](v T) Upstream[T] {
	return Upstream[T]{typed: &v}
}

// Raw wraps an untyped key/value representation of a stage result.
func Raw[T any](m map[string]any) Upstream[T] {
	return Upstream[T]{raw: m}
}

// Missing is an Upstream with neither shape; normalisation yields defaults.
func Missing[T any]() Upstream[T] {
	return Upstream[T]{}
}

// Typed returns the typed value when present.
func (u Upstream[T]) Typed() (T, bool) {
	if u.typed == nil {
		var zero T
		return zero, false
	}
	return *u.typed, true
}

// Raw returns the untyped map when present.
func (u Upstream[T]) Raw() (map[string]any, bool) {
	return u.raw, u.raw != nil
}

// Present reports whether either shape is set.
func (u Upstream[T]) Present() bool {
	return u.typed != nil || u.raw != nil
}
