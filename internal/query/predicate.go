package query

// Predicate decides whether an item belongs to a filtered view.
type Predicate[T any] func(T) bool

// And returns a predicate that holds when every given predicate holds.
func And[T any](preds ...Predicate[T]) Predicate[T] {
	return func(v T) bool {
		for _, p := range preds {
			if !p(v) {
				return false
			}
		}
		return true
	}
}

// Or returns a predicate that holds when any given predicate holds.
func Or[T any](preds ...Predicate[T]) Predicate[T] {
	return func(v T) bool {
		for _, p := range preds {
			if p(v) {
				return true
			}
		}
		return false
	}
}

// Not returns the negation of a predicate.
func Not[T any](pred Predicate[T]) Predicate[T] {
	return func(v T) bool {
		return !pred(v)
	}
}
