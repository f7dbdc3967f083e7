package query

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

// ErrNegativeLimit is reported when Limit is called with a negative n.
var ErrNegativeLimit = errors.New("query: negative limit")

// Pipeline is a lazy, chainable view over a sequence of items.
//
// Each stage returns a new Pipeline; no stage mutates its source, so a
// pipeline value can be built once and iterated (or rebuilt) multiple
// times. Nothing is evaluated until the pipeline is materialized via
// Enumerate or Collect.
//
// Example:
//
//	top, err := query.From(illusts).
//	    OrderBy(byBookmarks).
//	    Limit(50).
//	    Filter(hasTag("original")).
//	    Collect()
type Pipeline[T any] struct {
	seq iter.Seq[T]
	err error
}

// From creates a pipeline over a slice. The slice is not copied; it
// must not be mutated while the pipeline is in use.
func From[T any](items []T) Pipeline[T] {
	return Pipeline[T]{seq: slices.Values(items)}
}

// FromSeq creates a pipeline over an arbitrary sequence.
func FromSeq[T any](seq iter.Seq[T]) Pipeline[T] {
	return Pipeline[T]{seq: seq}
}

// Err returns the first configuration error recorded on the pipeline,
// if any. Stages applied after an error are no-ops.
func (p Pipeline[T]) Err() error {
	return p.err
}

// OrderBy returns a view sorted by the given comparators, applied in
// order until one is decisive. The sort is stable: ties preserve
// source order. Sorting requires materializing the current view, but
// this is deferred until the pipeline itself is iterated.
func (p Pipeline[T]) OrderBy(cmps ...func(a, b T) int) Pipeline[T] {
	if p.err != nil || len(cmps) == 0 {
		return p
	}
	src := p.seq
	p.seq = func(yield func(T) bool) {
		sorted := slices.SortedStableFunc(src, func(a, b T) int {
			for _, cmp := range cmps {
				if c := cmp(a, b); c != 0 {
					return c
				}
			}
			return 0
		})
		for _, v := range sorted {
			if !yield(v) {
				return
			}
		}
	}
	return p
}

// Limit returns a view truncated to at most the first n items. A
// negative n poisons the pipeline with ErrNegativeLimit; Limit(0)
// yields an empty view.
func (p Pipeline[T]) Limit(n int) Pipeline[T] {
	if p.err != nil {
		return p
	}
	if n < 0 {
		p.err = fmt.Errorf("%w: %d", ErrNegativeLimit, n)
		p.seq = nil
		return p
	}
	src := p.seq
	p.seq = func(yield func(T) bool) {
		remaining := n
		for v := range src {
			if remaining == 0 {
				return
			}
			remaining--
			if !yield(v) {
				return
			}
		}
	}
	return p
}

// Filter returns a view containing only items for which pred holds.
func (p Pipeline[T]) Filter(pred Predicate[T]) Pipeline[T] {
	if p.err != nil || pred == nil {
		return p
	}
	src := p.seq
	p.seq = func(yield func(T) bool) {
		for v := range src {
			if pred(v) && !yield(v) {
				return
			}
		}
	}
	return p
}

// Exclude returns a view containing only items for which pred does not
// hold.
func (p Pipeline[T]) Exclude(pred Predicate[T]) Pipeline[T] {
	if pred == nil {
		return p
	}
	return p.Filter(Not(pred))
}

// Enumerate returns a lazy sequence of (index, item) pairs, the index
// beginning at start and incrementing by one per item in view order.
// A poisoned pipeline enumerates nothing; check Err.
func (p Pipeline[T]) Enumerate(start int) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		if p.err != nil || p.seq == nil {
			return
		}
		i := start
		for v := range p.seq {
			if !yield(i, v) {
				return
			}
			i++
		}
	}
}

// Collect materializes the current view into a slice.
func (p Pipeline[T]) Collect() ([]T, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.seq == nil {
		return nil, nil
	}
	return slices.Collect(p.seq), nil
}
