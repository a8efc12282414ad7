// Package changes computes ordered-merge deltas between two sorted slices.
package changes

import (
	"fmt"
	"strings"
)

// Pair holds the observed and desired copies of one identity whose semantic
// fields differ.
type Pair[T any] struct {
	Actual  T
	Desired T
}

// Delta is the difference between an actual and a desired slice.
type Delta[T any] struct {
	Added    []T
	Removed  []T
	Modified []Pair[T]
}

// Empty reports whether the delta carries no work. A nil delta is empty.
func (d *Delta[T]) Empty() bool {
	return d == nil || (len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0)
}

// Description returns a short human-readable summary of the delta.
func (d *Delta[T]) Description() string {
	if d.Empty() {
		return "no changes"
	}
	parts := make([]string, 0, 3)
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(d.Modified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", n))
	}
	return strings.Join(parts, ", ")
}

// Compute walks actual and desired, both sorted by compare, and classifies
// every element. Elements with compare == 0 are the same identity; equal
// decides whether they are unchanged or modified. Compute returns nil when
// nothing differs.
func Compute[T any](actual, desired []T, compare func(a, b T) int, equal func(a, b T) bool) *Delta[T] {
	d := &Delta[T]{}
	i, j := 0, 0
	for i < len(actual) && j < len(desired) {
		c := compare(actual[i], desired[j])
		switch {
		case c < 0:
			d.Removed = append(d.Removed, actual[i])
			i++
		case c > 0:
			d.Added = append(d.Added, desired[j])
			j++
		default:
			if !equal(actual[i], desired[j]) {
				d.Modified = append(d.Modified, Pair[T]{Actual: actual[i], Desired: desired[j]})
			}
			i++
			j++
		}
	}
	d.Removed = append(d.Removed, actual[i:]...)
	d.Added = append(d.Added, desired[j:]...)
	if d.Empty() {
		return nil
	}
	return d
}
