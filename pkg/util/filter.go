package util

import "golang.org/x/exp/slices"

// Filter returns the elements of s matching p, leaving s untouched. The result is never nil.
func Filter[T any](s []T, p func(T) bool) []T {
	return slices.DeleteFunc(append(make([]T, 0, len(s)), s...), func(e T) bool {
		return !p(e)
	})
}
