package math

import "golang.org/x/exp/constraints"

// Clamp bounds v to [lo, hi]. When lo > hi the result is lo.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
