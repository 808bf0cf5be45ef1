// Package weighted draws one item from a list of options in proportion to
// their non-negative weights.
package weighted

import "errors"

// ErrNoOptions is returned when Choose is given nothing to choose from.
var ErrNoOptions = errors.New("weighted: no options to choose from")

// Source supplies uniform floats in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Option pairs a value with its relative weight. Weights do not need to sum
// to one; negative weights count as zero.
type Option[T any] struct {
	Value  T
	Weight float64
}

// Choose picks an option with probability weight/total. It walks the options
// in order and returns the first whose cumulative weight meets or exceeds the
// draw. A zero-weight option has probability zero but can still be returned
// for a draw of exactly 0 when it leads the list.
// When every weight is zero the first option is returned, and if
// floating-point rounding leaves the draw past the final boundary the last
// option is returned.
func Choose[T any](src Source, options []Option[T]) (T, error) {
	var zero T
	if len(options) == 0 {
		return zero, ErrNoOptions
	}

	var total float64
	for _, o := range options {
		if o.Weight > 0 {
			total += o.Weight
		}
	}
	if total <= 0 {
		return options[0].Value, nil
	}

	r := src.Float64() * total
	var cumulative float64
	for _, o := range options {
		if o.Weight > 0 {
			cumulative += o.Weight
		}
		if cumulative >= r {
			return o.Value, nil
		}
	}
	return options[len(options)-1].Value, nil
}
