package calcs

import "sort"

// Point is a single calibration point mapping a raw reading to an output value.
type Point struct {
	Raw   int
	Value int
}

// Curve is a piecewise linear calibration curve. Points must be sorted by Raw.
type Curve []Point

// Translate maps val from [leftMin, leftMax] onto [rightMin, rightMax] using integer maths.
// Values outside the left range extrapolate; use Clamp on the result if that is not wanted.
func Translate(val, leftMin, leftMax, rightMin, rightMax int) int {
	leftSpan := leftMax - leftMin
	if leftSpan == 0 {
		return rightMin
	}
	rightSpan := rightMax - rightMin

	return rightMin + (val-leftMin)*rightSpan/leftSpan
}

// Clamp limits val to [lo, hi]. The bounds may be given in either order.
func Clamp(val, lo, hi int) int {
	if lo > hi {
		lo, hi = hi, lo
	}
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// Sorted reports whether the curve points are in strictly increasing raw order.
func (c Curve) Sorted() bool {
	return sort.SliceIsSorted(c, func(i, j int) bool { return c[i].Raw < c[j].Raw }) && !c.duplicates()
}

func (c Curve) duplicates() bool {
	for i := 1; i < len(c); i++ {
		if c[i].Raw == c[i-1].Raw {
			return true
		}
	}
	return false
}

// Eval interpolates raw along the curve. Readings outside the calibrated range clamp to
// the first or last point instead of extrapolating.
func (c Curve) Eval(raw int) int {
	if len(c) == 0 {
		return 0
	}
	if raw <= c[0].Raw {
		return c[0].Value
	}
	last := c[len(c)-1]
	if raw >= last.Raw {
		return last.Value
	}

	// first point strictly above raw
	i := sort.Search(len(c), func(i int) bool { return c[i].Raw > raw })
	lo, hi := c[i-1], c[i]
	return Translate(raw, lo.Raw, hi.Raw, lo.Value, hi.Value)
}
