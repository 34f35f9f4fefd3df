// Package timebase converts between wall-clock seconds and integer
// presentation timestamps expressed in a stream's rational time base.
package timebase

import (
	"fmt"
	"math"
)

// Rational is a time base: one PTS unit lasts Num/Den seconds.
type Rational struct {
	Num int64
	Den int64
}

// New returns the time base num/den.
func New(num, den int64) Rational {
	return Rational{Num: num, Den: den}
}

// Valid reports whether both terms are positive.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float returns Num/Den.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns Den/Num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// String returns the time base as "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// TimeToPTS converts seconds to a PTS in this time base.
//
// The result is rounded to the nearest unit rather than floored, so a time
// computed from a frame's PTS maps back onto that frame even when the float
// product lands a hair below the integer.
func (r Rational) TimeToPTS(seconds float64) int64 {
	if !r.Valid() {
		return 0
	}
	return int64(math.Round(seconds * float64(r.Den) / float64(r.Num)))
}

// PTSToTime converts a PTS in this time base to seconds.
func (r Rational) PTSToTime(pts int64) float64 {
	if !r.Valid() {
		return 0
	}
	return float64(pts) * float64(r.Num) / float64(r.Den)
}

// Rescale converts pts from this time base into dst, rounding to nearest.
func (r Rational) Rescale(pts int64, dst Rational) int64 {
	if !r.Valid() || !dst.Valid() {
		return pts
	}
	if r == dst {
		return pts
	}
	return int64(math.Round(float64(pts) * float64(r.Num*dst.Den) / float64(r.Den*dst.Num)))
}

// FromFloat approximates a positive rate such as 29.97 as a rational with
// a denominator of at most 1001.
func FromFloat(v float64) Rational {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return Rational{}
	}
	if v == math.Trunc(v) {
		return Rational{Num: int64(v), Den: 1}
	}
	for _, den := range []int64{1001, 1000, 100} {
		num := math.Round(v * float64(den))
		if math.Abs(num/float64(den)-v) < 1e-6 {
			return reduce(int64(num), den)
		}
	}
	return reduce(int64(math.Round(v*1000)), 1000)
}

func reduce(num, den int64) Rational {
	g := gcd(num, den)
	if g == 0 {
		return Rational{Num: num, Den: den}
	}
	return Rational{Num: num / g, Den: den / g}
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
