package softmodem

import (
	"math"
	"math/cmplx"
)

// resonator tracks the energy near one frequency. It is a sliding DFT bin
// with exponential weighting:
//
//	X[n] = x[n] - r^L e^(jwL) x[n-L] + r e^(jw) X[n-1]
//
// which equals the sum over the last L samples of r^k e^(jwk) x[n-k]. The
// subtraction of the sample leaving the delay line keeps the estimate
// confined to one symbol, and r < 1 keeps rounding error from piling up.
type resonator struct {
	rot   complex128 // r e^(jw)
	tail  complex128 // r^L e^(jwL)
	state complex128
	delay []float64
	pos   int
}

// newResonator creates a tracker for w radians per sample.
func newResonator(w, decay float64, length int) resonator {
	return resonator{
		rot:   cmplx.Rect(decay, w),
		tail:  cmplx.Rect(math.Pow(decay, float64(length)), w*float64(length)),
		delay: make([]float64, length),
	}
}

// step consumes one sample and returns the updated energy |X|^2.
func (r *resonator) step(x float64) float64 {
	var old = r.delay[r.pos]
	r.delay[r.pos] = x

	r.pos++
	if r.pos == len(r.delay) {
		r.pos = 0
	}

	r.state = complex(x, 0) - r.tail*complex(old, 0) + r.rot*r.state

	var re, im = real(r.state), imag(r.state)

	return re*re + im*im
}

func (r *resonator) reset() {
	r.state = 0
	r.pos = 0
	clear(r.delay)
}
