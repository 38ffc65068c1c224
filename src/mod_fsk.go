package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Generate the FSK tones from line samples.
 *
 * Description:	A single phase accumulator is advanced by the mark or
 *		space angular frequency each sample so switching tones
 *		never produces a jump in the waveform.  The phase is
 *		brought back into -pi .. +pi every sample so precision
 *		doesn't degrade on a link that runs for days.
 *
 *---------------------------------------------------------------*/

import "math"

// ModOption customises a Modulator.
type ModOption func(*Modulator)

// WithAmplitude scales the output. The default is 1.
func WithAmplitude(a float64) ModOption {
	return func(m *Modulator) {
		m.amplitude = a
	}
}

// Modulator converts line samples to audio. It is not safe for concurrent
// use.
type Modulator struct {
	markStep  float64 // phase advance per sample for Mark
	spaceStep float64
	amplitude float64
	phase     float64
}

// NewModulator creates a modulator for the given angular frequencies in
// rad/s.
func NewModulator(markOmega, spaceOmega, sampleRate float64, opts ...ModOption) *Modulator {
	var m = &Modulator{
		markStep:  markOmega / sampleRate,
		spaceStep: spaceOmega / sampleRate,
		amplitude: 1,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Modulate writes one audio sample to out for each line sample in in and
// returns the number written, min(len(in), len(out)).
func (m *Modulator) Modulate(in []LineSample, out []float64) int {
	var n = min(len(in), len(out))

	for i := range n {
		out[i] = m.amplitude * math.Sin(m.phase)

		if in[i] != Space {
			m.phase += m.markStep
		} else {
			m.phase += m.spaceStep
		}

		m.phase = math.Remainder(m.phase, 2*math.Pi)
	}

	return n
}

// Phase returns the current oscillator phase in radians.
func (m *Modulator) Phase() float64 {
	return m.phase
}
