package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Demodulator for two tone Frequency Shift Keying.
 *
 * Input:	Audio samples from a file or the sound card.
 *
 * Outputs:	One line sample per audio sample, delivered to a
 *		callback once per Demodulate call.
 *
 * Description:	Each tone has its own resonant tracker giving a
 *		running energy estimate over one symbol.  The difference,
 *		mark energy minus space energy, is smoothed by a second
 *		order low pass filter.  Positive means mark.
 *
 *		Nothing comes out but Mark until a carrier is detected,
 *		see carrier.go.  With a carrier present the output is the
 *		sign of the smoothed decision.
 *
 *		There is no symbol clock here.  Bit timing is recovered
 *		downstream by the UART decoder.
 *
 *---------------------------------------------------------------*/

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// DemodParams describes one receive channel.
type DemodParams struct {
	MarkOmega  float64 // rad/s
	SpaceOmega float64 // rad/s
	SampleRate float64

	// SamplesPerSymbol is the length of the resonator delay lines.
	SamplesPerSymbol int

	// Decay is the per sample decay of the resonators, just under 1.
	Decay float64

	// LowpassCutoff is the corner of the decision smoothing filter in Hz.
	LowpassCutoff float64

	Carrier CarrierConfig

	// DecisionHysteresis holds the previous bit while the decision is
	// within +/- this band.  0 gives a plain sign decision.
	DecisionHysteresis float64
}

// DemodOption customises a Demodulator.
type DemodOption func(*Demodulator)

// WithCarrierNotify registers fn to be called, synchronously from
// Demodulate, each time carrier detect changes state.
func WithCarrierNotify(fn func(present bool)) DemodOption {
	return func(d *Demodulator) {
		d.notify = fn
	}
}

// Demodulator converts audio samples to line samples. It is not safe for
// concurrent use.
type Demodulator struct {
	mark    resonator
	space   resonator
	smooth  *biquad.Section
	carrier carrierDetector

	hysteresis float64
	lastBit    LineSample

	deliver LineFunc
	notify  func(bool)
	out     []LineSample
}

// NewDemodulator builds a demodulator. The mark and space frequencies must be
// positive, distinct and below half the sample rate; that is not checked
// here. deliver is called once for each Demodulate call.
func NewDemodulator(p DemodParams, deliver LineFunc, opts ...DemodOption) *Demodulator {
	var d = &Demodulator{
		mark:       newResonator(p.MarkOmega/p.SampleRate, p.Decay, p.SamplesPerSymbol),
		space:      newResonator(p.SpaceOmega/p.SampleRate, p.Decay, p.SamplesPerSymbol),
		smooth:     biquad.NewSection(design.Lowpass(p.LowpassCutoff, 1/math.Sqrt2, p.SampleRate)),
		carrier:    carrierDetector{cfg: p.Carrier},
		hysteresis: p.DecisionHysteresis,
		lastBit:    Mark,
		deliver:    deliver,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Demodulate processes samples and passes exactly len(samples) line samples
// to the callback in a single call.
func (d *Demodulator) Demodulate(samples []float64) {
	if cap(d.out) < len(samples) {
		d.out = make([]LineSample, len(samples))
	}

	var out = d.out[:len(samples)]

	for i, x := range samples {
		var decision = d.mark.step(x) - d.space.step(x)
		var filtered = d.smooth.ProcessSample(decision)

		if d.carrier.update(filtered) && d.notify != nil {
			d.notify(d.carrier.present)
		}

		if !d.carrier.present {
			d.lastBit = Mark
			out[i] = Mark

			continue
		}

		switch {
		case filtered > d.hysteresis:
			d.lastBit = Mark
		case filtered < -d.hysteresis:
			d.lastBit = Space
		}

		out[i] = d.lastBit
	}

	d.deliver(out)
}

// CarrierPresent reports the current carrier detect state.
func (d *Demodulator) CarrierPresent() bool {
	return d.carrier.present
}

// Reset clears all filter state and drops the carrier.
func (d *Demodulator) Reset() {
	d.mark.reset()
	d.space.reset()
	d.smooth.Reset()
	d.carrier.reset()
	d.lastBit = Mark
}
