package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Recover bytes from the oversampled line signal.
 *
 * Description:	Asynchronous framing, 1 start bit, 8 data bits sent
 *		least significant bit first, 1 stop bit, no parity.
 *
 *		There is no clock.  While idle we look for the leading
 *		edge of a start bit with a sliding window.  The edge is
 *		accepted when most of the window is Space and the sample
 *		in the middle of the window is Space too.  That rejects
 *		short glitches but tolerates a few samples of jitter.
 *
 *		From the estimated edge we count off 1.5 bit times to
 *		the middle of the first data bit then one bit time for
 *		each following bit.  Timing is derived again for each
 *		byte so slow drift between the two ends is tolerated as
 *		long as it stays under half a bit over one frame.
 *
 *---------------------------------------------------------------*/

import "math"

type rxState int

const (
	rxIdle rxState = iota
	rxDataBit
	rxStopBit
)

// Framing holds the start bit detector tuning.
type Framing struct {
	// WindowFraction is the detection window length as a fraction of
	// one bit time.
	WindowFraction float64

	// MajorityPercent is how much of the window must be Space to
	// declare a start bit.
	MajorityPercent float64

	// CheckStop discards bytes whose stop bit is not Mark.
	CheckStop bool
}

// DefaultFraming returns the detector tuning used when nothing else is
// configured.
func DefaultFraming() Framing {
	return Framing{
		WindowFraction:  0.6,
		MajorityPercent: 80,
	}
}

// DecoderStats counts what a Decoder has seen.
type DecoderStats struct {
	Bytes         uint64
	StartBits     uint64
	FramingErrors uint64
}

// Decoder turns line samples into bytes. It is not safe for concurrent use.
type Decoder struct {
	deliver ByteFunc

	samplesPerBit int
	checkStop     bool

	win       *window
	threshold int // Space samples needed in the window
	center    int // age of the middle sample of the window
	edgeClock int // bit clock value at the moment a start bit is accepted

	state rxState
	clock int
	bits  int
	data  byte

	stats DecoderStats
}

// NewDecoder creates a decoder for the given oversampling factor. deliver is
// called synchronously from Consume for every complete frame.
func NewDecoder(samplesPerBit int, framing Framing, deliver ByteFunc) *Decoder {
	var w = int(math.Round(framing.WindowFraction * float64(samplesPerBit)))
	if w < 1 {
		w = 1
	}

	if w > samplesPerBit {
		w = samplesPerBit
	}

	var threshold = int(math.Ceil(framing.MajorityPercent / 100 * float64(w)))
	if threshold < 1 {
		threshold = 1
	}

	if threshold > w {
		threshold = w
	}

	var center = w / 2

	// On a clean edge the trigger fires when both conditions first hold.
	// That is this many samples after the first Space sample.
	var edgeAge = max(threshold, center+1) - 1

	var d = &Decoder{
		deliver:       deliver,
		samplesPerBit: samplesPerBit,
		checkStop:     framing.CheckStop,
		win:           newWindow(w),
		threshold:     threshold,
		center:        center,
		edgeClock:     edgeAge - samplesPerBit/2,
	}
	d.Reset()

	return d
}

// Reset abandons any byte in flight and returns to idle.
func (d *Decoder) Reset() {
	d.win.fill(Mark)
	d.state = rxIdle
	d.clock = 0
	d.bits = 0
	d.data = 0
}

// Consume processes samples in order, calling the byte callback for each
// completed frame.
func (d *Decoder) Consume(samples []LineSample) {
	for _, s := range samples {
		d.win.push(s)

		switch d.state {
		case rxIdle:
			if d.win.full() && d.win.zeros >= d.threshold && d.win.at(d.center) == Space {
				d.stats.StartBits++
				d.clock = d.edgeClock
				d.data = 0
				d.bits = 0
				d.state = rxDataBit
			}

		case rxDataBit:
			d.clock++
			if d.clock >= d.samplesPerBit {
				d.data |= byte(s&1) << d.bits
				d.bits++
				d.clock = 0

				if d.bits == 8 {
					d.state = rxStopBit
				}
			}

		case rxStopBit:
			d.clock++
			if d.clock >= d.samplesPerBit {
				d.state = rxIdle

				if d.checkStop && s != Mark {
					d.stats.FramingErrors++
					continue
				}

				d.stats.Bytes++
				d.deliver(d.data)
			}
		}
	}
}

// Stats returns counters accumulated since construction.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// SamplesPerBit returns the oversampling factor.
func (d *Decoder) SamplesPerBit() int {
	return d.samplesPerBit
}
