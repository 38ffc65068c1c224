package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Expand bytes into line samples for the modulator.
 *
 * Description:	Submit and Drain usually run on different goroutines,
 *		the application on one side and the audio output loop on
 *		the other.  Both take the same lock and neither waits for
 *		anything else so the audio loop can never stall.  When the
 *		queue runs dry the line is held at Mark, which is the
 *		normal idle condition.
 *
 *---------------------------------------------------------------*/

import "sync"

// Encoder queues framed bytes as line samples. Safe for concurrent use.
type Encoder struct {
	samplesPerBit int

	mu    sync.Mutex
	queue []LineSample
	head  int
}

// NewEncoder creates an encoder for the given oversampling factor.
func NewEncoder(samplesPerBit int) *Encoder {
	return &Encoder{samplesPerBit: samplesPerBit}
}

// Submit queues one byte: a Space start bit, the data bits least significant
// first, then a Mark stop bit, each held for one bit time.
func (e *Encoder) Submit(b byte) {
	e.mu.Lock()
	e.putByte(b)
	e.mu.Unlock()
}

// SubmitBytes queues every byte of p in order.
func (e *Encoder) SubmitBytes(p []byte) {
	e.mu.Lock()
	for _, b := range p {
		e.putByte(b)
	}
	e.mu.Unlock()
}

func (e *Encoder) putByte(b byte) {
	e.putBit(Space)

	for range 8 {
		e.putBit(LineSample(b & 1))
		b >>= 1
	}

	e.putBit(Mark)
}

func (e *Encoder) putBit(v LineSample) {
	for range e.samplesPerBit {
		e.queue = append(e.queue, v)
	}
}

// Drain fills buf from the queue and pads whatever is left with Mark. It
// always fills all of buf and never blocks. The return value is how many
// samples came from the queue rather than padding.
func (e *Encoder) Drain(buf []LineSample) int {
	e.mu.Lock()

	var n = copy(buf, e.queue[e.head:])
	e.head += n

	switch {
	case e.head == len(e.queue):
		e.queue = e.queue[:0]
		e.head = 0
	case e.head > len(e.queue)/2:
		// Slide the remainder down so the backing array does not grow forever.
		var rest = copy(e.queue, e.queue[e.head:])
		e.queue = e.queue[:rest]
		e.head = 0
	}

	e.mu.Unlock()

	for i := n; i < len(buf); i++ {
		buf[i] = Mark
	}

	return n
}

// Pending returns the number of queued samples not yet drained.
func (e *Encoder) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.queue) - e.head
}

// SamplesPerBit returns the oversampling factor.
func (e *Encoder) SamplesPerBit() int {
	return e.samplesPerBit
}
