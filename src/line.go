package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Line samples, the binary signal passed between the
 *		FSK layer and the UART framers.
 *
 * Description:	There is exactly one line sample per audio sample.
 *		Mark (1) is the idle level and the stop bit; Space (0)
 *		is the start bit.
 *
 *---------------------------------------------------------------*/

// LineSample is one sample of the binary line signal.
type LineSample uint8

const (
	Space LineSample = 0
	Mark  LineSample = 1
)

// BitsPerFrame is start + 8 data + stop.
const BitsPerFrame = 10

// LineFunc receives a batch of demodulated line samples.
// The slice is only valid for the duration of the call.
type LineFunc func(samples []LineSample)

// ByteFunc receives one decoded byte.
type ByteFunc func(b byte)
