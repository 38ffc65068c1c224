package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Record received audio to a .WAV file.
 *
 * Description:	The file name is a strftime pattern so a new name can
 *		be chosen for each run, e.g. "rx-%Y%m%d-%H%M%S.wav".
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/strftime"
)

// CaptureName expands pattern for time t.
func CaptureName(pattern string, t time.Time) (string, error) {
	var name, err = strftime.Format(pattern, t)
	if err != nil {
		return "", fmt.Errorf("capture: bad file name pattern %q: %w", pattern, err)
	}

	return name, nil
}

// CapturingSource passes audio through from an AudioSource while also
// writing it to a sink.
type CapturingSource struct {
	src  AudioSource
	sink AudioSink
}

// NewCapturingSource tees src into sink.
func NewCapturingSource(src AudioSource, sink AudioSink) *CapturingSource {
	return &CapturingSource{src: src, sink: sink}
}

func (c *CapturingSource) ReadSamples(buf []float64) (int, error) {
	var n, err = c.src.ReadSamples(buf)
	if n > 0 {
		var writeErr = c.sink.WriteSamples(buf[:n])
		if writeErr != nil {
			return n, fmt.Errorf("capture: %w", writeErr)
		}
	}

	return n, err
}

// OpenCapture creates the capture file named by pattern at the current time.
func OpenCapture(pattern string, sampleRate int) (*WAVSink, string, error) {
	var name, nameErr = CaptureName(pattern, time.Now())
	if nameErr != nil {
		return nil, "", nameErr
	}

	var sink, err = CreateWAVSink(name, sampleRate)
	if err != nil {
		return nil, "", err
	}

	return sink, name, nil
}
