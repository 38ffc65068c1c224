package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Read and write .WAV audio files.
 *
 * Description:	Only uncompressed PCM.  We write 16 bit mono.  We read
 *		8 or 16 bit, mono or stereo; for stereo only the left
 *		channel is used.
 *
 *		The writer is our own because it has to stream: the
 *		sample count isn't known until the modem stops or the
 *		capture ends, so the header is written provisionally
 *		and fixed up on Close.  go-wav wants the count up front.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/youpy/go-wav"
)

var ErrNotWAV = errors.New("not a PCM .WAV file")

type wav_header struct { /* .WAV file header. */
	riff            [4]byte /* "RIFF" */
	filesize        int32   /* file length - 8 */
	wave            [4]byte /* "WAVE" */
	fmt             [4]byte /* "fmt " */
	fmtsize         int32   /* 16. */
	wformattag      int16   /* 1 for PCM. */
	nchannels       int16   /* 1 for mono, 2 for stereo. */
	nsamplespersec  int32   /* sampling freq, Hz. */
	navgbytespersec int32   /* = nblockalign * nsamplespersec. */
	nblockalign     int16   /* = wbitspersample / 8 * nchannels. */
	wbitspersample  int16   /* 16 or 8. */
	data            [4]byte /* "data" */
	datasize        int32   /* number of bytes following. */
}

func newWAVHeader(sampleRate int, dataBytes int) wav_header {
	return wav_header{
		riff:            [4]byte{'R', 'I', 'F', 'F'},
		filesize:        int32(dataBytes + binary.Size(wav_header{}) - 8),
		wave:            [4]byte{'W', 'A', 'V', 'E'},
		fmt:             [4]byte{'f', 'm', 't', ' '},
		fmtsize:         16,
		wformattag:      1,
		nchannels:       1,
		nsamplespersec:  int32(sampleRate),
		navgbytespersec: int32(sampleRate * 2),
		nblockalign:     2,
		wbitspersample:  16,
		data:            [4]byte{'d', 'a', 't', 'a'},
		datasize:        int32(dataBytes),
	}
}

// WAVWriter writes 16 bit mono PCM. The header is rewritten with the final
// sizes on Close.
type WAVWriter struct {
	ws         io.WriteSeeker
	buf        *bufio.Writer
	sampleRate int
	dataBytes  int
}

// NewWAVWriter writes a provisional header to ws.
func NewWAVWriter(ws io.WriteSeeker, sampleRate int) (*WAVWriter, error) {
	var w = &WAVWriter{
		ws:         ws,
		buf:        bufio.NewWriter(ws),
		sampleRate: sampleRate,
	}

	var writeErr = binary.Write(w.buf, binary.LittleEndian, newWAVHeader(sampleRate, 0))
	if writeErr != nil {
		return nil, fmt.Errorf("wav: write header: %w", writeErr)
	}

	return w, nil
}

// WriteSamples appends samples, clipping to -1 .. +1.
func (w *WAVWriter) WriteSamples(samples []float64) error {
	var b [2]byte

	for _, s := range samples {
		var v = math.Round(s * 32767)
		v = max(-32768, min(32767, v))

		binary.LittleEndian.PutUint16(b[:], uint16(int16(v)))

		var _, writeErr = w.buf.Write(b[:])
		if writeErr != nil {
			return fmt.Errorf("wav: write samples: %w", writeErr)
		}
	}

	w.dataBytes += 2 * len(samples)

	return nil
}

// Close flushes buffered samples and fixes up the header. It does not close
// the underlying file.
func (w *WAVWriter) Close() error {
	var flushErr = w.buf.Flush()
	if flushErr != nil {
		return fmt.Errorf("wav: flush: %w", flushErr)
	}

	var _, seekErr = w.ws.Seek(0, io.SeekStart)
	if seekErr != nil {
		return fmt.Errorf("wav: seek: %w", seekErr)
	}

	var writeErr = binary.Write(w.ws, binary.LittleEndian, newWAVHeader(w.sampleRate, w.dataBytes))
	if writeErr != nil {
		return fmt.Errorf("wav: rewrite header: %w", writeErr)
	}

	var _, endErr = w.ws.Seek(0, io.SeekEnd)

	return endErr
}

// WAVInput is what NewWAVReader needs: the chunks are located with ReadAt.
// An *os.File or *bytes.Reader will do.
type WAVInput interface {
	io.Reader
	io.ReaderAt
}

// WAVReader reads PCM samples from a .WAV file.
type WAVReader struct {
	r             *wav.Reader
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// NewWAVReader parses the header and checks that there is PCM data to read.
func NewWAVReader(r WAVInput) (wr *WAVReader, err error) {
	// The RIFF chunk walker panics on a header that runs off the end.
	defer func() {
		if p := recover(); p != nil {
			wr = nil
			err = fmt.Errorf("%w: truncated header: %v", ErrNotWAV, p)
		}
	}()

	var reader = wav.NewReader(r)

	var format, formatErr = reader.Format()
	if formatErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWAV, formatErr)
	}

	if format.AudioFormat != wav.AudioFormatPCM {
		return nil, fmt.Errorf("%w: format tag %d", ErrNotWAV, format.AudioFormat)
	}

	if format.NumChannels < 1 || format.NumChannels > 2 || (format.BitsPerSample != 8 && format.BitsPerSample != 16) {
		return nil, fmt.Errorf("%w: %d channels, %d bits", ErrNotWAV, format.NumChannels, format.BitsPerSample)
	}

	// Locates the data chunk.
	var _, dataErr = reader.Duration()
	if dataErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWAV, dataErr)
	}

	return &WAVReader{
		r:             reader,
		SampleRate:    int(format.SampleRate),
		Channels:      int(format.NumChannels),
		BitsPerSample: int(format.BitsPerSample),
	}, nil
}

// ReadSamples fills buf with left channel samples scaled to -1 .. +1 and
// returns how many were read. It returns io.EOF once the data chunk is
// exhausted.
func (wr *WAVReader) ReadSamples(buf []float64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	var samples, err = wr.r.ReadSamples(uint32(len(buf))) //nolint:gosec
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}

		return 0, fmt.Errorf("wav: read samples: %w", err)
	}

	for i, sample := range samples {
		var v = wr.r.IntValue(sample, 0)

		if wr.BitsPerSample == 8 {
			// 8 bit PCM is unsigned.
			buf[i] = float64(v-128) / 128
		} else {
			buf[i] = float64(v) / 32768
		}
	}

	return len(samples), nil
}
