package softmodem

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_WAVRoundTrip(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "test.wav")

	var samples = make([]float64, 1000)
	for i := range samples {
		samples[i] = math.Sin(float64(i) / 10)
	}

	samples[0] = 1.5 // clipped
	samples[1] = -2

	var sink, createErr = CreateWAVSink(path, 8000)
	require.NoError(t, createErr)
	require.NoError(t, sink.WriteSamples(samples[:300]))
	require.NoError(t, sink.WriteSamples(samples[300:]))
	require.NoError(t, sink.Close())

	var src, openErr = OpenWAVSource(path)
	require.NoError(t, openErr)
	defer src.Close()

	assert.Equal(t, 8000, src.SampleRate)
	assert.Equal(t, 1, src.Channels)
	assert.Equal(t, 16, src.BitsPerSample)

	var got []float64
	var buf = make([]float64, 256)

	for {
		var n, err = src.ReadSamples(buf)
		got = append(got, buf[:n]...)

		if errors.Is(err, io.EOF) {
			break
		}

		require.NoError(t, err)
	}

	require.Len(t, got, len(samples))

	assert.InDelta(t, 1.0, got[0], 1e-4)
	assert.InDelta(t, -1.0, got[1], 1e-4)

	for i := 2; i < len(samples); i++ {
		assert.InDelta(t, samples[i], got[i], 1e-4, "sample %d", i)
	}
}

func Test_WAVReaderStereo8Bit(t *testing.T) {
	var b bytes.Buffer

	var hdr = newWAVHeader(11025, 6)
	hdr.nchannels = 2
	hdr.wbitspersample = 8
	hdr.nblockalign = 2
	hdr.navgbytespersec = 22050

	writeHeader(t, &b, hdr)
	b.Write([]byte{128, 0, 255, 0, 0, 255}) // left channel: 0, ~1, -1

	var wr, err = NewWAVReader(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)

	var buf = make([]float64, 10)
	var n, readErr = wr.ReadSamples(buf)
	require.NoError(t, readErr)
	require.Equal(t, 3, n)

	assert.InDelta(t, 0.0, buf[0], 1e-9)
	assert.InDelta(t, 127.0/128, buf[1], 1e-9)
	assert.InDelta(t, -1.0, buf[2], 1e-9)

	_, readErr = wr.ReadSamples(buf)
	assert.ErrorIs(t, readErr, io.EOF)
}

func Test_WAVReaderNotWAV(t *testing.T) {
	var _, err = NewWAVReader(bytes.NewReader([]byte("RIFF\x00\x00\x00\x00AVI LIST")))
	assert.ErrorIs(t, err, ErrNotWAV)

	_, err = NewWAVReader(bytes.NewReader([]byte("short")))
	assert.Error(t, err)
}

func Test_WAVReaderTruncatedHeader(t *testing.T) {
	// Claims 100 bytes but stops in the middle of the fmt chunk header.
	var truncated = []byte("RIFF\x64\x00\x00\x00WAVEfmt ")

	assert.NotPanics(t, func() {
		var wr, err = NewWAVReader(bytes.NewReader(truncated))
		assert.ErrorIs(t, err, ErrNotWAV)
		assert.Nil(t, wr)
	})
}

func writeHeader(t *testing.T, w io.Writer, hdr wav_header) {
	t.Helper()

	require.NoError(t, binary.Write(w, binary.LittleEndian, hdr))
}

// seekBuffer is an in-memory io.WriteSeeker.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if need := s.pos + len(p); need > len(s.buf) {
		s.buf = append(s.buf, make([]byte, need-len(s.buf))...)
	}

	copy(s.buf[s.pos:], p)
	s.pos += len(p)

	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = int(offset)
	case io.SeekCurrent:
		s.pos += int(offset)
	case io.SeekEnd:
		s.pos = len(s.buf) + int(offset)
	}

	return int64(s.pos), nil
}

func Test_WAVWriterHeader(t *testing.T) {
	var sb = &seekBuffer{}

	var w, err = NewWAVWriter(sb, 48000)
	require.NoError(t, err)
	require.NoError(t, w.WriteSamples(make([]float64, 10)))
	require.NoError(t, w.Close())

	require.Len(t, sb.buf, 44+20)
	assert.Equal(t, "RIFF", string(sb.buf[0:4]))
	assert.Equal(t, []byte{56, 0, 0, 0}, sb.buf[4:8])
	assert.Equal(t, []byte{20, 0, 0, 0}, sb.buf[40:44])
}
