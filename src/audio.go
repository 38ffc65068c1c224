package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Interface to audio device commonly called a "sound card"
 *		for historical reasons, plus file and in-memory stand-ins.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// AudioSource produces audio samples in the range -1 .. +1.
type AudioSource interface {
	// ReadSamples fills buf, blocking until at least one sample is
	// available, and returns the number read.
	ReadSamples(buf []float64) (int, error)
}

// AudioSink consumes audio samples in the range -1 .. +1.
type AudioSink interface {
	WriteSamples(samples []float64) error
}

// PortAudioDevice is a mono sound card stream in one or both directions.
type PortAudioDevice struct {
	in     *portaudio.Stream
	out    *portaudio.Stream
	inBuf  []float32
	outBuf []float32

	inputGain   float64
	outputLevel float64
}

// OpenPortAudio opens the devices named in cfg.Audio, or the defaults when
// the names are empty. Set input or output to false to skip that direction.
// portaudio.Initialize must have been called.
func OpenPortAudio(cfg *Config, input bool, output bool) (*PortAudioDevice, error) {
	var dev = &PortAudioDevice{
		inputGain:   cfg.Audio.InputGain,
		outputLevel: cfg.Audio.OutputLevel,
	}

	if input {
		var info, findErr = findDevice(cfg.Audio.InputDevice, true)
		if findErr != nil {
			return nil, findErr
		}

		var params = portaudio.HighLatencyParameters(info, nil)
		params.Input.Channels = 1
		params.SampleRate = float64(cfg.SampleRate)
		params.FramesPerBuffer = cfg.Audio.FramesPerBuffer

		dev.inBuf = make([]float32, cfg.Audio.FramesPerBuffer)

		var stream, openErr = portaudio.OpenStream(params, dev.inBuf)
		if openErr != nil {
			return nil, fmt.Errorf("audio: open input %q: %w", info.Name, openErr)
		}

		dev.in = stream
	}

	if output {
		var info, findErr = findDevice(cfg.Audio.OutputDevice, false)
		if findErr != nil {
			dev.Close()

			return nil, findErr
		}

		var params = portaudio.HighLatencyParameters(nil, info)
		params.Output.Channels = 1
		params.SampleRate = float64(cfg.SampleRate)
		params.FramesPerBuffer = cfg.Audio.FramesPerBuffer

		dev.outBuf = make([]float32, cfg.Audio.FramesPerBuffer)

		var stream, openErr = portaudio.OpenStream(params, dev.outBuf)
		if openErr != nil {
			dev.Close()

			return nil, fmt.Errorf("audio: open output %q: %w", info.Name, openErr)
		}

		dev.out = stream
	}

	for _, s := range []*portaudio.Stream{dev.in, dev.out} {
		if s == nil {
			continue
		}

		var startErr = s.Start()
		if startErr != nil {
			dev.Close()

			return nil, fmt.Errorf("audio: start stream: %w", startErr)
		}
	}

	return dev, nil
}

func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}

		return portaudio.DefaultOutputDevice()
	}

	var devices, listErr = portaudio.Devices()
	if listErr != nil {
		return nil, fmt.Errorf("audio: list devices: %w", listErr)
	}

	for _, d := range devices {
		if d.Name != name {
			continue
		}

		if (input && d.MaxInputChannels > 0) || (!input && d.MaxOutputChannels > 0) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("audio: no device named %q", name)
}

// ReadSamples reads one hardware buffer. buf must hold at least
// frames_per_buffer samples.
func (d *PortAudioDevice) ReadSamples(buf []float64) (int, error) {
	if d.in == nil {
		return 0, errors.New("audio: device not opened for input")
	}

	var readErr = d.in.Read()
	if readErr != nil && !errors.Is(readErr, portaudio.InputOverflowed) {
		return 0, fmt.Errorf("audio: read: %w", readErr)
	}

	var n = min(len(buf), len(d.inBuf))
	for i := range n {
		buf[i] = float64(d.inBuf[i]) * d.inputGain
	}

	return n, nil
}

// WriteSamples writes samples in hardware buffer sized pieces.
func (d *PortAudioDevice) WriteSamples(samples []float64) error {
	if d.out == nil {
		return errors.New("audio: device not opened for output")
	}

	for len(samples) > 0 {
		var n = min(len(samples), len(d.outBuf))
		for i := range n {
			d.outBuf[i] = float32(samples[i] * d.outputLevel)
		}

		// Pad a short final piece with silence.
		clear(d.outBuf[n:])

		var writeErr = d.out.Write()
		if writeErr != nil && !errors.Is(writeErr, portaudio.OutputUnderflowed) {
			return fmt.Errorf("audio: write: %w", writeErr)
		}

		samples = samples[n:]
	}

	return nil
}

// Close stops and closes whichever streams are open.
func (d *PortAudioDevice) Close() error {
	var errs []error

	for _, s := range []*portaudio.Stream{d.in, d.out} {
		if s == nil {
			continue
		}

		// Stop fails harmlessly on a stream that never started.
		_ = s.Stop()
		errs = append(errs, s.Close())
	}

	d.in = nil
	d.out = nil

	return errors.Join(errs...)
}

// WAVSource reads audio from a .WAV file.
type WAVSource struct {
	*WAVReader
	f *os.File
}

// OpenWAVSource opens path for reading.
func OpenWAVSource(path string) (*WAVSource, error) {
	var f, openErr = os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("audio: %w", openErr)
	}

	var r, wavErr = NewWAVReader(f)
	if wavErr != nil {
		f.Close()

		return nil, fmt.Errorf("audio: %s: %w", path, wavErr)
	}

	return &WAVSource{WAVReader: r, f: f}, nil
}

func (s *WAVSource) Close() error {
	return s.f.Close()
}

// WAVSink writes audio to a new .WAV file.
type WAVSink struct {
	*WAVWriter
	f *os.File
}

// CreateWAVSink creates or truncates path.
func CreateWAVSink(path string, sampleRate int) (*WAVSink, error) {
	var f, createErr = os.Create(path)
	if createErr != nil {
		return nil, fmt.Errorf("audio: %w", createErr)
	}

	var w, wavErr = NewWAVWriter(f, sampleRate)
	if wavErr != nil {
		f.Close()

		return nil, wavErr
	}

	return &WAVSink{WAVWriter: w, f: f}, nil
}

// Close finalises the header and closes the file.
func (s *WAVSink) Close() error {
	return errors.Join(s.WAVWriter.Close(), s.f.Close())
}

// Loopback connects an AudioSink to an AudioSource in memory, an ideal
// noiseless line. Writes never block; reads wait for data.
type Loopback struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []float64
	closed bool
}

func NewLoopback() *Loopback {
	var l = &Loopback{}
	l.cond = sync.NewCond(&l.mu)

	return l
}

func (l *Loopback) WriteSamples(samples []float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return io.ErrClosedPipe
	}

	l.buf = append(l.buf, samples...)
	l.cond.Broadcast()

	return nil
}

func (l *Loopback) ReadSamples(buf []float64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.buf) == 0 && !l.closed {
		l.cond.Wait()
	}

	if len(l.buf) == 0 {
		return 0, io.EOF
	}

	var n = copy(buf, l.buf)
	l.buf = l.buf[n:]

	return n, nil
}

// Close wakes any reader; buffered samples can still be read.
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()

	return nil
}

// CloseOnDone closes l when ctx is cancelled so a blocked reader returns.
func (l *Loopback) CloseOnDone(ctx context.Context) {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
}
