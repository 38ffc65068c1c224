package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Connect audio in and out to a byte endpoint.
 *
 * Description:	Four goroutines:
 *
 *		receive		audio source -> demodulator -> decoder -> rx queue
 *		transmit	encoder -> modulator -> audio sink
 *		endpoint reader	endpoint -> encoder
 *		endpoint writer	rx queue -> endpoint
 *
 *		The decoder callback runs on the receive goroutine and must
 *		not block, or the audio input would overrun.  If the
 *		endpoint falls too far behind, received bytes are dropped
 *		and counted.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// rxQueueSize is how many decoded bytes can wait for the endpoint writer.
const rxQueueSize = 4096

// ModemOption customises a Modem.
type ModemOption func(*Modem)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) ModemOption {
	return func(m *Modem) {
		m.logger = l
	}
}

// WithMetrics records activity on met.
func WithMetrics(met *Metrics) ModemOption {
	return func(m *Modem) {
		m.metrics = met
	}
}

// WithLineControl drives DCD and TX outputs.
func WithLineControl(lc *LineControl) ModemOption {
	return func(m *Modem) {
		m.lines = lc
	}
}

// WithPacing makes the transmit loop run in real time. Use it when the
// sink accepts samples faster than the sample rate, as files and the
// in-memory loopback do, otherwise idle Mark would be produced without
// limit.
func WithPacing() ModemOption {
	return func(m *Modem) {
		m.paced = true
	}
}

// Modem is a full duplex V.21 modem. Either src or sink may be nil for a
// receive only or transmit only modem.
type Modem struct {
	cfg  *Config
	src  AudioSource
	sink AudioSink
	ep   Endpoint

	logger  *log.Logger
	metrics *Metrics
	lines   *LineControl
	paced   bool

	encoder *Encoder
	decoder *Decoder
	demod   *Demodulator
	mod     *Modulator

	rx      chan byte
	dropped atomic.Uint64

	// Set by the carrier notify callback, consumed after each buffer.
	carrierEvents []bool
}

// NewModem builds the receive and transmit pipelines from cfg, which must
// already be valid.
func NewModem(cfg *Config, src AudioSource, sink AudioSink, ep Endpoint, opts ...ModemOption) *Modem {
	var m = &Modem{
		cfg:    cfg,
		src:    src,
		sink:   sink,
		ep:     ep,
		logger: discardLogger(),
		rx:     make(chan byte, rxQueueSize),
	}

	for _, opt := range opts {
		opt(m)
	}

	var spb = cfg.SamplesPerBit()

	m.encoder = NewEncoder(spb)
	m.decoder = NewDecoder(spb, cfg.Framing(), m.received)
	m.demod = NewDemodulator(cfg.DemodParams(), m.decoder.Consume, WithCarrierNotify(m.carrierChanged))

	var tx = cfg.TXTones()
	m.mod = NewModulator(tx.MarkOmega(), tx.SpaceOmega(), float64(cfg.SampleRate))

	return m
}

// Encoder gives direct access to the transmit queue.
func (m *Modem) Encoder() *Encoder {
	return m.encoder
}

// Dropped returns how many received bytes were discarded.
func (m *Modem) Dropped() uint64 {
	return m.dropped.Load()
}

// received is the decoder callback.
func (m *Modem) received(b byte) {
	select {
	case m.rx <- b:
	default:
		m.dropped.Add(1)

		if m.metrics != nil {
			m.metrics.RXDropped.Add(context.Background(), 1)
		}
	}
}

// carrierChanged is the demodulator callback. It only queues the event; the
// receive loop acts on it outside the per-sample path.
func (m *Modem) carrierChanged(present bool) {
	m.carrierEvents = append(m.carrierEvents, present)
}

// Run moves data until ctx is cancelled, the first goroutine fails, or
// every direction has finished. The endpoint is closed when Run returns.
func (m *Modem) Run(ctx context.Context) error {
	var g, gctx = errgroup.WithContext(ctx)

	// Unblock the endpoint reader on the way out.
	var stop = context.AfterFunc(gctx, func() {
		m.ep.Close()
	})
	defer stop()

	if m.src != nil {
		g.Go(func() error {
			defer close(m.rx)

			return m.receive(gctx)
		})
	} else {
		close(m.rx)
	}

	if m.sink != nil {
		g.Go(func() error {
			return m.transmit(gctx)
		})
	}

	// Closing a terminal or pipe does not interrupt a Read already blocked
	// on it, so the endpoint reader is left behind once we are cancelled.
	var readDone = make(chan error, 1)

	go func() {
		readDone <- m.readEndpoint(gctx)
	}()

	g.Go(func() error {
		select {
		case err := <-readDone:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		return m.writeEndpoint(gctx)
	})

	var err = g.Wait()

	m.ep.Close()

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func (m *Modem) receive(ctx context.Context) error {
	var buf = make([]float64, m.cfg.Audio.FramesPerBuffer)
	var framingErrors uint64

	var rxTones = m.cfg.RXTones()
	m.logger.Info("receiving", "mark_hz", rxTones.MarkHz, "space_hz", rxTones.SpaceHz, "baud", m.cfg.Baud)

	for ctx.Err() == nil {
		var n, err = m.src.ReadSamples(buf)
		if n > 0 {
			m.demod.Demodulate(buf[:n])
			m.afterBuffer(ctx, &framingErrors)
		}

		if errors.Is(err, io.EOF) {
			m.logger.Info("end of audio input", "bytes", m.decoder.Stats().Bytes)

			return nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}
	}

	return nil
}

// afterBuffer reports what happened during the last Demodulate call.
func (m *Modem) afterBuffer(ctx context.Context, framingErrors *uint64) {
	for _, present := range m.carrierEvents {
		if present {
			m.logger.Info("carrier detected")
		} else {
			m.logger.Info("carrier lost")
		}

		if m.metrics != nil {
			m.metrics.RecordCarrier(ctx, present)
		}

		var dcdErr = m.lines.SetDCD(present)
		if dcdErr != nil {
			m.logger.Warn("could not set DCD line", "err", dcdErr)
		}
	}

	m.carrierEvents = m.carrierEvents[:0]

	var stats = m.decoder.Stats()
	if stats.FramingErrors != *framingErrors {
		if m.metrics != nil {
			m.metrics.FramingErrors.Add(ctx, int64(stats.FramingErrors-*framingErrors))
		}

		m.logger.Debug("framing errors", "total", stats.FramingErrors)
		*framingErrors = stats.FramingErrors
	}
}

func (m *Modem) transmit(ctx context.Context) error {
	var fpb = m.cfg.Audio.FramesPerBuffer
	var line = make([]LineSample, fpb)
	var audio = make([]float64, fpb)

	var tick <-chan time.Time
	if m.paced {
		var period = time.Duration(fpb) * time.Second / time.Duration(m.cfg.SampleRate)
		var ticker = time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	var txTones = m.cfg.TXTones()
	m.logger.Info("transmitting", "mark_hz", txTones.MarkHz, "space_hz", txTones.SpaceHz, "baud", m.cfg.Baud)

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		var n = m.encoder.Drain(line)

		var txErr = m.lines.SetTX(n > 0)
		if txErr != nil {
			m.logger.Warn("could not set TX line", "err", txErr)
		}

		if m.metrics != nil && n < fpb {
			m.metrics.TXIdleSamples.Add(ctx, int64(fpb-n))
		}

		m.mod.Modulate(line, audio)

		var err = m.sink.WriteSamples(audio)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}
	}
}

func (m *Modem) readEndpoint(ctx context.Context) error {
	var buf = make([]byte, 256)

	for {
		var n, err = m.ep.Read(buf)
		if n > 0 {
			m.encoder.SubmitBytes(buf[:n])

			if m.metrics != nil {
				m.metrics.TXBytes.Add(ctx, int64(n))
			}
		}

		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				return err
			}

			m.logger.Debug("endpoint input finished", "err", err)

			return nil
		}
	}
}

func (m *Modem) writeEndpoint(ctx context.Context) error {
	var batch = make([]byte, 0, 256)

	for {
		var b byte
		var ok bool

		select {
		case <-ctx.Done():
			return nil
		case b, ok = <-m.rx:
			if !ok {
				return nil
			}
		}

		batch = append(batch[:0], b)

	more:
		for len(batch) < cap(batch) {
			select {
			case b, ok = <-m.rx:
				if !ok {
					break more
				}

				batch = append(batch, b)
			default:
				break more
			}
		}

		var _, err = m.ep.Write(batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		if m.metrics != nil {
			m.metrics.RXBytes.Add(ctx, int64(len(batch)))
		}
	}
}
