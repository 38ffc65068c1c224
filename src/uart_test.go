package softmodem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// encode returns lead idle samples followed by the frames for data.
func encode(spb int, lead int, data ...byte) []LineSample {
	var enc = NewEncoder(spb)
	enc.SubmitBytes(data)

	var out = make([]LineSample, lead+enc.Pending())
	enc.Drain(out[:lead])
	enc.Drain(out[lead:])

	return out
}

func Test_EncoderFrameLayout(t *testing.T) {
	var spb = 4
	var enc = NewEncoder(spb)
	enc.Submit(0x35) // 0011 0101

	require.Equal(t, BitsPerFrame*spb, enc.Pending())

	var buf = make([]LineSample, BitsPerFrame*spb)
	var n = enc.Drain(buf)
	assert.Equal(t, BitsPerFrame*spb, n)

	var expected = []LineSample{Space, 1, 0, 1, 0, 1, 1, 0, 0, Mark}
	for bit, v := range expected {
		for i := range spb {
			assert.Equal(t, v, buf[bit*spb+i], "bit %d sample %d", bit, i)
		}
	}

	assert.Zero(t, enc.Pending())
}

func Test_EncoderIdle(t *testing.T) {
	var enc = NewEncoder(160)

	var buf = make([]LineSample, 1000)
	for i := range buf {
		buf[i] = Space
	}

	assert.Zero(t, enc.Drain(buf))

	for i, s := range buf {
		require.Equal(t, Mark, s, "sample %d", i)
	}
}

func Test_EncoderPadsPartialDrain(t *testing.T) {
	var spb = 3
	var enc = NewEncoder(spb)
	enc.Submit(0x00)

	var buf = make([]LineSample, 50)
	var n = enc.Drain(buf)

	assert.Equal(t, BitsPerFrame*spb, n)
	assert.Equal(t, Space, buf[0])
	assert.Equal(t, Mark, buf[n-1], "stop bit")

	for i := n; i < len(buf); i++ {
		assert.Equal(t, Mark, buf[i], "padding %d", i)
	}
}

func Test_EncoderDrainInPieces(t *testing.T) {
	var spb = 7
	var data = []byte("pieces")

	var whole = encode(spb, 0, data...)

	var enc = NewEncoder(spb)
	enc.SubmitBytes(data)

	var got []LineSample
	var piece = make([]LineSample, 5)

	for enc.Pending() > 0 {
		var n = enc.Drain(piece)
		got = append(got, piece[:n]...)
	}

	assert.Equal(t, whole, got)
}

func Test_EncoderConcurrentSubmitDrain(t *testing.T) {
	var spb = 2
	var enc = NewEncoder(spb)

	const writers = 4
	const perWriter = 250

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				enc.Submit(0x00)
			}
		}()
	}

	var total = 0
	var buf = make([]LineSample, 64)
	var done = make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	var finished = false
	for !finished {
		select {
		case <-done:
			finished = true
		default:
		}

		total += enc.Drain(buf)
	}

	for enc.Pending() > 0 {
		total += enc.Drain(buf)
	}

	assert.Equal(t, writers*perWriter*BitsPerFrame*spb, total)
}

func Test_DecoderIdle(t *testing.T) {
	var delivered = 0
	var dec = NewDecoder(160, DefaultFraming(), func(byte) { delivered++ })

	var idle = make([]LineSample, 10000)
	for i := range idle {
		idle[i] = Mark
	}

	dec.Consume(idle)

	assert.Zero(t, delivered)
	assert.Zero(t, dec.Stats().StartBits)
}

// 0x55 at 160 samples per bit: exactly one byte within one frame time.
func Test_Decoder0x55(t *testing.T) {
	var got []byte
	var dec = NewDecoder(160, DefaultFraming(), func(b byte) { got = append(got, b) })

	var line = encode(160, 0, 0x55)
	require.Len(t, line, 1600)

	dec.Consume(line)

	assert.Equal(t, []byte{0x55}, got)
}

// Delivery happens at the centre of the stop bit, 9.5 bit times after the
// start edge.
func Test_DecoderDeliveryTime(t *testing.T) {
	var deliveredAt = -1
	var i int
	var dec = NewDecoder(160, DefaultFraming(), func(byte) { deliveredAt = i })

	var line = encode(160, 0, 0xa7)
	for i = range line {
		dec.Consume(line[i : i+1])
	}

	assert.Equal(t, 9*160+80, deliveredAt)
}

func Test_DecoderFrameTiming(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var spb = rapid.IntRange(2, 200).Draw(t, "spb")
		var lead = rapid.IntRange(0, 3*spb).Draw(t, "lead")
		var data = rapid.SliceOfN(rapid.Byte(), 1, 12).Draw(t, "data")

		var line = encode(spb, lead, data...)
		line = append(line, encode(spb, spb)...) // trailing idle

		var got []byte
		var times []int
		var i int

		var dec = NewDecoder(spb, DefaultFraming(), func(b byte) {
			got = append(got, b)
			times = append(times, i)
		})

		for i = range line {
			dec.Consume(line[i : i+1])
		}

		assert.Equal(t, data, got)

		for k, at := range times {
			assert.Equal(t, lead+k*BitsPerFrame*spb+9*spb+spb/2, at, "byte %d", k)
		}
	})
}

// Each bit is read from exactly one sample, 1.5 + k bit times after the
// start edge. A single Space sample there clears the bit; one either side
// of it does nothing. Bit 8 is the stop bit.
func Test_DecoderBitCentres(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var spb = rapid.IntRange(2, 200).Draw(t, "spb")
		var lead = rapid.IntRange(0, 3*spb).Draw(t, "lead")
		var bit = rapid.IntRange(0, 8).Draw(t, "bit")

		var offsets = []int{-1, 0, 1}
		if spb < 3 {
			offsets = offsets[:2]
		}

		var offset = rapid.SampledFrom(offsets).Draw(t, "offset")

		var line = encode(spb, lead, 0xff)
		line = append(line, encode(spb, spb)...)
		line[lead+(bit+1)*spb+spb/2+offset] = Space

		var framing = DefaultFraming()
		framing.CheckStop = true

		var got []byte
		var dec = NewDecoder(spb, framing, func(b byte) { got = append(got, b) })
		dec.Consume(line)

		var stats = dec.Stats()
		assert.Equal(t, uint64(1), stats.StartBits)

		switch {
		case offset != 0:
			assert.Equal(t, []byte{0xff}, got)
		case bit == 8:
			assert.Empty(t, got)
			assert.Equal(t, uint64(1), stats.FramingErrors)
		default:
			assert.Equal(t, []byte{0xff &^ (1 << bit)}, got)
		}
	})
}

func Test_DecoderChunking(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var spb = rapid.IntRange(2, 50).Draw(t, "spb")
		var data = rapid.SliceOfN(rapid.Byte(), 1, 20).Draw(t, "data")
		var line = encode(spb, spb, data...)

		var chunks = rapid.SliceOfN(rapid.IntRange(1, 500), 1, 20).Draw(t, "chunks")

		var got []byte
		var dec = NewDecoder(spb, DefaultFraming(), func(b byte) { got = append(got, b) })

		for k := 0; len(line) > 0; k++ {
			var n = min(chunks[k%len(chunks)], len(line))
			dec.Consume(line[:n])
			line = line[n:]
		}

		assert.Equal(t, data, got)
	})
}

func Test_DecoderDebounce(t *testing.T) {
	var spb = 160
	var data = []byte{0x00, 0x00, 0x80, 0x01}

	var got []byte
	var dec = NewDecoder(spb, DefaultFraming(), func(b byte) { got = append(got, b) })

	dec.Consume(encode(spb, 2*spb, data...))

	assert.Equal(t, data, got)
	assert.Equal(t, uint64(len(data)), dec.Stats().StartBits, "one trigger per start edge")
}

func Test_DecoderRejectsGlitch(t *testing.T) {
	var spb = 160
	var dec = NewDecoder(spb, DefaultFraming(), func(byte) {})

	// Shorter than the majority threshold of the 96 sample window.
	var line = make([]LineSample, 2000)
	for i := range line {
		line[i] = Mark
	}

	for i := 500; i < 560; i++ {
		line[i] = Space
	}

	dec.Consume(line)

	assert.Zero(t, dec.Stats().StartBits)
}

func Test_DecoderFalseTriggerResyncs(t *testing.T) {
	var spb = 20
	var got []byte
	var dec = NewDecoder(spb, DefaultFraming(), func(b byte) { got = append(got, b) })

	// A start bit length burst of Space with nothing after it decodes as
	// 0xff, then the real byte that follows is found on its own edge.
	var line = make([]LineSample, 0, 1000)
	for range spb {
		line = append(line, Space)
	}

	line = append(line, encode(spb, 12*spb, 'A')...)

	dec.Consume(line)

	assert.Equal(t, []byte{0xff, 'A'}, got)
}

func Test_DecoderCheckStop(t *testing.T) {
	var spb = 10
	var framing = DefaultFraming()
	framing.CheckStop = true

	var got []byte
	var dec = NewDecoder(spb, framing, func(b byte) { got = append(got, b) })

	// Space around the middle of the stop bit only, so the decoder doesn't
	// see another start bit afterwards.
	var bad = encode(spb, 0, 0x42)
	bad[9*spb+4] = Space
	bad[9*spb+5] = Space

	dec.Consume(bad)
	dec.Consume(encode(spb, 3*spb, 0x43))

	assert.Equal(t, []byte{0x43}, got)
	assert.Equal(t, uint64(1), dec.Stats().FramingErrors)
}

func Test_DecoderReset(t *testing.T) {
	var spb = 10
	var got []byte
	var dec = NewDecoder(spb, DefaultFraming(), func(b byte) { got = append(got, b) })

	var line = encode(spb, 0, 0x11)
	dec.Consume(line[:4*spb])
	dec.Reset()
	dec.Consume(encode(spb, spb, 0x22))

	assert.Equal(t, []byte{0x22}, got)
}
