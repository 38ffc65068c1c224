package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Test program for generating V.21 audio.
 *
 * Description:	Given bytes on the command line, from a file, or from
 *		stdin, generate the audio a modem would send and write
 *		it to a .WAV file.  This is the counterpart of v21decode.
 *
 *		The frames are surrounded by idle Mark so the receiving
 *		end has time to detect the carrier first and flush its
 *		filters afterwards.
 *
 *		With artificial noise added, decoding performance can be
 *		compared between versions without a radio or phone line.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// GenParams controls Synthesize.
type GenParams struct {
	SampleRate int
	Baud       int
	Tones      Tones
	Amplitude  float64 // peak, 0 .. 1
	LeadBits   int     // idle Mark before the data
	TrailBits  int     // idle Mark after the data
	Noise      float64 // peak of uniform noise added to each sample
	Seed       uint64
}

// DefaultGenParams is channel 1 at 300 baud, half amplitude, a quarter
// second of idle either side.
func DefaultGenParams() GenParams {
	return GenParams{
		SampleRate: DefaultSampleRate,
		Baud:       DefaultBaud,
		Tones:      Tones{MarkHz: Channel1MarkHz, SpaceHz: Channel1SpaceHz},
		Amplitude:  0.5,
		LeadBits:   75,
		TrailBits:  75,
		Seed:       1,
	}
}

// Synthesize returns the modulated audio for data.
func Synthesize(data []byte, p GenParams) []float64 {
	var spb = p.SampleRate / p.Baud
	var enc = NewEncoder(spb)

	var lead = p.LeadBits * spb
	var frames = len(data) * BitsPerFrame * spb
	var trail = p.TrailBits * spb

	var line = make([]LineSample, lead+frames+trail)

	// Drain pads with Mark, which takes care of the idle on both sides.
	enc.Drain(line[:lead])
	enc.SubmitBytes(data)
	enc.Drain(line[lead:])

	var mod = NewModulator(p.Tones.MarkOmega(), p.Tones.SpaceOmega(), float64(p.SampleRate), WithAmplitude(p.Amplitude))
	var audio = make([]float64, len(line))
	mod.Modulate(line, audio)

	if p.Noise > 0 {
		var rng = rand.New(rand.NewPCG(p.Seed, 0)) //nolint:gosec
		for i := range audio {
			audio[i] += p.Noise * (2*rng.Float64() - 1)
		}
	}

	return audio
}

func GenMain() {
	var outputFile = pflag.StringP("output-file", "o", "", "Send output to .wav file.")
	var inputFile = pflag.StringP("input", "I", "", "Read the bytes to send from this file.  - for stdin.")
	var channel = pflag.IntP("channel", "c", 1, "V.21 channel 1 (980/1180 Hz) or 2 (1650/1850 Hz).")
	var markFrequency = pflag.IntP("mark", "m", 0, "Mark frequency, overriding the channel.")
	var spaceFrequency = pflag.IntP("space", "s", 0, "Space frequency, overriding the channel.")
	var baud = pflag.IntP("baud", "B", DefaultBaud, "Bits / second.")
	var audioSampleRate = pflag.IntP("audio-sample-rate", "r", DefaultSampleRate, "Audio sample rate.")
	var amplitude = pflag.IntP("amplitude", "a", 50, "Signal amplitude in range of 0 - 100%.")
	var noise = pflag.Float64P("noise", "n", 0, "Add uniform noise with this peak amplitude, 0 - 1.")
	var seed = pflag.Uint64("seed", 1, "Noise generator seed.")
	var leadBits = pflag.IntP("lead-bits", "l", 75, "Idle bit times before the data.")
	var trailBits = pflag.IntP("trail-bits", "t", 75, "Idle bit times after the data.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Generate audio file for V.21 modem data.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -o file.wav [text]...\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Any text arguments are joined with spaces and sent.  Otherwise\n")
		fmt.Fprintf(os.Stderr, "the bytes come from the --input file, or stdin.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  v21gen -o x.wav Hello, world\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  echo -n \"Hello\" | v21gen -c 2 -a 25 -o x.wav\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "    Answer channel, quarter volume.\n")
	}

	// !!! PARSE !!!
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *outputFile == "" {
		fmt.Fprintf(os.Stderr, "ERROR: The -o output file option must be specified.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var tones, chanErr = ChannelTones(*channel)
	if chanErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", chanErr)
		os.Exit(1)
	}

	if *markFrequency > 0 {
		tones.MarkHz = float64(*markFrequency)
	}

	if *spaceFrequency > 0 {
		tones.SpaceHz = float64(*spaceFrequency)
	}

	if *amplitude < 0 || *amplitude > 100 {
		fmt.Fprintf(os.Stderr, "Amplitude must be in range of 0 to 100.\n")
		os.Exit(1)
	}

	var cfg = DefaultConfig()
	cfg.SampleRate = *audioSampleRate
	cfg.Baud = *baud
	cfg.TX = tones
	cfg.RX = tones

	var cfgErr = cfg.Validate()
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", cfgErr)
		os.Exit(1)
	}

	var data []byte
	var readErr error

	switch {
	case len(pflag.Args()) > 0:
		data = []byte(strings.Join(pflag.Args(), " "))
	case *inputFile != "" && *inputFile != "-":
		data, readErr = os.ReadFile(*inputFile)
	default:
		data, readErr = io.ReadAll(os.Stdin)
	}

	if readErr != nil {
		fmt.Fprintf(os.Stderr, "Can't read input: %s\n", readErr)
		os.Exit(1)
	}

	var audio = Synthesize(data, GenParams{
		SampleRate: *audioSampleRate,
		Baud:       *baud,
		Tones:      tones,
		Amplitude:  float64(*amplitude) / 100,
		LeadBits:   *leadBits,
		TrailBits:  *trailBits,
		Noise:      *noise,
		Seed:       *seed,
	})

	var sink, sinkErr = CreateWAVSink(*outputFile, *audioSampleRate)
	if sinkErr != nil {
		fmt.Fprintf(os.Stderr, "Can't create output file: %s\n", sinkErr)
		os.Exit(1)
	}

	var writeErr = sink.WriteSamples(audio)
	var closeErr = sink.Close()

	if writeErr != nil || closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v %v\n", *outputFile, writeErr, closeErr)
		os.Exit(1)
	}

	fmt.Printf("%d bytes, %.2f seconds of audio written to %s\n", len(data), float64(len(audio))/float64(*audioSampleRate), *outputFile)
}
