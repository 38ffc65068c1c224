package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Test program for decoding V.21 audio recordings.
 *
 * Description:	Runs .WAV files through the same receive chain as the
 *		live modem, much quicker than real time, and writes the
 *		recovered bytes to stdout.  A summary goes to stderr so
 *		it doesn't get mixed up with the data.
 *
 *		The --error-if-less-than and --error-if-greater-than
 *		options make it usable in scripted regression tests.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

// DecodeResult summarises one run of Decode.
type DecodeResult struct {
	Stats    DecoderStats
	Samples  int
	Carriers int // times the carrier was detected
}

// Decode runs all audio from src through a demodulator and decoder built
// from cfg, calling deliver for each byte, until src returns io.EOF.
func Decode(cfg *Config, src AudioSource, deliver ByteFunc) (DecodeResult, error) {
	var result DecodeResult

	var decoder = NewDecoder(cfg.SamplesPerBit(), cfg.Framing(), deliver)
	var demod = NewDemodulator(cfg.DemodParams(), decoder.Consume, WithCarrierNotify(func(present bool) {
		if present {
			result.Carriers++
		}
	}))

	var buf = make([]float64, cfg.Audio.FramesPerBuffer)

	for {
		var n, err = src.ReadSamples(buf)
		if n > 0 {
			demod.Demodulate(buf[:n])
			result.Samples += n
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			result.Stats = decoder.Stats()

			return result, err
		}
	}

	result.Stats = decoder.Stats()

	return result, nil
}

func DecodeMain() {
	var configFile = pflag.StringP("config-file", "C", "", "Read demodulator and framer tuning from this file.")
	var channel = pflag.IntP("channel", "c", 1, "V.21 channel to receive, 1 (980/1180 Hz) or 2 (1650/1850 Hz).")
	var markFrequency = pflag.IntP("mark", "m", 0, "Mark frequency, overriding the channel.")
	var spaceFrequency = pflag.IntP("space", "s", 0, "Space frequency, overriding the channel.")
	var baud = pflag.IntP("baud", "B", DefaultBaud, "Bits / second.")
	var checkStop = pflag.Bool("check-stop", false, "Discard bytes without a valid stop bit.")
	var hexDisplay = pflag.BoolP("hex-display", "x", false, "Print bytes as hexadecimal rather than raw.")
	var errorIfLessThan = pflag.IntP("error-if-less-than", "L", -1, "Error if less than this number of bytes decoded.")
	var errorIfGreaterThan = pflag.IntP("error-if-greater-than", "G", -1, "Error if greater than this number of bytes decoded.")
	var logLevel = pflag.String("log-level", "info", "debug, info, warn or error.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s decodes V.21 modem data from audio recordings.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "This provides an easy way to test decoding performance much quicker than real time.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]... <WAV FILE>...\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "$ v21gen -o test1.wav Hello\n")
		fmt.Fprintf(os.Stderr, "$ v21decode test1.wav\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "$ v21gen -c 2 -n 0.3 -o test2.wav Hello\n")
		fmt.Fprintf(os.Stderr, "$ v21decode -c 2 -L 5 -G 5 test2.wav\n")
	}

	// !!! PARSE !!!
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if len(pflag.Args()) == 0 {
		fmt.Fprintf(os.Stderr, "Specify .WAV file name on command line.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var logger, logErr = NewLogger(os.Stderr, *logLevel)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", logErr)
		os.Exit(1)
	}

	var cfg = DefaultConfig()
	if *configFile != "" {
		var loaded, loadErr = LoadConfig(*configFile)
		if loadErr != nil {
			logger.Fatal("could not load config", "err", loadErr)
		}

		cfg = loaded
	}

	var tones, chanErr = ChannelTones(*channel)
	if chanErr != nil {
		logger.Fatal("bad channel", "err", chanErr)
	}

	if *markFrequency > 0 {
		tones.MarkHz = float64(*markFrequency)
	}

	if *spaceFrequency > 0 {
		tones.SpaceHz = float64(*spaceFrequency)
	}

	// Values from the config file stand unless overridden on the command line.
	var changed = pflag.CommandLine.Changed

	if *configFile == "" || changed("channel") || changed("mark") || changed("space") {
		cfg.RX = tones
	}

	if changed("baud") {
		cfg.Baud = *baud
	}

	if *checkStop {
		cfg.Framer.CheckStop = true
	}

	var out = bufio.NewWriter(os.Stdout)
	var deliver = func(b byte) {
		if *hexDisplay {
			fmt.Fprintf(out, "%02x ", b)
		} else {
			out.WriteByte(b)
		}
	}

	var start = time.Now()
	var total DecoderStats
	var totalSeconds float64

	for _, wavFileName := range pflag.Args() {
		var decoded, decodeErr = decodeFile(cfg, wavFileName, deliver, logger)
		if decodeErr != nil {
			logger.Fatal("could not decode", "file", wavFileName, "err", decodeErr)
		}

		total.Bytes += decoded.Stats.Bytes
		total.StartBits += decoded.Stats.StartBits
		total.FramingErrors += decoded.Stats.FramingErrors
		totalSeconds += float64(decoded.Samples) / float64(cfg.SampleRate)
	}

	if *hexDisplay {
		out.WriteByte('\n')
	}

	out.Flush()

	var elapsed = time.Since(start)

	logger.Info("decoding finished",
		"bytes", total.Bytes,
		"start_bits", total.StartBits,
		"framing_errors", total.FramingErrors,
		"seconds", fmt.Sprintf("%.3f", elapsed.Seconds()),
		"realtime", fmt.Sprintf("%.1fx", totalSeconds/elapsed.Seconds()))

	if *errorIfLessThan != -1 && total.Bytes < uint64(*errorIfLessThan) { //nolint:gosec
		logger.Errorf("TEST FAILED: number decoded %d is less than %d", total.Bytes, *errorIfLessThan)
		os.Exit(1)
	}

	if *errorIfGreaterThan != -1 && total.Bytes > uint64(*errorIfGreaterThan) { //nolint:gosec
		logger.Errorf("TEST FAILED: number decoded %d is greater than %d", total.Bytes, *errorIfGreaterThan)
		os.Exit(1)
	}
}

// decodeFile takes the sample rate from the file itself, so cfg is updated
// to match before use.
func decodeFile(cfg *Config, name string, deliver ByteFunc, logger *log.Logger) (DecodeResult, error) {
	var src, openErr = OpenWAVSource(name)
	if openErr != nil {
		return DecodeResult{}, openErr
	}
	defer src.Close()

	cfg.SampleRate = src.SampleRate

	var validateErr = cfg.Validate()
	if validateErr != nil {
		return DecodeResult{}, validateErr
	}

	logger.Info("decoding", "file", name, "sample_rate", src.SampleRate, "channels", src.Channels, "bits", src.BitsPerSample)

	var result, err = Decode(cfg, src, deliver)
	if err != nil {
		return result, err
	}

	logger.Debug("file done", "file", name, "bytes", result.Stats.Bytes, "carriers", result.Carriers)

	return result, nil
}
