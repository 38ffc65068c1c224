package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the software modem.
 *
 * Description:	Audio comes from the sound card, a .WAV file or an
 *		in-memory loopback.  Bytes are exchanged with a pseudo
 *		terminal, a serial port, TCP clients, or stdin/stdout.
 *
 *		Everything has a default so
 *
 *			softmodem --pty
 *
 *		is enough to get a virtual serial port that talks V.21
 *		through the default sound card.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// runOptions are the command line choices that are not part of Config.
type runOptions struct {
	pty        bool
	ptyLink    string
	serial     string
	serialBaud int
	tcp        string
	dnsSD      bool
	dnsSDName  string
	metrics    string
	capture    string
	loopback   bool
	inputWAV   string
	outputWAV  string
	gpio       LineControlConfig
}

func SoftModemMain() {
	var configFile = pflag.StringP("config-file", "c", "", "Configuration file name.")
	var role = pflag.String("role", string(RoleOriginate), "originate, answer or loopback.")
	var baud = pflag.IntP("baud", "B", DefaultBaud, "Bits / second.")
	var sampleRate = pflag.IntP("sample-rate", "r", DefaultSampleRate, "Audio sample rate.")
	var inputDevice = pflag.String("input-device", "", "Audio input device name.  See --list-devices.")
	var outputDevice = pflag.String("output-device", "", "Audio output device name.  See --list-devices.")
	var logLevel = pflag.String("log-level", "info", "debug, info, warn or error.")

	var opts runOptions

	pflag.BoolVarP(&opts.pty, "pty", "p", false, "Create a pseudo terminal for the application.")
	pflag.StringVar(&opts.ptyLink, "pty-link", "", "Symlink this name to the pseudo terminal, e.g. /tmp/modem.")
	pflag.StringVar(&opts.serial, "serial", "", "Use this serial port for the application, e.g. /dev/ttyUSB0.")
	pflag.IntVar(&opts.serialBaud, "serial-speed", 0, "Serial port speed.  0 leaves it alone.")
	pflag.StringVar(&opts.tcp, "tcp", "", "Listen for application connections on this address, e.g. :8001.")
	pflag.BoolVar(&opts.dnsSD, "dns-sd", false, "Announce the TCP service with DNS-SD.")
	pflag.StringVar(&opts.dnsSDName, "dns-sd-name", "", "DNS-SD service name.  Default \"Softmodem on <hostname>\".")
	pflag.StringVar(&opts.metrics, "metrics", "", "Serve Prometheus metrics on this address, e.g. :9100.")
	pflag.StringVar(&opts.capture, "capture", "", "Record received audio to a .WAV file.  strftime patterns allowed.")
	pflag.BoolVar(&opts.loopback, "loopback", false, "Connect transmit straight to receive, no sound card.")
	pflag.StringVar(&opts.inputWAV, "input-wav", "", "Receive audio from this .WAV file instead of the sound card.")
	pflag.StringVar(&opts.outputWAV, "output-wav", "", "Transmit audio to this .WAV file instead of the sound card.")
	pflag.StringVar(&opts.gpio.Chip, "gpio-chip", "gpiochip0", "GPIO chip for --gpio-dcd and --gpio-tx.")
	pflag.IntVar(&opts.gpio.DCD, "gpio-dcd", -1, "GPIO line to turn on while a carrier is detected.")
	pflag.IntVar(&opts.gpio.TX, "gpio-tx", -1, "GPIO line to turn on while transmitting data.")
	pflag.BoolVar(&opts.gpio.ActiveLo, "gpio-active-low", false, "GPIO lines are active low.")

	var listDevices = pflag.BoolP("list-devices", "l", false, "List audio devices and exit.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - V.21 software modem.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Command line options override the configuration file.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  softmodem --pty --pty-link /tmp/modem\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "    Originate on the default sound card, application opens /tmp/modem.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  softmodem --role answer --tcp :8001 --dns-sd\n")
	}

	// !!! PARSE !!!
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *version {
		printVersion(os.Stdout, false)
		os.Exit(0)
	}

	if *listDevices {
		var initErr = portaudio.Initialize()
		if initErr != nil {
			fmt.Fprintf(os.Stderr, "Could not initialise PortAudio: %s\n", initErr)
			os.Exit(1)
		}

		PrintDevices(os.Stdout)
		portaudio.Terminate()
		os.Exit(0)
	}

	var cfg = DefaultConfig()
	if *configFile != "" {
		var loaded, loadErr = LoadConfig(*configFile)
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "%s\n", loadErr)
			os.Exit(1)
		}

		cfg = loaded
	}

	var changed = pflag.CommandLine.Changed

	if changed("role") {
		cfg.Role = Role(*role)
	}

	if changed("baud") {
		cfg.Baud = *baud
	}

	if changed("sample-rate") {
		cfg.SampleRate = *sampleRate
	}

	if changed("input-device") {
		cfg.Audio.InputDevice = *inputDevice
	}

	if changed("output-device") {
		cfg.Audio.OutputDevice = *outputDevice
	}

	if changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	if opts.loopback {
		cfg.Role = RoleLoopback
	}

	var validateErr = cfg.Validate()
	if validateErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", validateErr)
		os.Exit(1)
	}

	var logger, logErr = NewLogger(os.Stderr, cfg.LogLevel)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", logErr)
		os.Exit(1)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr = runModem(ctx, cfg, opts, logger)
	if runErr != nil {
		logger.Error("modem stopped", "err", runErr)
		stop()
		os.Exit(1) //nolint:gocritic
	}
}

// closers are run in reverse order on the way out of runModem.
type closers []func() error

func (c *closers) add(f func() error) {
	*c = append(*c, f)
}

func (c closers) closeAll(logger *log.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		var err = c[i]()
		if err != nil {
			logger.Warn("close failed", "err", err)
		}
	}
}

func runModem(ctx context.Context, cfg *Config, opts runOptions, logger *log.Logger) error {
	var cleanup closers
	defer func() { cleanup.closeAll(logger) }()

	var modemOpts = []ModemOption{WithLogger(logger)}

	/*
	 * Audio.
	 */
	var src AudioSource
	var sink AudioSink

	var needInput = !opts.loopback && opts.inputWAV == ""
	var needOutput = !opts.loopback && opts.outputWAV == ""

	if needInput || needOutput {
		var initErr = portaudio.Initialize()
		if initErr != nil {
			return fmt.Errorf("could not initialise PortAudio: %w", initErr)
		}

		cleanup.add(portaudio.Terminate)

		var dev, devErr = OpenPortAudio(cfg, needInput, needOutput)
		if devErr != nil {
			return devErr
		}

		cleanup.add(dev.Close)

		if needInput {
			src = dev
		}

		if needOutput {
			sink = dev
		}
	}

	if opts.loopback {
		var l = NewLoopback()
		l.CloseOnDone(ctx)
		src = l
		sink = l

		modemOpts = append(modemOpts, WithPacing())
	}

	if opts.inputWAV != "" {
		var wavIn, wavErr = OpenWAVSource(opts.inputWAV)
		if wavErr != nil {
			return wavErr
		}

		cleanup.add(wavIn.Close)

		if wavIn.SampleRate != cfg.SampleRate {
			return fmt.Errorf("%s: sample rate %d does not match configured %d", opts.inputWAV, wavIn.SampleRate, cfg.SampleRate)
		}

		src = wavIn
	}

	if opts.outputWAV != "" {
		var wavOut, wavErr = CreateWAVSink(opts.outputWAV, cfg.SampleRate)
		if wavErr != nil {
			return wavErr
		}

		cleanup.add(wavOut.Close)

		sink = wavOut

		modemOpts = append(modemOpts, WithPacing())
	}

	if opts.capture != "" {
		var capSink, name, capErr = OpenCapture(opts.capture, cfg.SampleRate)
		if capErr != nil {
			return capErr
		}

		cleanup.add(capSink.Close)
		logger.Info("capturing received audio", "file", name)

		src = NewCapturingSource(src, capSink)
	}

	var g, gctx = errgroup.WithContext(ctx)

	/*
	 * Application side.
	 */
	var ep Endpoint

	switch {
	case opts.pty:
		var p, ptyErr = OpenPTY(opts.ptyLink, logger)
		if ptyErr != nil {
			return ptyErr
		}

		ep = p

	case opts.serial != "":
		var s, serialErr = OpenSerial(opts.serial, opts.serialBaud)
		if serialErr != nil {
			return serialErr
		}

		logger.Info("using serial port", "device", opts.serial)

		ep = s

	case opts.tcp != "":
		var srv, tcpErr = ListenTCP(opts.tcp, logger)
		if tcpErr != nil {
			return tcpErr
		}

		logger.Info("ready to accept tcp clients", "addr", srv.Addr())

		g.Go(func() error {
			return srv.Serve(gctx)
		})

		if opts.dnsSD {
			g.Go(func() error {
				return Announce(gctx, opts.dnsSDName, srv.Port(), logger)
			})
		}

		ep = srv

	default:
		ep = NewStdioEndpoint()
	}

	if opts.dnsSD && opts.tcp == "" {
		logger.Warn("--dns-sd needs --tcp, not announcing")
	}

	/*
	 * Observability and line control.
	 */
	if opts.metrics != "" {
		var mp, mpErr = InitMetrics(Version())
		if mpErr != nil {
			return fmt.Errorf("metrics: %w", mpErr)
		}

		cleanup.add(func() error { return mp.Shutdown(context.Background()) })

		var met, metErr = NewMetrics(mp)
		if metErr != nil {
			return fmt.Errorf("metrics: %w", metErr)
		}

		modemOpts = append(modemOpts, WithMetrics(met))

		g.Go(func() error {
			return ServeMetrics(gctx, opts.metrics)
		})

		logger.Info("serving metrics", "addr", opts.metrics)
	}

	if opts.gpio.DCD >= 0 || opts.gpio.TX >= 0 {
		var lc, lcErr = OpenLineControl(opts.gpio)
		if lcErr != nil {
			return lcErr
		}

		cleanup.add(lc.Close)

		modemOpts = append(modemOpts, WithLineControl(lc))
	}

	var modem = NewModem(cfg, src, sink, ep, modemOpts...)

	g.Go(func() error {
		return modem.Run(gctx)
	})

	return g.Wait()
}
