package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Read configuration information from a file.
 *
 * Description:	Everything has a sensible default so the file is
 *		optional.  Values given on the command line are applied
 *		on top by the caller after loading.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Role selects which V.21 channel is used in each direction.
type Role string

const (
	// RoleOriginate transmits on channel 1 and listens on channel 2.
	RoleOriginate Role = "originate"
	// RoleAnswer transmits on channel 2 and listens on channel 1.
	RoleAnswer Role = "answer"
	// RoleLoopback transmits and listens on channel 1.
	RoleLoopback Role = "loopback"
)

// V.21 tone pairs.
const (
	Channel1MarkHz  = 980
	Channel1SpaceHz = 1180
	Channel2MarkHz  = 1650
	Channel2SpaceHz = 1850
)

const (
	DefaultSampleRate = 48000
	DefaultBaud       = 300
)

// Tones is a mark/space frequency pair in Hz. Zero values mean "use the
// channel implied by the role".
type Tones struct {
	MarkHz  float64 `yaml:"mark_hz"`
	SpaceHz float64 `yaml:"space_hz"`
}

// MarkOmega returns the mark angular frequency in rad/s.
func (t Tones) MarkOmega() float64 {
	return 2 * math.Pi * t.MarkHz
}

// SpaceOmega returns the space angular frequency in rad/s.
func (t Tones) SpaceOmega() float64 {
	return 2 * math.Pi * t.SpaceHz
}

// ChannelTones returns the V.21 tone pair for channel 1 or 2.
func ChannelTones(channel int) (Tones, error) {
	switch channel {
	case 1:
		return Tones{MarkHz: Channel1MarkHz, SpaceHz: Channel1SpaceHz}, nil
	case 2:
		return Tones{MarkHz: Channel2MarkHz, SpaceHz: Channel2SpaceHz}, nil
	default:
		return Tones{}, fmt.Errorf("%w: V.21 channel must be 1 or 2, not %d", ErrInvalidConfig, channel)
	}
}

type DemodulatorConfig struct {
	Decay              float64 `yaml:"decay"`
	LowpassHz          float64 `yaml:"lowpass_hz"` // 0 means the baud rate
	CarrierOn          float64 `yaml:"carrier_on"`
	CarrierOff         float64 `yaml:"carrier_off"`
	CarrierHold        int     `yaml:"carrier_hold"`
	DecisionHysteresis float64 `yaml:"decision_hysteresis"`
}

type FramerConfig struct {
	WindowFraction  float64 `yaml:"window_fraction"`
	MajorityPercent float64 `yaml:"majority_percent"`
	CheckStop       bool    `yaml:"check_stop"`
}

type AudioConfig struct {
	InputDevice     string  `yaml:"input_device"`
	OutputDevice    string  `yaml:"output_device"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	InputGain       float64 `yaml:"input_gain"`
	OutputLevel     float64 `yaml:"output_level"`
}

// Config is the complete modem configuration.
type Config struct {
	SampleRate int    `yaml:"sample_rate"`
	Baud       int    `yaml:"baud"`
	Role       Role   `yaml:"role"`
	TX         Tones  `yaml:"tx"`
	RX         Tones  `yaml:"rx"`
	LogLevel   string `yaml:"log_level"`

	Demodulator DemodulatorConfig `yaml:"demodulator"`
	Framer      FramerConfig      `yaml:"framer"`
	Audio       AudioConfig       `yaml:"audio"`
}

// DefaultConfig returns a 300 baud originate modem at 48 kHz.
func DefaultConfig() *Config {
	var framing = DefaultFraming()
	var carrier = DefaultCarrierConfig()

	return &Config{
		SampleRate: DefaultSampleRate,
		Baud:       DefaultBaud,
		Role:       RoleOriginate,
		LogLevel:   "info",
		Demodulator: DemodulatorConfig{
			Decay:       0.99,
			CarrierOn:   carrier.On,
			CarrierOff:  carrier.Off,
			CarrierHold: carrier.Hold,
		},
		Framer: FramerConfig{
			WindowFraction:  framing.WindowFraction,
			MajorityPercent: framing.MajorityPercent,
		},
		Audio: AudioConfig{
			FramesPerBuffer: 1024,
			InputGain:       1,
			OutputLevel:     0.5,
		},
	}
}

// LoadConfig reads the YAML file at path on top of DefaultConfig and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	var f, openErr = os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, openErr)
	}
	defer f.Close()

	var cfg, err = LoadConfigFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}

	return cfg, nil
}

// LoadConfigFromReader decodes YAML from r on top of DefaultConfig. Unknown
// keys are an error. An empty document gives the defaults.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	var cfg = DefaultConfig()

	var dec = yaml.NewDecoder(r)
	dec.KnownFields(true)

	var decodeErr = dec.Decode(cfg)
	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", decodeErr)
	}

	var validateErr = cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return cfg, nil
}

// Validate checks every field and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error

	var bad = func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch {
	case c.SampleRate <= 0:
		bad("sample_rate must be positive, not %d", c.SampleRate)
	case c.Baud <= 0:
		bad("baud must be positive, not %d", c.Baud)
	case c.SampleRate%c.Baud != 0:
		bad("sample_rate %d is not a whole multiple of baud %d", c.SampleRate, c.Baud)
	case c.SampleRate/c.Baud < 2:
		bad("sample_rate %d gives fewer than 2 samples per bit at %d baud", c.SampleRate, c.Baud)
	}

	switch c.Role {
	case RoleOriginate, RoleAnswer, RoleLoopback:
	default:
		bad("role must be %q, %q or %q, not %q", RoleOriginate, RoleAnswer, RoleLoopback, c.Role)
	}

	for _, dir := range []struct {
		name  string
		tones Tones
	}{{"tx", c.TXTones()}, {"rx", c.RXTones()}} {
		var t = dir.tones
		if t.MarkHz <= 0 || t.SpaceHz <= 0 {
			bad("%s tones must be positive, got mark %g space %g", dir.name, t.MarkHz, t.SpaceHz)
		} else if t.MarkHz == t.SpaceHz {
			bad("%s mark and space must differ, both are %g", dir.name, t.MarkHz)
		} else if c.SampleRate > 0 && (t.MarkHz >= float64(c.SampleRate)/2 || t.SpaceHz >= float64(c.SampleRate)/2) {
			bad("%s tones must be below half the sample rate", dir.name)
		}
	}

	var d = c.Demodulator
	if d.Decay <= 0 || d.Decay >= 1 {
		bad("demodulator.decay must be between 0 and 1 exclusive, not %g", d.Decay)
	}

	if d.LowpassHz < 0 || (c.SampleRate > 0 && d.LowpassHz >= float64(c.SampleRate)/2) {
		bad("demodulator.lowpass_hz %g out of range", d.LowpassHz)
	}

	if d.CarrierOff < 0 || d.CarrierOff > d.CarrierOn {
		bad("demodulator.carrier_off %g must be between 0 and carrier_on %g", d.CarrierOff, d.CarrierOn)
	}

	if d.CarrierHold < 1 {
		bad("demodulator.carrier_hold must be at least 1, not %d", d.CarrierHold)
	}

	if d.DecisionHysteresis < 0 {
		bad("demodulator.decision_hysteresis must not be negative")
	}

	var f = c.Framer
	if f.WindowFraction <= 0 || f.WindowFraction > 1 {
		bad("framer.window_fraction must be in (0, 1], not %g", f.WindowFraction)
	}

	if f.MajorityPercent <= 50 || f.MajorityPercent > 100 {
		bad("framer.majority_percent must be in (50, 100], not %g", f.MajorityPercent)
	}

	if c.Audio.FramesPerBuffer < 1 {
		bad("audio.frames_per_buffer must be at least 1, not %d", c.Audio.FramesPerBuffer)
	}

	return errors.Join(errs...)
}

// SamplesPerBit is the oversampling factor shared by both framers.
func (c *Config) SamplesPerBit() int {
	return c.SampleRate / c.Baud
}

// TXTones returns the transmit pair: the tx override if set, otherwise the
// channel implied by the role.
func (c *Config) TXTones() Tones {
	var channel = 1
	if c.Role == RoleAnswer {
		channel = 2
	}

	return c.resolve(c.TX, channel)
}

// RXTones returns the receive pair: the rx override if set, otherwise the
// channel implied by the role.
func (c *Config) RXTones() Tones {
	var channel = 2
	if c.Role == RoleAnswer || c.Role == RoleLoopback {
		channel = 1
	}

	return c.resolve(c.RX, channel)
}

func (c *Config) resolve(override Tones, channel int) Tones {
	var t, _ = ChannelTones(channel)

	if override.MarkHz != 0 {
		t.MarkHz = override.MarkHz
	}

	if override.SpaceHz != 0 {
		t.SpaceHz = override.SpaceHz
	}

	return t
}

// DemodParams builds the receive side demodulator parameters.
func (c *Config) DemodParams() DemodParams {
	var rx = c.RXTones()

	var cutoff = c.Demodulator.LowpassHz
	if cutoff == 0 {
		cutoff = float64(c.Baud)
	}

	return DemodParams{
		MarkOmega:        rx.MarkOmega(),
		SpaceOmega:       rx.SpaceOmega(),
		SampleRate:       float64(c.SampleRate),
		SamplesPerSymbol: c.SamplesPerBit(),
		Decay:            c.Demodulator.Decay,
		LowpassCutoff:    cutoff,
		Carrier: CarrierConfig{
			On:   c.Demodulator.CarrierOn,
			Off:  c.Demodulator.CarrierOff,
			Hold: c.Demodulator.CarrierHold,
		},
		DecisionHysteresis: c.Demodulator.DecisionHysteresis,
	}
}

// Framing builds the receive side start bit detector tuning.
func (c *Config) Framing() Framing {
	return Framing{
		WindowFraction:  c.Framer.WindowFraction,
		MajorityPercent: c.Framer.MajorityPercent,
		CheckStop:       c.Framer.CheckStop,
	}
}
