package softmodem

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultConfig(t *testing.T) {
	var cfg = DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 160, cfg.SamplesPerBit())
	assert.Equal(t, DefaultFraming(), cfg.Framing())

	var p = cfg.DemodParams()
	assert.InDelta(t, 300.0, p.LowpassCutoff, 0, "cutoff defaults to the baud rate")
	assert.Equal(t, 160, p.SamplesPerSymbol)
	assert.Equal(t, DefaultCarrierConfig(), p.Carrier)
}

func Test_RoleTones(t *testing.T) {
	var ch1 = Tones{MarkHz: 980, SpaceHz: 1180}
	var ch2 = Tones{MarkHz: 1650, SpaceHz: 1850}

	var tests = []struct {
		role Role
		tx   Tones
		rx   Tones
	}{
		{RoleOriginate, ch1, ch2},
		{RoleAnswer, ch2, ch1},
		{RoleLoopback, ch1, ch1},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			var cfg = DefaultConfig()
			cfg.Role = tt.role

			assert.Equal(t, tt.tx, cfg.TXTones())
			assert.Equal(t, tt.rx, cfg.RXTones())
		})
	}
}

func Test_ToneOverride(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.TX.SpaceHz = 1200

	assert.Equal(t, Tones{MarkHz: 980, SpaceHz: 1200}, cfg.TXTones())
	assert.Equal(t, Tones{MarkHz: 1650, SpaceHz: 1850}, cfg.RXTones())
}

func Test_ChannelTones(t *testing.T) {
	var _, err = ChannelTones(3)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func Test_LoadConfigEmpty(t *testing.T) {
	var cfg, err = LoadConfigFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func Test_LoadConfigOverrides(t *testing.T) {
	var doc = `
role: answer
baud: 600
rx:
  mark_hz: 1000
demodulator:
  lowpass_hz: 450
framer:
  check_stop: true
audio:
  input_device: "USB Audio"
`

	var cfg, err = LoadConfigFromReader(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, RoleAnswer, cfg.Role)
	assert.Equal(t, 80, cfg.SamplesPerBit())
	assert.Equal(t, Tones{MarkHz: 1000, SpaceHz: 1180}, cfg.RXTones())
	assert.InDelta(t, 450.0, cfg.DemodParams().LowpassCutoff, 0)
	assert.True(t, cfg.Framing().CheckStop)
	assert.Equal(t, "USB Audio", cfg.Audio.InputDevice)

	// Untouched fields keep their defaults.
	assert.InDelta(t, 0.99, cfg.Demodulator.Decay, 0)
	assert.Equal(t, 1024, cfg.Audio.FramesPerBuffer)
}

func Test_LoadConfigUnknownKey(t *testing.T) {
	var _, err = LoadConfigFromReader(strings.NewReader("bogus: 1\n"))
	assert.Error(t, err)
}

func Test_LoadConfigFile(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "softmodem.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role: loopback\n"), 0o600))

	var cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, RoleLoopback, cfg.Role)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func Test_ValidateCollectsErrors(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Baud = 7 // 48000 is not a multiple
	cfg.Role = "bogus"
	cfg.Demodulator.Decay = 1
	cfg.Framer.MajorityPercent = 50

	var err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 4)

	for _, s := range []string{"baud 7", "role", "decay", "majority_percent"} {
		assert.Contains(t, err.Error(), s)
	}
}

func Test_ValidateTones(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.TX = Tones{MarkHz: 1000, SpaceHz: 1000}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.SampleRate = 3000
	cfg.Baud = 300
	assert.ErrorContains(t, cfg.Validate(), "half the sample rate")

	cfg = DefaultConfig()
	cfg.SampleRate = 300
	assert.ErrorContains(t, cfg.Validate(), "fewer than 2 samples per bit")
}
