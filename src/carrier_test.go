package softmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_CarrierHysteresis(t *testing.T) {
	var c = carrierDetector{cfg: DefaultCarrierConfig()}

	// Between the thresholds does nothing without a carrier.
	for range 1000 {
		assert.False(t, c.update(100))
	}

	assert.False(t, c.present)

	assert.True(t, c.update(-121), "acquire on either polarity")
	assert.True(t, c.present)

	// Dropping to between the thresholds keeps it.
	for range 1000 {
		assert.False(t, c.update(61))
	}

	assert.True(t, c.present)

	// 49 low samples are not enough.
	for range 49 {
		assert.False(t, c.update(10))
	}

	assert.True(t, c.present)
	assert.True(t, c.update(-10), "50th consecutive low sample")
	assert.False(t, c.present)
}

func Test_CarrierHoldRestarts(t *testing.T) {
	var c = carrierDetector{cfg: DefaultCarrierConfig()}
	c.update(500)

	for range 10 {
		for range 49 {
			c.update(0)
		}

		// One sample at the off level starts the count again.
		c.update(60)
	}

	assert.True(t, c.present)

	for range 49 {
		c.update(0)
	}

	assert.True(t, c.present)
	c.update(0)
	assert.False(t, c.present)
}

func Test_CarrierReset(t *testing.T) {
	var c = carrierDetector{cfg: CarrierConfig{On: 1, Off: 0.5, Hold: 3}}
	c.update(2)
	c.update(0)
	c.reset()

	assert.False(t, c.present)
	assert.Zero(t, c.hold)
}
