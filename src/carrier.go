package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Decide whether a modem tone is present at all.
 *
 * Description:	Two thresholds and a dwell count.  The filtered
 *		mark/space decision has to rise above the "on" level to
 *		declare a carrier.  Once present, it has to stay below the
 *		lower "off" level for a number of consecutive samples,
 *		about one symbol, before the carrier is declared lost.
 *		Any sample back above "off" starts the count again.
 *		Without this the output chatters at the start and end of
 *		a transmission and during brief fades.
 *
 *---------------------------------------------------------------*/

import "math"

// CarrierConfig holds the carrier detect hysteresis.
type CarrierConfig struct {
	On   float64 // |decision| above this acquires the carrier
	Off  float64 // |decision| below this counts towards losing it
	Hold int     // consecutive low samples before the carrier is lost
}

// DefaultCarrierConfig returns thresholds suitable for full scale input.
func DefaultCarrierConfig() CarrierConfig {
	return CarrierConfig{
		On:   120,
		Off:  60,
		Hold: 50,
	}
}

type carrierDetector struct {
	cfg     CarrierConfig
	present bool
	hold    int
}

// update feeds one filtered decision and reports whether the state changed.
func (c *carrierDetector) update(decision float64) bool {
	var mag = math.Abs(decision)

	if !c.present {
		if mag > c.cfg.On {
			c.present = true
			c.hold = 0

			return true
		}

		return false
	}

	if mag >= c.cfg.Off {
		c.hold = 0

		return false
	}

	c.hold++
	if c.hold >= c.cfg.Hold {
		c.present = false
		c.hold = 0

		return true
	}

	return false
}

func (c *carrierDetector) reset() {
	c.present = false
	c.hold = 0
}
