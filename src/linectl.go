package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Drive GPIO output lines to show modem state.
 *
 * Description:	DCD follows the receive carrier detect.  TX is on while
 *		there is queued data being sent, which can key a
 *		transmitter or light an "off hook" LED.  Either line is
 *		optional.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const gpioConsumer = "softmodem"

// LineControlConfig names the GPIO chip and line offsets. A negative offset
// means that line is not used.
type LineControlConfig struct {
	Chip     string
	DCD      int
	TX       int
	ActiveLo bool
}

// LineControl owns the requested output lines.
type LineControl struct {
	activeLo bool

	mu  sync.Mutex
	dcd *gpiocdev.Line
	tx  *gpiocdev.Line
	on  map[*gpiocdev.Line]bool
}

// OpenLineControl requests the configured lines as outputs, initially off.
func OpenLineControl(cfg LineControlConfig) (*LineControl, error) {
	var lc = &LineControl{
		activeLo: cfg.ActiveLo,
		on:       make(map[*gpiocdev.Line]bool),
	}

	var off = 0
	if cfg.ActiveLo {
		off = 1
	}

	var request = func(offset int) (*gpiocdev.Line, error) {
		if offset < 0 {
			return nil, nil
		}

		var l, err = gpiocdev.RequestLine(cfg.Chip, offset, gpiocdev.AsOutput(off), gpiocdev.WithConsumer(gpioConsumer))
		if err != nil {
			return nil, fmt.Errorf("gpio: request %s line %d: %w", cfg.Chip, offset, err)
		}

		return l, nil
	}

	var err error

	lc.dcd, err = request(cfg.DCD)
	if err != nil {
		return nil, err
	}

	lc.tx, err = request(cfg.TX)
	if err != nil {
		lc.Close()

		return nil, err
	}

	return lc, nil
}

// SetDCD shows carrier detect. A nil LineControl does nothing.
func (lc *LineControl) SetDCD(on bool) error {
	if lc == nil {
		return nil
	}

	return lc.set(lc.dcd, on)
}

// SetTX shows transmit activity.
func (lc *LineControl) SetTX(on bool) error {
	if lc == nil {
		return nil
	}

	return lc.set(lc.tx, on)
}

// set only touches the hardware when the state changes since it is called
// for every audio buffer.
func (lc *LineControl) set(l *gpiocdev.Line, on bool) error {
	if l == nil {
		return nil
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.on[l] == on {
		return nil
	}

	var v = 0
	if on != lc.activeLo {
		v = 1
	}

	var err = l.SetValue(v)
	if err != nil {
		return fmt.Errorf("gpio: set line: %w", err)
	}

	lc.on[l] = on

	return nil
}

// Close turns both lines off and releases them.
func (lc *LineControl) Close() error {
	var errs []error

	for _, l := range []*gpiocdev.Line{lc.dcd, lc.tx} {
		if l == nil {
			continue
		}

		errs = append(errs, lc.set(l, false), l.Close())
	}

	lc.dcd = nil
	lc.tx = nil

	return errors.Join(errs...)
}
