package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Use a real serial port as the byte endpoint.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/pkg/term"
)

/*-------------------------------------------------------------------
 *
 * Name:	OpenSerial
 *
 * Purpose:	Open serial port in raw mode.
 *
 * Inputs:	devicename	- Usually /dev/tty...
 *				  Could be /dev/rfcomm0 for Bluetooth.
 *
 *		baud		- Speed.  1200, 4800, 9600 bps, etc.
 *				  If 0, leave it alone.
 *
 *---------------------------------------------------------------*/

func OpenSerial(devicename string, baud int) (*term.Term, error) {
	var fd, err = term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("serial: could not open %s: %w", devicename, err)
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 300, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		var speedErr = fd.SetSpeed(baud)
		if speedErr != nil {
			fd.Close()

			return nil, fmt.Errorf("serial: %s: set speed %d: %w", devicename, baud, speedErr)
		}
	default:
		fd.Close()

		return nil, fmt.Errorf("serial: %s: unsupported speed %d", devicename, baud)
	}

	return fd, nil
}
