package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Present the modem as a pseudo terminal.
 *
 * Description:	Applications written for a hardware modem on a serial
 *		port can open the slave side as if it were /dev/ttyS0.
 *		The slave is put in raw mode so no byte is translated or
 *		swallowed by the line discipline.
 *
 *		We keep our own handle on the slave open.  Some systems
 *		remove the slave a few seconds after creation if nobody
 *		has it open.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PTYEndpoint is the master side of a pseudo terminal pair.
type PTYEndpoint struct {
	master *os.File
	slave  *os.File
	link   string
}

// OpenPTY creates a pseudo terminal pair. If link is not empty a symlink
// with that name is created pointing at the slave, replacing any existing
// symlink.
func OpenPTY(link string, logger *log.Logger) (*PTYEndpoint, error) {
	var ptmx, pts, err = pty.Open()
	if err != nil {
		return nil, fmt.Errorf("pty: could not create pseudo terminal: %w", err)
	}

	var rawErr = makeRaw(int(pts.Fd()))
	if rawErr != nil {
		ptmx.Close()
		pts.Close()

		return nil, fmt.Errorf("pty: %s: %w", pts.Name(), rawErr)
	}

	var p = &PTYEndpoint{master: ptmx, slave: pts}

	if link != "" {
		var fi, statErr = os.Lstat(link)
		if statErr == nil && fi.Mode()&os.ModeSymlink != 0 {
			os.Remove(link)
		}

		var linkErr = os.Symlink(pts.Name(), link)
		if linkErr != nil {
			p.Close()

			return nil, fmt.Errorf("pty: %w", linkErr)
		}

		p.link = link
		logger.Info("virtual modem available", "device", pts.Name(), "link", link)
	} else {
		logger.Info("virtual modem available", "device", pts.Name())
	}

	return p, nil
}

// makeRaw is cfmakeraw(3) plus one character minimum reads.
func makeRaw(fd int) error {
	var t, getErr = unix.IoctlGetTermios(fd, unix.TCGETS)
	if getErr != nil {
		return fmt.Errorf("get terminal attributes: %w", getErr)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1  /* wait for at least one character */
	t.Cc[unix.VTIME] = 0 /* no fancy timing. */

	var setErr = unix.IoctlSetTermios(fd, unix.TCSETS, t)
	if setErr != nil {
		return fmt.Errorf("set terminal attributes: %w", setErr)
	}

	return nil
}

// SlaveName returns the path applications should open.
func (p *PTYEndpoint) SlaveName() string {
	return p.slave.Name()
}

func (p *PTYEndpoint) Read(b []byte) (int, error) {
	return p.master.Read(b)
}

func (p *PTYEndpoint) Write(b []byte) (int, error) {
	return p.master.Write(b)
}

// Close closes both sides and removes the symlink, if any.
func (p *PTYEndpoint) Close() error {
	var errs = []error{p.master.Close(), p.slave.Close()}

	if p.link != "" {
		errs = append(errs, os.Remove(p.link))
		p.link = ""
	}

	return errors.Join(errs...)
}
