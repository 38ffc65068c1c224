package softmodem

import (
	"io"
	"os"
)

// Endpoint is where received bytes go and transmitted bytes come from: a
// pseudo terminal, a serial port, TCP clients or the process's own stdio.
type Endpoint interface {
	io.Reader
	io.Writer
	io.Closer
}

// StdioEndpoint reads from stdin and writes to stdout.
type StdioEndpoint struct {
	in  io.ReadCloser
	out io.Writer
}

func NewStdioEndpoint() *StdioEndpoint {
	return &StdioEndpoint{in: os.Stdin, out: os.Stdout}
}

func (s *StdioEndpoint) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s *StdioEndpoint) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// Close closes stdin. Stdout is left alone. A Read already blocked on a
// terminal or pipe is not woken by this.
func (s *StdioEndpoint) Close() error {
	return s.in.Close()
}
