package softmodem

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// pipeEndpoint stands in for the application. The test writes to in and
// reads from out.
type pipeEndpoint struct {
	in  *io.PipeReader
	out *io.PipeWriter
}

func (p *pipeEndpoint) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipeEndpoint) Write(b []byte) (int, error) { return p.out.Write(b) }

func (p *pipeEndpoint) Close() error {
	p.in.Close()
	p.out.Close()

	return nil
}

func newPipeEndpoint() (*pipeEndpoint, *io.PipeWriter, *io.PipeReader) {
	var inR, inW = io.Pipe()
	var outR, outW = io.Pipe()

	return &pipeEndpoint{in: inR, out: outW}, inW, outR
}

func Test_ModemLoopback(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Role = RoleLoopback
	require.NoError(t, cfg.Validate())

	var met, reader = newTestMetrics(t)

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var loop = NewLoopback()
	loop.CloseOnDone(ctx)

	var ep, app, fromModem = newPipeEndpoint()

	var modem = NewModem(cfg, loop, loop, ep, WithPacing(), WithMetrics(met))

	var runErr = make(chan error, 1)
	go func() {
		runErr <- modem.Run(ctx)
	}()

	go func() {
		app.Write([]byte("hello"))
	}()

	var got = make(chan []byte, 1)
	go func() {
		var buf = make([]byte, 5)
		var _, err = io.ReadFull(fromModem, buf)
		if err == nil {
			got <- buf
		}
	}()

	select {
	case b := <-got:
		assert.Equal(t, []byte("hello"), b)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for looped back data")
	}

	cancel()

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, int64(5), counterValue(t, reader, "softmodem.tx.bytes"))
	assert.Equal(t, int64(5), counterValue(t, reader, "softmodem.rx.bytes"))
	assert.Equal(t, int64(1), counterValue(t, reader, "softmodem.carrier.transitions"), "carrier comes up once")
	assert.Positive(t, counterValue(t, reader, "softmodem.tx.idle_samples"))
	assert.Zero(t, modem.Dropped())
}

// Received audio from a file is decoded and the modem finishes its receive
// side at end of file.
func Test_ModemReceiveOnly(t *testing.T) {
	var cfg = DefaultConfig()

	var p = DefaultGenParams()
	p.Tones = cfg.RXTones()

	var loop = NewLoopback()
	require.NoError(t, loop.WriteSamples(Synthesize([]byte("answer"), p)))
	require.NoError(t, loop.Close())

	var ep, app, fromModem = newPipeEndpoint()
	defer app.Close()

	var ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var modem = NewModem(cfg, loop, nil, ep)

	var runErr = make(chan error, 1)
	go func() {
		runErr <- modem.Run(ctx)
	}()

	var buf = make([]byte, 6)
	var _, readErr = io.ReadFull(fromModem, buf)
	require.NoError(t, readErr)
	assert.Equal(t, "answer", string(buf))

	cancel()
	assert.NoError(t, <-runErr)
}

func Test_ModemDropsWhenFull(t *testing.T) {
	var met, reader = newTestMetrics(t)
	var ep, _, _ = newPipeEndpoint()

	var modem = NewModem(DefaultConfig(), nil, nil, ep, WithMetrics(met))

	for range rxQueueSize + 10 {
		modem.received('x')
	}

	assert.Equal(t, uint64(10), modem.Dropped())
	assert.Equal(t, int64(10), counterValue(t, reader, "softmodem.rx.dropped"))
}

func Test_ModemStopsWithBlockedStdin(t *testing.T) {
	// A blocking pipe behaves like an inherited stdin: Close does not wake
	// a Read that is already waiting on it.
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))

	var in = os.NewFile(uintptr(fds[0]), "stdin")
	var feed = os.NewFile(uintptr(fds[1]), "feed")
	t.Cleanup(func() { feed.Close() })

	var ep = &StdioEndpoint{in: in, out: io.Discard}
	var modem = NewModem(DefaultConfig(), nil, nil, ep)

	var ctx, cancel = context.WithCancel(context.Background())

	var runErr = make(chan error, 1)
	go func() { runErr <- modem.Run(ctx) }()

	// Let the endpoint reader block.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
