package softmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide the modem byte stream over TCP.
 *
 * Description:	Several client applications can be attached at once.
 *		Every decoded byte goes to all of them.  Bytes from any
 *		of them are transmitted, interleaved in arrival order.
 *
 *		Note that a client can go away and come back again and
 *		re-establish communication without restarting the modem.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// MaxTCPClients is how many client applications can be attached at once.
const MaxTCPClients = 3

// TCPServer is an Endpoint fed by any number of TCP clients.
type TCPServer struct {
	ln     net.Listener
	logger *log.Logger

	mu      sync.Mutex
	clients map[net.Conn]struct{}

	incoming chan []byte
	pending  []byte
	done     chan struct{}
	once     sync.Once
}

// ListenTCP listens on addr, for example ":8001". Call Serve to accept
// clients.
func ListenTCP(addr string, logger *log.Logger) (*TCPServer, error) {
	var ln, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", addr, err)
	}

	return &TCPServer{
		ln:       ln,
		logger:   logger,
		clients:  make(map[net.Conn]struct{}),
		incoming: make(chan []byte, 16),
		done:     make(chan struct{}),
	}, nil
}

// Port returns the port actually listened on, useful when addr had port 0.
func (s *TCPServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns the listening address.
func (s *TCPServer) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts clients until ctx is cancelled or Close is called.
func (s *TCPServer) Serve(ctx context.Context) error {
	var g, gctx = errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.done:
		}

		s.Close()

		return nil
	})

	g.Go(func() error {
		for {
			var conn, acceptErr = s.ln.Accept()
			if acceptErr != nil {
				if errors.Is(acceptErr, net.ErrClosed) {
					return nil
				}

				return fmt.Errorf("tcp: accept: %w", acceptErr)
			}

			if !s.attach(conn) {
				s.logger.Warn("too many tcp clients, refusing", "remote", conn.RemoteAddr(), "max", MaxTCPClients)
				conn.Close()

				continue
			}

			g.Go(func() error {
				s.listen(conn)

				return nil
			})
		}
	})

	return g.Wait()
}

func (s *TCPServer) attach(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) >= MaxTCPClients {
		return false
	}

	s.clients[conn] = struct{}{}
	s.logger.Info("attached tcp client", "remote", conn.RemoteAddr(), "clients", len(s.clients))

	return true
}

func (s *TCPServer) detach(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[conn]; !ok {
		return
	}

	delete(s.clients, conn)
	conn.Close()
	s.logger.Info("detached tcp client", "remote", conn.RemoteAddr(), "clients", len(s.clients))
}

// listen copies one client's bytes into the transmit stream.
func (s *TCPServer) listen(conn net.Conn) {
	defer s.detach(conn)

	for {
		var buf = make([]byte, 256)

		var n, err = conn.Read(buf)
		if n > 0 {
			select {
			case s.incoming <- buf[:n]:
			case <-s.done:
				return
			}
		}

		if err != nil {
			return
		}
	}
}

// Read returns bytes sent by any client. It blocks until some arrive and
// returns io.EOF after Close.
func (s *TCPServer) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case b := <-s.incoming:
			s.pending = b
		case <-s.done:
			return 0, io.EOF
		}
	}

	var n = copy(p, s.pending)
	s.pending = s.pending[n:]

	return n, nil
}

// Write sends p to every attached client. A client that fails the write is
// dropped. With no clients the bytes are discarded.
func (s *TCPServer) Write(p []byte) (int, error) {
	s.mu.Lock()
	var conns = make([]net.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		var _, err = c.Write(p)
		if err != nil {
			s.logger.Warn("tcp client write failed", "remote", c.RemoteAddr(), "err", err)
			s.detach(c)
		}
	}

	return len(p), nil
}

// Clients returns how many clients are attached.
func (s *TCPServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// Close stops listening and disconnects every client.
func (s *TCPServer) Close() error {
	var err error

	s.once.Do(func() {
		close(s.done)
		err = s.ln.Close()

		s.mu.Lock()
		for c := range s.clients {
			c.Close()
		}
		s.mu.Unlock()
	})

	return err
}
