package emit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/RyanBlaney/sonido-pulse/logging"
)

// Sink receives one call per detected beat
type Sink interface {
	Beat(bpm float64) error
	Close() error
}

// UDPSink sends each beat as a single datagram to a fixed address.
// Delivery is fire-and-forget.
type UDPSink struct {
	conn      net.Conn
	addr      string
	closeOnce sync.Once
	closeErr  error
}

// DialUDP opens a sink towards addr (host:port).
func DialUDP(addr string) (*UDPSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial beat sink %s: %w", addr, err)
	}
	return &UDPSink{conn: conn, addr: addr}, nil
}

// Beat sends "BEAT:<bpm>".
func (s *UDPSink) Beat(bpm float64) error {
	msg := FormatBeat(bpm)
	if _, err := s.conn.Write([]byte(msg)); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg, s.addr, err)
	}
	return nil
}

// Addr returns the destination address
func (s *UDPSink) Addr() string { return s.addr }

// Close releases the socket. Safe to call more than once.
func (s *UDPSink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Listener receives beat datagrams
type Listener struct {
	conn   net.PacketConn
	logger logging.Logger
}

// Listen binds a UDP socket on addr.
func Listen(addr string) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{
		conn:   conn,
		logger: logging.WithFields(logging.Fields{"component": "beat_listener", "addr": conn.LocalAddr().String()}),
	}, nil
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Serve calls handle for every valid beat until ctx is done or the socket
// is closed. Malformed datagrams are logged and dropped.
func (l *Listener) Serve(ctx context.Context, handle func(bpm float64, from net.Addr)) error {
	stop := context.AfterFunc(ctx, func() { l.conn.Close() })
	defer stop()

	buf := make([]byte, 512)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read beat datagram: %w", err)
		}

		bpm, err := ParseBeat(string(buf[:n]))
		if err != nil {
			l.logger.Warn("Dropping datagram", logging.Fields{"from": from.String(), "error": err})
			continue
		}
		handle(bpm, from)
	}
}

// Close releases the socket
func (l *Listener) Close() error {
	err := l.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
