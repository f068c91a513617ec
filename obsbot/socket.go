package obsbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/showcontroller/obsbot-osc/osc"
)

// maxDatagram is the largest UDP payload.
const maxDatagram = 65535

// Socket is the single open transport of an Instance.
type Socket interface {
	// Send transmits msg. host overrides the device address for UDP fan-out
	// and is ignored by stream transports.
	Send(msg *osc.Message, host string) error
	Close() error
}

// link is how a socket reports back to the instance that opened it. Every
// event carries the generation of the socket so that events of a replaced
// socket can be told apart and dropped.
type link struct {
	gen  uint64
	post func(event)
}

func (l link) ready()                   { l.post(readyEvent{gen: l.gen}) }
func (l link) fail(err error)           { l.post(failEvent{gen: l.gen, err: err}) }
func (l link) deliver(msg *osc.Message) { l.post(messageEvent{gen: l.gen, msg: msg}) }

// opener creates a socket for cfg. It must not block on the network; any
// asynchronous outcome is reported through l.
type opener func(cfg Config, l link, logger *slog.Logger) (Socket, error)

func openSocket(cfg Config, l link, logger *slog.Logger) (Socket, error) {
	switch cfg.Transport {
	case ProtocolTCP:
		return openTCP(cfg, l, logger), nil
	default:
		return openUDP(cfg, l, logger)
	}
}

////
// UDP
////

type udpSocket struct {
	conn   *net.UDPConn
	device *net.UDPAddr
	port   int
	logger *slog.Logger
}

// openUDP binds the listen port on all interfaces. The same socket sends
// commands and receives the replies of the device.
func openUDP(cfg Config, l link, logger *slog.Logger) (Socket, error) {
	device, err := net.ResolveUDPAddr("udp4", cfg.Addr())
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.ListenPort})
	if err != nil {
		return nil, err
	}

	s := &udpSocket{conn: conn, device: device, port: cfg.Port, logger: logger}
	go s.readLoop(l)

	return s, nil
}

func (s *udpSocket) Send(msg *osc.Message, host string) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return err
	}

	dst := s.device
	if host != "" {
		if dst, err = net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(s.port))); err != nil {
			return err
		}
	}

	_, err = s.conn.WriteToUDP(data, dst)
	return err
}

func (s *udpSocket) Close() error {
	return s.conn.Close()
}

// readLoop reports the bound socket as ready, then accepts datagrams from
// the configured device only. Bundles are flattened; undecodable datagrams
// are dropped.
func (s *udpSocket) readLoop(l link) {
	l.ready()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.fail(err)
			}
			return
		}

		if !from.IP.Equal(s.device.IP) || from.Port != s.device.Port {
			s.logger.Debug("ignoring datagram from unexpected peer", "from", from.String())
			continue
		}

		p, err := osc.ParsePacket(buf[:n])
		if err != nil {
			s.logger.Debug("failed to decode OSC datagram", "error", err)
			continue
		}
		for _, m := range osc.Messages(p) {
			l.deliver(m)
		}
	}
}

////
// TCP
////

type tcpSocket struct {
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.Mutex
	sc     *osc.StreamConn
	closed bool
}

// openTCP returns immediately and dials in the background.
func openTCP(cfg Config, l link, logger *slog.Logger) Socket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &tcpSocket{cancel: cancel, logger: logger}
	go s.run(ctx, cfg.Addr(), l)
	return s
}

func (s *tcpSocket) run(ctx context.Context, addr string, l link) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() == nil {
			l.fail(err)
		}
		return
	}

	sc := osc.NewStreamConn(conn)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = sc.Close()
		return
	}
	s.sc = sc
	s.mu.Unlock()

	l.ready()

	for {
		raw, err := sc.ReadPacket()
		if err != nil {
			if !s.isClosed() {
				l.fail(err)
			}
			return
		}

		p, err := osc.ParsePacket(raw)
		if err != nil {
			s.logger.Debug("failed to decode OSC packet", "error", err)
			continue
		}
		for _, m := range osc.Messages(p) {
			l.deliver(m)
		}
	}
}

func (s *tcpSocket) Send(msg *osc.Message, _ string) error {
	s.mu.Lock()
	sc := s.sc
	s.mu.Unlock()

	if sc == nil {
		return ErrNotConnected
	}
	return sc.Send(msg)
}

func (s *tcpSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("tcp socket: %w", net.ErrClosed)
	}
	s.closed = true
	s.cancel()

	if s.sc == nil {
		return nil
	}
	return s.sc.Close()
}

func (s *tcpSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
