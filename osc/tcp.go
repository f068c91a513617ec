package osc

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/Lobaro/slip"
)

// StreamConn carries OSC packets over a stream connection. Each packet is
// framed with SLIP (RFC 1055) as required by OSC 1.1.
type StreamConn struct {
	conn net.Conn
	r    *slip.Reader

	mu sync.Mutex
	w  *slip.Writer
}

// NewStreamConn wraps conn. The caller keeps ownership of conn through
// Close.
func NewStreamConn(conn net.Conn) *StreamConn {
	return &StreamConn{
		conn: conn,
		r:    slip.NewReader(conn),
		w:    slip.NewWriter(conn),
	}
}

// Send encodes and writes one framed packet. It is safe for concurrent use.
func (sc *StreamConn) Send(p Packet) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.w.WritePacket(b)
}

// ReadPacket blocks until a whole framed packet arrives and returns its raw
// bytes.
func (sc *StreamConn) ReadPacket() ([]byte, error) {
	var packet []byte
	for {
		part, isPrefix, err := sc.r.ReadPacket()
		if err != nil {
			return nil, err
		}
		packet = append(packet, part...)
		if isPrefix {
			continue
		}
		// Back to back END bytes frame nothing.
		if len(packet) == 0 {
			continue
		}
		return packet, nil
	}
}

// Receive reads and decodes the next packet. Decode failures are returned
// as errors wrapping ErrMalformed; the stream stays usable after them.
func (sc *StreamConn) Receive() (Packet, error) {
	raw, err := sc.ReadPacket()
	if err != nil {
		return nil, err
	}
	return ParsePacket(raw)
}

// RemoteAddr returns the peer address.
func (sc *StreamConn) RemoteAddr() net.Addr {
	return sc.conn.RemoteAddr()
}

// Close closes the underlying connection.
func (sc *StreamConn) Close() error {
	return sc.conn.Close()
}

// TCPServer accepts SLIP framed OSC streams and hands every decoded message
// to Handler together with the connection it came from.
type TCPServer struct {
	Addr    string
	Handler func(sc *StreamConn, msg *Message)
	Logger  *slog.Logger
}

// ListenAndServe listens on ts.Addr and serves until the listener fails.
func (ts *TCPServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", ts.Addr)
	if err != nil {
		return err
	}
	return ts.Serve(ln)
}

// Serve accepts connections on ln. Each client is served on its own
// goroutine. It returns nil once ln is closed.
func (ts *TCPServer) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go ts.handleClient(NewStreamConn(conn))
	}
}

func (ts *TCPServer) handleClient(sc *StreamConn) {
	log := ts.logger().With("remote", sc.RemoteAddr().String())
	defer func() {
		if err := sc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Debug("error closing connection", "error", err)
		}
	}()

	log.Debug("new connection")

	for {
		raw, err := sc.ReadPacket()
		if err != nil {
			log.Debug("stopped reading", "error", err)
			return
		}

		p, err := ParsePacket(raw)
		if err != nil {
			log.Debug("dropping undecodable packet", "error", err)
			continue
		}

		if ts.Handler == nil {
			continue
		}
		for _, m := range Messages(p) {
			ts.Handler(sc, m)
		}
	}
}

func (ts *TCPServer) logger() *slog.Logger {
	if ts.Logger != nil {
		return ts.Logger
	}
	return slog.Default()
}
