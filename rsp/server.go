package rsp

/*
 * vplat - Packet server for the debug protocols
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	hexfmt "github.com/rcornwell/vplat/util/hex"
)

// PacketSize is the largest payload either side may send, negotiated
// with remote debuggers via qSupported.
const PacketSize = 0x1000

// Handler processes one decoded packet payload and returns the reply
// payload.
type Handler func(cmd string) string

// Server speaks the packet protocol shared by the remote debug and
// session servers: frames are "$<payload>#<checksum>" with a mod-256
// checksum, acknowledged with '+' or '-'. One client is served at a
// time; the accept and packet loops run on their own goroutine.
type Server struct {
	name     string
	handler  Handler
	connect  func(peer string)
	hangup   func()
	listener net.Listener
	port     uint16

	connLock sync.Mutex
	conn     net.Conn
	rd       *bufio.Reader

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// New creates a server for the given TCP port. Port zero picks a free
// port, available from Port after Start.
func New(name string, port uint16) *Server {
	return &Server{
		name:     name,
		port:     port,
		shutdown: make(chan struct{}),
	}
}

// SetHandler installs the packet handler. Must be set before Start.
func (s *Server) SetHandler(h Handler) {
	s.handler = h
}

// OnConnect installs a callback for new client connections.
func (s *Server) OnConnect(f func(peer string)) {
	s.connect = f
}

// OnDisconnect installs a callback for dropped connections.
func (s *Server) OnDisconnect(f func()) {
	s.hangup = f
}

// Port returns the port the server listens on.
func (s *Server) Port() uint16 {
	return s.port
}

// Start opens the listener and begins serving clients.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	s.listener = listener
	s.port = uint16(listener.Addr().(*net.TCPAddr).Port)

	s.wg.Add(1)
	go s.serve()
	return nil
}

// Stop shuts the server down and waits briefly for the loops to
// drain.
func (s *Server) Stop() {
	select {
	case <-s.shutdown:
		return
	default:
	}
	close(s.shutdown)
	if s.listener != nil {
		s.listener.Close()
	}
	s.Disconnect()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		slog.Warn("timed out waiting for connections to finish", "server", s.name)
	}
}

// Connected reports whether a client is attached.
func (s *Server) Connected() bool {
	s.connLock.Lock()
	defer s.connLock.Unlock()
	return s.conn != nil
}

// Disconnect drops the current client.
func (s *Server) Disconnect() {
	s.connLock.Lock()
	conn := s.conn
	s.connLock.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// serve accepts one client at a time and runs the packet loop.
func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				continue
			}
		}

		peer := conn.RemoteAddr().String()
		slog.Debug("client connected", "server", s.name, "peer", peer)

		s.connLock.Lock()
		s.conn = conn
		s.rd = bufio.NewReader(conn)
		s.connLock.Unlock()

		if s.connect != nil {
			s.connect(peer)
		}
		s.process()

		s.connLock.Lock()
		s.conn = nil
		s.rd = nil
		s.connLock.Unlock()

		conn.Close()
		if s.hangup != nil {
			s.hangup()
		}
		slog.Debug("client disconnected", "server", s.name, "peer", peer)
	}
}

// process reads packets and dispatches them until the client goes
// away.
func (s *Server) process() {
	for {
		cmd, err := s.recvPacket()
		if err != nil {
			return
		}
		resp := ""
		if s.handler != nil {
			resp = s.handler(cmd)
		}
		if err := s.SendPacket(resp); err != nil {
			return
		}
	}
}

// recvPacket reads one framed packet, acknowledging it. A bad
// checksum requests a resend with '-'.
func (s *Server) recvPacket() (string, error) {
	rd := s.reader()
	if rd == nil {
		return "", fmt.Errorf("not connected")
	}

	for {
		// Hunt for the start of frame, ignoring acks and stray
		// signal bytes between packets.
		for {
			b, err := rd.ReadByte()
			if err != nil {
				return "", err
			}
			if b == '$' {
				break
			}
		}

		var payload strings.Builder
		sum := byte(0)
		for {
			b, err := rd.ReadByte()
			if err != nil {
				return "", err
			}
			if b == '#' {
				break
			}
			sum += b
			payload.WriteByte(b)
		}

		c1, err := rd.ReadByte()
		if err != nil {
			return "", err
		}
		c2, err := rd.ReadByte()
		if err != nil {
			return "", err
		}
		want, ok := hexfmt.ParseByte(c1, c2)
		if ok && want == sum {
			if err := s.write([]byte{'+'}); err != nil {
				return "", err
			}
			return payload.String(), nil
		}

		slog.Warn("packet checksum mismatch", "server", s.name)
		if err := s.write([]byte{'-'}); err != nil {
			return "", err
		}
	}
}

// SendPacket frames and sends a payload, resending once when the
// client answers with '-'.
func (s *Server) SendPacket(payload string) error {
	var sb strings.Builder
	sum := byte(0)
	for i := range len(payload) {
		sum += payload[i]
	}
	sb.WriteByte('$')
	sb.WriteString(payload)
	sb.WriteByte('#')
	hexfmt.FormatByte(&sb, sum)
	frame := []byte(sb.String())

	for attempt := 0; attempt < 2; attempt++ {
		if err := s.write(frame); err != nil {
			return err
		}
		rd := s.reader()
		if rd == nil {
			return fmt.Errorf("not connected")
		}
		ack, err := rd.ReadByte()
		if err != nil {
			return err
		}
		if ack == '+' {
			return nil
		}
	}
	return fmt.Errorf("client did not acknowledge packet")
}

// RecvSignal polls for a single out-of-band byte on the connection.
// It returns zero when nothing arrives within the timeout and -1 when
// the client went away. Servers poll this while the simulation is
// resumed on a client's behalf.
func (s *Server) RecvSignal(timeout time.Duration) int {
	s.connLock.Lock()
	conn := s.conn
	rd := s.rd
	s.connLock.Unlock()
	if conn == nil {
		return -1
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	b, err := rd.ReadByte()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0
		}
		return -1
	}
	return int(b)
}

func (s *Server) reader() *bufio.Reader {
	s.connLock.Lock()
	defer s.connLock.Unlock()
	return s.rd
}

func (s *Server) write(data []byte) error {
	s.connLock.Lock()
	conn := s.conn
	s.connLock.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	_, err := conn.Write(data)
	return err
}
