// This file defines the wire transport contract and its UDP and
// in-memory implementations.

package rtp

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Transport moves serialized RTP and RTCP packets to the peer. Inbound
// packets are wired by the owner of the concrete transport, typically
// through Start on one of the implementations in this package.
type Transport interface {
	WriteRTP([]byte) error
	WriteRTCP([]byte) error
	Close() error
}

// UDPTransport sends and receives media over a pair of UDP sockets,
// one for RTP and one for RTCP.
type UDPTransport struct {
	mu       sync.Mutex
	rtpConn  *net.UDPConn
	rtcpConn *net.UDPConn
	closed   bool
}

// NewUDPTransport connects a socket pair to the peer. The RTCP sockets
// use the port following the given RTP port on both sides.
//
// Parameters:
//   - local: Local RTP address, e.g. "0.0.0.0:40000"
//   - remote: Remote RTP address
//
// Returns:
//   - *UDPTransport: Connected transport
//   - error: Any resolution or bind error
func NewUDPTransport(local, remote string) (*UDPTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", local)
	if err != nil {
		return nil, fmt.Errorf("local address %q: %w", local, err)
	}
	raddr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, fmt.Errorf("remote address %q: %w", remote, err)
	}

	rtpConn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("rtp socket: %w", err)
	}

	lrtcp := &net.UDPAddr{IP: laddr.IP, Port: laddr.Port + 1, Zone: laddr.Zone}
	rrtcp := &net.UDPAddr{IP: raddr.IP, Port: raddr.Port + 1, Zone: raddr.Zone}
	rtcpConn, err := net.DialUDP("udp", lrtcp, rrtcp)
	if err != nil {
		rtpConn.Close()
		return nil, fmt.Errorf("rtcp socket: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewUDPTransport",
		"local":    rtpConn.LocalAddr().String(),
		"remote":   remote,
	}).Info("UDP media transport connected")

	return &UDPTransport{
		rtpConn:  rtpConn,
		rtcpConn: rtcpConn,
	}, nil
}

// Start launches the reader goroutines. Each received datagram is
// copied and handed to the matching handler; the goroutines exit when
// the transport is closed. Nil handlers discard their traffic.
func (t *UDPTransport) Start(onRTP, onRTCP func([]byte)) {
	go t.readLoop(t.rtpConn, "rtp", onRTP)
	go t.readLoop(t.rtcpConn, "rtcp", onRTCP)
}

func (t *UDPTransport) readLoop(conn *net.UDPConn, kind string, h func([]byte)) {
	buf := make([]byte, 2048)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "UDPTransport.readLoop",
				"kind":     kind,
			}).Debug("Reader exiting")
			return
		}
		if h == nil {
			continue
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		h(pkt)
	}
}

// WriteRTP sends one RTP packet to the peer.
func (t *UDPTransport) WriteRTP(b []byte) error {
	if _, err := t.rtpConn.Write(b); err != nil {
		return fmt.Errorf("rtp write: %w", err)
	}
	return nil
}

// WriteRTCP sends one RTCP packet to the peer.
func (t *UDPTransport) WriteRTCP(b []byte) error {
	if _, err := t.rtcpConn.Write(b); err != nil {
		return fmt.Errorf("rtcp write: %w", err)
	}
	return nil
}

// Close shuts both sockets down, stopping the reader goroutines.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	err := t.rtpConn.Close()
	if cerr := t.rtcpConn.Close(); err == nil {
		err = cerr
	}
	return err
}

// PipeTransport is an in-memory transport delivering writes directly
// to the peer end's handlers on the writer's goroutine. It backs tests
// and the loopback example.
type PipeTransport struct {
	mu     sync.Mutex
	peer   *PipeTransport
	onRTP  func([]byte)
	onRTCP func([]byte)
	closed bool
}

// NewPipe returns two connected transport ends.
func NewPipe() (*PipeTransport, *PipeTransport) {
	a := &PipeTransport{}
	b := &PipeTransport{}
	a.peer = b
	b.peer = a
	return a, b
}

// Start registers this end's receive handlers.
func (t *PipeTransport) Start(onRTP, onRTCP func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRTP = onRTP
	t.onRTCP = onRTCP
}

// WriteRTP delivers one RTP packet to the peer end.
func (t *PipeTransport) WriteRTP(b []byte) error {
	return t.peer.deliver(b, true)
}

// WriteRTCP delivers one RTCP packet to the peer end.
func (t *PipeTransport) WriteRTCP(b []byte) error {
	return t.peer.deliver(b, false)
}

func (t *PipeTransport) deliver(b []byte, isRTP bool) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("pipe closed")
	}
	h := t.onRTCP
	if isRTP {
		h = t.onRTP
	}
	t.mu.Unlock()

	if h == nil {
		return nil
	}
	pkt := make([]byte, len(b))
	copy(pkt, b)
	h(pkt)
	return nil
}

// Close detaches this end. The peer's writes fail afterwards.
func (t *PipeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.onRTP = nil
	t.onRTCP = nil
	return nil
}
