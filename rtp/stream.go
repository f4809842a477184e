// This file implements the RTP stream: outbound packet construction
// and the inbound RTP/RTCP dispatch.

package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Stats is a snapshot of a stream's packet counters.
type Stats struct {
	PacketsSent            uint64
	OctetsSent             uint64
	PacketsReceived        uint64
	OctetsReceived         uint64
	PictureUpdatesSent     uint64
	PictureUpdatesReceived uint64
	Jitter                 JitterStats
}

// StreamConfig carries the optional knobs of a Stream. The zero value
// selects a random SSRC, the default reorder window and the real
// clock.
type StreamConfig struct {
	SSRC          uint32        // 0 selects a random SSRC
	JitterWindow  int           // 0 selects the default hold window
	JitterTimeout time.Duration // 0 selects the default gap timeout
	Time          TimeProvider  // nil selects the real clock
}

// Stream numbers and serializes outbound media packets and dispatches
// inbound traffic: RTP through the reorder buffer to OnPacket, RTCP
// picture-update requests to OnPictureUpdate.
type Stream struct {
	// OnPacket receives RTP packets in sequence order. Set it before
	// the first HandleRTP call; it is read without synchronization
	// afterwards.
	OnPacket func(*rtp.Packet)

	// OnPictureUpdate is invoked once per received Full Intra Request
	// or Picture Loss Indication. Set it before the first HandleRTCP
	// call.
	OnPictureUpdate func()

	transport Transport
	ssrc      uint32
	jitter    *JitterBuffer

	mu         sync.Mutex
	seq        uint16 // next outbound sequence number
	firSeq     uint8  // command sequence number for outbound FIR
	remoteSSRC uint32 // first SSRC seen on the receive side
	hasRemote  bool
	closed     bool

	sent           atomic.Uint64
	sentOctets     atomic.Uint64
	received       atomic.Uint64
	receivedOctets atomic.Uint64
	picupSent      atomic.Uint64
	picupReceived  atomic.Uint64
}

// NewStream creates a media stream over the given transport.
//
// Parameters:
//   - transport: Wire transport for outbound packets
//   - cfg: Optional knobs, zero value for defaults
//
// Returns:
//   - *Stream: The new stream
//   - error: Any error that occurred during setup
func NewStream(transport Transport, cfg StreamConfig) (*Stream, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewStream",
	}).Info("Creating new RTP stream")

	if transport == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewStream",
			"error":    "transport cannot be nil",
		}).Error("Invalid transport")
		return nil, fmt.Errorf("transport cannot be nil")
	}

	ssrc := cfg.SSRC
	if ssrc == 0 {
		ssrcBytes := make([]byte, 4)
		if _, err := rand.Read(ssrcBytes); err != nil {
			return nil, fmt.Errorf("failed to generate SSRC: %w", err)
		}
		ssrc = binary.BigEndian.Uint32(ssrcBytes)
	}

	s := &Stream{
		transport: transport,
		ssrc:      ssrc,
		jitter:    NewJitterBuffer(cfg.JitterWindow, cfg.JitterTimeout, cfg.Time),
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewStream",
		"ssrc":     ssrc,
	}).Info("RTP stream created successfully")

	return s, nil
}

// SSRC returns the stream's outbound synchronization source.
func (s *Stream) SSRC() uint32 {
	return s.ssrc
}

// Send builds and transmits one RTP packet. hdr is the codec payload
// header and is joined with payload in a single allocation; either may
// be empty. The sequence number advances per packet, the timestamp is
// the caller's.
func (s *Stream) Send(marker bool, pt uint8, ts uint32, hdr, payload []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("stream closed")
	}
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	body := make([]byte, 0, len(hdr)+len(payload))
	body = append(body, hdr...)
	body = append(body, payload...)

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           s.ssrc,
		},
		Payload: body,
	}

	data, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal RTP packet: %w", err)
	}
	if err := s.transport.WriteRTP(data); err != nil {
		return fmt.Errorf("failed to send RTP packet: %w", err)
	}

	s.sent.Add(1)
	s.sentOctets.Add(uint64(len(data)))

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.WithFields(logrus.Fields{
			"function":  "Stream.Send",
			"sequence":  seq,
			"timestamp": ts,
			"marker":    marker,
			"size":      len(data),
		}).Trace("RTP packet sent")
	}

	return nil
}

// HandleRTP accepts one raw inbound RTP packet. After validation the
// packet passes through the reorder buffer; every packet the buffer
// releases is handed to OnPacket in sequence order.
func (s *Stream) HandleRTP(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("RTP data cannot be empty")
	}

	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.HandleRTP",
			"error":    err.Error(),
		}).Warn("Failed to unmarshal RTP packet")
		return fmt.Errorf("failed to unmarshal RTP packet: %w", err)
	}

	if err := s.acceptSSRC(pkt.SSRC); err != nil {
		return err
	}

	s.received.Add(1)
	s.receivedOctets.Add(uint64(len(data)))

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.WithFields(logrus.Fields{
			"function":  "Stream.HandleRTP",
			"sequence":  pkt.SequenceNumber,
			"timestamp": pkt.Timestamp,
			"marker":    pkt.Marker,
			"size":      len(data),
		}).Trace("RTP packet received")
	}

	cb := s.OnPacket
	for _, p := range s.jitter.Add(pkt) {
		if cb != nil {
			cb(p)
		}
	}
	return nil
}

// acceptSSRC pins the receive side to the first SSRC seen.
func (s *Stream) acceptSSRC(ssrc uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasRemote {
		s.remoteSSRC = ssrc
		s.hasRemote = true
		logrus.WithFields(logrus.Fields{
			"function": "Stream.acceptSSRC",
			"ssrc":     ssrc,
		}).Info("Accepted new SSRC for stream")
		return nil
	}
	if ssrc != s.remoteSSRC {
		logrus.WithFields(logrus.Fields{
			"function":      "Stream.acceptSSRC",
			"expected_ssrc": s.remoteSSRC,
			"received_ssrc": ssrc,
		}).Warn("Unexpected SSRC in RTP packet")
		return fmt.Errorf("unexpected SSRC: expected %d, got %d", s.remoteSSRC, ssrc)
	}
	return nil
}

// HandleRTCP accepts one raw inbound RTCP packet, possibly compound.
// Each Full Intra Request or Picture Loss Indication found triggers
// OnPictureUpdate; other packet types are ignored.
func (s *Stream) HandleRTCP(data []byte) error {
	pkts, err := rtcp.Unmarshal(data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.HandleRTCP",
			"error":    err.Error(),
		}).Warn("Failed to unmarshal RTCP packet")
		return fmt.Errorf("failed to unmarshal RTCP packet: %w", err)
	}

	for _, p := range pkts {
		switch p.(type) {
		case *rtcp.FullIntraRequest:
			s.pictureUpdate("fir")
		case *rtcp.PictureLossIndication:
			s.pictureUpdate("pli")
		}
	}
	return nil
}

func (s *Stream) pictureUpdate(kind string) {
	s.picupReceived.Add(1)

	logrus.WithFields(logrus.Fields{
		"function": "Stream.pictureUpdate",
		"kind":     kind,
	}).Debug("Picture update request received")

	if cb := s.OnPictureUpdate; cb != nil {
		cb()
	}
}

// SendPictureUpdate asks the peer for a new intra picture: a Picture
// Loss Indication when pli is set, a Full Intra Request otherwise.
func (s *Stream) SendPictureUpdate(pli bool) error {
	s.mu.Lock()
	remote := s.remoteSSRC
	firSeq := s.firSeq
	s.firSeq++
	s.mu.Unlock()

	var pkt rtcp.Packet
	if pli {
		pkt = &rtcp.PictureLossIndication{
			SenderSSRC: s.ssrc,
			MediaSSRC:  remote,
		}
	} else {
		pkt = &rtcp.FullIntraRequest{
			SenderSSRC: s.ssrc,
			MediaSSRC:  remote,
			FIR: []rtcp.FIREntry{{
				SSRC:           remote,
				SequenceNumber: firSeq,
			}},
		}
	}

	data, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal RTCP packet: %w", err)
	}
	if err := s.transport.WriteRTCP(data); err != nil {
		return fmt.Errorf("failed to send RTCP packet: %w", err)
	}

	s.picupSent.Add(1)

	logrus.WithFields(logrus.Fields{
		"function": "Stream.SendPictureUpdate",
		"pli":      pli,
	}).Debug("Picture update request sent")

	return nil
}

// Stats returns a snapshot of the stream's counters.
func (s *Stream) Stats() Stats {
	return Stats{
		PacketsSent:            s.sent.Load(),
		OctetsSent:             s.sentOctets.Load(),
		PacketsReceived:        s.received.Load(),
		OctetsReceived:         s.receivedOctets.Load(),
		PictureUpdatesSent:     s.picupSent.Load(),
		PictureUpdatesReceived: s.picupReceived.Load(),
		Jitter:                 s.jitter.Stats(),
	}
}

// Close marks the stream closed and closes its transport. Packets held
// by the reorder buffer are discarded.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if held := s.jitter.Flush(); len(held) > 0 {
		logrus.WithFields(logrus.Fields{
			"function":   "Stream.Close",
			"held_count": len(held),
		}).Debug("Discarding packets held at close")
	}

	return s.transport.Close()
}
