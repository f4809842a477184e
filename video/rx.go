package video

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// rxState is the receive half of a stream: the active payload decoder,
// the display sink, and the payload-type bookkeeping for mid-call codec
// switches. All fields are guarded by mu.
type rxState struct {
	mu sync.Mutex

	codec *Codec
	dec   Decoder
	pt    uint8
	hasPT bool

	display     Display
	fullscreen  bool
	orientation int

	frames     uint64 // frames rendered since start
	rateFrames uint64 // frames inside the current rate interval
	efps       float64
	errors     uint64 // decode failures, not counting pre-sync drops
}

// SetDecoder activates a payload decoder for the given codec and
// accepts pt as the inbound payload type. A constructor failure leaves
// the receive side without a decoder; the caller may retry with another
// codec.
func (s *Stream) SetDecoder(c *Codec, pt uint8, fmtp string) error {
	if c == nil {
		return fmt.Errorf("set decoder: %w", ErrInvalidArgument)
	}

	s.rx.mu.Lock()
	defer s.rx.mu.Unlock()

	s.rx.codec = nil
	s.rx.dec = nil

	dec, err := c.NewDecoder(fmtp)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.SetDecoder",
			"codec":    c.Name,
			"fmtp":     fmtp,
			"error":    err.Error(),
		}).Error("Decoder setup failed")
		return fmt.Errorf("set %s decoder: %w", c.Name, err)
	}

	s.rx.codec = c
	s.rx.dec = dec
	s.rx.pt = pt
	s.rx.hasPT = true

	logrus.WithFields(logrus.Fields{
		"function":     "Stream.SetDecoder",
		"codec":        c.Name,
		"payload_type": pt,
	}).Info("Video decoder configured")

	return nil
}

// SetDisplay swaps the display sink, closing the previous one. The
// stream's fullscreen preference is re-applied to displays that support
// it.
func (s *Stream) SetDisplay(d Display) {
	s.rx.mu.Lock()
	old := s.rx.display
	s.rx.display = d
	fullscreen := s.rx.fullscreen
	s.rx.mu.Unlock()

	if old != nil && old != d {
		if err := old.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.SetDisplay",
				"error":    err.Error(),
			}).Warn("Display close failed")
		}
	}

	if d == nil || !fullscreen {
		return
	}
	if fs, ok := d.(FullscreenSetter); ok {
		if err := fs.SetFullscreen(true); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.SetDisplay",
				"error":    err.Error(),
			}).Warn("Fullscreen request failed")
		}
	}
}

// receivePacket is the inbound packet handler wired to the media
// stream. Errors never propagate past here; recovery from decode
// failures runs through RTCP picture update requests instead.
func (s *Stream) receivePacket(p *rtp.Packet) {
	if p == nil || len(p.Payload) == 0 {
		return
	}

	s.rx.mu.Lock()
	if !s.rx.hasPT || s.rx.pt != p.PayloadType {
		s.rx.mu.Unlock()
		if !s.switchPayloadType(p.PayloadType) {
			return
		}
		s.rx.mu.Lock()
	}
	dec := s.rx.dec
	s.rx.mu.Unlock()

	if dec == nil {
		logrus.WithFields(logrus.Fields{
			"function":     "Stream.receivePacket",
			"payload_type": p.PayloadType,
		}).Debug("No video decoder configured, dropping packet")
		return
	}

	var frame Frame
	if err := dec.Decode(&frame, p.Marker, p.SequenceNumber, p.Payload); err != nil {
		if errors.Is(err, ErrNotSynchronized) {
			// Waiting for a keyframe, normal during startup.
			return
		}

		s.rx.mu.Lock()
		s.rx.errors++
		s.rx.mu.Unlock()
		s.coll.DecodeError()

		logrus.WithFields(logrus.Fields{
			"function": "Stream.receivePacket",
			"seq":      p.SequenceNumber,
			"size":     len(p.Payload),
			"error":    err.Error(),
		}).Warn("Video decode failed")

		s.requestPictureUpdate()
		return
	}

	if !frame.Valid() {
		// Mid-frame packet, nothing to render yet.
		return
	}

	if err := s.filters.ApplyDecode(&frame); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.receivePacket",
			"error":    err.Error(),
		}).Warn("Filter aborted decoded frame")
		return
	}

	s.rx.mu.Lock()
	disp := s.rx.display
	s.rx.mu.Unlock()

	if disp != nil {
		if err := disp.Render(&frame); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.receivePacket",
				"error":    err.Error(),
			}).Warn("Display render failed")
			return
		}
	}

	s.rx.mu.Lock()
	s.rx.frames++
	s.rx.rateFrames++
	s.rx.mu.Unlock()
	s.coll.FrameReceived()
}

// switchPayloadType reconfigures the decoder for a new inbound payload
// type by consulting the formats accepted in the SDP answer. It reports
// whether the packet that triggered the switch should be processed.
func (s *Stream) switchPayloadType(pt uint8) bool {
	s.mu.Lock()
	var match *remoteFormat
	for i := range s.negotiated {
		if s.negotiated[i].pt == pt {
			match = &s.negotiated[i]
			break
		}
	}
	s.mu.Unlock()

	if match == nil {
		logrus.WithFields(logrus.Fields{
			"function":     "Stream.switchPayloadType",
			"payload_type": pt,
		}).Debug("Dropping packet with unnegotiated payload type")
		return false
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Stream.switchPayloadType",
		"codec":        match.codec.Name,
		"payload_type": pt,
	}).Info("Inbound payload type changed")

	return s.SetDecoder(match.codec, pt, match.fmtp) == nil
}

// requestPictureUpdate asks the peer for a fresh keyframe, as PLI when
// the peer negotiated NACK feedback and as FIR otherwise.
func (s *Stream) requestPictureUpdate() {
	s.mu.Lock()
	pli := s.nackPLI
	s.mu.Unlock()

	if err := s.rs.SendPictureUpdate(pli); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.requestPictureUpdate",
			"error":    err.Error(),
		}).Warn("Picture update request failed")
		return
	}
	s.coll.KeyframeRequestSent()
}
