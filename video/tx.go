package video

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// txState is the transmit half of a stream: the active payload encoder
// plus the capture-facing buffers and flags it consumes. All fields are
// guarded by mu.
type txState struct {
	mu sync.Mutex

	codec *Codec
	enc   Encoder
	pt    uint8

	source  Source
	size    Size
	fps     float64
	bitrate uint32
	pktSize uint32

	ts          uint32 // outbound RTP timestamp, advanced per frame
	picup       bool   // encode the next frame as a keyframe
	muted       bool
	mutedFrames int

	muteFrame *Frame // substitute image shown while muted
	convFrame *Frame // reusable canonical-format buffer

	frames     uint64 // frames accepted from the capture layer since start
	rateFrames uint64 // frames inside the current rate interval
	efps       float64
}

// muteImage returns the substitute image at the given size, rebuilding
// the cached frame when the capture size changes. Called with mu held.
func (tx *txState) muteImage(size Size) (*Frame, error) {
	if tx.muteFrame == nil || tx.muteFrame.Size != size {
		f, err := NewFrame(FormatYUV420P, size)
		if err != nil {
			return nil, err
		}
		f.Fill(0xff, 0x80, 0x80)
		tx.muteFrame = f
	}
	return tx.muteFrame, nil
}

// SetEncoder activates a payload encoder for the given codec, replacing
// any previous one. A constructor failure leaves the transmit side
// without an encoder; the caller may retry with another codec.
func (s *Stream) SetEncoder(c *Codec, fmtp string) error {
	if c == nil {
		return fmt.Errorf("set encoder: %w", ErrInvalidArgument)
	}

	s.tx.mu.Lock()
	defer s.tx.mu.Unlock()

	s.tx.codec = nil
	s.tx.enc = nil

	cfg := EncodeConfig{
		Bitrate: s.tx.bitrate,
		PktSize: s.tx.pktSize,
		FPS:     uint32(s.tx.fps),
	}
	enc, err := c.NewEncoder(cfg, fmtp)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.SetEncoder",
			"codec":    c.Name,
			"fmtp":     fmtp,
			"error":    err.Error(),
		}).Error("Encoder setup failed")
		return fmt.Errorf("set %s encoder: %w", c.Name, err)
	}

	s.tx.codec = c
	s.tx.enc = enc
	s.tx.pt = c.PayloadType

	logrus.WithFields(logrus.Fields{
		"function":     "Stream.SetEncoder",
		"codec":        c.Name,
		"payload_type": c.PayloadType,
		"bitrate":      s.tx.bitrate,
		"pkt_size":     s.tx.pktSize,
	}).Info("Video encoder configured")

	return nil
}

// SetSource swaps the capture source, closing the previous one. When
// the stream is already started the new source is opened immediately
// with the configured size and frame rate.
func (s *Stream) SetSource(src Source) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	s.tx.mu.Lock()
	old := s.tx.source
	s.tx.source = src
	size := s.tx.size
	fps := s.tx.fps
	s.tx.mu.Unlock()

	if old != nil && old != src {
		if err := old.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.SetSource",
				"error":    err.Error(),
			}).Warn("Capture source close failed")
		}
	}

	if src != nil && started {
		if err := src.Open(size, fps, s.captureFrame); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.SetSource",
				"error":    err.Error(),
			}).Error("Capture source open failed")
			return fmt.Errorf("open capture source: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stream.SetSource",
		"size":     size.String(),
		"fps":      fps,
	}).Info("Capture source configured")

	return nil
}

// captureFrame is the Source frame handler. Capture drivers never see
// transmit errors; they are logged and the frame is dropped.
func (s *Stream) captureFrame(frame *Frame) {
	if err := s.SendFrame(frame); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.captureFrame",
			"error":    err.Error(),
		}).Debug("Captured frame not sent")
	}
}

// SendFrame pushes one frame through the transmit path: mute
// substitution, canonical-format conversion, the filter chain, the
// payload encoder, and finally the media stream. Frames must arrive
// from one goroutine at a time; the capture source guarantees that for
// its own callbacks.
//
// An encoder or filter failure drops the frame and leaves the stream
// running.
func (s *Stream) SendFrame(frame *Frame) error {
	if frame == nil || !frame.Valid() {
		return fmt.Errorf("send frame: %w", ErrInvalidArgument)
	}

	s.tx.mu.Lock()

	enc := s.tx.enc
	if enc == nil {
		s.tx.mu.Unlock()
		return fmt.Errorf("send frame: %w", ErrNoEncoder)
	}

	s.tx.frames++
	s.tx.rateFrames++

	if s.tx.muted {
		// A short burst of substitute frames repaints the far end,
		// then transmission stops until unmute.
		s.tx.mutedFrames++
		if s.tx.mutedFrames > maxMutedFrames {
			s.tx.mu.Unlock()
			s.coll.FrameDropped()
			return nil
		}
		f, err := s.tx.muteImage(frame.Size)
		if err != nil {
			s.tx.mu.Unlock()
			return fmt.Errorf("send frame: %w", err)
		}
		frame = f
	} else if frame.Format != FormatYUV420P {
		if s.tx.convFrame == nil || s.tx.convFrame.Size != frame.Size {
			cf, err := NewFrame(FormatYUV420P, frame.Size)
			if err != nil {
				s.tx.mu.Unlock()
				return fmt.Errorf("send frame: %w", err)
			}
			s.tx.convFrame = cf
		}
		if err := ConvertToYUV420P(s.tx.convFrame, frame); err != nil {
			s.tx.mu.Unlock()
			return fmt.Errorf("send frame: %w", err)
		}
		frame = s.tx.convFrame
	}

	if err := s.filters.ApplyEncode(frame); err != nil {
		s.tx.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "Stream.SendFrame",
			"error":    err.Error(),
		}).Warn("Filter aborted outgoing frame")
		s.coll.FrameDropped()
		return fmt.Errorf("send frame: %w", err)
	}

	codecName := s.tx.codec.Name
	picup := s.tx.picup
	ts := s.tx.ts
	pt := s.tx.pt
	fps := s.tx.fps
	s.tx.mu.Unlock()

	pkt := func(last bool, hdr, payload []byte) error {
		return s.rs.Send(last, pt, ts, hdr, payload)
	}

	if err := enc.Encode(picup, frame, pkt); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.SendFrame",
			"codec":    codecName,
			"error":    err.Error(),
		}).Warn("Video encode failed")
		s.coll.FrameDropped()
		return fmt.Errorf("send frame: %w", err)
	}

	s.tx.mu.Lock()
	s.tx.ts += uint32(ClockRate / fps)
	if picup {
		s.tx.picup = false
	}
	s.tx.mu.Unlock()

	s.coll.FrameSent()
	return nil
}
