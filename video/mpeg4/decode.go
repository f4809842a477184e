// This file implements the MPEG-4 depacketizer: plain concatenation
// until the end-of-frame marker.

package mpeg4

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
)

// decoder concatenates packet payloads into complete pictures and hands
// them to the external codec engine. Not safe for concurrent use; the
// stream delivers packets from a single receive goroutine.
type decoder struct {
	eng video.DecodeEngine
	buf []byte // accumulation buffer, one picture's bitstream
}

// newDecoder builds the depacketizer and its engine.
func newDecoder(p video.EngineProvider, fmtp string) (video.Decoder, error) {
	eng, err := p.NewDecodeEngine("MP4V-ES")
	if err != nil {
		return nil, fmt.Errorf("mpeg4 decode engine: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "newDecoder",
		"codec":    "MP4V-ES",
		"fmtp":     fmtp,
	}).Info("Video decoder created")

	return &decoder{
		buf: make([]byte, 0, 1024),
		eng: eng,
	}, nil
}

// Decode consumes one packet's payload. Resynchronization after loss is
// the engine's concern, so every assembled picture is decoded without a
// keyframe gate.
func (d *decoder) Decode(dst *video.Frame, marker bool, seq uint16, payload []byte) error {
	if dst == nil {
		return fmt.Errorf("mpeg4 decode: %w", video.ErrInvalidArgument)
	}

	d.buf = append(d.buf, payload...)

	if !marker {
		return nil
	}

	defer func() {
		d.buf = d.buf[:0]
	}()

	frame, err := d.eng.Decode(d.buf)
	if err != nil {
		return fmt.Errorf("mpeg4 engine decode: %w", err)
	}
	if frame != nil {
		*dst = *frame
	}
	return nil
}
