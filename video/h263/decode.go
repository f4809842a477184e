// This file implements the H.263 depacketizer: payload header strip,
// split-byte merge and bitstream reassembly with keyframe gating.

package h263

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
)

// decoder reassembles payload-header-framed packets into complete
// pictures and hands them to the external codec engine. Not safe for
// concurrent use; the stream delivers packets from a single receive
// goroutine.
type decoder struct {
	eng         video.DecodeEngine
	buf         []byte // accumulation buffer, one picture's bitstream
	gotKeyframe bool   // keyframe gate, opens on an intra picture
}

// newDecoder builds the depacketizer and its engine.
func newDecoder(p video.EngineProvider, fmtp string) (video.Decoder, error) {
	eng, err := p.NewDecodeEngine("H263")
	if err != nil {
		return nil, fmt.Errorf("h263 decode engine: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "newDecoder",
		"codec":    "H263",
		"fmtp":     fmtp,
	}).Info("Video decoder created")

	return &decoder{
		eng: eng,
		buf: make([]byte, 0, 1024),
	}, nil
}

// Decode consumes one packet's payload. On the end-of-frame marker the
// accumulated picture is decoded; the buffer is reset afterwards whether
// decoding succeeded or not.
func (d *decoder) Decode(dst *video.Frame, marker bool, seq uint16, payload []byte) error {
	if dst == nil {
		return fmt.Errorf("h263 decode: %w", video.ErrInvalidArgument)
	}
	if len(payload) == 0 {
		return nil
	}

	hdr, n, err := DecodeHeader(payload)
	if err != nil {
		return err
	}
	payload = payload[n:]

	// An intra picture opens the keyframe gate.
	if !hdr.I {
		d.gotKeyframe = true
	}

	// A sub-byte fragment boundary shares one byte between packets:
	// the previous packet carried its upper bits, this one the lower.
	if hdr.SBit > 0 && len(payload) > 0 {
		mask := byte(1<<(8-hdr.SBit) - 1)
		sbyte := payload[0] & mask
		payload = payload[1:]

		if n := len(d.buf); n > 0 {
			d.buf[n-1] |= sbyte
		} else {
			d.buf = append(d.buf, sbyte)
		}
	}

	d.buf = append(d.buf, payload...)

	if !marker {
		return nil
	}
	return d.endOfFrame(dst)
}

// endOfFrame hands the assembled picture to the engine. The keyframe
// gate staying closed is the expected startup state and reported as
// ErrNotSynchronized without producing a frame.
func (d *decoder) endOfFrame(dst *video.Frame) error {
	defer func() {
		d.buf = d.buf[:0]
	}()

	if !d.gotKeyframe {
		return video.ErrNotSynchronized
	}

	frame, err := d.eng.Decode(d.buf)
	if err != nil {
		return fmt.Errorf("h263 engine decode: %w", err)
	}
	if frame != nil {
		*dst = *frame
	}
	return nil
}
