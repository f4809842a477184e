// This file implements the H.264 depacketizer: NAL unit and FU-A
// reassembly into an Annex-B bitstream with keyframe gating.

package h264

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
)

// decoder reassembles RTP payloads into complete pictures and hands
// them to the external codec engine. Not safe for concurrent use; the
// stream delivers packets from a single receive goroutine.
type decoder struct {
	eng         video.DecodeEngine
	buf         []byte // accumulation buffer, one picture in Annex-B form
	gotKeyframe bool   // keyframe gate, opens on SPS/PPS
}

// newDecoder builds the depacketizer and its engine.
func newDecoder(p video.EngineProvider, fmtp string) (video.Decoder, error) {
	eng, err := p.NewDecodeEngine("H264")
	if err != nil {
		return nil, fmt.Errorf("h264 decode engine: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "newDecoder",
		"codec":    "H264",
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
		return fmt.Errorf("h264 decode: %w", video.ErrInvalidArgument)
	}
	if len(payload) == 0 {
		return nil
	}

	rest, err := d.depacketize(payload)
	if err != nil {
		return err
	}
	d.buf = append(d.buf, rest...)

	if !marker {
		return nil
	}
	return d.endOfFrame(dst)
}

// depacketize consumes the payload's NAL or FU-A header, appending start
// code and reconstructed NAL header to the accumulation buffer, and
// returns the remaining bytes to append.
func (d *decoder) depacketize(payload []byte) ([]byte, error) {
	hdr := DecodeNALHeader(payload[0])
	if hdr.F {
		logrus.WithFields(logrus.Fields{
			"function": "decoder.depacketize",
			"nal_type": hdr.Type,
		}).Warn("H264 forbidden bit set")
		return nil, fmt.Errorf("forbidden bit: %w", video.ErrMalformedBitstream)
	}
	payload = payload[1:]

	switch {
	case 1 <= hdr.Type && hdr.Type <= 23:
		if !d.gotKeyframe {
			switch hdr.Type {
			case NALTypeSPS, NALTypePPS:
				d.gotKeyframe = true
			}
		}

		d.buf = append(d.buf, startCode...)
		d.buf = append(d.buf, hdr.Encode())
		return payload, nil

	case hdr.Type == NALTypeFUA:
		if len(payload) == 0 {
			return nil, errShortPayload("fragmentation unit", 1)
		}
		fu := DecodeFUHeader(payload[0])
		payload = payload[1:]

		hdr.Type = fu.Type
		if fu.S {
			d.buf = append(d.buf, startCode...)
			d.buf = append(d.buf, hdr.Encode())
		}
		return payload, nil

	default:
		logrus.WithFields(logrus.Fields{
			"function": "decoder.depacketize",
			"nal_type": hdr.Type,
		}).Warn("Unknown NAL type")
		return nil, fmt.Errorf("NAL type %d: %w", hdr.Type, video.ErrMalformedBitstream)
	}
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
		return fmt.Errorf("h264 engine decode: %w", err)
	}
	if frame != nil {
		*dst = *frame
	}
	return nil
}
