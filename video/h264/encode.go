// This file implements the H.264 packetizer: Annex-B start-code walk
// with single-NAL and FU-A emission.

package h264

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
)

// encoder drives the external codec engine and splits its Annex-B
// output into RTP payloads.
type encoder struct {
	eng    video.EncodeEngine
	cfg    video.EncodeConfig
	params Params
	szMax  int // largest bitstream observed so far
}

// newEncoder parses the remote fmtp, then builds the engine. A rejected
// negotiation never constructs an engine.
func newEncoder(p video.EngineProvider, cfg video.EncodeConfig, fmtp string) (video.Encoder, error) {
	if cfg.PktSize == 0 {
		cfg.PktSize = video.DefaultPktSize
	}
	if cfg.PktSize < 3 {
		return nil, fmt.Errorf("h264 pktsize %d: %w", cfg.PktSize, video.ErrInvalidArgument)
	}

	var params Params
	if err := DecodeFmtp(&params, fmtp); err != nil {
		return nil, err
	}

	eng, err := p.NewEncodeEngine("H264", cfg)
	if err != nil {
		return nil, fmt.Errorf("h264 encode engine: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "newEncoder",
		"codec":    "H264",
		"fps":      cfg.FPS,
		"bitrate":  cfg.Bitrate,
		"pktsize":  cfg.PktSize,
	}).Info("Video encoder created")

	return &encoder{
		eng:    eng,
		cfg:    cfg,
		params: params,
	}, nil
}

// Encode passes the frame to the engine and packetizes the resulting
// Annex-B bitstream. keyframe requests an IDR picture from the engine.
func (e *encoder) Encode(keyframe bool, frame *video.Frame, pkt video.PacketFunc) error {
	if frame == nil || pkt == nil {
		return fmt.Errorf("h264 encode: %w", video.ErrInvalidArgument)
	}

	bitstream, err := e.eng.Encode(frame, keyframe)
	if err != nil {
		return fmt.Errorf("h264 engine encode: %w", err)
	}
	if len(bitstream) == 0 {
		return nil
	}

	if len(bitstream) > e.szMax {
		logrus.WithFields(logrus.Fields{
			"function": "encoder.Encode",
			"old_max":  e.szMax,
			"new_max":  len(bitstream),
		}).Debug("Encode buffer high-water mark grew")
		e.szMax = len(bitstream)
	}

	return packetize(bitstream, int(e.cfg.PktSize), pkt)
}

// packetize walks the Annex-B start codes and sends each NAL unit, with
// the frame's end-of-frame flag on the final unit.
func packetize(bitstream []byte, pktSize int, pkt video.PacketFunc) error {
	r := findStartCode(bitstream, 0)

	for r < len(bitstream) {
		// Skip the start-code zeros and the 0x01 terminator.
		for bitstream[r] == 0x00 {
			r++
		}
		r++

		r1 := findStartCode(bitstream, r)
		if r >= len(bitstream) {
			break
		}

		hdr := bitstream[r]
		nal := bitstream[r+1 : r1]
		if err := sendNAL(r1 >= len(bitstream), hdr, nal, pktSize, pkt); err != nil {
			return err
		}
		r = r1
	}

	return nil
}

// sendNAL emits one NAL unit: a single packet when it fits, otherwise an
// FU-A fragment train with the start and end bits framing the unit.
func sendNAL(lastNAL bool, hdr byte, payload []byte, pktSize int, pkt video.PacketFunc) error {
	if len(payload)+1 <= pktSize {
		return pkt(lastNAL, []byte{hdr}, payload)
	}

	fuIndicator := hdr&0xe0 | NALTypeFUA
	fu := FUHeader{
		S:    true,
		Type: hdr & 0x1f,
	}
	chunk := pktSize - 2

	for len(payload) > 0 {
		n := chunk
		if len(payload) <= chunk {
			n = len(payload)
			fu.E = true
		}

		err := pkt(lastNAL && fu.E, []byte{fuIndicator, fu.Encode()}, payload[:n])
		if err != nil {
			return err
		}

		payload = payload[n:]
		fu.S = false
	}

	return nil
}
