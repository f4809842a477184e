// This file implements the MPEG-4 packetizer: fixed-size chunks with no
// payload header.

package mpeg4

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
)

// encoder drives the external codec engine and splits its bitstream
// output into bare chunks.
type encoder struct {
	eng    video.EncodeEngine
	cfg    video.EncodeConfig
	params Params
	szMax  int // largest bitstream observed so far
}

// newEncoder parses the remote fmtp and builds the engine.
func newEncoder(p video.EngineProvider, cfg video.EncodeConfig, fmtp string) (video.Encoder, error) {
	if cfg.PktSize == 0 {
		cfg.PktSize = video.DefaultPktSize
	}

	var params Params
	DecodeFmtp(&params, fmtp)

	eng, err := p.NewEncodeEngine("MP4V-ES", cfg)
	if err != nil {
		return nil, fmt.Errorf("mpeg4 encode engine: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "newEncoder",
		"codec":    "MP4V-ES",
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
// bitstream. keyframe requests an intra picture from the engine.
func (e *encoder) Encode(keyframe bool, frame *video.Frame, pkt video.PacketFunc) error {
	if frame == nil || pkt == nil {
		return fmt.Errorf("mpeg4 encode: %w", video.ErrInvalidArgument)
	}

	bitstream, err := e.eng.Encode(frame, keyframe)
	if err != nil {
		return fmt.Errorf("mpeg4 engine encode: %w", err)
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

// packetize sends the bitstream in fixed-size chunks, flagging the
// final chunk as the end of the frame.
func packetize(bitstream []byte, pktSize int, pkt video.PacketFunc) error {
	for len(bitstream) > 0 {
		n := pktSize
		last := len(bitstream) <= pktSize
		if last {
			n = len(bitstream)
		}

		if err := pkt(last, nil, bitstream[:n]); err != nil {
			return err
		}
		bitstream = bitstream[n:]
	}

	return nil
}
