// This file implements the H.263 packetizer: one picture layer parse
// per frame, then fixed-size chunks behind a rebuilt mode A header.

package h263

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
)

// encoder drives the external codec engine and splits its bitstream
// output into payload-header-prefixed packets.
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

	eng, err := p.NewEncodeEngine("H263", cfg)
	if err != nil {
		return nil, fmt.Errorf("h263 encode engine: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "newEncoder",
		"codec":    "H263",
		"fps":      cfg.FPS,
		"bitrate":  cfg.Bitrate,
		"pktsize":  cfg.PktSize,
		"sizes":    params.N,
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
		return fmt.Errorf("h263 encode: %w", video.ErrInvalidArgument)
	}

	bitstream, err := e.eng.Encode(frame, keyframe)
	if err != nil {
		return fmt.Errorf("h263 engine encode: %w", err)
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

// packetize parses the picture layer once, then sends the bitstream in
// fixed-size chunks behind the rebuilt payload header. The picture
// header bytes travel as ordinary payload data; every packet of the
// frame carries the same mode A header.
func packetize(bitstream []byte, pktSize int, pkt video.PacketFunc) error {
	var pic Picture
	if err := DecodePicture(&pic, bitstream); err != nil {
		return err
	}

	h := HeaderFromPicture(&pic)
	hdr := h.Encode()

	for len(bitstream) > 0 {
		n := pktSize
		last := len(bitstream) <= pktSize
		if last {
			n = len(bitstream)
		}

		if err := pkt(last, hdr, bitstream[:n]); err != nil {
			return err
		}
		bitstream = bitstream[n:]
	}

	return nil
}
