// This file implements the one-byte NAL unit header, the FU-A
// fragmentation header, and the Annex-B start-code scan shared by the
// packetizer and depacketizer.

package h264

import (
	"fmt"

	"github.com/opd-ai/mediacore/video"
)

// NAL unit types used by the payload protocol.
const (
	NALTypeIDR = 5  // coded slice of an IDR picture
	NALTypeSEI = 6  // supplemental enhancement information
	NALTypeSPS = 7  // sequence parameter set
	NALTypePPS = 8  // picture parameter set
	NALTypeFUA = 28 // fragmentation unit A
)

// startCode is the Annex-B NAL unit start sequence.
var startCode = []byte{0x00, 0x00, 0x01}

// NALHeader is the one-byte header beginning every NAL unit.
type NALHeader struct {
	F    bool  // forbidden zero bit, must be 0
	NRI  uint8 // reference importance, 2 bits
	Type uint8 // NAL unit type, 5 bits
}

// DecodeNALHeader unpacks a NAL unit header byte.
func DecodeNALHeader(b byte) NALHeader {
	return NALHeader{
		F:    b&0x80 != 0,
		NRI:  b >> 5 & 0x3,
		Type: b & 0x1f,
	}
}

// Encode packs the header back into its wire byte.
func (h NALHeader) Encode() byte {
	var f byte
	if h.F {
		f = 0x80
	}
	return f | h.NRI<<5 | h.Type&0x1f
}

// FUHeader is the one-byte header following the FU indicator in a
// fragmentation unit.
type FUHeader struct {
	S    bool  // start of fragmented NAL unit
	E    bool  // end of fragmented NAL unit
	R    bool  // reserved, must be 0
	Type uint8 // original NAL unit type, 5 bits
}

// DecodeFUHeader unpacks an FU header byte.
func DecodeFUHeader(b byte) FUHeader {
	return FUHeader{
		S:    b&0x80 != 0,
		E:    b&0x40 != 0,
		R:    b&0x20 != 0,
		Type: b & 0x1f,
	}
}

// Encode packs the FU header back into its wire byte.
func (h FUHeader) Encode() byte {
	var b byte
	if h.S {
		b |= 0x80
	}
	if h.E {
		b |= 0x40
	}
	if h.R {
		b |= 0x20
	}
	return b | h.Type&0x1f
}

// findStartCode returns the index of the next 00 00 01 sequence at or
// after from, or len(buf) when none remains. A four-byte 00 00 00 01
// code matches on its last three bytes; the extra zero stays with the
// preceding bytes, where the caller's zero skip absorbs it.
func findStartCode(buf []byte, from int) int {
	for i := from; i+2 < len(buf); i++ {
		if buf[i] == 0x00 && buf[i+1] == 0x00 && buf[i+2] == 0x01 {
			return i
		}
	}
	return len(buf)
}

// NewCodec builds the H.264 codec descriptor backed by engines from p.
//
// Parameters:
//   - p: External codec engine provider
//
// Returns:
//   - *video.Codec: Descriptor ready for registry registration
func NewCodec(p video.EngineProvider) *video.Codec {
	return &video.Codec{
		Name:        "H264",
		PayloadType: 96,
		ClockRate:   video.ClockRate,
		Fmtp:        "packetization-mode=0",
		NewEncoder: func(cfg video.EncodeConfig, fmtp string) (video.Encoder, error) {
			return newEncoder(p, cfg, fmtp)
		},
		NewDecoder: func(fmtp string) (video.Decoder, error) {
			return newDecoder(p, fmtp)
		},
		FmtpCompare: CompareFmtp,
	}
}

// errShortPayload wraps the malformed-bitstream sentinel for truncated
// packets.
func errShortPayload(what string, n int) error {
	return fmt.Errorf("%s truncated at %d bytes: %w", what, n, video.ErrMalformedBitstream)
}
