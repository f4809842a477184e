// This file implements the three payload header layouts and the codec
// descriptor.

package h263

import (
	"fmt"

	"github.com/nareix/bits/pio"

	"github.com/opd-ai/mediacore/video"
)

// Mode identifies the payload header layout of a packet, selected by
// the F and P bits.
type Mode int

const (
	ModeA Mode = iota // 4-byte header, fragments on GOB boundaries
	ModeB             // 8-byte header, macroblock-aligned fragments
	ModeC             // 12-byte header, mode B for PB-frames
)

// Size returns the wire size of the payload header in bytes.
func (m Mode) Size() int {
	switch m {
	case ModeB:
		return 8
	case ModeC:
		return 12
	default:
		return 4
	}
}

func (m Mode) String() string {
	switch m {
	case ModeA:
		return "A"
	case ModeB:
		return "B"
	case ModeC:
		return "C"
	default:
		return "?"
	}
}

// Header is the payload header preceding every packet's bitstream data.
// The transmit side emits mode A only; the receive side accepts all
// three modes.
type Header struct {
	F    bool  // mode flag, set for modes B and C
	P    bool  // PB-frames flag, selects mode C when F is set
	SBit uint8 // ignored leading bits of the first data byte, 3 bits
	EBit uint8 // ignored trailing bits of the last data byte, 3 bits
	Src  uint8 // source format of the current picture, 3 bits
	I    bool  // picture coding type, clear for intra pictures
	U    bool  // unrestricted motion vector mode
	S    bool  // syntax-based arithmetic coding
	A    bool  // advanced prediction mode
	R    uint8 // reserved, 4 bits in mode A, 2 bits in modes B and C
	DBQ  uint8 // differential quantization parameter, 2 bits
	TRB  uint8 // temporal reference of the B frame, 3 bits
	TR   uint8 // temporal reference of the picture

	// Modes B and C only.
	Quant uint8  // quantizer in effect at packet start, 5 bits
	GOBN  uint8  // GOB number in effect at packet start, 5 bits
	MBA   uint16 // macroblock address at packet start, 9 bits
	HMV1  uint8  // motion vector predictors, 7 bits each
	VMV1  uint8
	HMV2  uint8
	VMV2  uint8
}

// Mode returns the header layout selected by the F and P bits.
func (h *Header) Mode() Mode {
	if !h.F {
		return ModeA
	}
	if !h.P {
		return ModeB
	}
	return ModeC
}

// Encode packs the header into its 4-byte mode A wire form.
func (h *Header) Encode() []byte {
	v := bit(h.F)<<31 | bit(h.P)<<30 |
		uint32(h.SBit&0x7)<<27 | uint32(h.EBit&0x7)<<24 |
		uint32(h.Src&0x7)<<21 |
		bit(h.I)<<20 | bit(h.U)<<19 | bit(h.S)<<18 | bit(h.A)<<17 |
		uint32(h.R&0xf)<<13 | uint32(h.DBQ&0x3)<<11 |
		uint32(h.TRB&0x7)<<8 | uint32(h.TR)

	b := make([]byte, 4)
	pio.PutU32BE(b, v)
	return b
}

// DecodeHeader unpacks the payload header at the start of p. It returns
// the header and the number of bytes it occupied on the wire.
func DecodeHeader(p []byte) (Header, int, error) {
	if len(p) < 4 {
		return Header{}, 0, fmt.Errorf("h263 payload header %d bytes: %w",
			len(p), video.ErrMalformedBitstream)
	}

	v := pio.U32BE(p)
	h := Header{
		F:    v>>31&0x1 != 0,
		P:    v>>30&0x1 != 0,
		SBit: uint8(v >> 27 & 0x7),
		EBit: uint8(v >> 24 & 0x7),
		Src:  uint8(v >> 21 & 0x7),
	}

	if h.Mode() == ModeA {
		h.I = v>>20&0x1 != 0
		h.U = v>>19&0x1 != 0
		h.S = v>>18&0x1 != 0
		h.A = v>>17&0x1 != 0
		h.R = uint8(v >> 13 & 0xf)
		h.DBQ = uint8(v >> 11 & 0x3)
		h.TRB = uint8(v >> 8 & 0x7)
		h.TR = uint8(v)
		return h, 4, nil
	}

	// Modes B and C share the first two words.
	size := h.Mode().Size()
	if len(p) < size {
		return Header{}, 0, fmt.Errorf("h263 mode %v header %d bytes: %w",
			h.Mode(), len(p), video.ErrMalformedBitstream)
	}

	h.Quant = uint8(v >> 16 & 0x1f)
	h.GOBN = uint8(v >> 11 & 0x1f)
	h.MBA = uint16(v >> 2 & 0x1ff)
	h.R = uint8(v & 0x3)

	w := pio.U32BE(p[4:])
	h.I = w>>31&0x1 != 0
	h.U = w>>30&0x1 != 0
	h.S = w>>29&0x1 != 0
	h.A = w>>28&0x1 != 0
	h.HMV1 = uint8(w >> 21 & 0x7f)
	h.VMV1 = uint8(w >> 14 & 0x7f)
	h.HMV2 = uint8(w >> 7 & 0x7f)
	h.VMV2 = uint8(w & 0x7f)

	if h.Mode() == ModeC {
		t := pio.U32BE(p[8:])
		h.DBQ = uint8(t >> 11 & 0x3)
		h.TRB = uint8(t >> 8 & 0x7)
		h.TR = uint8(t)
	}

	return h, size, nil
}

// bit widens a flag for header packing.
func bit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// NewCodec builds the H.263 codec descriptor backed by engines from p.
//
// Parameters:
//   - p: External codec engine provider
//
// Returns:
//   - *video.Codec: Descriptor ready for registry registration
func NewCodec(p video.EngineProvider) *video.Codec {
	return &video.Codec{
		Name:        "H263",
		PayloadType: 34,
		ClockRate:   video.ClockRate,
		Fmtp:        "CIF=1;QCIF=1",
		NewEncoder: func(cfg video.EncodeConfig, fmtp string) (video.Encoder, error) {
			return newEncoder(p, cfg, fmtp)
		},
		NewDecoder: func(fmtp string) (video.Decoder, error) {
			return newDecoder(p, fmtp)
		},
	}
}
