// This file implements the picture layer header parse used to rebuild
// the payload header on transmit.

package h263

import (
	"bytes"
	"fmt"

	"github.com/32bitkid/bitreader"

	"github.com/opd-ai/mediacore/video"
)

// Picture holds the fixed fields of the picture layer header that opens
// every encoded picture in the bitstream.
type Picture struct {
	TempRef   uint8 // temporal reference
	SplitScr  bool  // split screen indicator
	DocCamera bool  // document camera indicator
	PicFrzRel bool  // freeze picture release
	SrcFmt    uint8 // source format, 3 bits
	PicType   bool  // picture coding type, clear for intra pictures
	UMV       bool  // unrestricted motion vector mode
	SAC       bool  // syntax-based arithmetic coding
	APM       bool  // advanced prediction mode
	PB        bool  // PB-frames mode
	PQuant    uint8 // picture quantizer, 5 bits
	CPM       bool  // continuous presence multipoint
	PSBI      uint8 // picture sub-bitstream indicator, 0 without CPM
}

// DecodePicture parses the picture layer header at the start of the
// bitstream p into pic. The bitstream itself is left untouched; the
// packetizer sends the header bytes as ordinary payload data.
//
// Returns:
//   - error: video.ErrMalformedBitstream when p is shorter than the
//     fixed header or does not open with a picture start code
func DecodePicture(pic *Picture, p []byte) error {
	if pic == nil {
		return fmt.Errorf("h263 picture: %w", video.ErrInvalidArgument)
	}
	if len(p) < 6 {
		return fmt.Errorf("h263 picture header %d bytes: %w",
			len(p), video.ErrMalformedBitstream)
	}

	br := bitreader.NewReader(bytes.NewReader(p))
	var firstErr error
	bits := func(n uint) uint32 {
		if firstErr != nil {
			return 0
		}
		v, err := br.Read32(n)
		if err != nil {
			firstErr = err
		}
		return v
	}
	flag := func() bool {
		return bits(1) == 1
	}

	// 22-bit picture start code: sixteen zeros then 100000.
	if bits(16) != 0 || bits(6) != 0x20 {
		return fmt.Errorf("h263 picture start code: %w", video.ErrMalformedBitstream)
	}

	pic.TempRef = uint8(bits(8))
	pic.SplitScr = flag()
	pic.DocCamera = flag()
	pic.PicFrzRel = flag()
	pic.SrcFmt = uint8(bits(3))
	pic.PicType = flag()
	pic.UMV = flag()
	pic.SAC = flag()
	pic.APM = flag()
	pic.PB = flag()
	pic.PQuant = uint8(bits(5))
	pic.CPM = flag()
	pic.PSBI = 0

	if firstErr != nil {
		return fmt.Errorf("h263 picture header: %w", video.ErrMalformedBitstream)
	}
	return nil
}

// HeaderFromPicture builds the mode A payload header announcing pic.
// DBQ and TRB stay zero, PB-frames are never fragmented mid-frame.
func HeaderFromPicture(pic *Picture) Header {
	return Header{
		Src: pic.SrcFmt,
		I:   pic.PicType,
		U:   pic.UMV,
		S:   pic.SAC,
		A:   pic.APM,
		TR:  pic.TempRef,
	}
}
