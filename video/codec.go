// This file defines the payload-codec plugin contract consumed by the
// stream pipeline: the immutable codec descriptor, the encoder/decoder
// entry points, the per-packet callback, and the external codec engine
// collaborator interfaces.

package video

// ClockRate is the RTP clock rate for all video formats, in Hz.
const ClockRate = 90000

// DefaultPktSize is the payload size packetizers split encoded frames at
// when the configuration does not override it.
const DefaultPktSize = 1024

// EncodeConfig carries the encoder parameters negotiated for a stream.
type EncodeConfig struct {
	Bitrate uint32 // Target bitrate in bits per second
	PktSize uint32 // Maximum RTP payload size per packet
	FPS     uint32 // Target frame rate
	MaxFS   uint32 // Maximum frame size in macroblocks, 0 when unset
}

// PacketFunc is invoked zero or more times per encoded frame with one
// RTP payload each. hdr holds the codec-specific payload header, payload
// the bitstream chunk; last marks the final packet of the frame. The
// caller is responsible for wire transmission.
type PacketFunc func(last bool, hdr, payload []byte) error

// Encoder turns one raw frame into codec-specific RTP payloads.
//
// Encode passes the frame to the external codec engine and splits the
// resulting bitstream into packets delivered through pkt. keyframe
// requests an intra picture from the engine.
type Encoder interface {
	Encode(keyframe bool, frame *Frame, pkt PacketFunc) error
}

// Decoder reassembles received RTP payloads into decodable pictures.
//
// Decode consumes one packet's payload. marker flags the last packet of
// a frame; on that packet a complete picture is handed to the external
// codec engine and, on success, dst is populated. ErrNotSynchronized is
// returned while the keyframe gate is still closed and carries no
// picture.
type Decoder interface {
	Decode(dst *Frame, marker bool, seq uint16, payload []byte) error
}

// EncodeEngine is the external codec engine's encode entry point. The
// engine owns rate control and entropy coding; this pipeline never
// interprets the returned bitstream beyond payload framing.
type EncodeEngine interface {
	Encode(frame *Frame, keyframe bool) ([]byte, error)
}

// DecodeEngine is the external codec engine's decode entry point,
// consuming one complete reassembled picture per call.
type DecodeEngine interface {
	Decode(data []byte) (*Frame, error)
}

// EngineProvider constructs codec engines by codec name. Implemented by
// the embedding application, typically as a thin wrapper over a native
// codec library.
type EngineProvider interface {
	NewEncodeEngine(codec string, cfg EncodeConfig) (EncodeEngine, error)
	NewDecodeEngine(codec string) (DecodeEngine, error)
}

// Codec is an immutable per-codec descriptor.
//
// Descriptors are held in a Registry; the stream holds only a reference
// to the one currently selected per side. The constructor funcs are the
// negotiation entry points: they receive the remote fmtp string and
// return a configured packetizer or depacketizer.
type Codec struct {
	// Name is the SDP encoding name, e.g. "H264".
	Name string

	// PayloadType is the default dynamic RTP payload type offered for
	// this codec.
	PayloadType uint8

	// ClockRate is the RTP clock rate advertised in the rtpmap line.
	ClockRate uint32

	// Fmtp is the format parameter string offered for this codec, empty
	// when the codec has no local parameters.
	Fmtp string

	// NewEncoder builds the payload encoder for the transmit side.
	NewEncoder func(cfg EncodeConfig, fmtp string) (Encoder, error)

	// NewDecoder builds the payload decoder for the receive side.
	NewDecoder func(fmtp string) (Decoder, error)

	// FmtpCompare reports whether a local and a remote fmtp string
	// describe compatible configurations. nil means any parameters
	// match.
	FmtpCompare func(lfmtp, rfmtp string) bool
}
