// Package h264 implements the RTP payload protocol for H.264 video.
//
// The receive side reassembles single NAL units and type-28 fragmentation
// units (FU-A) into an Annex-B bitstream, holding a keyframe gate closed
// until a sequence or picture parameter set has been observed. The
// transmit side walks the encoder's Annex-B output and emits each NAL
// unit either as a single packet or as an FU-A fragment train.
//
// Negotiation parses the fmtp keys packetization-mode (only mode 0 is
// supported), profile-level-id, max-fs and max-smbps.
package h264
