// Package h263 implements the RTP payload protocol for H.263 video.
//
// Every packet opens with a payload header in one of three layouts
// selected by its first two bits; the transmit side emits the 4-byte
// mode A layout rebuilt from the picture layer of the encoder's
// bitstream. The receive side strips the header, merges split bytes at
// sub-byte fragment boundaries and restores the original bitstream byte
// for byte. Intra pictures open the keyframe gate.
//
// Negotiation reads picture size and minimum picture interval
// attributes (CIF=1 style); unusable attributes are logged and skipped,
// never failing the negotiation as a whole.
package h263
