// Package mpeg4 implements the RTP payload protocol for MPEG-4 visual
// streams.
//
// The bitstream travels without any payload header: the transmit side
// cuts the encoder output into fixed-size chunks and the receive side
// concatenates payloads until the end-of-frame marker. Configuration
// headers are part of the bitstream itself, so the keyframe gate is
// considered always open and resynchronization is left to the codec
// engine.
package mpeg4
