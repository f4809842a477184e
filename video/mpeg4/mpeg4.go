// This file implements the codec descriptor.

package mpeg4

import (
	"github.com/opd-ai/mediacore/video"
)

// NewCodec builds the MPEG-4 codec descriptor backed by engines from p.
//
// Parameters:
//   - p: External codec engine provider
//
// Returns:
//   - *video.Codec: Descriptor ready for registry registration
func NewCodec(p video.EngineProvider) *video.Codec {
	return &video.Codec{
		Name:        "MP4V-ES",
		PayloadType: 97,
		ClockRate:   video.ClockRate,
		Fmtp:        "profile-level-id=3",
		NewEncoder: func(cfg video.EncodeConfig, fmtp string) (video.Encoder, error) {
			return newEncoder(p, cfg, fmtp)
		},
		NewDecoder: func(fmtp string) (video.Decoder, error) {
			return newDecoder(p, fmtp)
		},
	}
}
