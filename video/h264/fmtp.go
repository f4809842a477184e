// This file implements fmtp format-parameter negotiation for H.264.

package h264

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
)

// Params holds the negotiated H.264 format parameters.
type Params struct {
	PacketizationMode uint32 // must be 0, single-NAL/FU-A mode
	ProfileIDC        uint8
	ProfileIOP        uint8
	LevelIDC          uint8
	MaxFS             uint32 // maximum frame size in macroblocks
	MaxSMBPS          uint32 // maximum decoded macroblocks per second
}

// DecodeFmtp parses an fmtp attribute value into p.
//
// Exactly these keys are interpreted: packetization-mode (any value
// other than 0 rejects the negotiation), profile-level-id (exactly six
// hex digits split into profile-idc, profile-iop and level-idc), max-fs
// and max-smbps (stored). Unknown keys are ignored.
//
// Returns:
//   - error: video.ErrNegotiationRejected when a hard constraint fails
func DecodeFmtp(p *Params, fmtp string) error {
	if p == nil {
		return fmt.Errorf("h264 fmtp: %w", video.ErrInvalidArgument)
	}

	for fmtp != "" {
		var pair string
		pair, fmtp, _ = strings.Cut(fmtp, ";")
		pair = strings.TrimSpace(pair)

		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			continue
		}

		if err := decodeParam(p, name, value); err != nil {
			return err
		}
	}

	return nil
}

// decodeParam applies a single name=value format parameter.
func decodeParam(p *Params, name, value string) error {
	switch strings.ToLower(name) {
	case "packetization-mode":
		mode, _ := strconv.ParseUint(value, 10, 32)
		p.PacketizationMode = uint32(mode)
		if p.PacketizationMode != 0 {
			logrus.WithFields(logrus.Fields{
				"function":           "decodeParam",
				"packetization_mode": p.PacketizationMode,
			}).Warn("Illegal packetization-mode")
			return fmt.Errorf("packetization-mode %d: %w",
				p.PacketizationMode, video.ErrNegotiationRejected)
		}

	case "profile-level-id":
		if len(value) != 6 {
			logrus.WithFields(logrus.Fields{
				"function":         "decodeParam",
				"profile_level_id": value,
			}).Warn("Invalid profile-level-id")
			return fmt.Errorf("profile-level-id %q: %w",
				value, video.ErrNegotiationRejected)
		}
		raw, err := hex.DecodeString(value)
		if err != nil {
			return fmt.Errorf("profile-level-id %q: %w",
				value, video.ErrNegotiationRejected)
		}
		p.ProfileIDC = raw[0]
		p.ProfileIOP = raw[1]
		p.LevelIDC = raw[2]

	case "max-fs":
		v, _ := strconv.ParseUint(value, 10, 32)
		p.MaxFS = uint32(v)

	case "max-smbps":
		v, _ := strconv.ParseUint(value, 10, 32)
		p.MaxSMBPS = uint32(v)
	}

	return nil
}

// CompareFmtp reports whether two fmtp strings agree on the
// packetization mode. An absent packetization-mode key counts as mode 0.
func CompareFmtp(lfmtp, rfmtp string) bool {
	return packetizationMode(lfmtp) == packetizationMode(rfmtp)
}

func packetizationMode(fmtp string) uint32 {
	for fmtp != "" {
		var pair string
		pair, fmtp, _ = strings.Cut(fmtp, ";")
		pair = strings.TrimSpace(pair)

		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if strings.EqualFold(name, "packetization-mode") {
			mode, _ := strconv.ParseUint(value, 10, 32)
			return uint32(mode)
		}
	}
	return 0
}
