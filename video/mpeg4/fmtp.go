// This file implements fmtp format-parameter handling for MPEG-4.

package mpeg4

import (
	"strconv"
	"strings"
)

// Params holds the stored MPEG-4 visual format parameters.
type Params struct {
	ProfileLevelID uint32 // visual profile and level indication
	Config         string // configuration headers as a hex string
}

// DecodeFmtp parses an fmtp attribute value into p. profile-level-id
// and config are stored for the local answer; other attributes are
// ignored and nothing is ever rejected.
func DecodeFmtp(p *Params, fmtp string) {
	if p == nil {
		return
	}

	for fmtp != "" {
		var pair string
		pair, fmtp, _ = strings.Cut(fmtp, ";")
		pair = strings.TrimSpace(pair)

		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			continue
		}

		switch strings.ToLower(name) {
		case "profile-level-id":
			v, _ := strconv.ParseUint(value, 10, 32)
			p.ProfileLevelID = uint32(v)
		case "config":
			p.Config = value
		}
	}
}
