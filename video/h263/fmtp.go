// This file implements fmtp format-parameter negotiation for H.263.

package h263

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
)

// Format enumerates the negotiable picture sizes. The values match the
// 3-bit source format field of the picture and payload headers.
type Format int

const (
	FormatSQCIF Format = 1 // 128x96
	FormatQCIF  Format = 2 // 176x144
	FormatCIF   Format = 3 // 352x288
	Format4CIF  Format = 4 // 704x576
	Format16CIF Format = 5 // 1408x1152
	FormatOther Format = 7 // extended PTYPE or unrecognized attribute
)

// Size returns the picture dimensions of the format, or the zero size
// for FormatOther.
func (f Format) Size() video.Size {
	switch f {
	case FormatSQCIF:
		return video.Size{Width: 128, Height: 96}
	case FormatQCIF:
		return video.Size{Width: 176, Height: 144}
	case FormatCIF:
		return video.Size{Width: 352, Height: 288}
	case Format4CIF:
		return video.Size{Width: 704, Height: 576}
	case Format16CIF:
		return video.Size{Width: 1408, Height: 1152}
	default:
		return video.Size{}
	}
}

func (f Format) String() string {
	switch f {
	case FormatSQCIF:
		return "SQCIF"
	case FormatQCIF:
		return "QCIF"
	case FormatCIF:
		return "CIF"
	case Format4CIF:
		return "CIF4"
	case Format16CIF:
		return "CIF16"
	default:
		return "OTHER"
	}
}

// SizeMPI pairs a picture size with its minimum picture interval in
// units of 1/29.97 s.
type SizeMPI struct {
	Fmt Format
	MPI uint32
}

// Params holds the picture sizes accepted by the remote decoder.
type Params struct {
	Sizes [8]SizeMPI
	N     int
}

// DecodeFmtp parses an fmtp attribute value into p. Attributes that
// cannot be used are logged and skipped: unknown size names, minimum
// picture intervals outside 1 to 32, and sizes past the table capacity.
// The negotiation as a whole never fails.
func DecodeFmtp(p *Params, fmtp string) {
	if p == nil {
		return
	}

	for fmtp != "" {
		var pair string
		pair, fmtp, _ = strings.Cut(fmtp, ";")
		pair = strings.TrimSpace(pair)

		name, value, _ := strings.Cut(pair, "=")
		if name == "" {
			continue
		}
		decodeParam(p, name, value)
	}
}

// decodeParam applies a single name=value format parameter.
func decodeParam(p *Params, name, value string) {
	format := formatByName(name)
	if format == FormatOther {
		logrus.WithFields(logrus.Fields{
			"function":  "decodeParam",
			"attribute": name,
		}).Info("Ignoring unknown fmtp attribute")
		return
	}

	mpi, _ := strconv.ParseUint(value, 10, 32)
	if mpi < 1 || mpi > 32 {
		logrus.WithFields(logrus.Fields{
			"function":  "decodeParam",
			"attribute": name,
			"mpi":       mpi,
		}).Info("Ignoring fmtp size with MPI out of range")
		return
	}

	if p.N >= len(p.Sizes) {
		logrus.WithFields(logrus.Fields{
			"function":  "decodeParam",
			"attribute": name,
		}).Info("Ignoring fmtp size beyond table capacity")
		return
	}

	p.Sizes[p.N] = SizeMPI{Fmt: format, MPI: uint32(mpi)}
	p.N++
}

// formatByName resolves an fmtp attribute name to its source format.
func formatByName(name string) Format {
	switch strings.ToLower(name) {
	case "sqcif":
		return FormatSQCIF
	case "qcif":
		return FormatQCIF
	case "cif":
		return FormatCIF
	case "cif4":
		return Format4CIF
	case "cif16":
		return Format16CIF
	default:
		return FormatOther
	}
}
