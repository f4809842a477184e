package video

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/sirupsen/logrus"
)

// remoteFormat is one payload mapping accepted by the peer: the wire
// payload type, the local codec serving it, and the peer's fmtp
// parameters.
type remoteFormat struct {
	pt    uint8
	codec *Codec
	fmtp  string
}

// SDPOffer fills the media description with one format line per
// registered codec plus the stream-level attributes the peer needs to
// answer: framerate, picture-loss feedback and the optional content
// label.
func (s *Stream) SDPOffer(m *sdp.MediaDescription) error {
	if m == nil {
		return fmt.Errorf("sdp offer: %w", ErrInvalidArgument)
	}

	codecs := s.reg.All()
	if len(codecs) == 0 {
		return fmt.Errorf("sdp offer: %w", ErrCodecUnavailable)
	}

	if m.MediaName.Media == "" {
		m.MediaName.Media = "video"
	}
	if len(m.MediaName.Protos) == 0 {
		m.MediaName.Protos = []string{"RTP", "AVP"}
	}

	for _, c := range codecs {
		m.MediaName.Formats = append(m.MediaName.Formats, strconv.Itoa(int(c.PayloadType)))
		m.Attributes = append(m.Attributes, sdp.Attribute{
			Key:   "rtpmap",
			Value: fmt.Sprintf("%d %s/%d", c.PayloadType, c.Name, c.ClockRate),
		})
		if c.Fmtp != "" {
			m.Attributes = append(m.Attributes, sdp.Attribute{
				Key:   "fmtp",
				Value: fmt.Sprintf("%d %s", c.PayloadType, c.Fmtp),
			})
		}
	}

	m.Attributes = append(m.Attributes, sdp.Attribute{
		Key:   "framerate",
		Value: strconv.FormatFloat(s.cfg.FPS, 'f', -1, 64),
	})
	m.Attributes = append(m.Attributes, sdp.Attribute{
		Key:   "rtcp-fb",
		Value: "* nack pli",
	})
	if s.cfg.Content != "" {
		m.Attributes = append(m.Attributes, sdp.Attribute{
			Key:   "content",
			Value: s.cfg.Content,
		})
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stream.SDPOffer",
		"formats":  len(codecs),
		"fps":      s.cfg.FPS,
	}).Debug("Video offer written")

	return nil
}

// SDPAnswer applies the formats the peer accepted. The first format
// both sides can serve becomes the active encoder and decoder; every
// accepted format joins the payload-type switch table for the receive
// side. The peer's framerate, when present, overrides the configured
// one before the encoder is built.
func (s *Stream) SDPAnswer(m *sdp.MediaDescription) error {
	if m == nil {
		return fmt.Errorf("sdp answer: %w", ErrInvalidArgument)
	}

	formats := s.remoteFormats(m)
	if len(formats) == 0 {
		return fmt.Errorf("sdp answer: %w", ErrNegotiationRejected)
	}

	for _, a := range m.Attributes {
		if a.Key != "framerate" {
			continue
		}
		if fps, err := strconv.ParseFloat(a.Value, 64); err == nil && fps > 0 {
			s.tx.mu.Lock()
			s.tx.fps = fps
			s.tx.mu.Unlock()
		}
	}

	nack := false
	for _, a := range m.Attributes {
		if a.Key == "rtcp-fb" && strings.Contains(a.Value, "nack") {
			nack = true
			break
		}
	}

	s.mu.Lock()
	s.negotiated = formats
	s.nackPLI = nack
	s.mu.Unlock()

	var active *remoteFormat
	for i := range formats {
		f := &formats[i]
		if err := s.SetEncoder(f.codec, f.fmtp); err != nil {
			continue
		}
		active = f
		break
	}
	if active == nil {
		return fmt.Errorf("sdp answer: %w", ErrNegotiationRejected)
	}

	s.tx.mu.Lock()
	s.tx.pt = active.pt
	s.tx.mu.Unlock()

	if err := s.SetDecoder(active.codec, active.pt, active.fmtp); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Stream.SDPAnswer",
		"codec":        active.codec.Name,
		"payload_type": active.pt,
		"formats":      len(formats),
		"nack_pli":     nack,
	}).Info("Video formats negotiated")

	return nil
}

// remoteFormats extracts the answer's format list with its rtpmap and
// fmtp attributes and resolves each entry against the registry, in the
// peer's preference order. Formats the registry cannot serve, or whose
// parameters an FmtpCompare hook rejects, are skipped.
func (s *Stream) remoteFormats(m *sdp.MediaDescription) []remoteFormat {
	type entry struct {
		name string
		fmtp string
	}
	byPT := make(map[uint8]*entry)

	get := func(pt uint8) *entry {
		e := byPT[pt]
		if e == nil {
			e = &entry{}
			byPT[pt] = e
		}
		return e
	}

	for _, a := range m.Attributes {
		switch a.Key {
		case "rtpmap":
			pt, rest, ok := splitPayloadType(a.Value)
			if !ok {
				continue
			}
			name := rest
			if i := strings.IndexByte(name, '/'); i >= 0 {
				name = name[:i]
			}
			get(pt).name = name
		case "fmtp":
			pt, rest, ok := splitPayloadType(a.Value)
			if !ok {
				continue
			}
			get(pt).fmtp = rest
		}
	}

	var out []remoteFormat
	for _, f := range m.MediaName.Formats {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > 0xff {
			continue
		}
		pt := uint8(n)

		var name, fmtp string
		if e := byPT[pt]; e != nil {
			name, fmtp = e.name, e.fmtp
		}
		if name == "" {
			name = staticPayloadName(pt)
		}
		if name == "" {
			continue
		}

		c := s.reg.Find(name)
		if c == nil {
			logrus.WithFields(logrus.Fields{
				"function":     "Stream.remoteFormats",
				"format":       name,
				"payload_type": pt,
			}).Debug("Skipping format with no local codec")
			continue
		}
		if c.FmtpCompare != nil && !c.FmtpCompare(c.Fmtp, fmtp) {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.remoteFormats",
				"format":   name,
				"fmtp":     fmtp,
			}).Debug("Skipping format with incompatible parameters")
			continue
		}

		out = append(out, remoteFormat{pt: pt, codec: c, fmtp: fmtp})
	}
	return out
}

// splitPayloadType splits an attribute value of the form
// "<pt> <rest>" as used by rtpmap and fmtp.
func splitPayloadType(v string) (uint8, string, bool) {
	head, rest, ok := strings.Cut(v, " ")
	if !ok {
		return 0, "", false
	}
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 || n > 0xff {
		return 0, "", false
	}
	return uint8(n), rest, true
}

// staticPayloadName maps the static payload types this module can serve
// to their format names, for answers that omit rtpmap lines.
func staticPayloadName(pt uint8) string {
	if pt == 34 {
		return "H263"
	}
	return ""
}
