package mediacore

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/video"
	"github.com/opd-ai/mediacore/video/h263"
	"github.com/opd-ai/mediacore/video/h264"
	"github.com/opd-ai/mediacore/video/mpeg4"
)

// RegisterBuiltins adds the built-in payload codecs to the registry in
// offer order: H264 first, then H263 and MP4V-ES. Every descriptor
// resolves its codec engine through the given provider.
//
// Parameters:
//   - reg: Registry the stream will negotiate from
//   - p: Engine provider backing encode and decode
//
// Returns:
//   - error: Any error that occurred during registration
func RegisterBuiltins(reg *video.Registry, p video.EngineProvider) error {
	logrus.WithFields(logrus.Fields{
		"function": "RegisterBuiltins",
	}).Info("Registering built-in payload codecs")

	if reg == nil {
		return errors.New("codec registry cannot be nil")
	}
	if p == nil {
		return errors.New("engine provider cannot be nil")
	}

	codecs := []*video.Codec{
		h264.NewCodec(p),
		h263.NewCodec(p),
		mpeg4.NewCodec(p),
	}
	for _, c := range codecs {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", c.Name, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "RegisterBuiltins",
		"codecs":   len(codecs),
	}).Info("Built-in payload codecs registered successfully")

	return nil
}
