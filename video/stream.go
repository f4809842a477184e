package video

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mediacore/metrics"
	"github.com/opd-ai/mediacore/rtp"
)

const (
	// maxMutedFrames bounds how many substitute frames go out after a
	// mute before transmission stops entirely.
	maxMutedFrames = 3

	// defaultRateInterval is the frame-rate estimation period.
	defaultRateInterval = 5 * time.Second

	// initialTimestamp seeds the outbound RTP timestamp counter.
	initialTimestamp = 160
)

// Config carries the stream-level parameters decided outside the media
// plane. The zero value of every knob selects a sensible default; only
// collaborators passed to NewStream are mandatory.
type Config struct {
	// Size is the capture size requested from the source.
	Size Size

	// FPS is the capture and encode frame rate.
	FPS float64

	// Bitrate is the target encoder bitrate in bits per second.
	Bitrate uint32

	// PktSize caps the payload bytes per RTP packet.
	PktSize uint32

	// Content is written verbatim as the SDP content attribute when
	// non-empty.
	Content string

	// Peer labels log output and the debug dump.
	Peer string

	// Fullscreen requests fullscreen rendering from displays that
	// support it.
	Fullscreen bool

	// RateInterval is the frame-rate estimation period.
	RateInterval time.Duration
}

// DefaultConfig returns a stream configuration suitable for a typical
// desktop call leg.
func DefaultConfig() Config {
	return Config{
		Size:         Size{Width: 640, Height: 480},
		FPS:          30,
		Bitrate:      512000,
		PktSize:      DefaultPktSize,
		RateInterval: defaultRateInterval,
	}
}

// Stats is a point-in-time snapshot of stream activity. Frame counters
// are totals since Start; the fps figures are rate-interval averages.
type Stats struct {
	TxCodec  string
	TxFrames uint64
	TxFPS    float64

	RxCodec      string
	RxFrames     uint64
	RxFPS        float64
	DecodeErrors uint64

	KeyframeRequestsSent     uint64
	KeyframeRequestsReceived uint64

	RTP rtp.Stats
}

// Stream is one video leg of a call: a transmit side fed by a capture
// source and a receive side fed by RTP packets, joined by a shared
// filter chain and the keyframe feedback loop between them.
//
// The two sides run concurrently and are serialized individually by
// their own locks. Reconfiguration methods may be called at any time
// after Start.
type Stream struct {
	cfg     Config
	reg     *Registry
	rs      *rtp.Stream
	filters *FilterChain
	coll    *metrics.Collector
	time    TimeProvider

	tx txState
	rx rxState

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	started    bool
	startedAt  time.Time
	stopped    bool
	nackPLI    bool
	negotiated []remoteFormat
}

// Option adjusts optional stream collaborators at construction time.
type Option func(*Stream)

// WithMetrics attaches a metrics collector. A nil collector is valid
// and records nothing.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Stream) { s.coll = c }
}

// WithTimeProvider overrides the stream's clock, for deterministic
// tests.
func WithTimeProvider(tp TimeProvider) Option {
	return func(s *Stream) { s.time = tp }
}

// WithFilters appends filters to the chain. They run in the given order
// on both the encode and the decode path.
func WithFilters(filters ...Filter) Option {
	return func(s *Stream) {
		for _, f := range filters {
			s.filters.Add(f)
		}
	}
}

// WithSource sets the initial capture source. It is opened by Start.
func WithSource(src Source) Option {
	return func(s *Stream) { s.tx.source = src }
}

// WithDisplay sets the initial display sink.
func WithDisplay(d Display) Option {
	return func(s *Stream) { s.rx.display = d }
}

// NewStream creates a video stream over the given media stream using
// codecs from the registry. The stream wires itself into the media
// stream's packet and picture-update callbacks; media does not flow
// until Start is called.
//
// Parameters:
//   - cfg: Stream parameters, zero-value knobs select defaults
//   - reg: Codec registry consulted for SDP negotiation
//   - rs: Media stream carrying RTP and RTCP
//   - opts: Optional collaborators
//
// Returns:
//   - *Stream: The new stream
//   - error: Any error that occurred during setup
func NewStream(cfg Config, reg *Registry, rs *rtp.Stream, opts ...Option) (*Stream, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewStream",
		"peer":     cfg.Peer,
		"size":     cfg.Size.String(),
		"fps":      cfg.FPS,
	}).Info("Creating new video stream")

	if reg == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewStream",
			"error":    "codec registry cannot be nil",
		}).Error("Stream validation failed")
		return nil, errors.New("codec registry cannot be nil")
	}
	if rs == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewStream",
			"error":    "media stream cannot be nil",
		}).Error("Stream validation failed")
		return nil, errors.New("media stream cannot be nil")
	}

	if cfg.Size.Width == 0 || cfg.Size.Height == 0 {
		cfg.Size = Size{Width: 640, Height: 480}
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Bitrate == 0 {
		cfg.Bitrate = 512000
	}
	if cfg.PktSize == 0 {
		cfg.PktSize = DefaultPktSize
	}
	if cfg.RateInterval <= 0 {
		cfg.RateInterval = defaultRateInterval
	}

	s := &Stream{
		cfg:     cfg,
		reg:     reg,
		rs:      rs,
		filters: NewFilterChain(),
		time:    DefaultTimeProvider{},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.tx.ts = initialTimestamp
	s.tx.size = cfg.Size
	s.tx.fps = cfg.FPS
	s.tx.bitrate = cfg.Bitrate
	s.tx.pktSize = cfg.PktSize
	s.rx.fullscreen = cfg.Fullscreen

	mute, err := NewFrame(FormatYUV420P, cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("allocate mute image: %w", err)
	}
	mute.Fill(0xff, 0x80, 0x80)
	s.tx.muteFrame = mute

	for _, opt := range opts {
		opt(s)
	}

	rs.OnPacket = s.receivePacket
	rs.OnPictureUpdate = s.pictureUpdate

	logrus.WithFields(logrus.Fields{
		"function": "NewStream",
		"peer":     cfg.Peer,
		"codecs":   reg.Count(),
		"filters":  s.filters.Count(),
	}).Info("Video stream created successfully")

	return s, nil
}

// Start opens the capture source, if one is set, and starts the rate
// estimation timer. A stream can be started once; a stopped stream
// stays stopped.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("start video stream: %w", ErrStreamClosed)
	}
	if s.started {
		return fmt.Errorf("start video stream: %w", ErrAlreadyStarted)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stream.Start",
		"peer":     s.cfg.Peer,
	}).Info("Starting video stream")

	s.tx.mu.Lock()
	src := s.tx.source
	size := s.tx.size
	fps := s.tx.fps
	s.tx.mu.Unlock()

	if src != nil {
		if err := src.Open(size, fps, s.captureFrame); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.Start",
				"error":    err.Error(),
			}).Error("Capture source open failed")
			return fmt.Errorf("open capture source: %w", err)
		}
	}

	go s.rateLoop(s.ctx)
	s.started = true
	s.startedAt = s.time.Now()

	logrus.WithFields(logrus.Fields{
		"function": "Stream.Start",
		"peer":     s.cfg.Peer,
	}).Info("Video stream started successfully")

	return nil
}

// Stop tears the stream down: the capture source first so no further
// frames arrive, then both sides' codec state and the display with the
// handle swaps under their locks, then the rate timer. Safe to call
// more than once.
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.started = false
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Stream.Stop",
		"peer":     s.cfg.Peer,
	}).Info("Stopping video stream")

	s.tx.mu.Lock()
	src := s.tx.source
	s.tx.source = nil
	s.tx.mu.Unlock()
	if src != nil {
		if err := src.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.Stop",
				"error":    err.Error(),
			}).Warn("Capture source close failed")
		}
	}

	s.tx.mu.Lock()
	s.tx.codec = nil
	s.tx.enc = nil
	s.tx.mu.Unlock()

	s.rx.mu.Lock()
	s.rx.codec = nil
	s.rx.dec = nil
	disp := s.rx.display
	s.rx.display = nil
	s.rx.mu.Unlock()
	if disp != nil {
		if err := disp.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Stream.Stop",
				"error":    err.Error(),
			}).Warn("Display close failed")
		}
	}

	s.filters.Clear()
	s.cancel()

	logrus.WithFields(logrus.Fields{
		"function": "Stream.Stop",
		"peer":     s.cfg.Peer,
	}).Info("Video stream stopped successfully")
}

// RequestKeyframe schedules a keyframe for the next encoded frame.
func (s *Stream) RequestKeyframe() {
	s.tx.mu.Lock()
	s.tx.picup = true
	s.tx.mu.Unlock()
}

// Mute replaces outgoing frames with a still substitute image when on.
// Either transition schedules a keyframe so the far end repaints
// promptly.
func (s *Stream) Mute(on bool) {
	s.tx.mu.Lock()
	s.tx.muted = on
	s.tx.mutedFrames = 0
	s.tx.picup = true
	s.tx.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Stream.Mute",
		"peer":     s.cfg.Peer,
		"muted":    on,
	}).Info("Video mute toggled")
}

// SetFullscreen toggles fullscreen rendering on the display.
//
// Returns ErrUnsupportedFormat when no display is set or the display
// does not expose the capability.
func (s *Stream) SetFullscreen(on bool) error {
	s.rx.mu.Lock()
	disp := s.rx.display
	s.rx.mu.Unlock()

	fs, ok := disp.(FullscreenSetter)
	if !ok {
		return fmt.Errorf("set fullscreen: %w", ErrUnsupportedFormat)
	}
	if err := fs.SetFullscreen(on); err != nil {
		return fmt.Errorf("set fullscreen: %w", err)
	}

	s.rx.mu.Lock()
	s.rx.fullscreen = on
	s.rx.mu.Unlock()
	return nil
}

// SetOrientation rotates rendering by the given number of degrees.
//
// Returns ErrUnsupportedFormat when no display is set or the display
// does not expose the capability.
func (s *Stream) SetOrientation(degrees int) error {
	s.rx.mu.Lock()
	disp := s.rx.display
	s.rx.mu.Unlock()

	os, ok := disp.(OrientationSetter)
	if !ok {
		return fmt.Errorf("set orientation: %w", ErrUnsupportedFormat)
	}
	if err := os.SetOrientation(degrees); err != nil {
		return fmt.Errorf("set orientation: %w", err)
	}

	s.rx.mu.Lock()
	s.rx.orientation = degrees
	s.rx.mu.Unlock()
	return nil
}

// pictureUpdate reacts to an inbound FIR or PLI by scheduling a
// keyframe for the next encoded frame.
func (s *Stream) pictureUpdate() {
	s.tx.mu.Lock()
	s.tx.picup = true
	s.tx.mu.Unlock()

	s.coll.KeyframeRequestReceived()

	logrus.WithFields(logrus.Fields{
		"function": "Stream.pictureUpdate",
		"peer":     s.cfg.Peer,
	}).Debug("Keyframe scheduled after peer picture update request")
}

// rateLoop recomputes the effective frame rates at a fixed interval
// until the stream stops.
func (s *Stream) rateLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RateInterval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"function": "Stream.rateLoop",
		"interval": s.cfg.RateInterval,
	}).Debug("Starting rate estimation loop")

	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{
				"function": "Stream.rateLoop",
			}).Debug("Rate estimation loop stopped")
			return

		case <-ticker.C:
			s.updateRates()
		}
	}
}

// updateRates folds the interval frame counters into the per-side fps
// estimates and pushes them to the metrics collector.
func (s *Stream) updateRates() {
	interval := s.cfg.RateInterval.Seconds()

	s.tx.mu.Lock()
	s.tx.efps = float64(s.tx.rateFrames) / interval
	s.tx.rateFrames = 0
	txFPS := s.tx.efps
	s.tx.mu.Unlock()

	s.rx.mu.Lock()
	s.rx.efps = float64(s.rx.rateFrames) / interval
	s.rx.rateFrames = 0
	rxFPS := s.rx.efps
	s.rx.mu.Unlock()

	if s.coll != nil {
		s.coll.SetTxFPS(txFPS)
		s.coll.SetRxFPS(rxFPS)
		rst := s.rs.Stats()
		s.coll.SetPackets(rst.PacketsSent, rst.PacketsReceived)
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.updateRates",
			"peer":     s.cfg.Peer,
			"tx_fps":   txFPS,
			"rx_fps":   rxFPS,
		}).Trace("Frame rates estimated")
	}
}

// Stats returns a snapshot of both sides plus the underlying media
// stream counters.
func (s *Stream) Stats() Stats {
	var st Stats

	s.tx.mu.Lock()
	st.TxFrames = s.tx.frames
	st.TxFPS = s.tx.efps
	if s.tx.codec != nil {
		st.TxCodec = s.tx.codec.Name
	}
	s.tx.mu.Unlock()

	s.rx.mu.Lock()
	st.RxFrames = s.rx.frames
	st.RxFPS = s.rx.efps
	st.DecodeErrors = s.rx.errors
	if s.rx.codec != nil {
		st.RxCodec = s.rx.codec.Name
	}
	s.rx.mu.Unlock()

	st.RTP = s.rs.Stats()
	st.KeyframeRequestsSent = st.RTP.PictureUpdatesSent
	st.KeyframeRequestsReceived = st.RTP.PictureUpdatesReceived
	return st
}

// Debug returns a multi-line dump of both sides for diagnostics.
func (s *Stream) Debug() string {
	var b strings.Builder

	s.mu.Lock()
	uptime := time.Duration(0)
	if s.started {
		uptime = s.time.Since(s.startedAt)
	}
	s.mu.Unlock()
	fmt.Fprintf(&b, "video stream peer=%q uptime=%s\n", s.cfg.Peer, uptime)

	s.tx.mu.Lock()
	txCodec := "none"
	if s.tx.codec != nil {
		txCodec = s.tx.codec.Name
	}
	fmt.Fprintf(&b, " tx: codec=%s pt=%d size=%s fps=%.2f efps=%.2f frames=%d muted=%v\n",
		txCodec, s.tx.pt, s.tx.size, s.tx.fps, s.tx.efps, s.tx.frames, s.tx.muted)
	s.tx.mu.Unlock()

	s.rx.mu.Lock()
	rxCodec := "none"
	if s.rx.codec != nil {
		rxCodec = s.rx.codec.Name
	}
	fmt.Fprintf(&b, " rx: codec=%s pt=%d efps=%.2f frames=%d errors=%d\n",
		rxCodec, s.rx.pt, s.rx.efps, s.rx.frames, s.rx.errors)
	s.rx.mu.Unlock()

	rst := s.rs.Stats()
	s.mu.Lock()
	fmt.Fprintf(&b, " rtp: sent=%d received=%d picup_sent=%d picup_received=%d nack_pli=%v\n",
		rst.PacketsSent, rst.PacketsReceived,
		rst.PictureUpdatesSent, rst.PictureUpdatesReceived, s.nackPLI)
	s.mu.Unlock()

	return b.String()
}

// CalcSeconds converts a 90 kHz RTP timestamp count to seconds.
func CalcSeconds(ts uint64) float64 {
	return float64(ts) / float64(ClockRate)
}
