// Package metrics exposes video stream diagnostics as Prometheus
// gauges on a dedicated registry.
package metrics

import (
	"math"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the stream counters and gauges. All update methods
// are safe on a nil receiver, so an unmetered stream can skip the
// wiring entirely.
type Collector struct {
	// Frame pipeline counters
	FramesSent     atomic.Uint64
	FramesReceived atomic.Uint64
	FramesDropped  atomic.Uint64
	DecodeErrors   atomic.Uint64

	// Picture update signaling
	KeyframeRequestsSent     atomic.Uint64
	KeyframeRequestsReceived atomic.Uint64

	// Wire counters mirrored from the RTP layer
	PacketsSent     atomic.Uint64
	PacketsReceived atomic.Uint64

	// Estimated frame rates, stored as math.Float64bits
	txFPS atomic.Uint64
	rxFPS atomic.Uint64

	registry *prometheus.Registry
}

// New creates a collector with its Prometheus registry populated.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
	}
	c.registerPrometheusMetrics()
	return c
}

// registerPrometheusMetrics registers one gauge per counter, each
// closing over the collector.
func (c *Collector) registerPrometheusMetrics() {
	gauge := func(name, help string, value func() float64) {
		c.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "mediacore",
				Subsystem: "video",
				Name:      name,
				Help:      help,
			},
			value,
		))
	}

	gauge("frames_sent_total", "Total frames encoded and sent",
		func() float64 { return float64(c.FramesSent.Load()) })
	gauge("frames_received_total", "Total frames decoded and displayed",
		func() float64 { return float64(c.FramesReceived.Load()) })
	gauge("frames_dropped_total", "Total frames dropped before encoding",
		func() float64 { return float64(c.FramesDropped.Load()) })
	gauge("decode_errors_total", "Total receive-path decode errors",
		func() float64 { return float64(c.DecodeErrors.Load()) })
	gauge("keyframe_requests_sent_total", "Total picture update requests sent",
		func() float64 { return float64(c.KeyframeRequestsSent.Load()) })
	gauge("keyframe_requests_received_total", "Total picture update requests received",
		func() float64 { return float64(c.KeyframeRequestsReceived.Load()) })
	gauge("packets_sent_total", "Total RTP packets sent",
		func() float64 { return float64(c.PacketsSent.Load()) })
	gauge("packets_received_total", "Total RTP packets received",
		func() float64 { return float64(c.PacketsReceived.Load()) })
	gauge("tx_fps", "Estimated transmit frame rate",
		func() float64 { return math.Float64frombits(c.txFPS.Load()) })
	gauge("rx_fps", "Estimated receive frame rate",
		func() float64 { return math.Float64frombits(c.rxFPS.Load()) })
}

// FrameSent counts one encoded and transmitted frame.
func (c *Collector) FrameSent() {
	if c == nil {
		return
	}
	c.FramesSent.Add(1)
}

// FrameReceived counts one decoded and displayed frame.
func (c *Collector) FrameReceived() {
	if c == nil {
		return
	}
	c.FramesReceived.Add(1)
}

// FrameDropped counts one frame dropped before encoding.
func (c *Collector) FrameDropped() {
	if c == nil {
		return
	}
	c.FramesDropped.Add(1)
}

// DecodeError counts one receive-path decode failure.
func (c *Collector) DecodeError() {
	if c == nil {
		return
	}
	c.DecodeErrors.Add(1)
}

// KeyframeRequestSent counts one outbound picture update request.
func (c *Collector) KeyframeRequestSent() {
	if c == nil {
		return
	}
	c.KeyframeRequestsSent.Add(1)
}

// KeyframeRequestReceived counts one inbound picture update request.
func (c *Collector) KeyframeRequestReceived() {
	if c == nil {
		return
	}
	c.KeyframeRequestsReceived.Add(1)
}

// SetPackets mirrors the RTP layer's packet counters.
func (c *Collector) SetPackets(sent, received uint64) {
	if c == nil {
		return
	}
	c.PacketsSent.Store(sent)
	c.PacketsReceived.Store(received)
}

// SetTxFPS updates the estimated transmit frame rate.
func (c *Collector) SetTxFPS(fps float64) {
	if c == nil {
		return
	}
	c.txFPS.Store(math.Float64bits(fps))
}

// SetRxFPS updates the estimated receive frame rate.
func (c *Collector) SetRxFPS(fps float64) {
	if c == nil {
		return
	}
	c.rxFPS.Store(math.Float64bits(fps))
}

// TxFPS returns the last stored transmit frame rate estimate.
func (c *Collector) TxFPS() float64 {
	if c == nil {
		return 0
	}
	return math.Float64frombits(c.txFPS.Load())
}

// RxFPS returns the last stored receive frame rate estimate.
func (c *Collector) RxFPS() float64 {
	if c == nil {
		return 0
	}
	return math.Float64frombits(c.rxFPS.Load())
}

// Registry returns the collector's Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns the Prometheus scrape handler for the collector's
// registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
