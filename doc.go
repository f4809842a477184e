// Package mediacore implements the media plane of a real-time video call.
//
// The module turns raw captured video frames into RTP-carried,
// codec-specific bitstreams on transmit, and reassembles received RTP
// packets back into decodable pictures on receive, while managing the
// state needed to recover from packet loss and mid-call renegotiation.
// The actual pixel-transforming codec engine, the capture source, and
// the display sink stay outside as collaborators behind narrow
// interfaces; this module owns the payload framing, ordering, keyframe
// gating and feedback policy between them.
//
// # Getting Started
//
// Create a media stream over a transport, register the built-in payload
// codecs, and start a video stream on top:
//
//	transport, err := rtp.NewUDPTransport("0.0.0.0:5004", "203.0.113.9:5004")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rs, err := rtp.NewStream(transport, rtp.StreamConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reg := video.NewRegistry()
//	if err := mediacore.RegisterBuiltins(reg, engine); err != nil {
//	    log.Fatal(err)
//	}
//
//	vs, err := video.NewStream(video.DefaultConfig(), reg, rs,
//	    video.WithSource(camera),
//	    video.WithDisplay(window),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer vs.Stop()
//
//	if err := vs.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// The engine value implements video.EngineProvider and wraps whatever
// codec library the application links. Frames then flow without further
// calls: the capture source drives the transmit path and inbound
// packets drive the receive path.
//
// # Negotiation
//
// Stream parameters travel in SDP. The offer side writes one format
// line per registered codec; the answer side applies what the peer
// accepted:
//
//	var offer sdp.MediaDescription
//	if err := vs.SDPOffer(&offer); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... signaling exchange ...
//
//	if err := vs.SDPAnswer(answer); err != nil {
//	    log.Fatal(err)
//	}
//
// # Packages
//
// The module is organized as a small set of focused packages:
//
//   - [video]: The stream pipeline, frame model, filters and codec registry
//   - [video/h264]: RFC 6184-style NAL and FU-A payload framing
//   - [video/h263]: RFC 2190 mode A framing with bit-level fragment merging
//   - [video/mpeg4]: Plain chunked framing for MPEG-4 simple profile
//   - [rtp]: Generic RTP/RTCP stream, packet ordering and transports
//   - [metrics]: Prometheus-backed counters for stream activity
//
// # Loss Recovery
//
// Receive-side decode failures never tear a call down. The stream asks
// the peer for a fresh keyframe through RTCP feedback, as a Picture
// Loss Indication when the peer negotiated "nack pli" and as a Full
// Intra Request otherwise. Inbound requests of either kind set a flag
// consumed by the next encoded frame:
//
//	vs.RequestKeyframe() // local equivalent, e.g. after a UI refresh
//
// # Deterministic Testing
//
// Time-dependent components accept injectable time providers, following
// the same pattern across packages:
//
//	vs, _ := video.NewStream(cfg, reg, rs,
//	    video.WithTimeProvider(mockTime))
//
// Tests can also wire two streams back to back over rtp.NewPipe without
// touching the network.
package mediacore
