// Package video implements the media-plane core of a real-time video call.
//
// This package owns one video call leg: a transmit side that turns raw
// captured frames into RTP-carried codec bitstreams, and a receive side
// that reassembles received RTP packets back into decodable pictures. It
// manages the state needed to recover from packet loss and mid-call
// renegotiation: keyframe gating, FIR/PLI feedback, mute-frame
// substitution, payload-type switching, and a filter chain.
//
// # Architecture
//
// The package consists of several integrated pieces:
//
//   - Stream: Owns the transmit and receive state of one call leg
//   - Codec: Immutable per-codec descriptor with negotiation and framing hooks
//   - Registry: Ordered collection of codec descriptors used for SDP offers
//   - FilterChain: Ordered stateful frame filters run on encode and decode
//   - Frame: Planar image buffer exchanged with capture/display collaborators
//
// # Sub-Packages
//
// Payload protocol logic lives in specialized sub-packages:
//
//   - video/h264: RFC 6184-style NAL/FU-A framing and fmtp negotiation
//   - video/h263: RFC 2190 mode A framing with bit-level fragment merging
//   - video/mpeg4: plain fixed-size chunking for MPEG-4 simple profile
//
// # Collaborators
//
// The actual pixel-transforming codec engine, the capture source, and the
// display sink are external collaborators reached through narrow
// interfaces (EngineProvider, Source, Display). This package never
// interprets pixel or transform data itself.
//
// # Stream Usage
//
// Create a stream against a codec registry and an RTP stream, then start
// media flow:
//
//	reg := video.NewRegistry()
//	mediacore.RegisterBuiltins(reg, engines)
//
//	vs, err := video.NewStream(video.DefaultConfig(), reg, rtpStream)
//	if err != nil {
//	    return err
//	}
//	vs.SetSource(captureSource)
//	vs.SetDisplay(displaySink)
//	if err := vs.Start(); err != nil {
//	    return err
//	}
//	defer vs.Stop()
//
// # Negotiation
//
// SDP media attributes are read and written through pion/sdp media
// descriptions:
//
//	vs.SDPOffer(localMedia)   // formats, framerate, rtcp-fb, content
//	vs.SDPAnswer(remoteMedia) // accepted formats, peer framerate, nack pli
//
// # Concurrency
//
// The capture source and the network receive path each deliver callbacks
// from their own goroutine. Each side has its own mutex, held only around
// state reads and mutations, never across an engine call or a network
// send. The transmit and receive sides interact only through the pending
// keyframe flag set by the RTCP feedback handler.
package video
