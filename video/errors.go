package video

import "errors"

// Sentinel errors for video pipeline operations.
// These errors enable reliable error classification using errors.Is().

// Negotiation and setup errors.
var (
	// ErrInvalidArgument indicates bad call parameters. This is a
	// programming or usage error and is never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCodecUnavailable indicates no matching codec was found.
	ErrCodecUnavailable = errors.New("codec unavailable")

	// ErrUnsupportedFormat indicates a pixel format or negotiation value
	// outside the supported range.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNegotiationRejected indicates an fmtp value violated a hard
	// constraint and negotiation for that codec failed.
	ErrNegotiationRejected = errors.New("negotiation rejected")
)

// Receive-path decode conditions.
var (
	// ErrNotSynchronized indicates the decoder has not yet seen a
	// keyframe. This is an expected transient state during stream
	// startup: the frame is silently dropped and no output is produced.
	ErrNotSynchronized = errors.New("decoder not synchronized")

	// ErrMalformedBitstream indicates a structurally invalid NAL, FU, or
	// payload header. The frame is discarded and a picture-loss request
	// is sent to the peer.
	ErrMalformedBitstream = errors.New("malformed bitstream")
)

// Stream lifecycle errors.
var (
	// ErrStreamClosed indicates the stream has been stopped.
	ErrStreamClosed = errors.New("stream is closed")

	// ErrAlreadyStarted indicates the stream is already running.
	ErrAlreadyStarted = errors.New("stream already started")

	// ErrNoEncoder indicates no payload encoder is currently active.
	ErrNoEncoder = errors.New("no active encoder")

	// ErrNoDecoder indicates no payload decoder is currently active.
	ErrNoDecoder = errors.New("no active decoder")

	// ErrSourceUnavailable indicates the capture source could not be
	// opened.
	ErrSourceUnavailable = errors.New("capture source unavailable")
)
