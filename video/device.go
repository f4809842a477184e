// This file defines the capture and display collaborator contracts. Both
// drivers live outside this package and are consumed as frame-producer
// and frame-consumer callbacks only.

package video

// FrameHandler receives captured frames from a source's own goroutine.
type FrameHandler func(frame *Frame)

// Source is a capture driver delivering frames at a negotiated size and
// rate. Open may be called again after Close when the stream is
// reconfigured.
type Source interface {
	// Open starts capture and delivers frames to h until Close.
	Open(size Size, fps float64, h FrameHandler) error
	// Close stops capture. No frames are delivered after Close returns,
	// a guarantee the stream's teardown order relies on.
	Close() error
}

// Display is a sink rendering decoded frames.
type Display interface {
	// Render shows one decoded frame.
	Render(frame *Frame) error
	// Close releases the display.
	Close() error
}

// FullscreenSetter is implemented by displays that can switch between
// windowed and fullscreen presentation.
type FullscreenSetter interface {
	SetFullscreen(on bool) error
}

// OrientationSetter is implemented by displays that can rotate the
// rendered picture. Orientation is in degrees clockwise.
type OrientationSetter interface {
	SetOrientation(degrees int) error
}
