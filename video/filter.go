// This file implements the stream's filter chain: an ordered sequence of
// stateful frame filters, each optionally transforming frames on the
// encode and/or decode path. Traversal order is insertion order and is
// identical for both directions.

package video

import (
	"fmt"
)

// Filter transforms frames in place on the transmit and/or receive path.
// A filter that only acts on one path returns nil from the other hook.
type Filter interface {
	// Name returns the filter name for identification.
	Name() string
	// Encode processes a frame about to be handed to the payload encoder.
	Encode(frame *Frame) error
	// Decode processes a frame just produced by the payload decoder.
	Decode(frame *Frame) error
}

// FilterChain manages multiple filters applied in registration order.
type FilterChain struct {
	filters []Filter
}

// NewFilterChain creates an empty filter chain.
func NewFilterChain() *FilterChain {
	return &FilterChain{
		filters: make([]Filter, 0),
	}
}

// Add appends a filter to the chain.
func (fc *FilterChain) Add(f Filter) {
	fc.filters = append(fc.filters, f)
}

// ApplyEncode runs the frame through every filter's encode hook in
// order. The first failing filter aborts the frame.
func (fc *FilterChain) ApplyEncode(frame *Frame) error {
	if frame == nil {
		return fmt.Errorf("input frame cannot be nil")
	}

	for i, f := range fc.filters {
		if err := f.Encode(frame); err != nil {
			return fmt.Errorf("filter %d (%s) encode failed: %w", i, f.Name(), err)
		}
	}
	return nil
}

// ApplyDecode runs the frame through every filter's decode hook, in the
// same order as ApplyEncode.
func (fc *FilterChain) ApplyDecode(frame *Frame) error {
	if frame == nil {
		return fmt.Errorf("input frame cannot be nil")
	}

	for i, f := range fc.filters {
		if err := f.Decode(frame); err != nil {
			return fmt.Errorf("filter %d (%s) decode failed: %w", i, f.Name(), err)
		}
	}
	return nil
}

// Count returns the number of filters in the chain.
func (fc *FilterChain) Count() int {
	return len(fc.filters)
}

// Clear removes all filters from the chain.
func (fc *FilterChain) Clear() {
	fc.filters = fc.filters[:0]
}

// GrayscaleFilter neutralizes the chroma planes, turning YUV420P frames
// monochrome on both the encode and decode path.
type GrayscaleFilter struct{}

// NewGrayscaleFilter creates a grayscale conversion filter.
func NewGrayscaleFilter() *GrayscaleFilter {
	return &GrayscaleFilter{}
}

// Name returns the filter name.
func (g *GrayscaleFilter) Name() string { return "grayscale" }

// Encode sets the chroma planes to neutral.
func (g *GrayscaleFilter) Encode(frame *Frame) error { return g.apply(frame) }

// Decode sets the chroma planes to neutral.
func (g *GrayscaleFilter) Decode(frame *Frame) error { return g.apply(frame) }

func (g *GrayscaleFilter) apply(frame *Frame) error {
	if frame == nil {
		return fmt.Errorf("input frame cannot be nil")
	}
	if frame.Format != FormatYUV420P {
		return nil
	}
	fillPlane(frame.Planes[1], 128)
	fillPlane(frame.Planes[2], 128)
	return nil
}

// MirrorFilter flips the luma and chroma planes horizontally on the
// encode path only, the usual self-view treatment for front cameras.
type MirrorFilter struct{}

// NewMirrorFilter creates a horizontal mirror filter.
func NewMirrorFilter() *MirrorFilter {
	return &MirrorFilter{}
}

// Name returns the filter name.
func (m *MirrorFilter) Name() string { return "mirror" }

// Encode mirrors the frame in place.
func (m *MirrorFilter) Encode(frame *Frame) error {
	if frame == nil {
		return fmt.Errorf("input frame cannot be nil")
	}
	if frame.Format != FormatYUV420P {
		return nil
	}

	mirrorPlane(frame.Planes[0], frame.Strides[0], int(frame.Size.Width), int(frame.Size.Height))
	cw := (int(frame.Size.Width) + 1) / 2
	ch := (int(frame.Size.Height) + 1) / 2
	mirrorPlane(frame.Planes[1], frame.Strides[1], cw, ch)
	mirrorPlane(frame.Planes[2], frame.Strides[2], cw, ch)
	return nil
}

// Decode leaves received frames untouched.
func (m *MirrorFilter) Decode(frame *Frame) error { return nil }

func mirrorPlane(p []byte, stride, width, height int) {
	for y := 0; y < height; y++ {
		row := p[y*stride : y*stride+width]
		for i, j := 0, width-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
}
