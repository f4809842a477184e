// This file implements the planar image type shared across the pipeline:
// up to four plane pointers with per-plane strides, a pixel-format tag,
// and conversion from the RGB capture formats into the canonical planar
// YUV 4:2:0 layout used internally.

package video

import (
	"fmt"
)

// PixelFormat identifies the memory layout of a Frame.
type PixelFormat int

// Supported pixel formats. YUV420P is the canonical internal format;
// the RGB formats are accepted from capture sources and converted.
const (
	FormatUnknown PixelFormat = iota
	FormatYUV420P             // planar Y, U, V with 2x2 chroma subsampling
	FormatRGB32               // packed 4 bytes per pixel, B G R A byte order
	FormatRGB565              // packed 2 bytes per pixel, little-endian
	FormatRGB555              // packed 2 bytes per pixel, little-endian
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatYUV420P:
		return "yuv420p"
	case FormatRGB32:
		return "rgb32"
	case FormatRGB565:
		return "rgb565"
	case FormatRGB555:
		return "rgb555"
	default:
		return "unknown"
	}
}

// Size holds picture dimensions in pixels.
type Size struct {
	Width  uint32
	Height uint32
}

// String returns the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Frame is a planar video frame with up to four planes.
//
// For FormatYUV420P, plane 0 is luma at full resolution and planes 1 and
// 2 are chroma at half resolution in both dimensions. The packed RGB
// formats use plane 0 only.
type Frame struct {
	Format  PixelFormat // Pixel layout of the planes
	Size    Size        // Picture dimensions
	Planes  [4][]byte   // Plane data, unused planes are nil
	Strides [4]int      // Bytes per row for each plane
}

// NewFrame allocates a frame with planes sized for the given format.
//
// Parameters:
//   - format: Pixel layout to allocate
//   - size: Picture dimensions in pixels
//
// Returns:
//   - *Frame: Newly allocated frame
//   - error: ErrUnsupportedFormat for formats this pipeline cannot hold
func NewFrame(format PixelFormat, size Size) (*Frame, error) {
	if size.Width == 0 || size.Height == 0 {
		return nil, fmt.Errorf("frame size %s: %w", size, ErrInvalidArgument)
	}

	f := &Frame{
		Format: format,
		Size:   size,
	}

	w := int(size.Width)
	h := int(size.Height)
	cw := (w + 1) / 2
	ch := (h + 1) / 2

	switch format {
	case FormatYUV420P:
		f.Planes[0] = make([]byte, w*h)
		f.Planes[1] = make([]byte, cw*ch)
		f.Planes[2] = make([]byte, cw*ch)
		f.Strides[0] = w
		f.Strides[1] = cw
		f.Strides[2] = cw

	case FormatRGB32:
		f.Planes[0] = make([]byte, w*h*4)
		f.Strides[0] = w * 4

	case FormatRGB565, FormatRGB555:
		f.Planes[0] = make([]byte, w*h*2)
		f.Strides[0] = w * 2

	default:
		return nil, fmt.Errorf("pixel format %v: %w", format, ErrUnsupportedFormat)
	}

	return f, nil
}

// Valid reports whether the frame carries pixel data.
func (f *Frame) Valid() bool {
	return f != nil && f.Planes[0] != nil && f.Size.Width > 0 && f.Size.Height > 0
}

// Clear drops the plane references, marking the frame invalid.
func (f *Frame) Clear() {
	f.Format = FormatUnknown
	f.Size = Size{}
	f.Planes = [4][]byte{}
	f.Strides = [4]int{}
}

// Fill sets every luma sample to y and every chroma sample to u and v.
// Only meaningful for FormatYUV420P frames; other formats are left
// untouched.
func (f *Frame) Fill(y, u, v byte) {
	if f.Format != FormatYUV420P {
		return
	}
	fillPlane(f.Planes[0], y)
	fillPlane(f.Planes[1], u)
	fillPlane(f.Planes[2], v)
}

func fillPlane(p []byte, v byte) {
	for i := range p {
		p[i] = v
	}
}

// Clone creates a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		Format:  f.Format,
		Size:    f.Size,
		Strides: f.Strides,
	}
	for i, p := range f.Planes {
		if p != nil {
			c.Planes[i] = append([]byte(nil), p...)
		}
	}
	return c
}

// ConvertToYUV420P converts src into dst, which must be a YUV420P frame
// of the same dimensions. YUV420P input is copied; RGB32, RGB565 and
// RGB555 input is converted with BT.601 coefficients, averaging each
// 2x2 block for the chroma planes.
//
// Returns:
//   - error: ErrUnsupportedFormat for source formats without a converter
func ConvertToYUV420P(dst, src *Frame) error {
	if dst == nil || src == nil {
		return fmt.Errorf("convert: %w", ErrInvalidArgument)
	}
	if dst.Format != FormatYUV420P || dst.Size != src.Size {
		return fmt.Errorf("convert into %v %s: %w", dst.Format, dst.Size, ErrInvalidArgument)
	}

	switch src.Format {
	case FormatYUV420P:
		copyPlanes(dst, src)
		return nil
	case FormatRGB32, FormatRGB565, FormatRGB555:
		return convertRGB(dst, src)
	default:
		return fmt.Errorf("pixel format %v: %w", src.Format, ErrUnsupportedFormat)
	}
}

func copyPlanes(dst, src *Frame) {
	h := int(src.Size.Height)
	ch := (h + 1) / 2
	copyPlane(dst.Planes[0], dst.Strides[0], src.Planes[0], src.Strides[0], int(src.Size.Width), h)
	copyPlane(dst.Planes[1], dst.Strides[1], src.Planes[1], src.Strides[1], (int(src.Size.Width)+1)/2, ch)
	copyPlane(dst.Planes[2], dst.Strides[2], src.Planes[2], src.Strides[2], (int(src.Size.Width)+1)/2, ch)
}

func copyPlane(dst []byte, dstStride int, src []byte, srcStride, width, height int) {
	for row := 0; row < height; row++ {
		copy(dst[row*dstStride:row*dstStride+width], src[row*srcStride:row*srcStride+width])
	}
}

// rgbAt reads one pixel of a packed RGB frame as 8-bit R, G, B.
func rgbAt(f *Frame, x, y int) (r, g, b int) {
	switch f.Format {
	case FormatRGB32:
		off := y*f.Strides[0] + x*4
		p := f.Planes[0]
		return int(p[off+2]), int(p[off+1]), int(p[off])
	case FormatRGB565:
		off := y*f.Strides[0] + x*2
		v := uint16(f.Planes[0][off]) | uint16(f.Planes[0][off+1])<<8
		return int(v>>11&0x1f) << 3, int(v>>5&0x3f) << 2, int(v&0x1f) << 3
	case FormatRGB555:
		off := y*f.Strides[0] + x*2
		v := uint16(f.Planes[0][off]) | uint16(f.Planes[0][off+1])<<8
		return int(v>>10&0x1f) << 3, int(v>>5&0x1f) << 3, int(v&0x1f) << 3
	}
	return 0, 0, 0
}

func convertRGB(dst, src *Frame) error {
	w := int(src.Size.Width)
	h := int(src.Size.Height)

	for y := 0; y < h; y++ {
		row := dst.Planes[0][y*dst.Strides[0]:]
		for x := 0; x < w; x++ {
			r, g, b := rgbAt(src, x, y)
			row[x] = clampByte((77*r + 150*g + 29*b) >> 8)
		}
	}

	cw := (w + 1) / 2
	ch := (h + 1) / 2
	for cy := 0; cy < ch; cy++ {
		uRow := dst.Planes[1][cy*dst.Strides[1]:]
		vRow := dst.Planes[2][cy*dst.Strides[2]:]
		for cx := 0; cx < cw; cx++ {
			var sr, sg, sb, n int
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					px := cx*2 + dx
					py := cy*2 + dy
					if px >= w || py >= h {
						continue
					}
					r, g, b := rgbAt(src, px, py)
					sr += r
					sg += g
					sb += b
					n++
				}
			}
			r := sr / n
			g := sg / n
			b := sb / n
			uRow[cx] = clampByte(((-43*r - 85*g + 128*b) >> 8) + 128)
			vRow[cx] = clampByte(((128*r - 107*g - 21*b) >> 8) + 128)
		}
	}
	return nil
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
