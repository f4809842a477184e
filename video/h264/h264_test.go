package h264

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/mediacore/video"
)

// mockEngineProvider builds engines from function fields, standing in
// for an external codec library.
type mockEngineProvider struct {
	encodeFn func(frame *video.Frame, keyframe bool) ([]byte, error)
	decodeFn func(data []byte) (*video.Frame, error)

	encodeEngines int
	decodeEngines int
}

type mockEncodeEngine struct {
	fn func(frame *video.Frame, keyframe bool) ([]byte, error)
}

func (e *mockEncodeEngine) Encode(frame *video.Frame, keyframe bool) ([]byte, error) {
	return e.fn(frame, keyframe)
}

type mockDecodeEngine struct {
	fn func(data []byte) (*video.Frame, error)
}

func (e *mockDecodeEngine) Decode(data []byte) (*video.Frame, error) {
	return e.fn(data)
}

func (p *mockEngineProvider) NewEncodeEngine(codec string, cfg video.EncodeConfig) (video.EncodeEngine, error) {
	p.encodeEngines++
	return &mockEncodeEngine{fn: p.encodeFn}, nil
}

func (p *mockEngineProvider) NewDecodeEngine(codec string) (video.DecodeEngine, error) {
	p.decodeEngines++
	return &mockDecodeEngine{fn: p.decodeFn}, nil
}

func TestDecodeNALHeader(t *testing.T) {
	tests := []struct {
		name string
		b    byte
		want NALHeader
	}{
		{
			name: "IDR slice with high importance",
			b:    0x65,
			want: NALHeader{F: false, NRI: 3, Type: NALTypeIDR},
		},
		{
			name: "SPS",
			b:    0x67,
			want: NALHeader{F: false, NRI: 3, Type: NALTypeSPS},
		},
		{
			name: "Forbidden bit set",
			b:    0x80,
			want: NALHeader{F: true, NRI: 0, Type: 0},
		},
		{
			name: "Non-reference slice",
			b:    0x01,
			want: NALHeader{F: false, NRI: 0, Type: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeNALHeader(tt.b)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.b, got.Encode())
		})
	}
}

func TestFUHeader_EncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		b    byte
		want FUHeader
	}{
		{
			name: "Start fragment of IDR",
			b:    0x85,
			want: FUHeader{S: true, Type: NALTypeIDR},
		},
		{
			name: "Middle fragment",
			b:    0x05,
			want: FUHeader{Type: NALTypeIDR},
		},
		{
			name: "End fragment",
			b:    0x45,
			want: FUHeader{E: true, Type: NALTypeIDR},
		},
		{
			name: "Reserved bit",
			b:    0x21,
			want: FUHeader{R: true, Type: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeFUHeader(tt.b)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.b, got.Encode())
		})
	}
}

func TestFindStartCode(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		from int
		want int
	}{
		{
			name: "Three byte prefix at start",
			buf:  []byte{0x00, 0x00, 0x01, 0x67},
			from: 0,
			want: 0,
		},
		{
			name: "Four byte prefix matches on its last three bytes",
			buf:  []byte{0x00, 0x00, 0x00, 0x01, 0x67},
			from: 0,
			want: 1,
		},
		{
			name: "Second code after payload",
			buf:  []byte{0x00, 0x00, 0x01, 0x67, 0xaa, 0x00, 0x00, 0x01, 0x68},
			from: 3,
			want: 5,
		},
		{
			name: "None remaining",
			buf:  []byte{0x67, 0xaa, 0xbb},
			from: 0,
			want: 3,
		},
		{
			name: "Empty buffer",
			buf:  nil,
			from: 0,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findStartCode(tt.buf, tt.from))
		})
	}
}

func TestNewCodec(t *testing.T) {
	p := &mockEngineProvider{
		encodeFn: func(frame *video.Frame, keyframe bool) ([]byte, error) {
			return nil, nil
		},
		decodeFn: func(data []byte) (*video.Frame, error) {
			return nil, nil
		},
	}

	c := NewCodec(p)
	require.NotNil(t, c)

	assert.Equal(t, "H264", c.Name)
	assert.Equal(t, uint8(96), c.PayloadType)
	assert.Equal(t, uint32(video.ClockRate), c.ClockRate)
	assert.Equal(t, "packetization-mode=0", c.Fmtp)
	assert.NotNil(t, c.FmtpCompare)

	enc, err := c.NewEncoder(video.EncodeConfig{}, "")
	require.NoError(t, err)
	assert.NotNil(t, enc)

	dec, err := c.NewDecoder("")
	require.NoError(t, err)
	assert.NotNil(t, dec)
}

func TestNewCodec_RejectedNegotiationSkipsEngine(t *testing.T) {
	p := &mockEngineProvider{}

	c := NewCodec(p)
	enc, err := c.NewEncoder(video.EncodeConfig{}, "packetization-mode=1")

	assert.Nil(t, enc)
	assert.True(t, errors.Is(err, video.ErrNegotiationRejected))
	assert.Zero(t, p.encodeEngines)
}
