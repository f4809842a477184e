package mpeg4

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
	return &mockEncodeEngine{fn: p.encodeFn}, nil
}

func (p *mockEngineProvider) NewDecodeEngine(codec string) (video.DecodeEngine, error) {
	return &mockDecodeEngine{fn: p.decodeFn}, nil
}

// sentPacket records one PacketFunc invocation.
type sentPacket struct {
	last    bool
	hdr     []byte
	payload []byte
}

func collectPackets(packets *[]sentPacket) video.PacketFunc {
	return func(last bool, hdr, payload []byte) error {
		h := make([]byte, len(hdr))
		copy(h, hdr)
		p := make([]byte, len(payload))
		copy(p, payload)
		*packets = append(*packets, sentPacket{last: last, hdr: h, payload: p})
		return nil
	}
}

func bitstreamEncoder(t *testing.T, bitstream []byte, pktSize uint32) video.Encoder {
	t.Helper()

	p := &mockEngineProvider{
		encodeFn: func(frame *video.Frame, keyframe bool) ([]byte, error) {
			return bitstream, nil
		},
	}
	enc, err := newEncoder(p, video.EncodeConfig{PktSize: pktSize}, "")
	require.NoError(t, err)
	return enc
}

func captureDecoder(t *testing.T) (video.Decoder, *[][]byte) {
	t.Helper()

	var pictures [][]byte
	p := &mockEngineProvider{
		decodeFn: func(data []byte) (*video.Frame, error) {
			buf := make([]byte, len(data))
			copy(buf, data)
			pictures = append(pictures, buf)

			f, err := video.NewFrame(video.FormatYUV420P, video.Size{Width: 16, Height: 16})
			require.NoError(t, err)
			return f, nil
		},
	}

	dec, err := newDecoder(p, "")
	require.NoError(t, err)
	return dec, &pictures
}

func testFrame(t *testing.T) *video.Frame {
	t.Helper()
	f, err := video.NewFrame(video.FormatYUV420P, video.Size{Width: 16, Height: 16})
	require.NoError(t, err)
	return f
}

func TestNewCodec(t *testing.T) {
	p := &mockEngineProvider{}
	c := NewCodec(p)

	assert.Equal(t, "MP4V-ES", c.Name)
	assert.Equal(t, uint8(97), c.PayloadType)
	assert.Equal(t, uint32(video.ClockRate), c.ClockRate)
	assert.Equal(t, "profile-level-id=3", c.Fmtp)
	assert.Nil(t, c.FmtpCompare)

	enc, err := c.NewEncoder(video.EncodeConfig{}, "profile-level-id=3")
	require.NoError(t, err)
	assert.NotNil(t, enc)

	dec, err := c.NewDecoder("")
	require.NoError(t, err)
	assert.NotNil(t, dec)
}

func TestDecodeFmtp(t *testing.T) {
	tests := []struct {
		name string
		fmtp string
		want Params
	}{
		{
			name: "Profile and config",
			fmtp: "profile-level-id=3;config=000001b001",
			want: Params{ProfileLevelID: 3, Config: "000001b001"},
		},
		{
			name: "Uppercase name",
			fmtp: "Profile-Level-ID=8",
			want: Params{ProfileLevelID: 8},
		},
		{
			name: "Unknown attributes ignored",
			fmtp: "foo=1;profile-level-id=3;bar=2",
			want: Params{ProfileLevelID: 3},
		},
		{
			name: "Non-numeric profile",
			fmtp: "profile-level-id=high",
			want: Params{},
		},
		{
			name: "Pair without value ignored",
			fmtp: "config;profile-level-id=3",
			want: Params{ProfileLevelID: 3},
		},
		{
			name: "Empty",
			fmtp: "",
			want: Params{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Params
			DecodeFmtp(&p, tt.fmtp)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestDecodeFmtp_NilParams(t *testing.T) {
	assert.NotPanics(t, func() {
		DecodeFmtp(nil, "profile-level-id=3")
	})
}

func TestEncoder_ChunksWithoutHeader(t *testing.T) {
	bitstream := []byte{0x00, 0x00, 0x01, 0xb6, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60}
	enc := bitstreamEncoder(t, bitstream, 4)

	var packets []sentPacket
	err := enc.Encode(false, testFrame(t), collectPackets(&packets))
	require.NoError(t, err)

	require.Len(t, packets, 3)
	assert.Equal(t, bitstream[0:4], packets[0].payload)
	assert.Equal(t, bitstream[4:8], packets[1].payload)
	assert.Equal(t, bitstream[8:10], packets[2].payload)

	for i, p := range packets {
		assert.Empty(t, p.hdr)
		assert.Equal(t, i == len(packets)-1, p.last)
	}
}

func TestEncoder_MarkerOnExactMultiple(t *testing.T) {
	bitstream := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	enc := bitstreamEncoder(t, bitstream, 4)

	var packets []sentPacket
	err := enc.Encode(false, testFrame(t), collectPackets(&packets))
	require.NoError(t, err)

	require.Len(t, packets, 2)
	assert.False(t, packets[0].last)
	assert.True(t, packets[1].last)
	assert.Len(t, packets[1].payload, 4)
}

func TestEncoder_EmptyBitstream(t *testing.T) {
	enc := bitstreamEncoder(t, nil, 1024)

	var packets []sentPacket
	err := enc.Encode(false, testFrame(t), collectPackets(&packets))
	require.NoError(t, err)
	assert.Empty(t, packets)
}

func TestEncoder_EngineError(t *testing.T) {
	engineErr := errors.New("rate control stalled")
	p := &mockEngineProvider{
		encodeFn: func(frame *video.Frame, keyframe bool) ([]byte, error) {
			return nil, engineErr
		},
	}
	enc, err := newEncoder(p, video.EncodeConfig{}, "")
	require.NoError(t, err)

	err = enc.Encode(false, testFrame(t), collectPackets(&[]sentPacket{}))
	assert.True(t, errors.Is(err, engineErr))
}

func TestEncoder_PropagatesPacketError(t *testing.T) {
	enc := bitstreamEncoder(t, []byte{0x01, 0x02}, 1024)

	sendErr := errors.New("socket gone")
	err := enc.Encode(false, testFrame(t), func(last bool, hdr, payload []byte) error {
		return sendErr
	})
	assert.True(t, errors.Is(err, sendErr))
}

func TestEncoder_InvalidArguments(t *testing.T) {
	enc := bitstreamEncoder(t, []byte{0x01}, 1024)

	err := enc.Encode(false, nil, collectPackets(&[]sentPacket{}))
	assert.ErrorIs(t, err, video.ErrInvalidArgument)

	err = enc.Encode(false, testFrame(t), nil)
	assert.ErrorIs(t, err, video.ErrInvalidArgument)
}

func TestDecoder_NoKeyframeGate(t *testing.T) {
	dec, pictures := captureDecoder(t)

	// Unlike the H.263 and H.264 depacketizers there is no keyframe
	// gate; the first complete picture goes straight to the engine.
	var frame video.Frame
	err := dec.Decode(&frame, true, 1, []byte{0x10, 0x20, 0x30})
	require.NoError(t, err)

	require.Len(t, *pictures, 1)
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, (*pictures)[0])
	assert.True(t, frame.Valid())
}

func TestDecoder_ConcatenatesFragments(t *testing.T) {
	dec, pictures := captureDecoder(t)

	var frame video.Frame
	require.NoError(t, dec.Decode(&frame, false, 1, []byte{0x01, 0x02}))
	require.NoError(t, dec.Decode(&frame, false, 2, []byte{0x03}))
	assert.Empty(t, *pictures)

	require.NoError(t, dec.Decode(&frame, true, 3, []byte{0x04, 0x05}))
	require.Len(t, *pictures, 1)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05}, (*pictures)[0])
}

func TestDecoder_NilFrame(t *testing.T) {
	dec, _ := captureDecoder(t)

	err := dec.Decode(nil, true, 1, []byte{0x01})
	assert.ErrorIs(t, err, video.ErrInvalidArgument)
}

func TestDecoder_EngineErrorResetsBuffer(t *testing.T) {
	engineErr := errors.New("corrupt picture")

	var pictures [][]byte
	fail := true
	p := &mockEngineProvider{
		decodeFn: func(data []byte) (*video.Frame, error) {
			if fail {
				fail = false
				return nil, engineErr
			}
			buf := make([]byte, len(data))
			copy(buf, data)
			pictures = append(pictures, buf)
			return nil, nil
		},
	}

	dec, err := newDecoder(p, "")
	require.NoError(t, err)

	var frame video.Frame
	err = dec.Decode(&frame, true, 1, []byte{0x01, 0x02})
	assert.True(t, errors.Is(err, engineErr))

	require.NoError(t, dec.Decode(&frame, true, 2, []byte{0x03}))
	require.Len(t, pictures, 1)
	assert.Equal(t, []byte{0x03}, pictures[0])
}

func TestEncoder_RoundTripThroughDecoder(t *testing.T) {
	bitstream := make([]byte, 100)
	for i := range bitstream {
		bitstream[i] = byte(i)
	}
	enc := bitstreamEncoder(t, bitstream, 33)

	var packets []sentPacket
	err := enc.Encode(false, testFrame(t), collectPackets(&packets))
	require.NoError(t, err)
	require.Len(t, packets, 4)

	dec, pictures := captureDecoder(t)

	var frame video.Frame
	for i, p := range packets {
		require.NoError(t, dec.Decode(&frame, p.last, uint16(i), p.payload))
	}

	require.Len(t, *pictures, 1)
	assert.Equal(t, bitstream, (*pictures)[0])
	assert.True(t, frame.Valid())
}
