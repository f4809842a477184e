package h264

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/mediacore/video"
)

// sentPacket records one PacketFunc invocation.
type sentPacket struct {
	last    bool
	hdr     []byte
	payload []byte
}

// collectPackets returns a PacketFunc appending to the given slice.
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

// bitstreamEncoder builds an encoder whose engine returns the given
// Annex-B bitstream for every frame.
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

func testFrame(t *testing.T) *video.Frame {
	t.Helper()
	f, err := video.NewFrame(video.FormatYUV420P, video.Size{Width: 16, Height: 16})
	require.NoError(t, err)
	return f
}

func TestEncoder_SingleNALPerPacket(t *testing.T) {
	bitstream := []byte{
		0x00, 0x00, 0x01, 0x67, 0xaa, 0xbb,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xcc,
		0x00, 0x00, 0x01, 0x65, 0x01, 0x02, 0x03,
	}
	enc := bitstreamEncoder(t, bitstream, 1024)

	var packets []sentPacket
	err := enc.Encode(false, testFrame(t), collectPackets(&packets))
	require.NoError(t, err)

	require.Len(t, packets, 3)

	// The leading zero of the following four-byte start code rides
	// along as a trailing byte, as in the reference packetizers.
	assert.Equal(t, []byte{0x67}, packets[0].hdr)
	assert.Equal(t, []byte{0xaa, 0xbb, 0x00}, packets[0].payload)
	assert.False(t, packets[0].last)

	assert.Equal(t, []byte{0x68}, packets[1].hdr)
	assert.Equal(t, []byte{0xcc}, packets[1].payload)
	assert.False(t, packets[1].last)

	assert.Equal(t, []byte{0x65}, packets[2].hdr)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, packets[2].payload)
	assert.True(t, packets[2].last)
}

func TestEncoder_FragmentsLargeNAL(t *testing.T) {
	// One 5-byte NAL unit with pktSize 4 forces FU-A fragmentation
	// into 2-byte chunks.
	bitstream := []byte{0x00, 0x00, 0x01, 0x65, 0x01, 0x02, 0x03, 0x04, 0x05}
	enc := bitstreamEncoder(t, bitstream, 4)

	var packets []sentPacket
	err := enc.Encode(false, testFrame(t), collectPackets(&packets))
	require.NoError(t, err)

	require.Len(t, packets, 3)

	fuInd := byte(0x65&0xe0 | NALTypeFUA)
	assert.Equal(t, []byte{fuInd, 0x85}, packets[0].hdr)
	assert.Equal(t, []byte{0x01, 0x02}, packets[0].payload)
	assert.False(t, packets[0].last)

	assert.Equal(t, []byte{fuInd, 0x05}, packets[1].hdr)
	assert.Equal(t, []byte{0x03, 0x04}, packets[1].payload)
	assert.False(t, packets[1].last)

	assert.Equal(t, []byte{fuInd, 0x45}, packets[2].hdr)
	assert.Equal(t, []byte{0x05}, packets[2].payload)
	assert.True(t, packets[2].last)
}

func TestEncoder_EmptyBitstream(t *testing.T) {
	enc := bitstreamEncoder(t, nil, 1024)

	var packets []sentPacket
	err := enc.Encode(false, testFrame(t), collectPackets(&packets))
	assert.NoError(t, err)
	assert.Empty(t, packets)
}

func TestEncoder_PropagatesPacketError(t *testing.T) {
	bitstream := []byte{0x00, 0x00, 0x01, 0x67, 0xaa}
	enc := bitstreamEncoder(t, bitstream, 1024)

	sentinel := errors.New("transport full")
	err := enc.Encode(false, testFrame(t), func(last bool, hdr, payload []byte) error {
		return sentinel
	})
	assert.True(t, errors.Is(err, sentinel))
}

func TestEncoder_KeyframeReachesEngine(t *testing.T) {
	var gotKeyframe bool
	p := &mockEngineProvider{
		encodeFn: func(frame *video.Frame, keyframe bool) ([]byte, error) {
			gotKeyframe = keyframe
			return nil, nil
		},
	}
	enc, err := newEncoder(p, video.EncodeConfig{}, "")
	require.NoError(t, err)

	require.NoError(t, enc.Encode(true, testFrame(t), collectPackets(&[]sentPacket{})))
	assert.True(t, gotKeyframe)

	require.NoError(t, enc.Encode(false, testFrame(t), collectPackets(&[]sentPacket{})))
	assert.False(t, gotKeyframe)
}

func TestEncoder_InvalidArguments(t *testing.T) {
	enc := bitstreamEncoder(t, nil, 1024)

	err := enc.Encode(false, nil, collectPackets(&[]sentPacket{}))
	assert.True(t, errors.Is(err, video.ErrInvalidArgument))

	err = enc.Encode(false, testFrame(t), nil)
	assert.True(t, errors.Is(err, video.ErrInvalidArgument))
}

func TestEncoder_RoundTripThroughDecoder(t *testing.T) {
	// Packetizing an Annex-B picture and feeding every packet to the
	// depacketizer reproduces the picture with normalized three-byte
	// start codes.
	nalPayload := make([]byte, 600)
	for i := range nalPayload {
		nalPayload[i] = byte(i)
	}
	bitstream := []byte{0x00, 0x00, 0x01, 0x67, 0x42, 0x80, 0x1f}
	bitstream = append(bitstream, 0x00, 0x00, 0x00, 0x01, 0x65)
	bitstream = append(bitstream, nalPayload...)

	enc := bitstreamEncoder(t, bitstream, 256)

	var packets []sentPacket
	require.NoError(t, enc.Encode(false, testFrame(t), collectPackets(&packets)))
	require.Greater(t, len(packets), 2)

	dec, pictures := captureDecoder(t)
	var frame video.Frame
	for i, p := range packets {
		payload := append(append([]byte{}, p.hdr...), p.payload...)
		require.NoError(t, dec.Decode(&frame, p.last, uint16(i), payload))
	}

	// The SPS keeps the leading zero of the original four-byte start
	// code as a trailing byte; the codes themselves are normalized to
	// three bytes.
	want := []byte{0x00, 0x00, 0x01, 0x67, 0x42, 0x80, 0x1f, 0x00}
	want = append(want, 0x00, 0x00, 0x01, 0x65)
	want = append(want, nalPayload...)

	require.Len(t, *pictures, 1)
	assert.Equal(t, want, (*pictures)[0])
}
