package video

import (
	"errors"
	"testing"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/mediacore/metrics"
)

// markerDecoder completes a 16x16 frame on every marker packet.
func markerDecoder(fc *fakeCodec) {
	fc.decodeFn = func(dst *Frame, marker bool, seq uint16, payload []byte) error {
		if !marker {
			return nil
		}
		f, err := NewFrame(FormatYUV420P, Size{Width: 16, Height: 16})
		if err != nil {
			return err
		}
		*dst = *f
		return nil
	}
}

func TestSetDecoder(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc))

	require.NoError(t, s.SetDecoder(fc.Codec, 96, "sprop-parameter-sets=Z0LAHtkA"))
	assert.Equal(t, 1, fc.decoders)
	assert.Equal(t, "sprop-parameter-sets=Z0LAHtkA", fc.decFmtp)
	assert.Equal(t, uint8(96), s.rx.pt)
	assert.True(t, s.rx.hasPT)

	assert.ErrorIs(t, s.SetDecoder(nil, 96, ""), ErrInvalidArgument)
}

func TestSetDecoder_ConstructorFailure(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	fc.newDecErr = errors.New("no engine")
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc))

	err := s.SetDecoder(fc.Codec, 96, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "H264")
	assert.Nil(t, s.rx.dec)
}

func TestReceivePacket_DecodesAndRenders(t *testing.T) {
	coll := metrics.New()
	fc := newFakeCodec("H264", 96)
	markerDecoder(fc)
	disp := &mockDisplay{}
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc),
		WithDisplay(disp), WithMetrics(coll))
	require.NoError(t, s.SetDecoder(fc.Codec, 96, ""))

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, false, 96, 3000, []byte{0x01})))
	assert.Equal(t, 0, disp.rendered)

	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 3000, []byte{0x02})))
	assert.Equal(t, 1, disp.rendered)
	assert.Equal(t, Size{Width: 16, Height: 16}, disp.lastSize)
	assert.Equal(t, [][]byte{{0x01}, {0x02}}, fc.payloads)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.RxFrames)
	assert.Equal(t, uint64(2), st.RTP.PacketsReceived)
	assert.Equal(t, uint64(1), coll.FramesReceived.Load())
}

func TestReceivePacket_DecodeErrorRequestsFIR(t *testing.T) {
	coll := metrics.New()
	fc := newFakeCodec("H264", 96)
	fc.decodeFn = func(*Frame, bool, uint16, []byte) error {
		return errors.New("corrupt slice data")
	}
	s, mt := newTestStream(t, Config{}, newTestRegistry(t, fc), WithMetrics(coll))
	require.NoError(t, s.SetDecoder(fc.Codec, 96, ""))

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 3000, []byte{0xde, 0xad})))

	require.Equal(t, 1, mt.rtcpCount())
	pkts, err := rtcp.Unmarshal(mt.lastRTCP())
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	fir, ok := pkts[0].(*rtcp.FullIntraRequest)
	require.True(t, ok)
	assert.Equal(t, snd.rs.SSRC(), fir.MediaSSRC)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.DecodeErrors)
	assert.Equal(t, uint64(1), st.KeyframeRequestsSent)
	assert.Equal(t, uint64(1), coll.DecodeErrors.Load())
	assert.Equal(t, uint64(1), coll.KeyframeRequestsSent.Load())
}

func TestReceivePacket_DecodeErrorRequestsPLI(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	fc.decodeFn = func(*Frame, bool, uint16, []byte) error {
		return errors.New("corrupt slice data")
	}
	s, mt := newTestStream(t, Config{}, newTestRegistry(t, fc))
	require.NoError(t, s.SetDecoder(fc.Codec, 96, ""))
	s.mu.Lock()
	s.nackPLI = true
	s.mu.Unlock()

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 3000, []byte{0xde})))

	require.Equal(t, 1, mt.rtcpCount())
	pkts, err := rtcp.Unmarshal(mt.lastRTCP())
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	assert.IsType(t, &rtcp.PictureLossIndication{}, pkts[0])
}

func TestReceivePacket_NotSynchronizedIsSilent(t *testing.T) {
	coll := metrics.New()
	fc := newFakeCodec("H264", 96)
	fc.decodeFn = func(*Frame, bool, uint16, []byte) error {
		return ErrNotSynchronized
	}
	disp := &mockDisplay{}
	s, mt := newTestStream(t, Config{}, newTestRegistry(t, fc),
		WithDisplay(disp), WithMetrics(coll))
	require.NoError(t, s.SetDecoder(fc.Codec, 96, ""))

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 3000, []byte{0x01})))

	// Waiting for a keyframe is not an error and asks nothing of the
	// peer.
	assert.Equal(t, 0, mt.rtcpCount())
	assert.Equal(t, uint64(0), s.Stats().DecodeErrors)
	assert.Equal(t, uint64(0), coll.DecodeErrors.Load())
	assert.Equal(t, 0, disp.rendered)
}

func TestReceivePacket_UnnegotiatedPayloadType(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc))
	require.NoError(t, s.SetDecoder(fc.Codec, 96, ""))

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 111, 3000, []byte{0x01})))
	assert.Empty(t, fc.payloads)
}

func TestReceivePacket_SwitchesPayloadType(t *testing.T) {
	a := newFakeCodec("H264", 96)
	b := newFakeCodec("H263", 34)
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, a, b))
	require.NoError(t, s.SetDecoder(a.Codec, 96, ""))

	s.mu.Lock()
	s.negotiated = []remoteFormat{
		{pt: 96, codec: a.Codec},
		{pt: 34, codec: b.Codec, fmtp: "CIF=1"},
	}
	s.mu.Unlock()

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 34, 3000, []byte{0x01})))
	assert.Equal(t, 1, b.decoders)
	assert.Equal(t, "CIF=1", b.decFmtp)
	assert.Equal(t, [][]byte{{0x01}}, b.payloads)
	assert.Equal(t, uint8(34), s.rx.pt)

	// Switching back reuses the same table.
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 6000, []byte{0x02})))
	assert.Equal(t, 2, a.decoders)
	assert.Equal(t, [][]byte{{0x02}}, a.payloads)
}

func TestReceivePacket_NoDecoder(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc))

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 3000, []byte{0x01})))
	assert.Empty(t, fc.payloads)

	assert.NotPanics(t, func() { s.receivePacket(nil) })
}

func TestReceivePacket_EmptyPayloadDropped(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc))
	require.NoError(t, s.SetDecoder(fc.Codec, 96, ""))

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 3000, nil)))
	assert.Empty(t, fc.payloads)
}

func TestReceivePacket_FilterAbortsFrame(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	markerDecoder(fc)
	disp := &mockDisplay{}
	var log []string
	reject := &recordFilter{name: "privacy", log: &log, decodeErr: errors.New("blocked")}
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc),
		WithDisplay(disp), WithFilters(reject))
	require.NoError(t, s.SetDecoder(fc.Codec, 96, ""))

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 3000, []byte{0x01})))
	assert.Equal(t, 0, disp.rendered)
	assert.Equal(t, uint64(0), s.Stats().RxFrames)
}

func TestReceivePacket_RenderFailure(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	markerDecoder(fc)
	disp := &mockDisplay{renderErr: errors.New("window gone")}
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc), WithDisplay(disp))
	require.NoError(t, s.SetDecoder(fc.Codec, 96, ""))

	snd := newTestSender(t)
	require.NoError(t, s.rs.HandleRTP(snd.packet(t, true, 96, 3000, []byte{0x01})))
	assert.Equal(t, uint64(0), s.Stats().RxFrames)
}

func TestSetDisplay(t *testing.T) {
	old := &mockDisplay{}
	fc := newFakeCodec("H264", 96)
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc), WithDisplay(old))

	nd := &fullscreenDisplay{}
	s.SetDisplay(nd)
	assert.Equal(t, 1, old.closed)
	assert.Empty(t, nd.fullscreen)
}

func TestSetDisplay_ReappliesFullscreen(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	s, _ := newTestStream(t, Config{Fullscreen: true}, newTestRegistry(t, fc))

	d := &fullscreenDisplay{}
	s.SetDisplay(d)
	assert.Equal(t, []bool{true}, d.fullscreen)
}

func TestSetFullscreen(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	d := &fullscreenDisplay{}
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc), WithDisplay(d))

	require.NoError(t, s.SetFullscreen(true))
	assert.Equal(t, []bool{true}, d.fullscreen)
	assert.True(t, s.rx.fullscreen)

	require.NoError(t, s.SetFullscreen(false))
	assert.Equal(t, []bool{true, false}, d.fullscreen)
	assert.False(t, s.rx.fullscreen)
}

func TestSetFullscreen_Unsupported(t *testing.T) {
	fc := newFakeCodec("H264", 96)

	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc), WithDisplay(&mockDisplay{}))
	assert.ErrorIs(t, s.SetFullscreen(true), ErrUnsupportedFormat)

	s, _ = newTestStream(t, Config{}, newTestRegistry(t, fc))
	assert.ErrorIs(t, s.SetFullscreen(true), ErrUnsupportedFormat)
}

func TestSetOrientation(t *testing.T) {
	fc := newFakeCodec("H264", 96)
	d := &fullscreenDisplay{}
	s, _ := newTestStream(t, Config{}, newTestRegistry(t, fc), WithDisplay(d))

	require.NoError(t, s.SetOrientation(90))
	assert.Equal(t, []int{90}, d.orientation)
	assert.Equal(t, 90, s.rx.orientation)

	s, _ = newTestStream(t, Config{}, newTestRegistry(t, fc), WithDisplay(&mockDisplay{}))
	assert.ErrorIs(t, s.SetOrientation(90), ErrUnsupportedFormat)
}
