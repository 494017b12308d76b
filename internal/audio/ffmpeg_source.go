package audio

import (
	"errors"
	"fmt"
	"io"
	"unsafe"

	ffmpeg "github.com/linuxmatters/ffmpeg-statigo"
)

const (
	// avNoPTSValue is AV_NOPTS_VALUE: duration fields hold it when unknown.
	avNoPTSValue = -1 << 63
	avTimeBase   = 1000000

	// FFmpeg frames expose at most eight data pointers.
	maxPlanarChannels = 8
)

// ffmpegBackend decodes anything FFmpeg can demux.
type ffmpegBackend struct {
	fallbackFrameSamples int
}

func (b *ffmpegBackend) Name() string { return "ffmpeg" }

func (b *ffmpegBackend) Match(header []byte) bool { return true }

func (b *ffmpegBackend) Open(path string) (Source, error) {
	return openFFmpegSource(path, b.fallbackFrameSamples)
}

// ffmpegPacket is the source's single reusable AVPacket, holding the most
// recently demuxed packet until Decode unreferences it.
type ffmpegPacket struct {
	pkt *ffmpeg.AVPacket
}

func (p ffmpegPacket) Size() int { return int(p.pkt.Size()) }

// ffmpegSource implements Source using libavformat/libavcodec.
type ffmpegSource struct {
	formatCtx   *ffmpeg.AVFormatContext
	codecCtx    *ffmpeg.AVCodecContext
	streamIndex int
	packet      *ffmpeg.AVPacket
	frame       *ffmpeg.AVFrame
	props       Properties

	// arena holds copies of decoded planes for the frames of one Decode call
	arena  []byte
	frames []Frame
}

func openFFmpegSource(path string, fallbackFrameSamples int) (src *ffmpegSource, err error) {
	s := &ffmpegSource{streamIndex: -1}
	// Release whatever was acquired before a failure.
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	cpath := ffmpeg.ToCStr(path)
	defer cpath.Free()

	ret, err := ffmpeg.AVFormatOpenInput(&s.formatCtx, cpath, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownFormat, err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("%w: error code %d", ErrUnknownFormat, ret)
	}

	ret, err = ffmpeg.AVFormatFindStreamInfo(s.formatCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoStreams, err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("%w: error code %d", ErrNoStreams, ret)
	}

	nbStreams := int(s.formatCtx.NbStreams())
	if nbStreams == 0 {
		return nil, ErrNoStreams
	}

	// Best stream: the first audio stream FFmpeg has a decoder for.
	var decoder *ffmpeg.AVCodec
	var stream *ffmpeg.AVStream
	sawAudio := false
	streams := s.formatCtx.Streams()
	for i := 0; i < nbStreams; i++ {
		st := streams.Get(uintptr(i))
		if st.Codecpar().CodecType() != ffmpeg.AVMediaTypeAudio {
			continue
		}
		sawAudio = true
		if dec := ffmpeg.AVCodecFindDecoder(st.Codecpar().CodecId()); dec != nil {
			s.streamIndex = i
			stream = st
			decoder = dec
			break
		}
	}
	if !sawAudio {
		return nil, ErrNoAudio
	}
	if decoder == nil {
		return nil, ErrNoDecoder
	}

	s.codecCtx = ffmpeg.AVCodecAllocContext3(decoder)
	if s.codecCtx == nil {
		return nil, fmt.Errorf("%w: failed to allocate codec context", ErrCannotOpenDecoder)
	}

	ret, err = ffmpeg.AVCodecParametersToContext(s.codecCtx, stream.Codecpar())
	if err != nil {
		return nil, fmt.Errorf("%w: copy codec parameters: %w", ErrCannotOpenDecoder, err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("%w: copy codec parameters: error code %d", ErrCannotOpenDecoder, ret)
	}

	ret, err = ffmpeg.AVCodecOpen2(s.codecCtx, decoder, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotOpenDecoder, err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("%w: error code %d", ErrCannotOpenDecoder, ret)
	}

	channels := int(s.codecCtx.ChLayout().NbChannels())
	if channels <= 0 {
		return nil, ErrNoChannels
	}

	format := SampleFormat(s.codecCtx.SampleFmt())
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrBadSampleFormat, int(s.codecCtx.SampleFmt()))
	}
	if format.IsPlanar() && channels > maxPlanarChannels {
		return nil, fmt.Errorf("%w: planar audio with %d channels", ErrBadSampleFormat, channels)
	}

	s.packet = ffmpeg.AVPacketAlloc()
	if s.packet == nil {
		return nil, fmt.Errorf("%w: failed to allocate packet", ErrCannotOpenDecoder)
	}
	s.frame = ffmpeg.AVFrameAlloc()
	if s.frame == nil {
		return nil, fmt.Errorf("%w: failed to allocate frame", ErrCannotOpenDecoder)
	}

	// APE uses bits_per_coded_sample, FLAC uses bits_per_raw_sample.
	bits := int(s.codecCtx.BitsPerRawSample())
	if bits == 0 {
		bits = int(s.codecCtx.BitsPerCodedSample())
	}
	switch stream.Codecpar().CodecId() {
	case ffmpeg.AVCodecIdAac, ffmpeg.AVCodecIdMusepack8, ffmpeg.AVCodecIdWmav1, ffmpeg.AVCodecIdWmav2:
		// These decoders report both a depth and a bit rate; the depth is meaningless.
		bits = 0
	}

	frameSamples := int(s.codecCtx.FrameSize())
	if frameSamples <= 0 {
		frameSamples = fallbackFrameSamples
	}

	s.props = finishProperties(Properties{
		CodecName:     decoder.LongName().String(),
		BitRate:       int(s.codecCtx.BitRate()),
		SampleRate:    int(s.codecCtx.SampleRate()),
		BitsPerSample: bits,
		Channels:      channels,
		Duration:      s.duration(stream),
		Format:        format,
	}, frameSamples)

	return s, nil
}

// duration prefers the stream's own length and falls back to the container's.
func (s *ffmpegSource) duration(stream *ffmpeg.AVStream) float64 {
	if d := int64(stream.Duration()); d != avNoPTSValue {
		tb := stream.TimeBase()
		if den := float64(tb.Den()); den != 0 {
			return float64(d) * float64(tb.Num()) / den
		}
	}
	if d := int64(s.formatCtx.Duration()); d != avNoPTSValue {
		return float64(d) / avTimeBase
	}
	return 0
}

func (s *ffmpegSource) Properties() Properties {
	return s.props
}

// ReadPacket demuxes until it finds a packet of the selected stream.
func (s *ffmpegSource) ReadPacket() (Packet, error) {
	for {
		ret, err := ffmpeg.AVReadFrame(s.formatCtx, s.packet)
		if err != nil {
			if errors.Is(err, ffmpeg.AVErrorEOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		if ret < 0 {
			return nil, fmt.Errorf("read frame: error code %d", ret)
		}

		if int(s.packet.StreamIndex()) != s.streamIndex {
			ffmpeg.AVPacketUnref(s.packet)
			continue
		}
		return ffmpegPacket{pkt: s.packet}, nil
	}
}

// Decode sends pkt (or a flush request when pkt is nil) and receives every
// frame the decoder can produce from it.
func (s *ffmpegSource) Decode(pkt Packet) ([]Frame, error) {
	var avpkt *ffmpeg.AVPacket
	if pkt != nil {
		p, ok := pkt.(ffmpegPacket)
		if !ok {
			return nil, fmt.Errorf("ffmpeg source cannot decode %T", pkt)
		}
		avpkt = p.pkt
		defer ffmpeg.AVPacketUnref(avpkt)
	}

	if _, err := ffmpeg.AVCodecSendPacket(s.codecCtx, avpkt); err != nil {
		// A second flush request reports EOF; nothing is left to drain.
		if avpkt == nil && errors.Is(err, ffmpeg.AVErrorEOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("send packet to decoder: %w", err)
	}

	s.arena = s.arena[:0]
	s.frames = s.frames[:0]
	for {
		_, err := ffmpeg.AVCodecReceiveFrame(s.codecCtx, s.frame)
		if err != nil {
			if errors.Is(err, ffmpeg.AVErrorEOF) || errors.Is(err, ffmpeg.EAgain) {
				break
			}
			return nil, fmt.Errorf("receive frame: %w", err)
		}

		frame, err := s.copyFrame()
		ffmpeg.AVFrameUnref(s.frame)
		if err != nil {
			return nil, err
		}
		s.frames = append(s.frames, frame)
	}
	return s.frames, nil
}

// copyFrame copies the current AVFrame's planes into the arena.
func (s *ffmpegSource) copyFrame() (Frame, error) {
	format := SampleFormat(s.frame.Format())
	if !format.Valid() {
		return Frame{}, fmt.Errorf("%w: frame format %d", ErrBadSampleFormat, int(s.frame.Format()))
	}
	f := Frame{
		Format:   format,
		Channels: s.props.Channels,
		Samples:  int(s.frame.NbSamples()),
	}

	planes, planeSize := 1, f.Size()
	if format.IsPlanar() {
		planes, planeSize = f.Channels, f.Samples*format.BytesPerSample()
	}

	f.Planes = make([][]byte, planes)
	for i := 0; i < planes; i++ {
		ptr := s.frame.Data().Get(uintptr(i))
		if ptr == nil {
			return Frame{}, fmt.Errorf("missing data for plane %d", i)
		}
		start := len(s.arena)
		s.arena = append(s.arena, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), planeSize)...)
		f.Planes[i] = s.arena[start:len(s.arena):len(s.arena)]
	}
	return f, nil
}

// Close releases all FFmpeg resources. Safe on a partly opened source.
func (s *ffmpegSource) Close() error {
	if s.frame != nil {
		ffmpeg.AVFrameFree(&s.frame)
	}
	if s.packet != nil {
		ffmpeg.AVPacketFree(&s.packet)
	}
	if s.codecCtx != nil {
		ffmpeg.AVCodecFreeContext(&s.codecCtx)
	}
	if s.formatCtx != nil {
		ffmpeg.AVFormatCloseInput(&s.formatCtx)
	}
	s.frame, s.packet, s.codecCtx, s.formatCtx = nil, nil, nil, nil
	s.arena, s.frames = nil, nil
	return nil
}
