package audio

// Properties describe one probed audio stream. They are derived once when
// the file is opened and never change afterwards.
type Properties struct {
	CodecName     string
	BitRate       int // bits per second, 0 when unavailable
	SampleRate    int
	BitsPerSample int // 0 when the codec has no fixed sample depth
	Width         int // bits used to store one output sample
	Float         bool
	Channels      int
	Duration      float64 // seconds
	BufferSize    int     // minimum buffer length accepted by Read

	// Format is the decoder's native layout; Read always delivers Format.Packed().
	Format SampleFormat
}

// Packet is one demuxed, still-encoded unit of the selected audio stream.
type Packet interface {
	Size() int
}

// Source is an opened container with one selected audio stream and its decoder.
// Implementations are not safe for concurrent use.
type Source interface {
	// Properties returns the stream properties derived at open.
	Properties() Properties

	// ReadPacket returns the next packet of the audio stream, or io.EOF
	// once the container holds no more.
	ReadPacket() (Packet, error)

	// Decode feeds pkt to the decoder and returns every frame it produced.
	// A nil pkt drains frames still buffered inside the decoder.
	// Returned frames stay valid until the next ReadPacket or Decode call.
	Decode(pkt Packet) ([]Frame, error)

	// Close releases every handle held by the source.
	Close() error
}

// Backend opens Sources for one family of formats.
type Backend interface {
	Name() string

	// Match reports whether header, the first bytes of a file, looks like
	// something the backend decodes. FFmpeg matches everything.
	Match(header []byte) bool

	// Open probes path and returns a Source ready to read packets.
	// Errors wrap one of the Err* open sentinels.
	Open(path string) (Source, error)
}

// finishProperties fills the fields every backend derives the same way
// from the native format.
func finishProperties(p Properties, frameSamples int) Properties {
	p.Width = p.Format.BytesPerSample() * 8
	p.Float = p.Format.IsFloat()
	p.BufferSize = bufferSize(p.Channels, p.Format, frameSamples)
	// Lossless formats with a fixed depth report no bit rate.
	if p.BitsPerSample != 0 {
		p.BitRate = 0
	}
	return p
}
