package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// maxMP3Scan bounds how far past the ID3 tag the first frame is searched for.
const maxMP3Scan = 64 * 1024

var (
	id3Magic  = []byte("ID3")
	xingMagic = []byte("Xing")
	infoMagic = []byte("Info")
	vbriMagic = []byte("VBRI")

	errNoMP3Frame = errors.New("no MPEG audio frame found")
)

// Layer III bit rates in kbit/s indexed by the header's bitrate field.
var (
	mpeg1L3Bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	mpeg2L3Bitrates = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
)

var mp3SampleRates = map[int][3]int{
	mpegVersion1:  {44100, 48000, 32000},
	mpegVersion2:  {22050, 24000, 16000},
	mpegVersion25: {11025, 12000, 8000},
}

const (
	mpegVersion25 = 0
	mpegVersion2  = 2
	mpegVersion1  = 3
)

// mp3Header is the first Layer III frame header of a file plus any
// Xing/Info or VBRI summary found inside that frame.
type mp3Header struct {
	Version    int
	BitRate    int // bits per second of the first frame
	SampleRate int
	Channels   int
	Samples    int // samples per frame

	// Tagged is set when the first frame carries a Xing, Info or VBRI
	// summary instead of audio.
	Tagged bool
	VBR    bool
	Frames int // total audio frames from the summary, 0 when absent
	Bytes  int // total stream bytes from the summary, 0 when absent
}

// AverageBitRate returns the stream bit rate: the frame bit rate for CBR,
// the summary average for VBR, and 0 when a VBR stream has no usable summary.
func (h mp3Header) AverageBitRate() int {
	if !h.VBR {
		return h.BitRate
	}
	if h.Frames == 0 || h.Bytes == 0 || h.Samples == 0 {
		return 0
	}
	return int(int64(h.Bytes) * 8 * int64(h.SampleRate) / (int64(h.Frames) * int64(h.Samples)))
}

// isMP3Sync reports whether b starts an MPEG audio Layer III frame header.
func isMP3Sync(b []byte) bool {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return false
	}
	version := int(b[1]>>3) & 0x3
	layer := int(b[1]>>1) & 0x3
	bitrate := int(b[2] >> 4)
	rate := int(b[2]>>2) & 0x3
	return version != 1 && layer == 1 && bitrate != 0 && bitrate != 15 && rate != 3
}

// id3Size returns the total length of an ID3v2 tag at the start of b, or 0.
func id3Size(b []byte) int {
	if len(b) < 10 || !bytes.HasPrefix(b, id3Magic) {
		return 0
	}
	// Syncsafe integer: seven bits per byte.
	size := int(b[6]&0x7F)<<21 | int(b[7]&0x7F)<<14 | int(b[8]&0x7F)<<7 | int(b[9]&0x7F)
	size += 10
	if b[5]&0x10 != 0 {
		size += 10 // footer
	}
	return size
}

// readMP3Header finds and parses the first frame header in r.
func readMP3Header(r io.ReadSeeker) (mp3Header, error) {
	var tag [10]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return mp3Header{}, err
	}
	start := int64(id3Size(tag[:]))
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return mp3Header{}, err
	}

	buf := make([]byte, maxMP3Scan)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return mp3Header{}, err
	}
	return parseMP3Header(buf[:n])
}

// parseMP3Header parses the first Layer III frame found in b.
func parseMP3Header(b []byte) (mp3Header, error) {
	off := -1
	for i := 0; i+4 <= len(b); i++ {
		if isMP3Sync(b[i:]) {
			off = i
			break
		}
	}
	if off < 0 {
		return mp3Header{}, errNoMP3Frame
	}
	frame := b[off:]

	h := mp3Header{Version: int(frame[1]>>3) & 0x3}
	bitrateIdx := int(frame[2] >> 4)
	rateIdx := int(frame[2]>>2) & 0x3
	mono := frame[3]>>6 == 3

	h.SampleRate = mp3SampleRates[h.Version][rateIdx]
	h.Channels = 2
	if mono {
		h.Channels = 1
	}
	if h.Version == mpegVersion1 {
		h.BitRate = mpeg1L3Bitrates[bitrateIdx] * 1000
		h.Samples = 1152
	} else {
		h.BitRate = mpeg2L3Bitrates[bitrateIdx] * 1000
		h.Samples = 576
	}

	// The Xing/Info tag sits after the side information.
	side := 32
	switch {
	case h.Version == mpegVersion1 && mono:
		side = 17
	case h.Version != mpegVersion1 && !mono:
		side = 17
	case h.Version != mpegVersion1 && mono:
		side = 9
	}
	if x := frame[min(4+side, len(frame)):]; len(x) >= 8 {
		switch {
		case bytes.HasPrefix(x, xingMagic):
			h.Tagged, h.VBR = true, true
			parseXing(&h, x[4:])
		case bytes.HasPrefix(x, infoMagic):
			h.Tagged = true
			parseXing(&h, x[4:])
		}
	}
	// VBRI always sits 32 bytes after the header.
	if v := frame[min(4+32, len(frame)):]; len(v) >= 18 && bytes.HasPrefix(v, vbriMagic) {
		h.Tagged, h.VBR = true, true
		h.Bytes = int(binary.BigEndian.Uint32(v[10:14]))
		h.Frames = int(binary.BigEndian.Uint32(v[14:18]))
	}
	return h, nil
}

// parseXing reads the frame and byte counts that follow a Xing/Info magic.
func parseXing(h *mp3Header, b []byte) {
	if len(b) < 4 {
		return
	}
	flags := binary.BigEndian.Uint32(b)
	b = b[4:]
	if flags&0x1 != 0 && len(b) >= 4 {
		h.Frames = int(binary.BigEndian.Uint32(b))
		b = b[4:]
	}
	if flags&0x2 != 0 && len(b) >= 4 {
		h.Bytes = int(binary.BigEndian.Uint32(b))
	}
}
