package audio

import "testing"

func TestDescribe(t *testing.T) {
	testCases := []struct {
		name  string
		props Properties
		want  string
	}{
		{
			name:  "lossless mono",
			props: Properties{CodecName: "FLAC (Free Lossless Audio Codec)", SampleRate: 96000, BitsPerSample: 24, Channels: 1},
			want:  "FLAC (Free Lossless Audio Codec), 96000 Hz, 24 bits, 1 channel",
		},
		{
			name:  "lossy stereo",
			props: Properties{CodecName: "MP3 (MPEG audio layer 3)", BitRate: 201329, SampleRate: 44100, Channels: 2},
			want:  "MP3 (MPEG audio layer 3), 201 kbps, 44100 Hz, 2 channels",
		},
		{
			name:  "rounds kbps",
			props: Properties{CodecName: "AAC", BitRate: 127500, SampleRate: 48000, Channels: 6},
			want:  "AAC, 128 kbps, 48000 Hz, 6 channels",
		},
		{
			name:  "empty",
			props: Properties{},
			want:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Describe(tc.props); got != tc.want {
				t.Errorf("Describe() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsAudioFile(t *testing.T) {
	testCases := []struct {
		path string
		want bool
	}{
		{"song.flac", true},
		{"/music/Album/01 Track.MP3", true},
		{"take.mp+", true},
		{"voice.wv", true},
		{"notes.txt", false},
		{"flac", false},
		{"archive.tar.gz", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			if got := IsAudioFile(tc.path); got != tc.want {
				t.Errorf("IsAudioFile(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}
