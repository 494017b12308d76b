package audio

import (
	"log/slog"
	"sync"

	ffmpeg "github.com/linuxmatters/ffmpeg-statigo"
)

var initOnce sync.Once

// Init performs the process-wide FFmpeg setup. Only the first call has any
// effect; later calls, concurrent or not, return immediately.
//
// FFmpeg's own logging goes to stderr behind the session's back, so it is
// silenced unless level is debug, in which case errors are let through.
func Init(level slog.Level) {
	initOnce.Do(func() {
		if level <= slog.LevelDebug {
			ffmpeg.AVLogSetLevel(ffmpeg.AVLogError)
			return
		}
		ffmpeg.AVLogSetLevel(ffmpeg.AVLogQuiet)
	})
}
