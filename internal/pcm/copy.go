package pcm

import (
	"context"
	"errors"
	"io"
)

// Reader is a decoded stream that needs buffers of at least BufferSize bytes.
type Reader interface {
	Read(buf []byte) (int, error)
	BufferSize() int
}

// Copy reads src to its end and writes every chunk to dst. When progress is
// non-nil it is called after each chunk with that chunk and the running byte
// total; the chunk is only valid during the call. Copy stops with ctx.Err()
// once ctx is done.
func Copy(ctx context.Context, dst io.Writer, src Reader, progress func(chunk []byte, total int64)) (int64, error) {
	buf := make([]byte, src.BufferSize())
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
			if progress != nil {
				progress(buf[:n], total)
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
