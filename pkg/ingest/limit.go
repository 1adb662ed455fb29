package ingest

import (
	"fmt"
	"io"
)

// ErrFileTooLarge is returned once a stream exceeds its configured limit.
var ErrFileTooLarge = fmt.Errorf("ingest: file exceeds maximum allowed size")

// limitedReader wraps body and fails the read once more than limit bytes
// have been read, instead of silently truncating. Because the ingest
// pipeline never buffers the whole upload, the size limit has to be
// enforced as bytes fly past rather than checked up front — this is that
// enforcement point, positioned so the error flows straight into
// object.Store.PutStream's existing abort-on-error path.
type limitedReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func newLimitedReader(r io.Reader, limit int64) *limitedReader {
	return &limitedReader{r: r, limit: limit}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, ErrFileTooLarge
	}
	return n, err
}
