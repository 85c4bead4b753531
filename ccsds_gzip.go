package spp

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// OpenCapture opens a capture file for framing, transparently decompressing
// it if its name ends in ".gz". Captures are sometimes shipped gzip'd since
// raw packet streams compress well; this spares callers a separate
// decompression step before handing the result to NewFramer.
func OpenCapture(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipCapture{gz: gz, f: f}, nil
}

// gzipCapture closes both the gzip reader and the underlying file.
type gzipCapture struct {
	gz *gzip.Reader
	f  *os.File
}

func (c *gzipCapture) Read(p []byte) (int, error) { return c.gz.Read(p) }

func (c *gzipCapture) Close() error {
	gzErr := c.gz.Close()
	fErr := c.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
