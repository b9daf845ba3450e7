package gfs2

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Sink is the write-side abstraction over raw or gzip output (spec.md
// §4.4). The raw backend writes bytes verbatim; the gzip backend wraps
// them in a compress/gzip-compatible stream at the requested level.
//
// The gzip implementation comes from github.com/klauspost/compress/gzip
// rather than the standard library: it is a drop-in replacement with the
// same Writer shape, and the example pack's distr1-distri repo reaches
// for the same package throughout its own packing/export pipeline in
// preference to compress/gzip (SPEC_FULL.md §5).
type Sink interface {
	Write(buf []byte) (int, error)
	Close() error
}

type rawSink struct {
	f *os.File
}

func (s *rawSink) Write(buf []byte) (int, error) { return s.f.Write(buf) }
func (s *rawSink) Close() error                  { return s.f.Close() }

type gzipSink struct {
	f  *os.File
	gz *gzip.Writer
}

func (s *gzipSink) Write(buf []byte) (int, error) { return s.gz.Write(buf) }
func (s *gzipSink) Close() error {
	if err := s.gz.Close(); err != nil {
		return fmt.Errorf("gzip close: %w", err)
	}
	return s.f.Close()
}

// NewSink opens path for writing and returns a Sink backed by the raw
// file when level is 0, or by a gzip writer at the given level (1-9)
// otherwise (spec.md §4.4, §6).
func NewSink(path string, level int) (Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}
	if level <= 0 {
		return &rawSink{f: f}, nil
	}
	gz, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	return &gzipSink{f: f, gz: gz}, nil
}

// isRawSink reports whether sink is the uncompressed backend, which
// drives whether the record codec trims trailing NUL bytes before
// writing (spec.md §4.4: "For the raw backend, C6 may zero-strip
// trailing null bytes before calling; for the compressed backend,
// stripping is skipped").
func isRawSink(s Sink) bool {
	_, ok := s.(*rawSink)
	return ok
}

var _ io.Writer = (*rawSink)(nil)
