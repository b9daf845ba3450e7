package gfs2

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

// refillBufferSize is the internal compaction buffer C5 keeps: 2 MiB,
// per spec.md §4.5.
const refillBufferSize = 2 * 1024 * 1024

// Source is the read-side abstraction with gzip/bzip2 auto-detect and
// buffered refill (spec.md §4.5).
type Source interface {
	// Refill returns a slice of at least `required` bytes drawn from the
	// front of the stream, or fewer with eof=true at a clean end.
	// Returning fewer than required without eof is a fatal read error.
	Refill(required int) (data []byte, eof bool, err error)
	// Advance consumes n bytes from the front of the buffer returned by
	// the most recent Refill.
	Advance(n int)
	Close() error
}

type bufferedSource struct {
	rd     io.Reader
	closer io.Closer
	buf    []byte
	filled int
	eof    bool
}

// OpenSource opens path and detects its compression by attempt order:
// bzip2 first, then gzip, because gzip will silently accept non-gzip
// input (spec.md §4.5, §9). bzip2 decoding uses
// github.com/dsnet/compress/bzip2, a pure-Go bzip2 reader grounded in the
// example pack's retrieval of a sibling package from the same module
// (SPEC_FULL.md §5); gzip uses github.com/klauspost/compress/gzip for the
// same reason as the write side (sink.go).
func OpenSource(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	br := bufio.NewReaderSize(f, 64*1024)

	if peek, perr := br.Peek(3); perr == nil && string(peek) == "BZh" {
		bz, err := bzip2.NewReader(br, nil)
		if err == nil {
			return newBufferedSource(bz, f), nil
		}
	}
	if peek, perr := br.Peek(2); perr == nil && peek[0] == 0x1f && peek[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err == nil {
			return newBufferedSource(gz, f), nil
		}
	}
	return newBufferedSource(br, f), nil
}

func newBufferedSource(rd io.Reader, closer io.Closer) *bufferedSource {
	return &bufferedSource{rd: rd, closer: closer, buf: make([]byte, 0, refillBufferSize)}
}

// Refill implements the 2 MiB ring/compaction buffer described in
// spec.md §4.5: on each call with insufficient remaining bytes, the
// unread tail is moved to the front and the backend is asked for enough
// to satisfy required.
func (s *bufferedSource) Refill(required int) ([]byte, bool, error) {
	if required > cap(s.buf) {
		grown := make([]byte, s.filled, required+required/2)
		copy(grown, s.buf[:s.filled])
		s.buf = grown
	}
	for s.filled < required && !s.eof {
		free := cap(s.buf) - s.filled
		if free == 0 {
			break
		}
		n, err := s.rd.Read(s.buf[s.filled : s.filled+free])
		s.filled += n
		if err != nil {
			if err == io.EOF {
				s.eof = true
				break
			}
			return s.buf[:s.filled], false, fmt.Errorf("refill: %w", err)
		}
	}
	if s.filled < required && !s.eof {
		return s.buf[:s.filled], false, nil
	}
	return s.buf[:s.filled], s.filled < required, nil
}

// Advance drops n consumed bytes from the front of the buffer, sliding
// the remaining tail down (the compaction half of the ring buffer).
func (s *bufferedSource) Advance(n int) {
	if n <= 0 {
		return
	}
	if n > s.filled {
		n = s.filled
	}
	copy(s.buf, s.buf[n:s.filled])
	s.filled -= n
}

func (s *bufferedSource) Close() error {
	return s.closer.Close()
}
