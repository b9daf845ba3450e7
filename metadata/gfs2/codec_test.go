package gfs2

import (
	"bytes"
	"os"
	"testing"

	"github.com/go-test/deep"
)

type bufSink struct {
	buf bytes.Buffer
}

func (b *bufSink) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufSink) Close() error                { return nil }

type bufSource struct {
	data []byte
	pos  int
}

func (s *bufSource) Refill(required int) ([]byte, bool, error) {
	rest := s.data[s.pos:]
	if len(rest) >= required {
		return rest, false, nil
	}
	return rest, true, nil
}

func (s *bufSource) Advance(n int) {
	s.pos += n
	if s.pos > len(s.data) {
		s.pos = len(s.data)
	}
}

func (s *bufSource) Close() error { return nil }

func TestWriteReadHeaderRoundTrip(t *testing.T) {
	sink := &bufSink{}
	uuid := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	if err := WriteHeader(sink, 1<<30, uuid); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if sink.buf.Len() != archiveHeaderLen {
		t.Fatalf("expected %d bytes written, got %d", archiveHeaderLen, sink.buf.Len())
	}

	src := &bufSource{data: sink.buf.Bytes()}
	hdr, ok, err := ReadHeader(src)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if !ok {
		t.Fatalf("expected header to be recognized")
	}
	if hdr.FSBytes != 1<<30 {
		t.Errorf("FSBytes = %d, want %d", hdr.FSBytes, 1<<30)
	}
	if diff := deep.Equal(hdr.UUID, uuid); diff != nil {
		t.Errorf("UUID diff: %v", diff)
	}
	if src.pos != archiveHeaderLen {
		t.Errorf("expected cursor advanced past header, pos=%d", src.pos)
	}
}

func TestReadHeaderHeaderless(t *testing.T) {
	src := &bufSource{data: bytes.Repeat([]byte{0}, 32)}
	hdr, ok, err := ReadHeader(src)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if ok || hdr != nil {
		t.Fatalf("expected headerless archive to report ok=false, hdr=nil")
	}
	if src.pos != 0 {
		t.Errorf("expected cursor untouched on headerless archive, pos=%d", src.pos)
	}
}

func TestWriteRecordReadRecordRoundTrip(t *testing.T) {
	sink := &bufSink{}
	payload := []byte("some metadata block content")

	if err := WriteRecord(sink, 0x1234, payload); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	src := &bufSource{data: sink.buf.Bytes()}
	rec, err := ReadRecord(src, 0, 4096)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected a record, got nil")
	}
	if rec.Addr != 0x1234 {
		t.Errorf("Addr = %#x, want 0x1234", rec.Addr)
	}
	if diff := deep.Equal(rec.Payload, payload); diff != nil {
		t.Errorf("Payload diff: %v", diff)
	}

	rec2, err := ReadRecord(src, 0, 4096)
	if err != nil {
		t.Fatalf("ReadRecord at end: %v", err)
	}
	if rec2 != nil {
		t.Fatalf("expected nil at clean end of stream, got %+v", rec2)
	}
}

func TestWriteRecordRawSinkTrimsTrailingZeros(t *testing.T) {
	path := t.TempDir() + "/archive.raw"
	sink, err := NewSink(path, 0)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	payload := append([]byte("abc"), make([]byte, 100)...)
	if err := WriteRecord(sink, 1, payload); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	rec, err := ReadRecord(src, 0, 4096)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if len(rec.Payload) != 3 {
		t.Fatalf("expected trailing zeros trimmed to 3 bytes, got %d", len(rec.Payload))
	}
}

func TestWriteRecordAllZeroIsNoOp(t *testing.T) {
	// Only the raw backend trims trailing NULs, so an all-zero record is
	// a no-op there.
	path := t.TempDir() + "/archive.raw"
	sink, err := NewSink(path, 0)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if err := WriteRecord(sink, 5, make([]byte, 64)); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Size() != 0 {
		t.Fatalf("expected no bytes written for all-zero record, got %d", st.Size())
	}
}

func TestReadRecordRejectsOutOfRangeAddr(t *testing.T) {
	sink := &bufSink{}
	if err := WriteRecord(sink, 100, []byte("x")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	src := &bufSource{data: sink.buf.Bytes()}
	if _, err := ReadRecord(src, 50, 4096); err == nil {
		t.Fatalf("expected error for address beyond fssize")
	}
}
