package gfs2

import (
	"testing"

	"github.com/go-test/deep"
)

func TestSinkSourceRoundTripRaw(t *testing.T) {
	testSinkSourceRoundTrip(t, 0)
}

func TestSinkSourceRoundTripGzip(t *testing.T) {
	testSinkSourceRoundTrip(t, 6)
}

func testSinkSourceRoundTrip(t *testing.T, level int) {
	t.Helper()
	path := t.TempDir() + "/archive"

	sink, err := NewSink(path, level)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	records := []Record{
		{Addr: 1, Payload: []byte("first record payload")},
		{Addr: 2, Payload: []byte("second, a bit longer record payload here")},
	}
	for _, r := range records {
		if err := WriteRecord(sink, r.Addr, r.Payload); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	var got []Record
	for {
		rec, err := ReadRecord(src, 0, 4096)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if rec == nil {
			break
		}
		got = append(got, *rec)
	}

	if diff := deep.Equal(got, records); diff != nil {
		t.Errorf("round trip diff: %v", diff)
	}
}

func TestSourceRefillAdvance(t *testing.T) {
	path := t.TempDir() + "/archive.raw"
	sink, err := NewSink(path, 0)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	if _, err := sink.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	data, eof, err := src.Refill(5)
	if err != nil {
		t.Fatalf("Refill: %v", err)
	}
	if eof || len(data) < 5 {
		t.Fatalf("expected at least 5 bytes, got %d eof=%v", len(data), eof)
	}
	src.Advance(5)

	data, eof, err = src.Refill(5)
	if err != nil {
		t.Fatalf("Refill: %v", err)
	}
	if string(data[:5]) != "56789" {
		t.Fatalf("expected remaining bytes '56789', got %q", string(data[:5]))
	}
	_ = eof
}
