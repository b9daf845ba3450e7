package gfs2

import (
	"encoding/binary"
	"fmt"
	"time"
)

// archiveMagic and archiveFormat identify the archive header (spec.md
// §3, §6): 0x01171970 / format 1. This is deliberately distinct from the
// on-disk block magic (block.go's filesystemMagic, 0x01161970) — one
// tags the archive container, the other tags filesystem metadata blocks.
const (
	archiveMagic      uint32 = 0x01171970
	archiveFormat     uint32 = 1
	archiveHeaderLen         = 128
	archiveReservedLen       = 104
)

// recordHeaderLen is the size of the packed {addr, siglen} prefix of
// every archive record (spec.md §3).
const recordHeaderLen = 8 + 2

// ArchiveHeader is the 128-byte, big-endian archive header written
// exactly once, first (spec.md §3).
type ArchiveHeader struct {
	TimeSeconds int64
	FSBytes     uint64
	// UUID is the archived filesystem's UUID, stored in the first 16
	// bytes of the otherwise-reserved trailer (SPEC_FULL.md §5: "domain
	// stack", satori/go.uuid wiring) so restore can refuse an archive
	// whose header UUID differs from the UUID in its own superblock
	// record; the destination's identity is not checked.
	UUID [16]byte
}

// WriteHeader emits the 128-byte archive header with the current
// wall-clock time (spec.md §4.6).
func WriteHeader(sink Sink, fsBytes uint64, uuid [16]byte) error {
	b := make([]byte, archiveHeaderLen)
	binary.BigEndian.PutUint32(b[0:4], archiveMagic)
	binary.BigEndian.PutUint32(b[4:8], archiveFormat)
	binary.BigEndian.PutUint64(b[8:16], uint64(time.Now().Unix()))
	binary.BigEndian.PutUint64(b[16:24], fsBytes)
	copy(b[24:40], uuid[:])
	// b[40:128] remain zero (88 reserved bytes).
	if _, err := sink.Write(b); err != nil {
		return fmt.Errorf("write archive header: %w", err)
	}
	return nil
}

// ReadHeader detects the archive magic at the front of source. If
// absent, it reports a legacy/headerless archive and leaves the source
// positioned at byte 0 so the caller can fall back to scanning
// (spec.md §4.6, §4.10 step 2).
func ReadHeader(src Source) (*ArchiveHeader, bool, error) {
	buf, eof, err := src.Refill(archiveHeaderLen)
	if err != nil {
		return nil, false, fmt.Errorf("read archive header: %w", err)
	}
	if len(buf) < 4 || binary.BigEndian.Uint32(buf[0:4]) != archiveMagic {
		return nil, false, nil // headerless: cursor untouched
	}
	if len(buf) < archiveHeaderLen {
		if eof {
			return nil, false, fmt.Errorf("truncated archive header")
		}
		return nil, false, fmt.Errorf("short read of archive header")
	}
	hdr := &ArchiveHeader{
		TimeSeconds: int64(binary.BigEndian.Uint64(buf[8:16])),
		FSBytes:     binary.BigEndian.Uint64(buf[16:24]),
	}
	copy(hdr.UUID[:], buf[24:40])
	src.Advance(archiveHeaderLen)
	return hdr, true, nil
}

// WriteRecord serializes one archive record: a packed {addr, siglen}
// header followed by siglen bytes of payload (spec.md §3, §4.6).
//
// If sink is the uncompressed backend, trailing NUL bytes are trimmed
// from buf first so siglen reflects the true significant length; if that
// leaves siglen==0, nothing is written and save_buf's no-op contract
// (spec.md §3 "save_buf with blklen==0 is a no-op") is honored. When sink
// is compressed, no trimming happens — compression absorbs the
// redundancy instead (spec.md §4.6, §9 open question on trim safety).
func WriteRecord(sink Sink, addr uint64, buf []byte) error {
	n := len(buf)
	if isRawSink(sink) {
		for n > 0 && buf[n-1] == 0 {
			n--
		}
	}
	if n == 0 {
		return nil
	}
	if n > 0xffff {
		return fmt.Errorf("record for block %d exceeds max siglen: %d", addr, n)
	}
	hdr := make([]byte, recordHeaderLen)
	binary.BigEndian.PutUint64(hdr[0:8], addr)
	binary.BigEndian.PutUint16(hdr[8:10], uint16(n))
	if _, err := sink.Write(hdr); err != nil {
		return fmt.Errorf("write record header for block %d: %w", addr, err)
	}
	if _, err := sink.Write(buf[:n]); err != nil {
		return fmt.Errorf("write record payload for block %d: %w", addr, err)
	}
	return nil
}

// Record is one decoded archive record.
type Record struct {
	Addr    uint64
	Payload []byte
}

// ReadRecord reads the next record from source, validating addr < fssize
// (when fssize is known; pass 0 to skip the check) and siglen <= bsize.
// A clean end of stream returns (nil, nil).
func ReadRecord(src Source, fssize, bsize uint64) (*Record, error) {
	hdr, eof, err := src.Refill(recordHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("read record header: %w", err)
	}
	if len(hdr) == 0 && eof {
		return nil, nil
	}
	if len(hdr) < recordHeaderLen {
		if eof {
			return nil, fmt.Errorf("truncated record header")
		}
		return nil, fmt.Errorf("short read of record header")
	}
	addr := binary.BigEndian.Uint64(hdr[0:8])
	siglen := binary.BigEndian.Uint16(hdr[8:10])
	if fssize != 0 && addr >= fssize {
		return nil, fmt.Errorf("record address %d out of range [0, %d)", addr, fssize)
	}
	if bsize != 0 && uint64(siglen) > bsize {
		return nil, fmt.Errorf("record siglen %d exceeds block size %d", siglen, bsize)
	}
	src.Advance(recordHeaderLen)

	body, beof, err := src.Refill(int(siglen))
	if err != nil {
		return nil, fmt.Errorf("read record payload for block %d: %w", addr, err)
	}
	if len(body) < int(siglen) {
		if beof {
			return nil, fmt.Errorf("truncated record payload for block %d", addr)
		}
		return nil, fmt.Errorf("short read of record payload for block %d", addr)
	}
	payload := make([]byte, siglen)
	copy(payload, body[:siglen])
	src.Advance(int(siglen))
	return &Record{Addr: addr, Payload: payload}, nil
}
