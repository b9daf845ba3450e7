// Package gfsref is a concrete, device-backed implementation of the five
// external collaborator interfaces metadata/gfs2 consumes abstractly:
// SuperblockSource, InodeReader, DirectoryIterator, RgrpIndex, and
// BitmapScanner. It plays the role the surrounding fsck/initialization
// code plays for libgfs2 in the original tool — parsing on-disk
// structures the core pipeline never touches directly.
package gfsref

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	uuid "github.com/satori/go.uuid"
)

// KB/MB are named size constants for sizing scratch buffers, matching
// the teacher's util.go convention of named size constants instead of
// magic numbers. No code in this module refers to them.
const (
	KB int64 = 1024
	MB int64 = 1024 * KB
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// crc32cChecksum mirrors the teacher's crc32c.go helper: GFS2, like
// ext4's metadata-checksum feature, checksums its superblock and
// resource-group headers with CRC-32C.
func crc32cChecksum(b []byte) uint32 {
	return crc32.Checksum(b, crc32cTable)
}

// uuidFromBytes wraps github.com/satori/go.uuid the same way the
// teacher's superblock.go does for ext4 volume/journal UUIDs, here for
// the GFS2 superblock's 16-byte sb_uuid field. It returns both the raw
// bytes (for gfs2.FSParams.UUID) and the canonical string form (for log
// lines and error messages).
func uuidFromBytes(b []byte) (val [16]byte, str string, err error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return val, "", fmt.Errorf("parse uuid: %w", err)
	}
	copy(val[:], u.Bytes())
	return val, u.String(), nil
}

func binary32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func binary64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

// readCString reads a NUL-padded fixed-width ASCII field (sb_lockproto,
// sb_locktable), trimming at the first NUL the way the teacher's
// volumeLabel/lastMountedDirectory fields are read from fixed-width
// superblock regions.
func readCString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func be64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
