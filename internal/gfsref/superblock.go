package gfsref

import (
	"fmt"

	"github.com/gfs2meta/gfs2meta/metadata/gfs2"
)

// superblockRecordLen is the fixed byte size of one superblock record,
// matching metadata/gfs2/block.go's superblockRecordLen.
const superblockRecordLen = 512

// candidateBlockSizes are tried in order to locate the superblock before
// its own sb_bsize field is known: the pipeline addresses every block
// (the superblock included) as gfs2.SBAddr*bsize, so bootstrapping means
// probing plausible block sizes until one decodes a valid magic, type,
// and checksum at that offset — the same chicken-and-egg bootstrap
// real-world GFS2 tooling performs before trusting sb_bsize itself.
var candidateBlockSizes = []uint32{512, 1024, 2048, 4096, 8192, 16384, 65536}

// filesystemMagic mirrors metadata/gfs2/block.go's unexported
// filesystemMagic constant; duplicated here because the two packages
// describe the same on-disk convention without sharing unexported
// identifiers across a package boundary.
const filesystemMagic uint32 = 0x01161970

// gfs1FormatCeiling bounds the on-disk sb_fs_format field; values below
// it mark a legacy (gfs1) filesystem (spec.md §3 Variant).
const gfs1FormatCeiling uint32 = 1801

const (
	sbOffHeader   = 0x00 // 16-byte metadata header: magic, type, format, generation
	sbOffFormat   = 0x10
	sbOffBsize    = 0x14
	sbOffFSBytes  = 0x18
	sbOffRindex   = 0x20
	sbOffJindex   = 0x28
	sbOffMaster   = 0x30
	sbOffLockProto = 0x40
	sbOffLockTable = 0x80
	sbOffUUID      = 0xc0
	sbOffChecksum  = 0xd0

	lockProtoLen = 64
	lockTableLen = 64
)

// superblock is the parsed GFS2/GFS1 superblock, following the teacher's
// superblockFromBytes/toBytes pairing (superblock.go) but with
// big-endian fields and a GFS2-shaped record instead of ext4's.
type superblock struct {
	format    uint32
	blockSize uint32
	fsBytes   uint64
	rindex    uint64
	jindex    uint64
	master    uint64
	lockProto string
	lockTable string
	uuid      [16]byte
	uuidStr   string
}

func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) < sbOffChecksum+4 {
		return nil, fmt.Errorf("superblock record too short: %d bytes", len(b))
	}
	if be32(b[sbOffHeader:sbOffHeader+4]) != filesystemMagic || be32(b[sbOffHeader+4:sbOffHeader+8]) != 1 {
		// magic or metaType mismatch (expected metaTypeSB == 1,
		// block.go); locateSuperblock takes this as "try the next
		// candidate block size".
		return nil, fmt.Errorf("block at superblock offset is not tagged as a superblock")
	}

	want := be32(b[sbOffChecksum : sbOffChecksum+4])
	if got := crc32cChecksum(b[0:sbOffChecksum]); got != want {
		return nil, fmt.Errorf("superblock checksum mismatch: on disk %x, computed %x", want, got)
	}

	uuidBytes := b[sbOffUUID : sbOffUUID+16]
	uuidVal, uuidStr, err := uuidFromBytes(uuidBytes)
	if err != nil {
		return nil, fmt.Errorf("superblock uuid: %w", err)
	}

	sb := &superblock{
		format:    be32(b[sbOffFormat : sbOffFormat+4]),
		blockSize: be32(b[sbOffBsize : sbOffBsize+4]),
		fsBytes:   be64(b[sbOffFSBytes : sbOffFSBytes+8]),
		rindex:    be64(b[sbOffRindex : sbOffRindex+8]),
		jindex:    be64(b[sbOffJindex : sbOffJindex+8]),
		master:    be64(b[sbOffMaster : sbOffMaster+8]),
		lockProto: readCString(b[sbOffLockProto : sbOffLockProto+lockProtoLen]),
		lockTable: readCString(b[sbOffLockTable : sbOffLockTable+lockTableLen]),
		uuid:      uuidVal,
		uuidStr:   uuidStr,
	}
	return sb, nil
}

// toBytes serializes sb back into a superblockRecordLen-byte record,
// recomputing the checksum (teacher's superblockFromBytes/toBytes
// pairing, superblock.go), for use by tooling that needs to relocate or
// rewrite a superblock (e.g. a future repair pass; the restore
// orchestrator instead copies archived superblock bytes verbatim).
func (sb *superblock) toBytes() []byte {
	b := make([]byte, superblockRecordLen)
	binary32(b[sbOffHeader:sbOffHeader+4], filesystemMagic)
	binary32(b[sbOffHeader+4:sbOffHeader+8], 1) // metaTypeSB
	binary32(b[sbOffFormat:sbOffFormat+4], sb.format)
	binary32(b[sbOffBsize:sbOffBsize+4], sb.blockSize)
	binary64(b[sbOffFSBytes:sbOffFSBytes+8], sb.fsBytes)
	binary64(b[sbOffRindex:sbOffRindex+8], sb.rindex)
	binary64(b[sbOffJindex:sbOffJindex+8], sb.jindex)
	binary64(b[sbOffMaster:sbOffMaster+8], sb.master)
	copy(b[sbOffLockProto:sbOffLockProto+lockProtoLen], sb.lockProto)
	copy(b[sbOffLockTable:sbOffLockTable+lockTableLen], sb.lockTable)
	copy(b[sbOffUUID:sbOffUUID+16], sb.uuid[:])
	binary32(b[sbOffChecksum:sbOffChecksum+4], crc32cChecksum(b[0:sbOffChecksum]))
	return b
}

// locateSuperblock probes candidateBlockSizes at gfs2.SBAddr until one
// decodes a valid superblock record, resolving the bootstrap problem
// described above candidateBlockSizes: sb.blockSize is authoritative
// only once a candidate has already validated the record's magic, type,
// and checksum.
func locateSuperblock(dev gfs2.Device) (*superblock, error) {
	buf := make([]byte, superblockRecordLen)
	for _, candidate := range candidateBlockSizes {
		offset := int64(gfs2.SBAddr) * int64(candidate)
		if _, err := dev.ReadAt(buf, offset); err != nil {
			continue
		}
		if sb, err := superblockFromBytes(buf); err == nil {
			return sb, nil
		}
	}
	return nil, fmt.Errorf("no superblock found at block %d for any candidate block size", gfs2.SBAddr)
}

// SuperblockReader implements gfs2.SuperblockSource against a live
// Device, locating the superblock via locateSuperblock and converting it
// to the core's narrow gfs2.Superblock value.
type SuperblockReader struct{}

func (SuperblockReader) ReadSuperblock(dev gfs2.Device) (*gfs2.Superblock, error) {
	sb, err := locateSuperblock(dev)
	if err != nil {
		return nil, err
	}

	variant := gfs2.VariantGFS2
	if sb.format < gfs1FormatCeiling {
		variant = gfs2.VariantGFS1
	}

	params := gfs2.FSParams{
		BlockSize:  uint64(sb.blockSize),
		Variant:    variant,
		UUID:       sb.uuid,
		RindexAddr: sb.rindex,
		JindexAddr: sb.jindex,
		MasterAddr: sb.master,
	}
	if sb.blockSize != 0 {
		params.TotalBlocks = sb.fsBytes / uint64(sb.blockSize)
	}

	return &gfs2.Superblock{
		Params:     params,
		JournalIno: sb.jindex,
	}, nil
}
