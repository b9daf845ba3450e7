package gfs2

import "encoding/binary"

// filesystemMagic is the magic number tagging every metadata header on
// disk (spec.md §3: "Block kind... Derived from an on-disk magic+type
// tuple; absence of the magic means 'not metadata'").
const filesystemMagic uint32 = 0x01161970

// metaType is the typed field following the magic in a metadata header
// that distinguishes superblock/rgrp/rgrp-bitmap/dinode/indirect/leaf/
// journal-descriptor/log-header/EA-header/EA-data from one another.
type metaType uint32

const (
	metaTypeNone     metaType = 0
	metaTypeSB       metaType = 1
	metaTypeRG       metaType = 2
	metaTypeRB       metaType = 3
	metaTypeDI       metaType = 4
	metaTypeIN       metaType = 5
	metaTypeLF       metaType = 6
	metaTypeJD       metaType = 7 // journal descriptor
	metaTypeLH       metaType = 8 // log header
	metaTypeEA       metaType = 9
)

// metaHeaderLen is the size in bytes of the {magic, type, format,
// generation} header prefixing every metadata block other than the
// superblock and rgrp bitmap blocks (SPEC_FULL.md §3 "journal block
// kinds").
const metaHeaderLen = 16

// superblockRecordLen and dinodeRecordLen are the significant lengths for
// the two block kinds whose on-disk struct is fixed-size and materially
// smaller than a full block (spec.md §3 policy table).
const (
	superblockRecordLen = 512
	dinodeRecordLen     = 232
	logHeaderRecordLen  = 64
	legacyLogHeaderLen  = 512
)

// diFlag mirrors the subset of on-disk dinode flags the classification
// policy needs: whether a dinode is a directory, symlink, uses
// extendible hashing, or carries the legacy journaled-data flag
// (spec.md §3, §4.7 step 2).
type diFlags struct {
	isDir     bool
	isSymlink bool
	isExHash  bool
	isJData   bool
}

// ClassifyResult is C1's output: the block's kind and how many leading
// bytes of it are worth archiving.
type ClassifyResult struct {
	Kind            Kind
	SignificantLen  uint64
	IsMetadata      bool
}

// Classify inspects a block buffer B owned by address owner (self, if the
// block is its own owner — e.g. a dinode) and returns its kind and
// significant length per the policy table in spec.md §3.
//
// A magic mismatch is not an error: callers decide how to treat unknown
// blocks (user-owned blocks are skipped; system-owned blocks are saved in
// full), exactly as spec.md §4.1 describes.
func Classify(buf []byte, owner uint64, bsize uint64, variant Variant, sys *SystemFiles) ClassifyResult {
	if len(buf) < 4 {
		return ClassifyResult{Kind: KindUnknown, SignificantLen: bsize}
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	if magic != filesystemMagic {
		return ClassifyResult{Kind: KindUnknown, SignificantLen: bsize, IsMetadata: false}
	}

	var mt metaType
	if len(buf) >= 8 {
		mt = metaType(binary.BigEndian.Uint32(buf[4:8]))
	}

	switch mt {
	case metaTypeSB:
		return ClassifyResult{Kind: KindSuperblock, SignificantLen: superblockRecordLen, IsMetadata: true}
	case metaTypeRG:
		return ClassifyResult{Kind: KindRgrp, SignificantLen: bsize, IsMetadata: true}
	case metaTypeRB:
		return ClassifyResult{Kind: KindRgrpBitmap, SignificantLen: bsize, IsMetadata: true}
	case metaTypeDI:
		return ClassifyResult{Kind: KindDinode, SignificantLen: dinodeSignificantLen(buf, owner, bsize, sys), IsMetadata: true}
	case metaTypeIN:
		return ClassifyResult{Kind: KindIndirect, SignificantLen: bsize, IsMetadata: true}
	case metaTypeLF:
		return ClassifyResult{Kind: KindLeaf, SignificantLen: bsize, IsMetadata: true}
	case metaTypeJD:
		return ClassifyResult{Kind: KindLogDescriptor, SignificantLen: bsize, IsMetadata: true}
	case metaTypeLH:
		if variant == VariantGFS1 {
			return ClassifyResult{Kind: KindLogHeader, SignificantLen: legacyLogHeaderLen, IsMetadata: true}
		}
		return ClassifyResult{Kind: KindLogHeader, SignificantLen: logHeaderRecordLen, IsMetadata: true}
	case metaTypeEA:
		// EA header vs EA data is only distinguishable by the caller's
		// traversal context (spec.md §4.7 step 6), not by a distinct
		// on-disk type tag; the walker tags EaHeader for the block it
		// read directly off the dinode and EaData for blocks it follows
		// from EA records. Classify reports EaHeader as the default.
		return ClassifyResult{Kind: KindEaHeader, SignificantLen: bsize, IsMetadata: true}
	default:
		return ClassifyResult{Kind: KindUnknown, SignificantLen: bsize, IsMetadata: false}
	}
}

// dinodeSignificantLen applies spec.md §3's dinode policy: full blocksize
// if height>0, directory, symlink, legacy-directory-flagged, or the block
// is a known system file; otherwise just the fixed dinode record.
func dinodeSignificantLen(buf []byte, owner, bsize uint64, sys *SystemFiles) uint64 {
	fl, height := parseDIFlagsAndHeight(buf)
	if height > 0 || fl.isDir || fl.isSymlink || fl.isJData {
		return bsize
	}
	if sys != nil && sys.IsSystem(owner) {
		return bsize
	}
	return dinodeRecordLen
}

// parseDIFlagsAndHeight reads just enough of a dinode buffer to drive the
// classification policy, mirroring the narrow, purpose-built field reads
// the teacher's superblockFromBytes/groupDescriptorFromBytes do instead of
// decoding the whole struct up front. Field offsets are defined once in
// layout.go and shared with the full dinode parser in inode.go.
func parseDIFlagsAndHeight(buf []byte) (diFlags, uint32) {
	if len(buf) < diOffHeight+4 {
		return diFlags{}, 0
	}
	mode := binary.BigEndian.Uint32(buf[diOffMode : diOffMode+4])
	flags := binary.BigEndian.Uint32(buf[diOffFlags : diOffFlags+4])
	height := binary.BigEndian.Uint32(buf[diOffHeight : diOffHeight+4])
	fl := diFlags{
		isDir:     mode&sIFMT == sIFDIR,
		isSymlink: mode&sIFMT == sIFLNK,
		isExHash:  flags&diFlagExHash != 0,
		isJData:   flags&diFlagJData != 0,
	}
	return fl, height
}
