package gfs2

// On-disk dinode field offsets, relative to the start of the dinode
// block. The 16-byte metadata header (magic/type/format/generation,
// block.go) occupies [0x00, 0x10); the fixed dinode record occupies
// [0x00, dinodeRecordLen) and anything beyond that, up to blocksize, is
// the pointer area consumed by the inode walker (spec.md §4.7 step 3).
const (
	diOffFormalIno = 0x10
	diOffAddr      = 0x18
	diOffMode      = 0x20
	diOffUID       = 0x24
	diOffGID       = 0x28
	diOffNlink     = 0x2c
	diOffSize      = 0x30
	diOffBlocks    = 0x38
	diOffAtime     = 0x40
	diOffMtime     = 0x48
	diOffCtime     = 0x50
	diOffMajor     = 0x58
	diOffMinor     = 0x5c
	diOffGoalMeta  = 0x60
	diOffGoalData  = 0x68
	diOffGen       = 0x70
	diOffFlags     = 0x78
	diOffPayload   = 0x7c
	diOffHeight    = 0x80
	diOffDepth     = 0x84
	diOffEntries   = 0x88
	diOffEattr     = 0x90
)

// S_IFMT-style mode mask/constants for the dinode's di_mode field.
const (
	sIFMT  uint32 = 0o170000
	sIFDIR uint32 = 0o040000
	sIFLNK uint32 = 0o120000
)

// Dinode flag bits (di_flags), trimmed to the ones the classification and
// traversal policies consult (spec.md §3, §4.7 step 2).
const (
	diFlagJData  uint32 = 0x00000001
	diFlagExHash uint32 = 0x00000008
	// diFlagSystem marks a dinode as itself part of filesystem structure
	// (the "system-flagged" condition in spec.md §4.7 step 2), distinct
	// from a dinode merely being *owned* by a well-known system-file
	// address (SystemFiles.IsSystem).
	diFlagSystem uint32 = 0x00000010
)

// pointerAreaStart is where the dinode's direct indirect-pointer array
// begins, i.e. immediately after the fixed dinode record (spec.md §4.7
// step 3: "direct indirect pointers from the dinode's pointer area
// (after the fixed dinode header)").
const pointerAreaStart = dinodeRecordLen

// metaPointerAreaStart is where an indirect/meta block's pointer array
// begins: immediately after the 16-byte metadata header (spec.md §4.7
// step 4: "headered by the fixed metadata header, not a dinode header").
const metaPointerAreaStart = metaHeaderLen
