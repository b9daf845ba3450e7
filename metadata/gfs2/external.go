package gfs2

// This file declares the external collaborators the core pipeline consumes
// abstractly (spec.md §6). Implementations live outside this package — the
// surrounding fsck/initialization code in a real deployment, or the
// reference implementation in internal/gfsref for this repo's CLI and
// integration tests — because superblock parsing, rgrp indexing, bitmap
// scanning, and inode/directory reading are explicitly out of scope for
// the core (spec.md §1).

// Superblock is the subset of on-disk superblock fields the core pipeline
// needs in order to drive classification and I/O.
type Superblock struct {
	Params     FSParams
	JournalIno uint64 // address of the legacy jindex / modern jindex inode
}

// SuperblockSource parses a filesystem superblock from a device.
type SuperblockSource interface {
	ReadSuperblock(dev Device) (*Superblock, error)
}

// DinodeView is the subset of a parsed dinode the core needs to decide
// traversal height and significant length (spec.md §3, §4.7).
type DinodeView struct {
	Addr        uint64
	Height      uint32
	Mode        uint32
	IsDir       bool
	IsSymlink   bool
	IsExHash    bool // EXHASH flag: directory uses extendible hashing
	IsJData     bool // legacy-directory-flag analogue: journaled-data flag
	EattrBlock  uint64
	FormalIno   uint64
	DirectPtrs  []uint64 // pointer area immediately following the dinode header
}

// InodeReader reads dinodes and inode file data by address.
type InodeReader interface {
	ReadInode(dev Device, addr uint64) (*DinodeView, error)
	// ReadData reads up to len bytes of an inode's logical file content
	// starting at offset; used only for small system files (jindex,
	// per_node, rindex), never for user file content.
	ReadData(dev Device, inode *DinodeView, offset, length uint64) ([]byte, error)
}

// DirEntry is one entry returned by DirectoryIterator.Children.
type DirEntry struct {
	Name string
	Addr uint64
	Dir  bool
}

// DirectoryIterator enumerates the children of a directory inode.
type DirectoryIterator interface {
	Children(dev Device, inode *DinodeView) ([]DirEntry, error)
}

// RgrpDescriptor describes one resource group's span and layout
// (spec.md §3).
type RgrpDescriptor struct {
	Addr          uint64
	Length        uint64 // length in blocks, including header and bitmap blocks
	DataStart     uint64
	DataCount     uint64
	BitmapBlocks  uint64
}

// RgrpIndex iterates resource groups in ascending address order.
type RgrpIndex interface {
	Rgrps(dev Device) ([]RgrpDescriptor, error)
}

// BitmapScanner scans a resource group's bitmap for block addresses in a
// given allocation state.
type BitmapScanner interface {
	Scan(dev Device, rgd RgrpDescriptor, state BitmapState) ([]uint64, error)
}
