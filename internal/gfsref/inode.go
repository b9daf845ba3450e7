package gfsref

import (
	"fmt"

	"github.com/gfs2meta/gfs2meta/metadata/gfs2"
)

// Dinode field offsets, matching metadata/gfs2/layout.go's private
// offsets exactly: the two packages describe the same on-disk shape,
// but each owns its own copy since the core package's constants are
// unexported and this package does not (and should not) reach into it
// for block-level field positions.
const (
	diOffMode   = 0x20
	diOffHeight = 0x80
	diOffEattr  = 0x90
	diOffFlags  = 0x78

	dinodeRecordLen = 232
	pointerAreaStart = dinodeRecordLen

	sIFMT  uint32 = 0o170000
	sIFDIR uint32 = 0o040000
	sIFLNK uint32 = 0o120000

	diFlagJData  uint32 = 0x00000001
	diFlagExHash uint32 = 0x00000008
)

// InodeReader implements gfs2.InodeReader against a live Device.
type InodeReader struct {
	BlockSize uint64
}

func (r InodeReader) ReadInode(dev gfs2.Device, addr uint64) (*gfs2.DinodeView, error) {
	buf := make([]byte, r.BlockSize)
	if _, err := dev.ReadAt(buf, int64(addr*r.BlockSize)); err != nil {
		return nil, fmt.Errorf("read dinode at %d: %w", addr, err)
	}
	if len(buf) < diOffEattr+8 {
		return nil, fmt.Errorf("block size %d too small for a dinode", r.BlockSize)
	}

	mode := be32(buf[diOffMode : diOffMode+4])
	flags := be32(buf[diOffFlags : diOffFlags+4])
	height := be32(buf[diOffHeight : diOffHeight+4])
	eattr := be64(buf[diOffEattr : diOffEattr+8])

	n := (len(buf) - pointerAreaStart) / 8
	ptrs := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		off := pointerAreaStart + i*8
		ptrs = append(ptrs, be64(buf[off:off+8]))
	}

	return &gfs2.DinodeView{
		Addr:       addr,
		Height:     height,
		Mode:       mode,
		IsDir:      mode&sIFMT == sIFDIR,
		IsSymlink:  mode&sIFMT == sIFLNK,
		IsExHash:   flags&diFlagExHash != 0,
		IsJData:    flags&diFlagJData != 0,
		EattrBlock: eattr,
		DirectPtrs: ptrs,
	}, nil
}

// ReadData reads up to length bytes of a small system file's logical
// content starting at offset. Only height 0 (data embedded directly in
// the dinode's pointer area, "stuffed" in GFS2 terms) and height 1
// (single level of data-block pointers) are supported, since ReadData is
// only ever asked to read jindex/per_node/rindex — small directories and
// index files, never arbitrarily large user data (spec.md §6
// InodeReader.readi contract).
func (r InodeReader) ReadData(dev gfs2.Device, inode *gfs2.DinodeView, offset, length uint64) ([]byte, error) {
	switch inode.Height {
	case 0:
		buf := make([]byte, r.BlockSize)
		if _, err := dev.ReadAt(buf, int64(inode.Addr*r.BlockSize)); err != nil {
			return nil, fmt.Errorf("read stuffed dinode %d: %w", inode.Addr, err)
		}
		data := buf[pointerAreaStart:]
		return sliceWithin(data, offset, length), nil
	case 1:
		perBlock := r.BlockSize
		startBlock := offset / perBlock
		endBlock := (offset + length + perBlock - 1) / perBlock
		out := make([]byte, 0, length)
		for b := startBlock; b < endBlock && int(b) < len(inode.DirectPtrs); b++ {
			addr := inode.DirectPtrs[b]
			if addr == 0 {
				out = append(out, make([]byte, perBlock)...)
				continue
			}
			blk := make([]byte, perBlock)
			if _, err := dev.ReadAt(blk, int64(addr*perBlock)); err != nil {
				return nil, fmt.Errorf("read data block %d: %w", addr, err)
			}
			out = append(out, blk...)
		}
		lo := offset % perBlock
		hi := lo + length
		if hi > uint64(len(out)) {
			hi = uint64(len(out))
		}
		return out[lo:hi], nil
	default:
		return nil, fmt.Errorf("ReadData: unsupported height %d for inode %d", inode.Height, inode.Addr)
	}
}

func sliceWithin(b []byte, offset, length uint64) []byte {
	if offset >= uint64(len(b)) {
		return nil
	}
	end := offset + length
	if end > uint64(len(b)) {
		end = uint64(len(b))
	}
	return b[offset:end]
}
