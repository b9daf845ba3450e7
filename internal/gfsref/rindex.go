package gfsref

import (
	"fmt"

	"github.com/gfs2meta/gfs2meta/metadata/gfs2"
)

// rindex entry layout: {addr(8), length(8), dataStart(8), dataCount(8),
// bitmapBlocks(8)}, big-endian, packed back-to-back in the rindex file's
// logical content — the GFS2 analogue of ext4's block group descriptor
// table (teacher's groupdescriptors.go), but stored as ordinary file
// data rather than a fixed on-disk array.
const rindexEntryLen = 40

// RgrpIndex implements gfs2.RgrpIndex by reading and parsing the rindex
// system file's content.
type RgrpIndex struct {
	Inodes     InodeReader
	RindexAddr uint64
}

func (r RgrpIndex) Rgrps(dev gfs2.Device) ([]gfs2.RgrpDescriptor, error) {
	rindex, err := r.Inodes.ReadInode(dev, r.RindexAddr)
	if err != nil {
		return nil, fmt.Errorf("read rindex inode: %w", err)
	}

	var total uint64
	if rindex.Height == 0 {
		total = r.Inodes.BlockSize - pointerAreaStart
	} else {
		total = uint64(len(rindex.DirectPtrs)) * r.Inodes.BlockSize
	}
	content, err := r.Inodes.ReadData(dev, rindex, 0, total)
	if err != nil {
		return nil, fmt.Errorf("read rindex content: %w", err)
	}

	var rgrps []gfs2.RgrpDescriptor
	for off := 0; off+rindexEntryLen <= len(content); off += rindexEntryLen {
		addr := be64(content[off : off+8])
		if addr == 0 {
			break
		}
		rgrps = append(rgrps, gfs2.RgrpDescriptor{
			Addr:         addr,
			Length:       be64(content[off+8 : off+16]),
			DataStart:    be64(content[off+16 : off+24]),
			DataCount:    be64(content[off+24 : off+32]),
			BitmapBlocks: be64(content[off+32 : off+40]),
		})
	}
	return rgrps, nil
}
