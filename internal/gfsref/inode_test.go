package gfsref

import (
	"testing"

	"github.com/gfs2meta/gfs2meta/metadata/gfs2"
)

func dinodeBuf(bsize uint64, mode, flags, height uint32, ptrs []uint64) []byte {
	b := make([]byte, bsize)
	binary32(b[diOffMode:diOffMode+4], mode)
	binary32(b[diOffFlags:diOffFlags+4], flags)
	binary32(b[diOffHeight:diOffHeight+4], height)
	binary64(b[diOffEattr:diOffEattr+8], 0)
	for i, p := range ptrs {
		off := pointerAreaStart + i*8
		if off+8 > len(b) {
			break
		}
		binary64(b[off:off+8], p)
	}
	return b
}

func TestInodeReaderReadInode(t *testing.T) {
	const bsize = 4096
	dev := newMemDevice(64 * bsize)
	buf := dinodeBuf(bsize, sIFDIR, diFlagExHash, 1, []uint64{100, 101})
	if _, err := dev.WriteAt(buf, 20*bsize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	r := InodeReader{BlockSize: bsize}
	view, err := r.ReadInode(dev, 20)
	if err != nil {
		t.Fatalf("ReadInode: %v", err)
	}
	if !view.IsDir || !view.IsExHash {
		t.Errorf("expected IsDir and IsExHash set, got %+v", view)
	}
	if view.Height != 1 {
		t.Errorf("Height = %d, want 1", view.Height)
	}
	if len(view.DirectPtrs) < 2 || view.DirectPtrs[0] != 100 || view.DirectPtrs[1] != 101 {
		t.Errorf("DirectPtrs = %v, want [100 101 ...]", view.DirectPtrs)
	}
}

func TestInodeReaderReadDataStuffed(t *testing.T) {
	const bsize = 256
	dev := newMemDevice(8 * bsize)
	buf := dinodeBuf(bsize, 0o100644, 0, 0, nil)
	copy(buf[pointerAreaStart:], []byte("hello world"))
	if _, err := dev.WriteAt(buf, 2*bsize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	r := InodeReader{BlockSize: bsize}
	inode := &gfs2.DinodeView{Addr: 2, Height: 0}
	got, err := r.ReadData(dev, inode, 0, 11)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("ReadData = %q, want %q", got, "hello world")
	}
}

func TestInodeReaderReadDataSingleLevel(t *testing.T) {
	const bsize = 64
	dev := newMemDevice(16 * bsize)
	block0 := make([]byte, bsize)
	copy(block0, []byte("first-block-data"))
	block1 := make([]byte, bsize)
	copy(block1, []byte("second-block"))
	if _, err := dev.WriteAt(block0, 5*bsize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if _, err := dev.WriteAt(block1, 6*bsize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	r := InodeReader{BlockSize: bsize}
	inode := &gfs2.DinodeView{Addr: 1, Height: 1, DirectPtrs: []uint64{5, 6}}
	got, err := r.ReadData(dev, inode, 0, bsize*2)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if len(got) != bsize*2 {
		t.Fatalf("ReadData length = %d, want %d", len(got), bsize*2)
	}
	if string(got[0:16]) != "first-block-data" {
		t.Errorf("first block mismatch: %q", got[0:16])
	}
}
