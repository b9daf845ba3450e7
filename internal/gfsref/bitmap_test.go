package gfsref

import (
	"testing"

	"github.com/gfs2meta/gfs2meta/metadata/gfs2"
)

func TestBitmapScannerScan(t *testing.T) {
	const bsize = 64
	dev := newMemDevice(16 * bsize)

	// Slot states for blocks [0..4): free, dinode, used, free, packed
	// MSB-first 2 bits per slot into a single byte.
	bitmapBlock := make([]byte, bsize)
	states := []gfs2.BitmapState{gfs2.StateFree, gfs2.StateDinode, gfs2.StateUsed, gfs2.StateFree}
	var b byte
	for i, s := range states {
		b |= byte(s) << (6 - uint(i)*2)
	}
	bitmapBlock[0] = b
	if _, err := dev.WriteAt(bitmapBlock, (10+1)*bsize); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	rgd := gfs2.RgrpDescriptor{Addr: 10, Length: 3, DataStart: 100, DataCount: 4, BitmapBlocks: 1}
	scanner := BitmapScanner{BlockSize: bsize}

	dinodes, err := scanner.Scan(dev, rgd, gfs2.StateDinode)
	if err != nil {
		t.Fatalf("Scan(StateDinode): %v", err)
	}
	if len(dinodes) != 1 || dinodes[0] != 101 {
		t.Fatalf("dinodes = %v, want [101]", dinodes)
	}

	used, err := scanner.Scan(dev, rgd, gfs2.StateUsed)
	if err != nil {
		t.Fatalf("Scan(StateUsed): %v", err)
	}
	if len(used) != 1 || used[0] != 102 {
		t.Fatalf("used = %v, want [102]", used)
	}

	free, err := scanner.Scan(dev, rgd, gfs2.StateFree)
	if err != nil {
		t.Fatalf("Scan(StateFree): %v", err)
	}
	if len(free) != 2 || free[0] != 100 || free[1] != 103 {
		t.Fatalf("free = %v, want [100 103]", free)
	}
}
