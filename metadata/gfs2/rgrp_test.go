package gfs2

import "testing"

type fakeRindex struct {
	rgrps []RgrpDescriptor
}

func (f *fakeRindex) Rgrps(dev Device) ([]RgrpDescriptor, error) { return f.rgrps, nil }

type fakeBitmap struct {
	byRgAddr         map[uint64][]uint64
	unlinkedByRgAddr map[uint64][]uint64
}

func (f *fakeBitmap) Scan(dev Device, rgd RgrpDescriptor, state BitmapState) ([]uint64, error) {
	switch state {
	case StateDinode:
		return f.byRgAddr[rgd.Addr], nil
	case StateUnlinked:
		return f.unlinkedByRgAddr[rgd.Addr], nil
	default:
		return nil, nil
	}
}

func TestSaveResourceGroupsWalksHeaderAndDinodes(t *testing.T) {
	const bsize = 4096
	const total = 128
	dev := newMemDevice(total, bsize)

	// One resource group at block 32: header + 1 bitmap block, data
	// region starting at 34, containing one dinode at block 34.
	copy(dev.data[32*bsize:], metaHeader(metaTypeRG))
	copy(dev.data[33*bsize:], metaHeader(metaTypeRB))

	dinode := dinodeBlock(bsize, 0o100644, 0, 0)
	copy(dev.data[34*bsize:], dinode)

	rgd := RgrpDescriptor{Addr: 32, Length: 3, DataStart: 34, DataCount: 1, BitmapBlocks: 1}

	ctx := &SaveContext{
		Device:   dev,
		Params:   FSParams{BlockSize: bsize, TotalBlocks: total, Variant: VariantGFS2},
		SysFiles: &SystemFiles{Journals: NewJournalRegistry()},
		Rindex:   &fakeRindex{rgrps: []RgrpDescriptor{rgd}},
		Bitmaps:  &fakeBitmap{byRgAddr: map[uint64][]uint64{32: {34}}},
		Progress: NewProgressMeter(nil),
	}
	sink := &bufSink{}

	if err := SaveResourceGroups(ctx, sink); err != nil {
		t.Fatalf("SaveResourceGroups: %v", err)
	}

	src := &bufSource{data: sink.buf.Bytes()}
	seen := map[uint64]bool{}
	for {
		rec, err := ReadRecord(src, 0, bsize)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if rec == nil {
			break
		}
		seen[rec.Addr] = true
	}

	for _, want := range []uint64{32, 33, 34} {
		if !seen[want] {
			t.Errorf("expected block %d to be archived, got %v", want, seen)
		}
	}
}

func TestSaveResourceGroupsRGsOnlySkipsDinodes(t *testing.T) {
	const bsize = 4096
	const total = 128
	dev := newMemDevice(total, bsize)
	copy(dev.data[32*bsize:], metaHeader(metaTypeRG))
	copy(dev.data[33*bsize:], metaHeader(metaTypeRB))
	dinode := dinodeBlock(bsize, 0o100644, 0, 0)
	copy(dev.data[34*bsize:], dinode)

	rgd := RgrpDescriptor{Addr: 32, Length: 3, DataStart: 34, DataCount: 1, BitmapBlocks: 1}
	ctx := &SaveContext{
		Device:   dev,
		Params:   FSParams{BlockSize: bsize, TotalBlocks: total, Variant: VariantGFS2},
		SysFiles: &SystemFiles{Journals: NewJournalRegistry()},
		Rindex:   &fakeRindex{rgrps: []RgrpDescriptor{rgd}},
		Bitmaps:  &fakeBitmap{byRgAddr: map[uint64][]uint64{32: {34}}},
		Progress: NewProgressMeter(nil),
		RGsOnly:  true,
	}
	sink := &bufSink{}

	if err := SaveResourceGroups(ctx, sink); err != nil {
		t.Fatalf("SaveResourceGroups: %v", err)
	}

	src := &bufSource{data: sink.buf.Bytes()}
	for {
		rec, err := ReadRecord(src, 0, bsize)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if rec == nil {
			break
		}
		if rec.Addr == 34 {
			t.Fatalf("--rgs-only should not have archived dinode block 34")
		}
	}
}

func TestSaveRgrpDinodesSkipsBitmapMismatch(t *testing.T) {
	const bsize = 4096
	const total = 128
	dev := newMemDevice(total, bsize)
	// block 34 is NOT actually a dinode (no magic), but the bitmap
	// claims it is one: saveRgrpDinodes should log and skip, not fail.
	rgd := RgrpDescriptor{Addr: 32, Length: 3, DataStart: 34, DataCount: 1, BitmapBlocks: 1}
	ctx := &SaveContext{
		Device:   dev,
		Params:   FSParams{BlockSize: bsize, TotalBlocks: total, Variant: VariantGFS2},
		SysFiles: &SystemFiles{Journals: NewJournalRegistry()},
		Bitmaps:  &fakeBitmap{byRgAddr: map[uint64][]uint64{32: {34}}},
		Progress: NewProgressMeter(nil),
	}
	sink := &bufSink{}

	if err := saveRgrpDinodes(ctx, sink, rgd); err != nil {
		t.Fatalf("saveRgrpDinodes: %v", err)
	}
}

func TestSaveResourceGroupsLegacyScansUnlinked(t *testing.T) {
	const bsize = 4096
	const total = 128
	dev := newMemDevice(total, bsize)
	copy(dev.data[32*bsize:], metaHeader(metaTypeRG))
	copy(dev.data[33*bsize:], metaHeader(metaTypeRB))

	// Block 35 is marked Unlinked in the legacy bitmap and carries no
	// metadata header at all; it must still be archived in full.
	unlinkedBlock := make([]byte, bsize)
	for i := range unlinkedBlock {
		unlinkedBlock[i] = 0xcd
	}
	copy(dev.data[35*bsize:], unlinkedBlock)

	rgd := RgrpDescriptor{Addr: 32, Length: 4, DataStart: 34, DataCount: 2, BitmapBlocks: 1}
	ctx := &SaveContext{
		Device:   dev,
		Params:   FSParams{BlockSize: bsize, TotalBlocks: total, Variant: VariantGFS1},
		SysFiles: &SystemFiles{Journals: NewJournalRegistry()},
		Rindex:   &fakeRindex{rgrps: []RgrpDescriptor{rgd}},
		Bitmaps:  &fakeBitmap{unlinkedByRgAddr: map[uint64][]uint64{32: {35}}},
		Progress: NewProgressMeter(nil),
	}
	sink := &bufSink{}

	if err := SaveResourceGroups(ctx, sink); err != nil {
		t.Fatalf("SaveResourceGroups: %v", err)
	}

	src := &bufSource{data: sink.buf.Bytes()}
	var found *Record
	for {
		rec, err := ReadRecord(src, 0, bsize)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if rec == nil {
			break
		}
		if rec.Addr == 35 {
			found = rec
		}
	}
	if found == nil {
		t.Fatalf("expected unlinked block 35 to be archived in the legacy variant")
	}
	if len(found.Payload) != bsize {
		t.Fatalf("unlinked block payload = %d bytes, want %d (full length)", len(found.Payload), bsize)
	}
}

func TestSaveResourceGroupsModernVariantSkipsUnlinkedScan(t *testing.T) {
	const bsize = 4096
	const total = 128
	dev := newMemDevice(total, bsize)
	copy(dev.data[32*bsize:], metaHeader(metaTypeRG))
	copy(dev.data[33*bsize:], metaHeader(metaTypeRB))

	rgd := RgrpDescriptor{Addr: 32, Length: 4, DataStart: 34, DataCount: 2, BitmapBlocks: 1}
	bitmaps := &fakeBitmap{unlinkedByRgAddr: map[uint64][]uint64{32: {35}}}
	ctx := &SaveContext{
		Device:   dev,
		Params:   FSParams{BlockSize: bsize, TotalBlocks: total, Variant: VariantGFS2},
		SysFiles: &SystemFiles{Journals: NewJournalRegistry()},
		Rindex:   &fakeRindex{rgrps: []RgrpDescriptor{rgd}},
		Bitmaps:  bitmaps,
		Progress: NewProgressMeter(nil),
	}
	sink := &bufSink{}

	if err := SaveResourceGroups(ctx, sink); err != nil {
		t.Fatalf("SaveResourceGroups: %v", err)
	}

	src := &bufSource{data: sink.buf.Bytes()}
	for {
		rec, err := ReadRecord(src, 0, bsize)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if rec == nil {
			break
		}
		if rec.Addr == 35 {
			t.Fatalf("modern (gfs2) variant should never scan StateUnlinked")
		}
	}
}
