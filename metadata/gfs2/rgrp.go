package gfs2

import "fmt"

// SaveResourceGroups walks every resource group in ascending address
// order, archiving each group's header and bitmap blocks and, unless
// ctx.RGsOnly restricts the pass, every dinode the group's bitmap marks
// allocated, descending into each one with SaveInodeData (spec.md §4.8,
// §4.9 step 6, the `--rgs-only` CLI flag from §6).
func SaveResourceGroups(ctx *SaveContext, sink Sink) error {
	rgrps, err := ctx.Rindex.Rgrps(ctx.Device)
	if err != nil {
		return err
	}

	for _, rgd := range rgrps {
		if err := saveRgrpHeader(ctx, sink, rgd); err != nil {
			logRecoverable(ctx, err)
			continue
		}
		if ctx.RGsOnly {
			continue
		}
		if err := saveRgrpDinodes(ctx, sink, rgd); err != nil {
			return err
		}
		if ctx.Params.Variant == VariantGFS1 {
			if err := saveRgrpUnlinked(ctx, sink, rgd); err != nil {
				return err
			}
		}
	}
	return nil
}

// saveRgrpHeader archives the rgrp header block and every bitmap block
// that follows it, a single contiguous range (spec.md §4.8 step 1).
// Every block of the range is saved at full length, whatever Classify
// made of it.
func saveRgrpHeader(ctx *SaveContext, sink Sink, rgd RgrpDescriptor) error {
	length := 1 + rgd.BitmapBlocks
	br, err := ReadRange(ctx.Device, ctx.Params.BlockSize, ctx.Params.TotalBlocks, rgd.Addr, length, rgd.Addr, ctx.Params.Variant, ctx.SysFiles)
	if err != nil {
		return err
	}
	for i := range br.Lens {
		br.Lens[i] = ctx.Params.BlockSize
	}
	return saveBlockRange(ctx, sink, br)
}

// saveRgrpDinodes scans rgd's bitmap for allocated dinode blocks, saves
// each dinode block itself, and hands it to SaveInodeData to descend into
// its indirect tree, leaf chains, and extended attributes (spec.md §4.8
// step 2, §4.9 step 6).
func saveRgrpDinodes(ctx *SaveContext, sink Sink, rgd RgrpDescriptor) error {
	addrs, err := ctx.Bitmaps.Scan(ctx.Device, rgd, StateDinode)
	if err != nil {
		logRecoverable(ctx, err)
		return nil
	}
	for _, addr := range addrs {
		br, err := ReadRange(ctx.Device, ctx.Params.BlockSize, ctx.Params.TotalBlocks, addr, 1, addr, ctx.Params.Variant, ctx.SysFiles)
		if err != nil {
			logRecoverable(ctx, err)
			continue
		}
		if br.Kinds[0] != KindDinode {
			logAdvisory(ctx, "bitmap marked block %d dinode but classify disagreed", addr)
			continue
		}
		if err := saveBlockRange(ctx, sink, br); err != nil {
			return err
		}
		if err := SaveInodeData(ctx, sink, br.Block(0), addr); err != nil {
			return err
		}
	}
	return nil
}

// saveRgrpUnlinked scans rgd's bitmap for blocks in state Unlinked, a
// legacy (gfs1) state marking a dinode that has been unlinked but is
// still referenced by an open file descriptor (spec.md §4.8 step 3). The
// modern (gfs2) format reclaims these immediately, so there is nothing to
// scan outside the legacy variant. Each returned block is archived at
// full length unconditionally, the same way saveEADataChain bypasses
// Classify for EA data: an unlinked dinode's own blocks carry no
// reliable classification-time ownership, and the original
// save_allocated saves them with an unconditional save_buf call.
func saveRgrpUnlinked(ctx *SaveContext, sink Sink, rgd RgrpDescriptor) error {
	addrs, err := ctx.Bitmaps.Scan(ctx.Device, rgd, StateUnlinked)
	if err != nil {
		logRecoverable(ctx, err)
		return nil
	}
	bsize := ctx.Params.BlockSize
	for _, addr := range addrs {
		buf := make([]byte, bsize)
		n, err := ctx.Device.ReadAt(buf, int64(addr*bsize))
		if err != nil || uint64(n) != bsize {
			cause := err
			if cause == nil {
				cause = fmt.Errorf("short read: got %d of %d bytes", n, bsize)
			}
			logRecoverable(ctx, &ErrBadRange{Start: addr, Len: 1, Cause: cause})
			continue
		}
		if err := WriteRecord(sink, addr, buf); err != nil {
			return err
		}
	}
	return nil
}
