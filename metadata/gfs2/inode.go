package gfs2

import "encoding/binary"

// dinodeInfo is the slice of a parsed dinode the walker needs: traversal
// height, the flags that decide effective height and leaf handling, the
// extended-attribute head block address, and the dinode's own direct
// pointer area (spec.md §4.7 step 1).
type dinodeInfo struct {
	height     uint32
	isDir      bool
	isSymlink  bool
	isExHash   bool
	isJData    bool
	isSystem   bool
	eattr      uint64
	directPtrs []uint64
}

func parseDinodeInfo(buf []byte) dinodeInfo {
	fl, height := parseDIFlagsAndHeight(buf)
	var eattr uint64
	if len(buf) >= diOffEattr+8 {
		eattr = binary.BigEndian.Uint64(buf[diOffEattr : diOffEattr+8])
	}
	var flags uint32
	if len(buf) >= diOffFlags+4 {
		flags = binary.BigEndian.Uint32(buf[diOffFlags : diOffFlags+4])
	}
	return dinodeInfo{
		height:     height,
		isDir:      fl.isDir,
		isSymlink:  fl.isSymlink,
		isExHash:   fl.isExHash,
		isJData:    fl.isJData,
		isSystem:   flags&diFlagSystem != 0,
		eattr:      eattr,
		directPtrs: readPointers(buf, pointerAreaStart),
	}
}

// readPointers reads every 8-byte big-endian pointer slot from offset to
// the end of buf.
func readPointers(buf []byte, offset int) []uint64 {
	if offset >= len(buf) {
		return nil
	}
	n := (len(buf) - offset) / 8
	out := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		start := offset + i*8
		out = append(out, binary.BigEndian.Uint64(buf[start:start+8]))
	}
	return out
}

// effectiveHeight computes H per spec.md §4.7 step 2.
func effectiveHeight(info dinodeInfo, ownedBySystemFile bool) uint32 {
	switch {
	case (info.isDir && info.isExHash) || info.isJData:
		// EXHASH directory (including the legacy directory flag,
		// modeled here as isJData doubling as the legacy-directory
		// marker per spec.md §3's "legacy-directory-flag"): one level
		// above height is the leaf table.
		return info.height + 1
	case info.height > 0 && !info.isSystem && !ownedBySystemFile && !info.isDir:
		// stop one level short to exclude user data blocks
		return info.height - 1
	default:
		return info.height
	}
}

// SaveInodeData descends a dinode's indirect tree to its correct height,
// collects leaf-directory chains, and follows extended-attribute blocks
// (spec.md §4.7). buf is the dinode's own block content; addr is its
// block address. The dinode block itself is archived by the caller (C8)
// before handing the block to this walker — C7's job starts at its
// descendants.
func SaveInodeData(ctx *SaveContext, sink Sink, buf []byte, addr uint64) error {
	info := parseDinodeInfo(buf)
	ownedBySystemFile := ctx.SysFiles.IsSystem(addr) || ctx.SysFiles.IsRoot(addr)
	h := effectiveHeight(info, ownedBySystemFile)

	if h > 0 {
		queue, err := walkLevel(ctx, sink, info.directPtrs, addr)
		if err != nil {
			return err
		}
		for level := uint32(2); level <= h; level++ {
			var next []*BlockRange
			for _, br := range queue {
				for i := uint64(0); i < br.Len; i++ {
					ptrs := readPointers(br.Block(int(i)), metaPointerAreaStart)
					nq, err := walkLevel(ctx, sink, ptrs, addr)
					if err != nil {
						return err
					}
					next = append(next, nq...)
				}
			}
			queue = next
			if queue == nil {
				break
			}
		}
		if info.isExHash {
			if err := walkLeafChains(ctx, sink, queue); err != nil {
				return err
			}
		}
	}

	if info.eattr != 0 {
		if err := saveExtendedAttributes(ctx, sink, info.eattr, addr); err != nil {
			logRecoverable(ctx, err)
		}
	}
	return nil
}

// walkLevel coalesces ptrs into contiguous runs, reads and saves each
// run, and returns the saved ranges so the caller can drain them at the
// next level (spec.md §4.7 steps 3-4, 7).
func walkLevel(ctx *SaveContext, sink Sink, ptrs []uint64, owner uint64) ([]*BlockRange, error) {
	var queue []*BlockRange
	for _, rg := range CoalescePointers(ptrs) {
		br, err := ReadRange(ctx.Device, ctx.Params.BlockSize, ctx.Params.TotalBlocks, rg.Start, rg.Len, owner, ctx.Params.Variant, ctx.SysFiles)
		if err != nil {
			logRecoverable(ctx, err)
			continue
		}
		if err := saveBlockRange(ctx, sink, br); err != nil {
			return nil, err
		}
		queue = append(queue, br)
	}
	return queue, nil
}

// saveBlockRange writes every significant slot of br through the record
// codec, skipping slots C3 marked zero-length (spec.md §3: "save_buf
// with blklen==0 is a no-op").
func saveBlockRange(ctx *SaveContext, sink Sink, br *BlockRange) error {
	for i := uint64(0); i < br.Len; i++ {
		ctx.Progress.Tick(false)
		if br.Lens[i] == 0 {
			continue
		}
		if err := WriteRecord(sink, br.Start+i, br.Block(int(i))[:br.Lens[i]]); err != nil {
			return err
		}
		ctx.Progress.Archive()
	}
	return nil
}

// maxLeafChainSteps bounds leaf-chain walking to defend against a
// corrupt lf_next cycle (spec.md §9 design note: "Defensive
// implementations should cap leaf-chain length at fssize block reads").
func (ctx *SaveContext) maxLeafChainSteps() uint64 {
	if ctx.Params.TotalBlocks == 0 {
		return 1 << 20
	}
	return ctx.Params.TotalBlocks
}

// walkLeafChains follows each leaf block's lf_next pointer until zero,
// reading and archiving every newly discovered linked block
// (spec.md §4.7 step 5). The leaf blocks directly addressed by the final
// indirect level were already archived by walkLevel; this only extends
// into the hash-bucket overflow chain.
func walkLeafChains(ctx *SaveContext, sink Sink, finalLevel []*BlockRange) error {
	for _, br := range finalLevel {
		for i := uint64(0); i < br.Len; i++ {
			addr := br.Start + i
			next := leafNext(br.Block(int(i)))
			steps := uint64(0)
			for next != 0 {
				steps++
				if steps > ctx.maxLeafChainSteps() {
					logAdvisory(ctx, "leaf chain from block %d exceeded max length, stopping", addr)
					break
				}
				rg, err := ReadRange(ctx.Device, ctx.Params.BlockSize, ctx.Params.TotalBlocks, next, 1, addr, ctx.Params.Variant, ctx.SysFiles)
				if err != nil {
					// out-of-range pointer or read failure: advisory,
					// stop this chain (spec.md §4.7 step 5, §7).
					logAdvisory(ctx, "leaf chain from block %d: %v", addr, err)
					break
				}
				if rg.Kinds[0] != KindLeaf {
					break
				}
				if err := saveBlockRange(ctx, sink, rg); err != nil {
					return err
				}
				next = leafNext(rg.Block(0))
			}
		}
	}
	return nil
}

// leafOffNext is the offset of lf_next within a leaf block.
const (
	leafOffNext = metaHeaderLen // immediately after the metadata header
)

func leafNext(buf []byte) uint64 {
	if len(buf) < leafOffNext+8 {
		return 0
	}
	return binary.BigEndian.Uint64(buf[leafOffNext : leafOffNext+8])
}
