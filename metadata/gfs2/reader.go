package gfs2

import "fmt"

// BlockRange is the scratch aggregate C3 builds for a contiguous read: a
// run of blocks starting at Start, the classification of each slot, and
// the raw buffer backing them all. It is entirely owned by the caller
// (spec.md §3) and never retained past the enclosing level/leaf-chain
// walk.
type BlockRange struct {
	Start uint64
	Len   uint64
	Kinds []Kind
	Lens  []uint64
	Buf   []byte
}

// Block returns the raw bytes for the i'th block in the range.
func (r *BlockRange) Block(i int) []byte {
	bsize := len(r.Buf) / int(r.Len)
	return r.Buf[i*bsize : (i+1)*bsize]
}

// ReadRange performs one positioned read of len*bsize bytes starting at
// block start, then classifies every slot with Classify (spec.md §4.3).
// Slots classified as non-metadata whose effective owner is not a system
// file have their significant length forced to zero, so the record codec
// skips them entirely (spec.md §3 "Non-goals": user data is never saved).
//
// Ranges straddling [SBAddr, fssize), and short reads, are refused with
// an *ErrBadRange diagnostic and a nil range, per spec.md §4.3; callers
// treat this as recoverable.
func ReadRange(dev Device, bsize uint64, fssize uint64, start, length, owner uint64, variant Variant, sys *SystemFiles) (*BlockRange, error) {
	if length == 0 {
		return &BlockRange{Start: start}, nil
	}
	if start < SBAddr || start+length > fssize {
		return nil, &ErrBadRange{Start: start, Len: length, Cause: fmt.Errorf("outside [%d, %d)", SBAddr, fssize)}
	}

	buf := make([]byte, length*bsize)
	n, err := dev.ReadAt(buf, int64(start*bsize))
	if err != nil || uint64(n) != length*bsize {
		cause := err
		if cause == nil {
			cause = fmt.Errorf("short read: got %d of %d bytes", n, length*bsize)
		}
		return nil, &ErrBadRange{Start: start, Len: length, Cause: cause}
	}

	br := &BlockRange{Start: start, Len: length, Buf: buf, Kinds: make([]Kind, length), Lens: make([]uint64, length)}
	for i := uint64(0); i < length; i++ {
		blockOwner := owner
		if blockOwner == 0 {
			blockOwner = start + i
		}
		blk := buf[i*bsize : (i+1)*bsize]
		cr := Classify(blk, blockOwner, bsize, variant, sys)
		br.Kinds[i] = cr.Kind
		sigLen := cr.SignificantLen
		if !cr.IsMetadata && (sys == nil || !sys.IsSystem(blockOwner)) {
			sigLen = 0
		}
		br.Lens[i] = sigLen
	}
	return br, nil
}

// Range is a coalesced run of contiguous block pointers gathered while
// walking a dinode's or indirect block's pointer area (spec.md §4.7 step
// 7): {start, len}. Coalescing rule: a new pointer equal to the current
// run's start+len extends it; any other nonzero pointer flushes the run
// and starts a new one; duplicate consecutive pointers are skipped.
type Range struct {
	Start uint64
	Len   uint64
}

// CoalescePointers scans ptrs in order and returns the list of contiguous
// runs formed from its nonzero entries, applying the coalescing rule from
// spec.md §4.7 step 7.
func CoalescePointers(ptrs []uint64) []Range {
	var out []Range
	var cur *Range
	var lastSeen uint64
	haveLast := false

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, p := range ptrs {
		if p == 0 {
			flush()
			haveLast = false
			continue
		}
		if haveLast && p == lastSeen {
			// duplicate consecutive pointer: skip
			continue
		}
		if cur != nil && p == cur.Start+cur.Len {
			cur.Len++
		} else {
			flush()
			cur = &Range{Start: p, Len: 1}
		}
		lastSeen = p
		haveLast = true
	}
	flush()
	return out
}
