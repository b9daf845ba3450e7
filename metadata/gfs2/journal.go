package gfs2

import "sort"

// JournalRegistry remembers which block addresses are journal head
// inodes and which dinodes are children of the per_node directory
// (spec.md §4.2). An ordered slice is used for membership lookup, as the
// spec notes "ordered-set lookup suffices" — there is no need for a
// balanced tree the way the original C tool's osi_root is, since Go's
// sort.Search gives O(log n) lookup over a sorted slice with far less
// ceremony.
type JournalRegistry struct {
	journals        []uint64 // head block address of each journal, discovery order preserved separately
	journalSet      []uint64 // sorted copy for membership tests
	journalSegments map[uint64]uint64 // legacy variant: segment count (16-block units) per journal head
	perNode         []uint64          // sorted set of per_node children
}

// NewJournalRegistry returns an empty registry.
func NewJournalRegistry() *JournalRegistry {
	return &JournalRegistry{journalSegments: make(map[uint64]uint64)}
}

// DiscoverJournals enumerates the children of the jindex directory (or,
// for the legacy variant, the legacy jindex records) in order, recording
// each journal's head block address. legacySegments, when non-nil, is
// consulted to record the legacy per-journal segment count used later by
// LegacyJournalExtent (SPEC_FULL.md §4, C9 step 5 expansion).
func (j *JournalRegistry) DiscoverJournals(dev Device, jindex *DinodeView, dirs DirectoryIterator, legacySegments map[uint64]uint64) error {
	entries, err := dirs.Children(dev, jindex)
	if err != nil {
		return err
	}
	for _, e := range entries {
		j.journals = append(j.journals, e.Addr)
		if legacySegments != nil {
			if n, ok := legacySegments[e.Addr]; ok {
				j.journalSegments[e.Addr] = n
			}
		}
	}
	j.journalSet = sortedCopy(j.journals)
	return nil
}

// DiscoverPerNode enumerates the children of the per_node directory
// dinode into the membership set.
func (j *JournalRegistry) DiscoverPerNode(dev Device, perNode *DinodeView, dirs DirectoryIterator) error {
	entries, err := dirs.Children(dev, perNode)
	if err != nil {
		return err
	}
	addrs := make([]uint64, 0, len(entries))
	for _, e := range entries {
		addrs = append(addrs, e.Addr)
	}
	j.perNode = sortedCopy(addrs)
	return nil
}

// IsJournal reports whether addr is a known journal head block.
func (j *JournalRegistry) IsJournal(addr uint64) bool {
	return memberOf(j.journalSet, addr)
}

// IsPerNodeChild reports whether addr is a dinode address discovered
// under the per_node directory.
func (j *JournalRegistry) IsPerNodeChild(addr uint64) bool {
	return memberOf(j.perNode, addr)
}

// Journals returns the discovered journal head addresses in discovery
// order.
func (j *JournalRegistry) Journals() []uint64 {
	return j.journals
}

// LegacyJournalExtent returns the block run a legacy (gfs1) journal
// occupies, converting the recorded segment count into blocks (16 blocks
// per segment, SPEC_FULL.md §4 C9 expansion). ok is false if addr is not
// a known legacy journal.
func (j *JournalRegistry) LegacyJournalExtent(addr uint64) (start, count uint64, ok bool) {
	segs, found := j.journalSegments[addr]
	if !found {
		return 0, 0, false
	}
	return addr, segs * 16, true
}

// sortedCopy returns a sorted copy of addrs suitable for memberOf binary
// search.
func sortedCopy(addrs []uint64) []uint64 {
	out := make([]uint64, len(addrs))
	copy(out, addrs)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func memberOf(sorted []uint64, addr uint64) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= addr })
	return i < len(sorted) && sorted[i] == addr
}

// SystemFiles is the per-filesystem-instance set of block addresses that
// are always treated as metadata-bearing regardless of their own
// classification (spec.md §3): jindex, inum, statfs, quota, rindex,
// per_node and its children, the root directory, and every journal inode
// block address.
type SystemFiles struct {
	JindexAddr uint64
	InumAddr   uint64
	StatfsAddr uint64
	QuotaAddr  uint64
	RindexAddr uint64
	PerNodeDir uint64
	RootAddr   uint64

	Journals *JournalRegistry
}

// IsSystem reports whether addr belongs to the fixed system-file set or
// is a known journal/per_node-child address.
func (s *SystemFiles) IsSystem(addr uint64) bool {
	if s == nil {
		return false
	}
	switch addr {
	case s.JindexAddr, s.InumAddr, s.StatfsAddr, s.QuotaAddr, s.RindexAddr, s.PerNodeDir, s.RootAddr:
		return true
	}
	if s.Journals != nil && (s.Journals.IsJournal(addr) || s.Journals.IsPerNodeChild(addr)) {
		return true
	}
	return false
}

// IsRoot reports whether addr is the filesystem root directory
// (SPEC_FULL.md §3 expansion: block_is_systemfile() in the original
// source treats the root directory the same as the other system files).
func (s *SystemFiles) IsRoot(addr uint64) bool {
	return s != nil && addr == s.RootAddr
}
