package gfs2

import (
	"fmt"

	"github.com/pkg/xattr"
)

// archiveUUIDXattr tags a finished archive file with the source
// filesystem's UUID, so a directory of archives can be matched back to
// the device they came from without reopening and parsing each one.
const archiveUUIDXattr = "user.gfs2meta.source_uuid"

// SaveOptions configures a single save run: the destination archive
// path, compression level (0 disables compression), and whether the
// walk is restricted to resource-group headers/bitmaps only.
type SaveOptions struct {
	ArchivePath string
	GzipLevel   int
	RGsOnly     bool
}

// RunSave drives the full save pipeline in the order spec.md §4.9 fixes:
// open sink, resolve filesystem facts and discover journals/per_node,
// write the archive header, archive the superblock, archive the legacy
// rindex/journal extents when applicable, then walk every resource
// group. The sink is always closed, even on error.
func RunSave(ctx *SaveContext, opts SaveOptions) (err error) {
	ctx.RGsOnly = opts.RGsOnly

	sink, err := NewSink(opts.ArchivePath, opts.GzipLevel)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	sb, err := ctx.Superblocks.ReadSuperblock(ctx.Device)
	if err != nil {
		return fmt.Errorf("read superblock: %w", err)
	}
	ctx.Params = sb.Params

	if err := discoverJournalsAndPerNode(ctx, sb); err != nil {
		return fmt.Errorf("discover journals: %w", err)
	}

	if err := WriteHeader(sink, ctx.Params.TotalBlocks*ctx.Params.BlockSize, ctx.Params.UUID); err != nil {
		return err
	}

	if err := saveSuperblockBlock(ctx, sink); err != nil {
		return err
	}

	if ctx.Params.Variant == VariantGFS1 {
		if err := saveLegacyRindexAndJournals(ctx, sink); err != nil {
			return fmt.Errorf("save legacy rindex/journals: %w", err)
		}
	}

	if err := SaveResourceGroups(ctx, sink); err != nil {
		return err
	}

	ctx.Progress.Tick(true)

	if err := xattr.Set(opts.ArchivePath, archiveUUIDXattr, ctx.Params.UUID[:]); err != nil {
		// best effort: the destination filesystem may not support user
		// xattrs (FAT, some network mounts) or the process may lack
		// permission for them; the archive itself is already complete.
		logAdvisory(ctx, "could not tag archive with source uuid: %v", err)
	}
	return nil
}

// discoverJournalsAndPerNode reads the jindex and per_node directories
// and populates ctx.Journals/ctx.SysFiles (spec.md §4.9 step 2, §4.2).
func discoverJournalsAndPerNode(ctx *SaveContext, sb *Superblock) error {
	ctx.Journals = NewJournalRegistry()

	jindex, err := ctx.Inodes.ReadInode(ctx.Device, sb.JournalIno)
	if err != nil {
		return fmt.Errorf("read jindex inode: %w", err)
	}

	var legacySegments map[uint64]uint64
	if ctx.Params.Variant == VariantGFS1 {
		legacySegments = make(map[uint64]uint64)
	}
	if err := ctx.Journals.DiscoverJournals(ctx.Device, jindex, ctx.Dirs, legacySegments); err != nil {
		return err
	}

	ctx.SysFiles = &SystemFiles{
		JindexAddr: sb.JournalIno,
		RindexAddr: ctx.Params.RindexAddr,
		RootAddr:   ctx.Params.MasterAddr,
		Journals:   ctx.Journals,
	}

	if ctx.Params.Variant != VariantGFS1 {
		perNodeEntry, err := findChild(ctx, jindex, "per_node")
		if err != nil {
			logAdvisory(ctx, "per_node directory not found: %v", err)
			return nil
		}
		ctx.SysFiles.PerNodeDir = perNodeEntry.Addr
		perNode, err := ctx.Inodes.ReadInode(ctx.Device, perNodeEntry.Addr)
		if err != nil {
			return fmt.Errorf("read per_node inode: %w", err)
		}
		if err := ctx.Journals.DiscoverPerNode(ctx.Device, perNode, ctx.Dirs); err != nil {
			return err
		}
	}
	return nil
}

func findChild(ctx *SaveContext, dir *DinodeView, name string) (DirEntry, error) {
	entries, err := ctx.Dirs.Children(ctx.Device, dir)
	if err != nil {
		return DirEntry{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return DirEntry{}, fmt.Errorf("child %q not found", name)
}

// saveSuperblockBlock archives the single full superblock block at
// SBAddr (spec.md §4.9 step 4).
func saveSuperblockBlock(ctx *SaveContext, sink Sink) error {
	br, err := ReadRange(ctx.Device, ctx.Params.BlockSize, ctx.Params.TotalBlocks, SBAddr, 1, SBAddr, ctx.Params.Variant, ctx.SysFiles)
	if err != nil {
		return fmt.Errorf("read superblock block: %w", err)
	}
	return saveBlockRange(ctx, sink, br)
}

// saveLegacyRindexAndJournals archives the rindex inode's tree and every
// legacy journal's block run (spec.md §4.9 step 5).
func saveLegacyRindexAndJournals(ctx *SaveContext, sink Sink) error {
	rindex, err := ctx.Inodes.ReadInode(ctx.Device, ctx.Params.RindexAddr)
	if err != nil {
		return fmt.Errorf("read rindex inode: %w", err)
	}
	br, err := ReadRange(ctx.Device, ctx.Params.BlockSize, ctx.Params.TotalBlocks, rindex.Addr, 1, rindex.Addr, ctx.Params.Variant, ctx.SysFiles)
	if err != nil {
		return err
	}
	if err := saveBlockRange(ctx, sink, br); err != nil {
		return err
	}
	if err := SaveInodeData(ctx, sink, br.Block(0), rindex.Addr); err != nil {
		return err
	}

	for _, head := range ctx.Journals.Journals() {
		start, count, ok := ctx.Journals.LegacyJournalExtent(head)
		if !ok {
			continue
		}
		for _, rg := range CoalescePointers(sequentialRun(start, count)) {
			jbr, err := ReadRange(ctx.Device, ctx.Params.BlockSize, ctx.Params.TotalBlocks, rg.Start, rg.Len, head, ctx.Params.Variant, ctx.SysFiles)
			if err != nil {
				logRecoverable(ctx, err)
				continue
			}
			if err := saveBlockRange(ctx, sink, jbr); err != nil {
				return err
			}
		}
	}
	return nil
}

// sequentialRun expands a {start, count} extent into an explicit pointer
// list so it can be fed through CoalescePointers alongside the rest of
// C9's range-producing call sites.
func sequentialRun(start, count uint64) []uint64 {
	out := make([]uint64, count)
	for i := uint64(0); i < count; i++ {
		out[i] = start + i
	}
	return out
}
