package gfs2

import (
	"errors"
	"fmt"
)

// Error taxonomy (spec.md §7). Fatal errors propagate up through the
// normal Go error-return chain and abort the orchestrator; recoverable and
// advisory conditions are logged at the point of occurrence and never
// returned.

// ErrDestinationTooSmall is returned by the restore orchestrator when a
// record's address falls outside the destination's block range
// (spec.md §4.10 step 7, §8 scenario 6).
var ErrDestinationTooSmall = errors.New("file system is too small to restore")

// ErrSuperblockNotFound is returned when the restore orchestrator's
// prefix scan (spec.md §4.10 step 3) fails to locate a superblock record.
var ErrSuperblockNotFound = errors.New("could not find superblock in archive")

// ErrUUIDMismatch is returned when the UUID recorded in an archive's
// header does not match the UUID inside the archive's own superblock
// record (SPEC_FULL.md §8 scenario 7). The destination device's
// superblock is not read for this check.
var ErrUUIDMismatch = errors.New("archive header UUID does not match the archived superblock")

// ErrBadRange is the recoverable diagnostic raised when a block range
// check fails (out of [SBAddr, fssize), or a short read/seek). Callers
// log it via logRecoverable and continue; the affected range's records
// are simply absent from the output.
type ErrBadRange struct {
	Start uint64
	Len   uint64
	Cause error
}

func (e *ErrBadRange) Error() string {
	return fmt.Sprintf("bad range 0x%x (%d blocks): %v", e.Start, e.Len, e.Cause)
}

func (e *ErrBadRange) Unwrap() error { return e.Cause }

// logRecoverable logs a recoverable error (spec.md §7) at warn level and
// returns, by design, nothing: the caller discards it and continues.
func logRecoverable(ctx *SaveContext, err error) {
	if ctx == nil || ctx.Log == nil || err == nil {
		return
	}
	ctx.Log.WithError(err).Warn("recoverable: skipping range")
}

// logAdvisory logs an advisory diagnostic (spec.md §7) at info level,
// e.g. an out-of-range pointer found inside an indirect block.
func logAdvisory(ctx *SaveContext, format string, args ...interface{}) {
	if ctx == nil || ctx.Log == nil {
		return
	}
	ctx.Log.Infof(format, args...)
}
