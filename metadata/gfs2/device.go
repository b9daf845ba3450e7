package gfs2

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Device is the positioned-I/O handle the save and restore orchestrators
// drive. It is narrower than *os.File on purpose: every call the pipeline
// makes is a pread/pwrite at an explicit offset, never a read/write against
// a shared cursor, because the walk in §4.7/§4.8 interleaves reads across
// levels and the restore loop in §4.10 must not let one write silently
// advance a cursor another caller relies on.
type Device interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
	Size() (int64, error)
	Close() error
}

// osDevice backs Device with a real file descriptor, using
// golang.org/x/sys/unix directly for Pread/Pwrite/Fsync/Fstat rather than
// the higher-level os.File methods: os.File.ReadAt/WriteAt already are
// pread/pwrite under the hood, but Fsync is exposed here via the raw fd so
// device.go has one place that also owns Fstat for the restore "is the
// destination big enough" check (spec.md §4.10 step 7, §8 scenario 6).
type osDevice struct {
	f *os.File
}

// OpenDevice opens a device or image file for the given mode. write
// requests O_RDWR and creates the file if it does not exist (restore
// destinations); otherwise the file is opened read-only (save sources).
func OpenDevice(path string, write bool) (Device, error) {
	flags := os.O_RDONLY
	if write {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", path, err)
	}
	return &osDevice{f: f}, nil
}

func (d *osDevice) ReadAt(p []byte, off int64) (int, error) {
	n, err := unix.Pread(int(d.f.Fd()), p, off)
	if err != nil {
		return n, fmt.Errorf("pread at %d: %w", off, err)
	}
	return n, nil
}

func (d *osDevice) WriteAt(p []byte, off int64) (int, error) {
	n, err := unix.Pwrite(int(d.f.Fd()), p, off)
	if err != nil {
		return n, fmt.Errorf("pwrite at %d: %w", off, err)
	}
	return n, nil
}

func (d *osDevice) Sync() error {
	return unix.Fsync(int(d.f.Fd()))
}

func (d *osDevice) Size() (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(d.f.Fd()), &st); err != nil {
		return 0, fmt.Errorf("fstat: %w", err)
	}
	if st.Size > 0 {
		return st.Size, nil
	}
	// block devices report a zero regular size; fall back to seeking to
	// the end, which works for both block devices and plain files.
	end, err := d.f.Seek(0, os.SEEK_END)
	if err != nil {
		return 0, fmt.Errorf("seek to end: %w", err)
	}
	return end, nil
}

func (d *osDevice) Close() error {
	return d.f.Close()
}
