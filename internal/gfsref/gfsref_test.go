package gfsref

import (
	"github.com/gfs2meta/gfs2meta/metadata/gfs2"
)

// memDevice is an in-memory gfs2.Device for exercising the collaborator
// implementations without a real block device, matching the style of
// metadata/gfs2's own memDevice test fake.
type memDevice struct {
	data []byte
}

func newMemDevice(sizeBytes int) *memDevice {
	return &memDevice{data: make([]byte, sizeBytes)}
}

func (m *memDevice) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *memDevice) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.data[off:], p)
	return n, nil
}

func (m *memDevice) Sync() error  { return nil }
func (m *memDevice) Close() error { return nil }
func (m *memDevice) Size() (int64, error) {
	return int64(len(m.data)), nil
}

var _ gfs2.Device = (*memDevice)(nil)
