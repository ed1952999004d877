package vos

import (
	"github.com/embeddedvos/vos/memdev"
)

// NewTestMachine builds a Machine with one memdev-backed device already
// registered and opened, for exercising descriptor-table I/O without a
// real driver — a ready-made double for tests that only need "a device
// that behaves" rather than a specific storage technology.
func NewTestMachine(deviceName string, size int64) (*Machine, int, error) {
	m := New(Config{})
	mem := memdev.New(size)
	_, err := m.Devices.Register(deviceName, memdev.FileOps(), size, memdev.Init(mem))
	if err != nil {
		return nil, 0, err
	}
	fd, err := m.FDs.Open(deviceName)
	if err != nil {
		return nil, 0, err
	}
	return m, fd, nil
}
