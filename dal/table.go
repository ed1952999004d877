// Package dal is the descriptor table that sits between application code
// and registered devices: Open resolves a name through a registry into a
// small non-negative integer, and every later call is keyed off that
// integer rather than the device itself, exactly as a POSIX fd is. It is
// grounded on the original framework's dal_opt.c, including its choice to
// reserve the first few descriptor slots (stdio-style) and hand out the
// lowest free index above them on every Open.
package dal

import (
	"sync"

	"github.com/embeddedvos/vos/dalerr"
	"github.com/embeddedvos/vos/device"
	"github.com/embeddedvos/vos/devreg"
)

// Reserved is the count of descriptor slots kept out of allocation, as
// the original RESERVED_FDS did for its stdio-shaped low fds.
const Reserved = 3

// DefaultCapacity matches devreg.DefaultMaxDevices. The count includes
// the Reserved slots, so DefaultCapacity-Reserved descriptors can be open
// at once.
const DefaultCapacity = devreg.DefaultMaxDevices

type slot struct {
	dev    *device.Device
	offset int64
	inUse  bool
}

// Table is a fixed-capacity descriptor table bound to a device registry.
type Table struct {
	mu       sync.Mutex
	slots    []slot
	registry *devreg.Registry
}

// Config parameterizes a Table.
type Config struct {
	Registry *devreg.Registry
	Capacity int // total slots including Reserved; defaults to DefaultCapacity
}

// New builds a Table bound to registry.
func New(cfg Config) *Table {
	cap := cfg.Capacity
	if cap <= 0 {
		cap = DefaultCapacity
	}
	if cap < Reserved {
		cap = Reserved
	}
	t := &Table{
		slots:    make([]slot, cap),
		registry: cfg.Registry,
	}
	for i := 0; i < Reserved && i < cap; i++ {
		t.slots[i].inUse = true
	}
	return t
}

func (t *Table) allocLocked() (int, error) {
	for i := Reserved; i < len(t.slots); i++ {
		if !t.slots[i].inUse {
			t.slots[i].inUse = true
			return i, nil
		}
	}
	return -1, dalerr.New("open", dalerr.Overflow)
}

func (t *Table) freeLocked(fd int) {
	if fd >= Reserved && fd < len(t.slots) {
		t.slots[fd] = slot{}
	}
}

func (t *Table) checkLocked(fd int) (*device.Device, error) {
	if fd < Reserved || fd >= len(t.slots) || !t.slots[fd].inUse {
		return nil, dalerr.NewFD("check", fd, dalerr.Invalid)
	}
	return t.slots[fd].dev, nil
}

// Open resolves name through the registry, allocates the lowest free
// descriptor above Reserved, and invokes the device's Open hook. A
// failing Open hook rolls the allocation back.
func (t *Table) Open(name string) (int, error) {
	dev := t.registry.Find(name)
	if dev == nil {
		return -1, dalerr.NewDevice("open", name, dalerr.NotExist)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fd, err := t.allocLocked()
	if err != nil {
		return -1, err
	}

	if dev.Ops.Open != nil {
		if err := dev.Ops.Open(dev); err != nil {
			t.freeLocked(fd)
			return -1, dalerr.WrapFD("open", fd, dalerr.Exception, err)
		}
	}

	t.slots[fd].dev = dev
	t.slots[fd].offset = 0
	return fd, nil
}

// Close invokes the device's Close hook and releases fd.
func (t *Table) Close(fd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	dev, err := t.checkLocked(fd)
	if err != nil {
		return err
	}
	if dev.Ops.Close == nil {
		return dalerr.NewFD("close", fd, dalerr.Exception)
	}
	if err := dev.Ops.Close(dev); err != nil {
		return dalerr.WrapFD("close", fd, dalerr.Exception, err)
	}
	t.freeLocked(fd)
	return nil
}

// Read reads from fd at its current offset and advances it.
func (t *Table) Read(fd int, buf []byte) (int, error) {
	t.mu.Lock()
	dev, err := t.checkLocked(fd)
	if err != nil {
		t.mu.Unlock()
		return 0, err
	}
	if dev.Ops.Read == nil {
		t.mu.Unlock()
		return 0, dalerr.NewFD("read", fd, dalerr.Exception)
	}
	offset := &t.slots[fd].offset
	t.mu.Unlock()

	n, err := dev.Ops.Read(dev, buf, offset)
	if err != nil {
		return n, dalerr.WrapFD("read", fd, dalerr.Exception, err)
	}
	return n, nil
}

// Write writes to fd at its current offset and advances it. buf is never
// mutated.
func (t *Table) Write(fd int, buf []byte) (int, error) {
	t.mu.Lock()
	dev, err := t.checkLocked(fd)
	if err != nil {
		t.mu.Unlock()
		return 0, err
	}
	if dev.Ops.Write == nil {
		t.mu.Unlock()
		return 0, dalerr.NewFD("write", fd, dalerr.Exception)
	}
	offset := &t.slots[fd].offset
	t.mu.Unlock()

	n, err := dev.Ops.Write(dev, buf, offset)
	if err != nil {
		return n, dalerr.WrapFD("write", fd, dalerr.Exception, err)
	}
	return n, nil
}

// Ioctl dispatches a device-defined command.
func (t *Table) Ioctl(fd int, cmd int, arg any) (int, error) {
	t.mu.Lock()
	dev, err := t.checkLocked(fd)
	t.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if dev.Ops.Ioctl == nil {
		return 0, dalerr.NewFD("ioctl", fd, dalerr.Exception)
	}
	n, err := dev.Ops.Ioctl(dev, cmd, arg)
	if err != nil {
		return n, dalerr.WrapFD("ioctl", fd, dalerr.Exception, err)
	}
	return n, nil
}

// Lseek repositions fd's offset. A WhenceCur request is resolved against
// fd's current offset and passed to the device as WhenceHead. A HEAD or
// CUR result below zero, or any result past the device's declared Size
// when Size is non-zero, is rejected with dalerr.Invalid and leaves the
// offset unchanged.
func (t *Table) Lseek(fd int, offset int64, whence device.Whence) (int64, error) {
	t.mu.Lock()
	dev, err := t.checkLocked(fd)
	if err != nil {
		t.mu.Unlock()
		return 0, err
	}
	if dev.Ops.Lseek == nil {
		t.mu.Unlock()
		return 0, dalerr.NewFD("lseek", fd, dalerr.Exception)
	}
	if whence == device.WhenceCur {
		offset += t.slots[fd].offset
		whence = device.WhenceHead
	}
	t.mu.Unlock()

	newOffset, err := dev.Ops.Lseek(dev, offset, whence)
	if err != nil {
		return 0, dalerr.WrapFD("lseek", fd, dalerr.Exception, err)
	}
	if whence == device.WhenceHead && newOffset < 0 {
		return 0, dalerr.NewFD("lseek", fd, dalerr.Invalid)
	}
	if dev.Size > 0 && newOffset > dev.Size {
		return 0, dalerr.NewFD("lseek", fd, dalerr.Invalid)
	}

	t.mu.Lock()
	t.slots[fd].offset = newOffset
	t.mu.Unlock()
	return newOffset, nil
}

// Capacity returns the table's total slot count, including Reserved.
func (t *Table) Capacity() int { return len(t.slots) }
