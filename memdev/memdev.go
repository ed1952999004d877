// Package memdev is a RAM-backed device: a byte-addressable region
// carved into fixed shards so that reads and writes falling in different
// shards never contend on the same lock, adapted here from an
// (off, len)-at-a-time block interface to the framework's
// stateful-offset device.FileOps vtable.
package memdev

import (
	"sync"

	"github.com/embeddedvos/vos/dalerr"
	"github.com/embeddedvos/vos/device"
)

// ShardSize bounds how much of the region a single read or write locks
// at once.
const ShardSize = 64 * 1024

// Memory is a fixed-size RAM region with per-shard locking.
type Memory struct {
	data   []byte
	size   int64
	shards []sync.RWMutex
}

// New allocates a zeroed region of the given size.
func New(size int64) *Memory {
	numShards := (size + ShardSize - 1) / ShardSize
	if numShards < 1 {
		numShards = 1
	}
	return &Memory{
		data:   make([]byte, size),
		size:   size,
		shards: make([]sync.RWMutex, numShards),
	}
}

func (m *Memory) shardRange(off, length int64) (start, end int) {
	start = int(off / ShardSize)
	end = int((off + length - 1) / ShardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	return start, end
}

// ReadAt copies up to len(p) bytes starting at off, truncating at the
// end of the region rather than erroring.
func (m *Memory) ReadAt(p []byte, off int64) int {
	if off >= m.size || off < 0 {
		return 0
	}
	if available := m.size - off; int64(len(p)) > available {
		p = p[:available]
	}
	start, end := m.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		m.shards[i].RLock()
	}
	n := copy(p, m.data[off:off+int64(len(p))])
	for i := start; i <= end; i++ {
		m.shards[i].RUnlock()
	}
	return n
}

// WriteAt copies up to len(p) bytes starting at off, truncating at the
// end of the region.
func (m *Memory) WriteAt(p []byte, off int64) int {
	if off >= m.size || off < 0 {
		return 0
	}
	if available := m.size - off; int64(len(p)) > available {
		p = p[:available]
	}
	start, end := m.shardRange(off, int64(len(p)))
	for i := start; i <= end; i++ {
		m.shards[i].Lock()
	}
	n := copy(m.data[off:off+int64(len(p))], p)
	for i := start; i <= end; i++ {
		m.shards[i].Unlock()
	}
	return n
}

// Size returns the region's fixed capacity.
func (m *Memory) Size() int64 { return m.size }

// FileOps builds the vtable the framework drives this region through.
// Read/Write thread the descriptor's stored offset in and out; Lseek
// returns the requested absolute position without checking it, leaving
// bound-checking against Size to the descriptor layer.
func FileOps() device.FileOps {
	return device.FileOps{
		Open:  func(dev *device.Device) error { return nil },
		Close: func(dev *device.Device) error { return nil },
		Read: func(dev *device.Device, buf []byte, offset *int64) (int, error) {
			mem, ok := dev.GetPrivate().(*Memory)
			if !ok {
				return 0, dalerr.NewDevice("memdev.read", dev.Name, dalerr.Exception)
			}
			n := mem.ReadAt(buf, *offset)
			*offset += int64(n)
			return n, nil
		},
		Write: func(dev *device.Device, buf []byte, offset *int64) (int, error) {
			mem, ok := dev.GetPrivate().(*Memory)
			if !ok {
				return 0, dalerr.NewDevice("memdev.write", dev.Name, dalerr.Exception)
			}
			n := mem.WriteAt(buf, *offset)
			*offset += int64(n)
			return n, nil
		},
		Lseek: func(dev *device.Device, offset int64, whence device.Whence) (int64, error) {
			switch whence {
			case device.WhenceHead:
				return offset, nil
			case device.WhenceTail:
				return dev.Size + offset, nil
			default:
				return offset, nil
			}
		},
	}
}

// Init returns a devreg.InitFunc that attaches a freshly allocated
// Memory region as the device's private state and declares its size.
func Init(mem *Memory) func(dev *device.Device) error {
	return func(dev *device.Device) error {
		dev.Size = mem.Size()
		dev.SetPrivate(mem)
		return nil
	}
}
