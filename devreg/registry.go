// Package devreg is the name-to-device registry: registration, lookup,
// and capacity bookkeeping. It is grounded on the original framework's
// driver.c, which backs the same operations with a fixed-capacity hash
// table; here a map under a mutex serves the same bound (MaxDevices),
// since the cooperative single-main-loop model makes the mutex a
// defensive measure rather than a true concurrency requirement — devices
// are registered once at boot, long before the scheduler starts running
// task functions that call Find.
package devreg

import (
	"sync"

	"github.com/google/uuid"

	"github.com/embeddedvos/vos/dalerr"
	"github.com/embeddedvos/vos/device"
	"github.com/embeddedvos/vos/internal/logging"
)

// DefaultMaxDevices mirrors MAX_DEVICE_NUM from the original driver.h.
const DefaultMaxDevices = 32

// Registry maps device names to Device handles under a bounded capacity.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*device.Device
	max     int
	logger  *logging.Logger
}

// Config parameterizes a Registry.
type Config struct {
	MaxDevices int // defaults to DefaultMaxDevices when <= 0
	Logger     *logging.Logger
}

// New builds an empty Registry.
func New(cfg Config) *Registry {
	max := cfg.MaxDevices
	if max <= 0 {
		max = DefaultMaxDevices
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		devices: make(map[string]*device.Device, max),
		max:     max,
		logger:  logger,
	}
}

// InitFunc initializes a freshly allocated Device before it becomes
// visible to Find. It is called exactly once, during Register.
type InitFunc func(dev *device.Device) error

// Register allocates a Device, runs init on it exactly once, and makes it
// visible under name. Duplicate names and capacity exhaustion both tear
// the device back down (nothing to undo but the map insert, since init
// failures are the caller's responsibility to have rolled back) and
// return a *dalerr.Error.
func (r *Registry) Register(name string, ops device.FileOps, size int64, init InitFunc) (*device.Device, error) {
	if name == "" {
		return nil, dalerr.New("register", dalerr.Invalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[name]; exists {
		return nil, dalerr.NewDevice("register", name, dalerr.Occupied)
	}
	if len(r.devices) >= r.max {
		return nil, dalerr.NewDevice("register", name, dalerr.Overflow)
	}

	dev := &device.Device{ID: uuid.New(), Name: name, Ops: ops, Size: size}
	if init != nil {
		if err := init(dev); err != nil {
			r.logger.Warn("driver init failed", "device", name, "error", err)
			return nil, dalerr.Wrap("register", dalerr.Exception, err)
		}
	}

	r.devices[name] = dev
	r.logger.Debug("device registered", "device", name, "id", dev.ID, "size", size)
	return dev, nil
}

// Find looks up a device by name, returning nil if it is not registered.
func (r *Registry) Find(name string) *device.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[name]
}

// Names returns every registered device name. Order is unspecified — the
// original fill_all_names enumerated a hash table in bucket order and
// truncated into a caller buffer; Go callers get an ordinary slice with
// no truncation concern, so there is nothing to cap here.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	return names
}

// Len reports how many devices are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}
