// Package vos provides the main API for assembling a cooperative,
// single-core embedded runtime out of its four subsystems: a driver
// registry, a descriptor-table I/O layer, a tick scheduler, and the
// Modbus RTU master/slave endpoints in the modbus package. This is the
// package an embedder imports directly; internal/ packages hold the
// plumbing that must not leak into that surface.
package vos

import (
	"context"
	"fmt"

	"github.com/embeddedvos/vos/dal"
	"github.com/embeddedvos/vos/devreg"
	"github.com/embeddedvos/vos/internal/logging"
	"github.com/embeddedvos/vos/sched"
)

// Config parameterizes a Machine. Zero values fall back to each
// subsystem's own defaults (DefaultMaxDevices, DefaultCapacity,
// DefaultWheelSize, DefaultMaxDefer).
type Config struct {
	MaxDevices    int
	DescriptorCap int
	WheelSize     int
	MaxDeferred   int
	Logger        *logging.Logger
	Metrics       *Metrics
	Observer      Observer
}

// Machine bundles the registry, descriptor table and scheduler into the
// single object an embedder's main function drives. It owns no transports and no Modbus
// endpoints directly — those are built separately (modbus.NewMaster,
// modbus.NewSlave) and wired into the scheduler as periodic tasks by the
// caller, since how often to poll which endpoint over which transport is
// an application decision this package has no business making.
type Machine struct {
	Devices *devreg.Registry
	FDs     *dal.Table
	Sched   *sched.Scheduler

	metrics  *Metrics
	observer Observer
	logger   *logging.Logger
}

// New assembles a Machine. The descriptor table is bound to the device
// registry so Open can resolve names to devices immediately.
func New(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	registry := devreg.New(devreg.Config{MaxDevices: cfg.MaxDevices, Logger: logger})
	table := dal.New(dal.Config{Registry: registry, Capacity: cfg.DescriptorCap})
	scheduler := sched.New(sched.Config{WheelSize: cfg.WheelSize, MaxDefer: cfg.MaxDeferred, Logger: logger})

	return &Machine{
		Devices:  registry,
		FDs:      table,
		Sched:    scheduler,
		metrics:  metrics,
		observer: observer,
		logger:   logger,
	}
}

// Metrics returns the Machine's metrics sink.
func (m *Machine) Metrics() *Metrics { return m.metrics }

// Observer returns the Machine's operation observer, for components
// (like a modbus polling task) that want to report activity without
// depending on the concrete Metrics type.
func (m *Machine) Observer() Observer { return m.observer }

// Read performs an instrumented read through the descriptor table,
// recording byte count, latency, and success into the Machine's
// observer.
func (m *Machine) Read(fd int, buf []byte) (int, error) {
	start := nowFunc()
	n, err := m.FDs.Read(fd, buf)
	m.observer.ObserveRead(uint64(n), uint64(nowFunc()-start), err == nil)
	return n, err
}

// Write performs an instrumented write through the descriptor table.
func (m *Machine) Write(fd int, buf []byte) (int, error) {
	start := nowFunc()
	n, err := m.FDs.Write(fd, buf)
	m.observer.ObserveWrite(uint64(n), uint64(nowFunc()-start), err == nil)
	return n, err
}

// Run drives the scheduler until ctx is cancelled, exactly like calling
// m.Sched.Run(ctx) directly — provided for symmetry with the rest of the
// Machine API.
func (m *Machine) Run(ctx context.Context) error {
	return m.Sched.Run(ctx)
}

// String renders a one-line summary useful in startup logs.
func (m *Machine) String() string {
	return fmt.Sprintf("vos.Machine{devices=%d, fds=%d}", m.Devices.Len(), m.FDs.Capacity())
}
