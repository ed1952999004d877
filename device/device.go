// Package device defines the uniform file-operations vtable every
// registered device exposes, and the Device handle the registry and
// descriptor layer pass around. It has no knowledge of naming or lookup
// (that's devreg) or of descriptor tables (that's dal) — it is the
// narrowest possible seam between the two: a vtable of operation
// callbacks plus the struct that wraps one.
package device

import "github.com/google/uuid"

// Whence selects the reference point for Lseek, matching the original
// three-way enum (head/cur/tail) rather than the POSIX names, since "cur"
// here means "the descriptor's current offset", not a process-wide file
// position.
type Whence int

const (
	WhenceHead Whence = iota
	WhenceCur
	WhenceTail
)

// FileOps is the per-device vtable. Every field is optional; a call that
// requires an absent op fails with dalerr.Exception at the dal layer
// rather than panicking here.
type FileOps struct {
	// Open enables the device. Called at most once per Open() at the dal
	// layer, but must be idempotent: a device left open across process
	// restarts (there are none here, but devices may be shared across
	// multiple dal.Table instances in tests) should tolerate being opened
	// again without side effects beyond the first.
	Open func(dev *Device) error

	// Close disables the device. Idempotent for the same reason as Open.
	Close func(dev *Device) error

	// Ioctl is device-defined. An unrecognized cmd is expected to be a
	// no-op returning (0, nil), not an error — only a missing Ioctl field
	// entirely is an Exception.
	Ioctl func(dev *Device, cmd int, arg any) (int, error)

	// Read reads up to len(buf) bytes starting at *offset, advances
	// *offset by the amount read, and returns the count.
	Read func(dev *Device, buf []byte, offset *int64) (int, error)

	// Write writes up to len(buf) bytes starting at *offset, advances
	// *offset by the amount written, and returns the count. buf is never
	// mutated by the framework or expected to be mutated by the
	// implementation; it is logically read-only even though Go slices
	// don't enforce that at the type level.
	Write func(dev *Device, buf []byte, offset *int64) (int, error)

	// Lseek computes and returns the new absolute offset for the given
	// whence/offset pair. It does not receive or mutate the descriptor's
	// stored offset directly; the dal layer resolves WhenceCur against
	// that offset before calling (so Lseek sees only WhenceHead and
	// WhenceTail) and stores the result once Lseek returns successfully.
	Lseek func(dev *Device, offset int64, whence Whence) (int64, error)
}

// Device is a named, registered entity: a fixed vtable, an optional
// declared size (0 means unsized/streaming), and an opaque per-device
// slot for driver-private state. Devices are created once at registration
// and never destroyed.
type Device struct {
	// ID distinguishes two devices that share a Name across a registry's
	// lifetime (one registered, unregistered conceptually, then
	// re-registered) in log lines and diagnostics, since Name alone is
	// reused.
	ID      uuid.UUID
	Name    string
	Ops     FileOps
	Size    int64 // 0 = unsized/streaming
	private any
}

// SetPrivate stores the driver's opaque per-device state.
func (d *Device) SetPrivate(p any) { d.private = p }

// GetPrivate returns the driver's opaque per-device state, or nil if none
// was set.
func (d *Device) GetPrivate() any { return d.private }
