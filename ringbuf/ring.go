// Package ringbuf implements the fixed-capacity FIFO used as the receive
// buffer beneath the Modbus frame parser and, with lock hooks supplied, as
// a multi-producer buffer fed from an ISR-driven transport.
//
// Unlike the pooled, size-bucketed byte buffers a block-I/O stack needs,
// every ring here holds a small, statically-sized run of protocol bytes,
// so there is exactly one implementation: a modulo-indexed circular
// buffer over a slice that New allocates. Capacity does not need to be a
// power of two; when it is, Add/Get/Peek take a masked fast path instead
// of the general modulo, but the two are required to behave identically.
package ringbuf

// Ring is a FIFO of fixed-size units. The zero value is not usable; build
// one with New. Ring is not safe for concurrent use unless the caller
// supplies Lock/Unlock hooks that serialize access around every method
// call from more than one execution context (see Config).
type Ring struct {
	buf      []byte
	unit     int
	capacity int // in units
	rd, wr   uint64

	lock   func()
	unlock func()
}

// Config parameterizes a Ring. UnitBytes defaults to 1 (a byte stream);
// Lock/Unlock are optional hooks invoked around the mutating operations
// (Add, Get, AdvanceRD, AdvanceWR) when the buffer is fed from an ISR
// context concurrently with being drained by the main loop. When both are
// nil the Ring assumes single-context (cooperative main-loop-only) use and
// synthesizes no critical section of its own.
type Config struct {
	Capacity  int // capacity in units, must be > 0
	UnitBytes int // bytes per unit, defaults to 1
	Lock      func()
	Unlock    func()
}

// New builds a Ring backed by a freshly allocated buffer of Capacity units.
func New(cfg Config) *Ring {
	unit := cfg.UnitBytes
	if unit <= 0 {
		unit = 1
	}
	if cfg.Capacity <= 0 {
		panic("ringbuf: capacity must be > 0")
	}
	return &Ring{
		buf:      make([]byte, cfg.Capacity*unit),
		unit:     unit,
		capacity: cfg.Capacity,
		lock:     cfg.Lock,
		unlock:   cfg.Unlock,
	}
}

func (r *Ring) withLock(fn func()) {
	if r.lock != nil {
		r.lock()
		defer r.unlock()
	}
	fn()
}

// Used reports how many units are currently queued.
func (r *Ring) Used() int {
	var n int
	r.withLock(func() { n = int(r.wr - r.rd) })
	return n
}

// Free reports how many units can still be added before the ring is full.
func (r *Ring) Free() int {
	return r.capacity - r.Used()
}

// Empty reports whether Used() == 0.
func (r *Ring) Empty() bool { return r.Used() == 0 }

// Full reports whether Free() == 0.
func (r *Ring) Full() bool { return r.Free() == 0 }

func (r *Ring) index(cursor uint64) int {
	if r.capacity&(r.capacity-1) == 0 {
		return int(cursor) & (r.capacity - 1)
	}
	return int(cursor % uint64(r.capacity))
}

// Add appends min(len(src), Free()) units and returns the count written.
func (r *Ring) Add(src []byte) int {
	n := 0
	r.withLock(func() {
		units := len(src) / r.unit
		free := r.capacity - int(r.wr-r.rd)
		if units > free {
			units = free
		}
		if units <= 0 {
			return
		}
		idx := r.index(r.wr)
		tail := r.capacity - idx
		if tail > units {
			tail = units
		}
		copy(r.buf[idx*r.unit:], src[:tail*r.unit])
		if rem := units - tail; rem > 0 {
			copy(r.buf, src[tail*r.unit:units*r.unit])
		}
		r.wr += uint64(units)
		n = units
	})
	return n
}

// Get removes min(len(dst)/unit, Used()) units into dst and returns the
// count removed.
func (r *Ring) Get(dst []byte) int {
	n := 0
	r.withLock(func() {
		units := len(dst) / r.unit
		used := int(r.wr - r.rd)
		if units > used {
			units = used
		}
		if units <= 0 {
			return
		}
		idx := r.index(r.rd)
		tail := r.capacity - idx
		if tail > units {
			tail = units
		}
		copy(dst, r.buf[idx*r.unit:(idx+tail)*r.unit])
		if rem := units - tail; rem > 0 {
			copy(dst[tail*r.unit:], r.buf[:rem*r.unit])
		}
		r.rd += uint64(units)
		n = units
	})
	return n
}

// Peek copies without advancing the read cursor.
func (r *Ring) Peek(dst []byte) int {
	n := 0
	r.withLock(func() {
		units := len(dst) / r.unit
		used := int(r.wr - r.rd)
		if units > used {
			units = used
		}
		if units <= 0 {
			return
		}
		idx := r.index(r.rd)
		tail := r.capacity - idx
		if tail > units {
			tail = units
		}
		copy(dst, r.buf[idx*r.unit:(idx+tail)*r.unit])
		if rem := units - tail; rem > 0 {
			copy(dst[tail*r.unit:], r.buf[:rem*r.unit])
		}
		n = units
	})
	return n
}

// PeekAt returns the single unit at logical position rd+offset without
// advancing any cursor. It is the hot path for the Modbus parser, which
// inspects one byte at a time while sliding a forward cursor across
// already-buffered data (see RD/WR/SetRD below).
func (r *Ring) PeekAt(offset uint64) byte {
	idx := r.index(r.rd + offset)
	return r.buf[idx*r.unit]
}

// RD returns the current read cursor (monotonic, wraps tolerated).
func (r *Ring) RD() uint64 { return r.rd }

// WR returns the current write cursor.
func (r *Ring) WR() uint64 { return r.wr }

// SetRD forces the read cursor to an arbitrary value at or after the
// current rd and at or before wr; used by the parser's rebase/flush to
// discard or commit a run of bytes without a data copy.
func (r *Ring) SetRD(rd uint64) {
	r.withLock(func() { r.rd = rd })
}

// AdvanceRD moves the read cursor forward by up to Used() units without
// copying data.
func (r *Ring) AdvanceRD(units int) {
	r.withLock(func() {
		used := int(r.wr - r.rd)
		if units > used {
			units = used
		}
		if units > 0 {
			r.rd += uint64(units)
		}
	})
}

// AdvanceWR moves the write cursor forward by up to Free() units without
// copying data, for callers that have already written directly into a
// buffer obtained out of band.
func (r *Ring) AdvanceWR(units int) {
	r.withLock(func() {
		free := r.capacity - int(r.wr-r.rd)
		if units > free {
			units = free
		}
		if units > 0 {
			r.wr += uint64(units)
		}
	})
}

// Capacity returns the ring's fixed unit capacity.
func (r *Ring) Capacity() int { return r.capacity }
