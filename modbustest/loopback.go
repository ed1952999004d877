// Package modbustest provides an in-memory loopback transport for wiring a
// master and a slave directly together in tests, without a real serial
// link. It plays the same role here that memdev and testing.go play for
// exercising the device framework without real storage.
package modbustest

import "sync"

// Loopback is a modbus.Transport backed by two byte queues: Write on one
// end becomes available to Read on the other. A pair is created with
// NewPair; each end is driven by a separate Poll loop (master on one,
// slave on the other).
type Loopback struct {
	mu   sync.Mutex
	out  *[]byte
	in   *[]byte
	drop bool
}

// NewPair returns two ends of a full-duplex loopback link: writes to a
// are readable from b, and vice versa.
func NewPair() (a, b *Loopback) {
	buf1 := make([]byte, 0, 256)
	buf2 := make([]byte, 0, 256)
	a = &Loopback{out: &buf1, in: &buf2}
	b = &Loopback{out: &buf2, in: &buf1}
	return a, b
}

// Read drains whatever bytes are queued, returning 0 if none are available.
func (l *Loopback) Read(buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := copy(buf, *l.in)
	*l.in = (*l.in)[n:]
	return n, nil
}

// Write enqueues p for the peer end to Read, unless Drop is in effect.
func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.drop {
		return len(p), nil
	}
	*l.out = append(*l.out, p...)
	return len(p), nil
}

// SetDrop makes subsequent writes vanish instead of reaching the peer,
// for exercising timeout/retry behavior without a real broken link.
func (l *Loopback) SetDrop(drop bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drop = drop
}

// Garble injects raw bytes directly onto this end's read queue, for
// exercising parser resync ahead of a well-formed frame.
func (l *Loopback) Garble(p []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.in = append(*l.in, p...)
}
