package modbus

import "github.com/embeddedvos/vos/ringbuf"

// window is the sliding-window cursor pair shared by the slave and
// master receive parsers. anchor marks the start of the current frame
// candidate; forward walks ahead of it one byte at a time. rebase
// discards the candidate (advances anchor past its first byte, without
// losing the bytes after it); flush commits the candidate by catching
// the ring buffer's read cursor up to forward.
type window struct {
	ring    *ringbuf.Ring
	anchor  uint64
	forward uint64
}

func newWindow(ring *ringbuf.Ring) *window {
	rd := ring.RD()
	return &window{ring: ring, anchor: rd, forward: rd}
}

// remaining reports how many buffered bytes lie ahead of forward.
func (w *window) remaining() uint64 {
	return w.ring.WR() - w.forward
}

// next returns the next unconsumed byte and advances forward by one.
func (w *window) next() byte {
	b := w.ring.PeekAt(w.forward - w.ring.RD())
	w.forward++
	return b
}

// rebase advances the read cursor to one byte past anchor, discarding
// exactly the first candidate byte while keeping everything after it
// available for reparsing.
func (w *window) rebase() {
	w.ring.SetRD(w.anchor + 1)
	w.anchor = w.ring.RD()
	w.forward = w.anchor
}

// flush commits the parsed frame: the read cursor, and anchor with it,
// catch up to forward.
func (w *window) flush() {
	w.ring.SetRD(w.forward)
	w.anchor = w.ring.RD()
}
