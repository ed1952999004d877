// Package sched is the cooperative tick scheduler: a single producer
// (whatever ISR or timer goroutine the embedder wires up) calls Tick(),
// and a single consumer loop started with Run dispatches periodic and
// one-shot deferred work in response. It is grounded on the original
// framework's stimer.c, reshaped from an intrusive-list hashed wheel
// polled by a tight while(1) into fixed-capacity Go slices woken by a
// channel instead of spinning.
package sched

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/embeddedvos/vos/internal/logging"
)

// MSPerTick is the tick period in milliseconds, matching
// STIMER_PERIOD_PER_TICK_MS in the original source.
const MSPerTick = 1

// DefaultWheelSize is the bucket count for the hashed wheel; must stay a
// power of two so bucket indexing can mask instead of mod.
const DefaultWheelSize = 32

// DefaultMaxDefer is the fixed one-shot task pool size, grounded in
// MAX_DEFER_TASK in stimer.c.
const DefaultMaxDefer = 16

// Func is a task body. It must return promptly; the scheduler has no
// preemption and expects cooperative discipline.
type Func func()

type periodicTask struct {
	fn     Func
	period uint32 // ticks
	arrive uint32 // ticks since parked on the long list, counted per wheel revolution from minus the wheel phase at parking
}

type deferredTask struct {
	fn      Func
	period  uint32
	elapsed uint32
}

// Config parameterizes a Scheduler.
type Config struct {
	WheelSize int // must be a power of two; defaults to DefaultWheelSize
	MaxDefer  int // defaults to DefaultMaxDefer
	Logger    *logging.Logger
}

// Scheduler is a hashed timing wheel scheduler. The zero value is not
// usable; build one with New.
type Scheduler struct {
	curTick  uint32 // atomic, bumped by Tick()
	prevTick uint32 // owned by the dispatch loop alone

	running int32 // atomic bool

	wheelSize uint32
	mask      uint32

	mu        sync.Mutex
	buckets   [][]*periodicTask
	longList  []*periodicTask
	deferPool []*deferredTask // nil entry = free slot
	deferred  []*deferredTask // active subset of deferPool, submission order

	tickCh chan struct{}
	logger *logging.Logger
}

// New builds a Scheduler. It panics if WheelSize is supplied and is not a
// power of two.
func New(cfg Config) *Scheduler {
	wheelSize := cfg.WheelSize
	if wheelSize <= 0 {
		wheelSize = DefaultWheelSize
	}
	if wheelSize&(wheelSize-1) != 0 {
		panic("sched: WheelSize must be a power of two")
	}
	maxDefer := cfg.MaxDefer
	if maxDefer <= 0 {
		maxDefer = DefaultMaxDefer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		wheelSize: uint32(wheelSize),
		mask:      uint32(wheelSize - 1),
		buckets:   make([][]*periodicTask, wheelSize),
		deferPool: make([]*deferredTask, maxDefer),
		logger:    logger,
	}
}

func periodToTicks(periodMS uint32) uint32 {
	ticks := periodMS / MSPerTick
	if ticks == 0 {
		return 1
	}
	return ticks
}

// addTimerLocked buckets t relative to the current prevTick, onto the
// wheel if its period fits, onto the long list otherwise. Called both at
// creation and at every rebucketing after a firing.
func (s *Scheduler) addTimerLocked(t *periodicTask) {
	if t.period > s.wheelSize {
		t.arrive = 0 - (s.prevTick & s.mask)
		s.longList = append(s.longList, t)
		return
	}
	idx := (s.prevTick + t.period) & s.mask
	s.buckets[idx] = append(s.buckets[idx], t)
}

// CreatePeriodic registers a task that fires every periodMS milliseconds
// starting one period from now. init, if non-nil, runs synchronously
// once, before the task is linked into the wheel — the Go analogue of
// stimer_task_create's init_f argument.
func (s *Scheduler) CreatePeriodic(init func(), task Func, periodMS uint32) error {
	if init != nil {
		init()
	}
	if task == nil || periodMS == 0 {
		return errInvalidTask
	}

	t := &periodicTask{fn: task, period: periodToTicks(periodMS)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addTimerLocked(t)
	return nil
}

// SubmitDeferred allocates a one-shot task from the fixed pool, to run
// once after ms milliseconds. It fails if the scheduler is not running
// or the pool is exhausted, exactly as defer_task_create does.
func (s *Scheduler) SubmitDeferred(fn Func, ms uint32) error {
	if !s.Running() {
		return errNotRunning
	}
	if fn == nil {
		return errInvalidTask
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, slot := range s.deferPool {
		if slot == nil {
			task := &deferredTask{fn: fn, period: periodToTicks(ms)}
			s.deferPool[i] = task
			s.deferred = append(s.deferred, task)
			return nil
		}
	}
	return errDeferPoolFull
}

// Tick advances the tick counter by one. It is the only method meant to
// be called from outside the goroutine running Run — an ISR trampoline,
// a time.Ticker-driven goroutine, or a test harness.
func (s *Scheduler) Tick() {
	atomic.AddUint32(&s.curTick, 1)
	select {
	case s.tickCh <- struct{}{}:
	default:
	}
}

// Running reports whether Run is currently looping.
func (s *Scheduler) Running() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// CurTick returns the tick count observed so far by Tick().
func (s *Scheduler) CurTick() uint32 {
	return atomic.LoadUint32(&s.curTick)
}

func (s *Scheduler) pending() bool {
	return s.prevTick != s.CurTick()
}

// dispatchOnce advances prevTick by exactly one tick and runs everything
// due at that tick: long-list promotion on wheel rollover, then the
// current bucket, then the deferred list.
func (s *Scheduler) dispatchOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prevTick++
	idx := s.prevTick & s.mask

	if idx == 0 {
		kept := s.longList[:0]
		for _, t := range s.longList {
			t.arrive += s.wheelSize
			remain := t.period - t.arrive
			switch {
			case remain == 0:
				t.arrive = 0
				s.runTask(t.fn)
				kept = append(kept, t)
			case remain < s.wheelSize:
				bidx := (s.prevTick + remain) & s.mask
				s.buckets[bidx] = append(s.buckets[bidx], t)
			default:
				kept = append(kept, t)
			}
		}
		s.longList = kept
	}

	bucket := s.buckets[idx]
	s.buckets[idx] = nil
	for _, t := range bucket {
		s.runTask(t.fn)
		t.arrive = 0
		s.addTimerLocked(t)
	}

	if len(s.deferred) == 0 {
		return
	}
	remaining := s.deferred[:0]
	for _, t := range s.deferred {
		t.elapsed++
		if t.elapsed >= t.period {
			s.runTask(t.fn)
			s.freeDeferredLocked(t)
			continue
		}
		remaining = append(remaining, t)
	}
	s.deferred = remaining
}

func (s *Scheduler) freeDeferredLocked(t *deferredTask) {
	for i, slot := range s.deferPool {
		if slot == t {
			s.deferPool[i] = nil
			return
		}
	}
}

func (s *Scheduler) runTask(fn Func) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "recover", r)
		}
	}()
	fn()
}

// Start marks the scheduler as running, enabling SubmitDeferred, and
// catches up on any ticks already observed. Callers that drive dispatch
// themselves via Step (rather than Run) call Start once up front.
func (s *Scheduler) Start() {
	atomic.StoreInt32(&s.running, 1)
	for s.pending() {
		s.dispatchOnce()
	}
}

// Stop marks the scheduler as no longer running; SubmitDeferred will
// fail until the next Start.
func (s *Scheduler) Stop() {
	atomic.StoreInt32(&s.running, 0)
}

// Step catches up the dispatch loop to the latest tick observed by Tick,
// processing one tick at a time. Callers that own their own main loop
// call Tick then Step directly, with no goroutine or channel involved —
// the single-threaded-cooperative way of driving the scheduler. Run, for
// callers that prefer a channel-driven goroutine, is built on the same
// primitive.
func (s *Scheduler) Step() {
	for s.pending() {
		s.dispatchOnce()
	}
}

// Run drives the dispatch loop until ctx is canceled. It blocks between
// ticks rather than spinning, waking whenever Tick() signals, and
// catches up one tick at a time if more than one tick has elapsed since
// the last wake (a burst that could otherwise coalesce into a single
// dispatch pass and silently drop work).
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.tickCh = make(chan struct{}, 1)
	s.mu.Unlock()

	s.Start()
	defer s.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.tickCh:
			s.Step()
		}
	}
}
