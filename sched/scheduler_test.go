package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeriodicTaskFiresOnSchedule(t *testing.T) {
	s := New(Config{})
	s.Start()

	var aRuns, bRuns, cRuns int
	require.NoError(t, s.CreatePeriodic(nil, func() { aRuns++ }, 1))
	require.NoError(t, s.CreatePeriodic(nil, func() { bRuns++ }, 32))
	require.NoError(t, s.CreatePeriodic(nil, func() { cRuns++ }, 100))

	for i := 0; i < 100; i++ {
		s.Tick()
		s.Step()
	}

	require.Equal(t, 100, aRuns)
	require.Equal(t, 3, bRuns)
	require.Equal(t, 1, cRuns)
}

func TestDeferredTaskFiresOnceAndFreesSlot(t *testing.T) {
	s := New(Config{})
	s.Start()

	for i := 0; i < 10; i++ {
		s.Tick()
		s.Step()
	}

	var runs int
	require.NoError(t, s.SubmitDeferred(func() { runs++ }, 5))

	for i := 0; i < 4; i++ {
		s.Tick()
		s.Step()
		require.Equal(t, 0, runs)
	}

	s.Tick()
	s.Step()
	require.Equal(t, 1, runs)

	// the pool slot must be free again for an immediate resubmission.
	require.NoError(t, s.SubmitDeferred(func() {}, 5))
}

func TestSubmitDeferredFailsWhenNotRunning(t *testing.T) {
	s := New(Config{})
	err := s.SubmitDeferred(func() {}, 5)
	require.Error(t, err)
}

func TestSubmitDeferredFailsWhenPoolExhausted(t *testing.T) {
	s := New(Config{MaxDefer: 2})
	s.Start()

	require.NoError(t, s.SubmitDeferred(func() {}, 100))
	require.NoError(t, s.SubmitDeferred(func() {}, 100))

	err := s.SubmitDeferred(func() {}, 100)
	require.Error(t, err)
}

func TestCreatePeriodicRunsInitOnceUpFront(t *testing.T) {
	s := New(Config{})
	s.Start()

	var initCalls int
	require.NoError(t, s.CreatePeriodic(func() { initCalls++ }, func() {}, 10))
	require.Equal(t, 1, initCalls)
}

func TestCreatePeriodicRejectsZeroPeriod(t *testing.T) {
	s := New(Config{})
	err := s.CreatePeriodic(nil, func() {}, 0)
	require.Error(t, err)
}

func TestWheelSizeMustBePowerOfTwo(t *testing.T) {
	require.Panics(t, func() {
		New(Config{WheelSize: 30})
	})
}

func TestLongListTaskSurvivesMultipleRevolutions(t *testing.T) {
	s := New(Config{WheelSize: 8})
	s.Start()

	var runs int
	require.NoError(t, s.CreatePeriodic(nil, func() { runs++ }, 20))

	for i := 0; i < 19; i++ {
		s.Tick()
		s.Step()
	}
	require.Equal(t, 0, runs)

	s.Tick()
	s.Step()
	require.Equal(t, 1, runs)

	for i := 0; i < 20; i++ {
		s.Tick()
		s.Step()
	}
	require.Equal(t, 2, runs)
}

func TestTaskPanicIsRecoveredAndLoggedNotFatal(t *testing.T) {
	s := New(Config{})
	s.Start()

	var after int
	require.NoError(t, s.CreatePeriodic(nil, func() { panic("boom") }, 1))
	require.NoError(t, s.CreatePeriodic(nil, func() { after++ }, 1))

	require.NotPanics(t, func() {
		s.Tick()
		s.Step()
	})
	require.Equal(t, 1, after)
}
