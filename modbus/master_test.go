package modbus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embeddedvos/vos/modbustest"
)

func TestMasterReadHappyPath(t *testing.T) {
	var regs [10]uint16
	regs[5] = 0xBEEF
	slave := NewSlave(SlaveConfig{Address: 0x01, WorkTable: []SlaveWork{holdingRegWork(&regs)}})
	master := NewMaster(MasterConfig{PeriodMS: 10})

	mEnd, sEnd := modbustest.NewPair()

	var gotData []byte
	var gotTimeout bool
	var completed bool
	req := &Request{
		SlaveAddr: 0x01,
		Func:      FuncReadHoldingRegisters,
		RegAddr:   5,
		RegLen:    1,
		TimeoutMS: 1000,
		OnComplete: func(data []byte, timedOut bool) {
			completed = true
			gotData = data
			gotTimeout = timedOut
		},
	}
	require.NoError(t, master.Submit(req))

	require.NoError(t, master.Poll(mEnd))
	require.NoError(t, slave.Poll(sEnd))
	require.NoError(t, master.Poll(mEnd))

	require.True(t, completed)
	require.False(t, gotTimeout)
	require.Equal(t, []byte{0xBE, 0xEF}, gotData)
}

func TestMasterWriteHappyPath(t *testing.T) {
	var regs [10]uint16
	slave := NewSlave(SlaveConfig{Address: 0x01, WorkTable: []SlaveWork{holdingRegWork(&regs)}})
	master := NewMaster(MasterConfig{PeriodMS: 10})

	mEnd, sEnd := modbustest.NewPair()

	var completed bool
	req := &Request{
		SlaveAddr: 0x01,
		Func:      FuncWriteMultipleRegisters,
		RegAddr:   2,
		RegLen:    1,
		Data:      []byte{0x12, 0x34},
		TimeoutMS: 1000,
		OnComplete: func(data []byte, timedOut bool) {
			completed = true
			require.False(t, timedOut)
		},
	}
	require.NoError(t, master.Submit(req))

	require.NoError(t, master.Poll(mEnd))
	require.NoError(t, slave.Poll(sEnd))
	require.NoError(t, master.Poll(mEnd))

	require.True(t, completed)
	require.Equal(t, uint16(0x1234), regs[2])
}

// TestMasterRetriesThenTimesOut matches the scenario where a request's
// PDUs go unanswered: with TimeoutMS equal to PeriodMS, each poll either
// sends (when due) or waits, and the master gives up after the initial
// send plus MaxRepeats retries rather than retrying forever.
func TestMasterRetriesThenTimesOut(t *testing.T) {
	master := NewMaster(MasterConfig{PeriodMS: 50})
	mEnd, _ := modbustest.NewPair()
	mEnd.SetDrop(true)

	var timedOut bool
	var completions int
	req := &Request{
		SlaveAddr: 0x01,
		Func:      FuncReadHoldingRegisters,
		RegAddr:   0,
		RegLen:    1,
		TimeoutMS: 50,
		OnComplete: func(data []byte, to bool) {
			completions++
			timedOut = to
		},
	}
	require.NoError(t, master.Submit(req))

	for i := 0; i < 5; i++ {
		require.NoError(t, master.Poll(mEnd))
	}

	require.Equal(t, 1, completions)
	require.True(t, timedOut)
}

// TestMasterHandlesSequentialRequests regresses a bug where the receive
// parser stayed in its CRC state after completing the first reply
// instead of resetting to masterAddr, corrupting the parse of every
// reply immediately following a successful one.
func TestMasterHandlesSequentialRequests(t *testing.T) {
	var regs [10]uint16
	regs[0] = 0x0011
	regs[1] = 0x0022
	slave := NewSlave(SlaveConfig{Address: 0x01, WorkTable: []SlaveWork{holdingRegWork(&regs)}})
	master := NewMaster(MasterConfig{PeriodMS: 10})
	mEnd, sEnd := modbustest.NewPair()

	for _, reg := range []uint16{0, 1} {
		var gotData []byte
		var completed bool
		req := &Request{
			SlaveAddr: 0x01,
			Func:      FuncReadHoldingRegisters,
			RegAddr:   reg,
			RegLen:    1,
			TimeoutMS: 1000,
			OnComplete: func(data []byte, timedOut bool) {
				completed = true
				gotData = data
			},
		}
		require.NoError(t, master.Submit(req))

		require.NoError(t, master.Poll(mEnd))
		require.NoError(t, slave.Poll(sEnd))
		require.NoError(t, master.Poll(mEnd))

		require.True(t, completed)
		require.Equal(t, regs[reg], uint16(gotData[0])<<8|uint16(gotData[1]))
	}
}

func TestMasterSubmitRejectsInvalidRequest(t *testing.T) {
	master := NewMaster(MasterConfig{PeriodMS: 10})

	require.ErrorIs(t, master.Submit(&Request{
		SlaveAddr: 1, Func: FuncReadHoldingRegisters, TimeoutMS: 0,
		OnComplete: func([]byte, bool) {},
	}), ErrInvalidRequest)

	require.ErrorIs(t, master.Submit(&Request{
		SlaveAddr: 1, Func: FuncWriteMultipleRegisters, RegLen: 2, TimeoutMS: 10,
		OnComplete: func([]byte, bool) {},
	}), ErrInvalidRequest)

	require.ErrorIs(t, master.Submit(&Request{
		SlaveAddr: 1, Func: 0x99, TimeoutMS: 10,
		OnComplete: func([]byte, bool) {},
	}), ErrInvalidRequest)
}

func TestMasterSubmitRejectsWhenQueueFull(t *testing.T) {
	master := NewMaster(MasterConfig{PeriodMS: 10})
	for i := 0; i < MaxRequests; i++ {
		require.NoError(t, master.Submit(&Request{
			SlaveAddr: 1, Func: FuncReadHoldingRegisters, RegLen: 1, TimeoutMS: 10,
			OnComplete: func([]byte, bool) {},
		}))
	}
	require.ErrorIs(t, master.Submit(&Request{
		SlaveAddr: 1, Func: FuncReadHoldingRegisters, RegLen: 1, TimeoutMS: 10,
		OnComplete: func([]byte, bool) {},
	}), ErrQueueFull)
}

// TestMasterIgnoresExceptionFrame checks that an exception response (function
// code with the high bit set, which the master's parser does not recognize
// as either supported function code) does not complete the request; the
// master keeps waiting and eventually times it out rather than misreading
// the exception byte as register data.
func TestMasterIgnoresExceptionFrame(t *testing.T) {
	var regs [10]uint16
	slave := NewSlave(SlaveConfig{Address: 0x01, WorkTable: []SlaveWork{holdingRegWork(&regs)}})
	master := NewMaster(MasterConfig{PeriodMS: 50})
	mEnd, sEnd := modbustest.NewPair()

	var completions int
	var timedOut bool
	req := &Request{
		SlaveAddr: 0x01,
		Func:      FuncReadHoldingRegisters,
		RegAddr:   9000, // outside the registered work range
		RegLen:    1,
		TimeoutMS: 50,
		OnComplete: func(data []byte, to bool) {
			completions++
			timedOut = to
		},
	}
	require.NoError(t, master.Submit(req))

	require.NoError(t, master.Poll(mEnd))
	require.NoError(t, slave.Poll(sEnd))

	for i := 0; i < 5; i++ {
		require.NoError(t, master.Poll(mEnd))
	}

	require.Equal(t, 1, completions)
	require.True(t, timedOut)
}
