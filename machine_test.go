package vos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTestMachineOpensDevice(t *testing.T) {
	m, fd, err := NewTestMachine("mem0", 64)
	require.NoError(t, err)
	require.GreaterOrEqual(t, fd, 3)

	n, err := m.Write(fd, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	_, err = m.FDs.Lseek(fd, 0, 0)
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err = m.Read(fd, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	snap := m.Metrics().Snapshot()
	require.Equal(t, uint64(1), snap.ReadOps)
	require.Equal(t, uint64(1), snap.WriteOps)
	require.Equal(t, uint64(5), snap.ReadBytes)
	require.Equal(t, uint64(5), snap.WriteBytes)
}

func TestMachineStringSummary(t *testing.T) {
	m, _, err := NewTestMachine("mem0", 16)
	require.NoError(t, err)
	require.Contains(t, m.String(), "devices=1")
}
