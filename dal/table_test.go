package dal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embeddedvos/vos/dalerr"
	"github.com/embeddedvos/vos/device"
	"github.com/embeddedvos/vos/devreg"
)

func memOps(store *[]byte) device.FileOps {
	return device.FileOps{
		Open:  func(dev *device.Device) error { return nil },
		Close: func(dev *device.Device) error { return nil },
		Read: func(dev *device.Device, buf []byte, offset *int64) (int, error) {
			if *offset >= int64(len(*store)) {
				return 0, nil
			}
			n := copy(buf, (*store)[*offset:])
			*offset += int64(n)
			return n, nil
		},
		Write: func(dev *device.Device, buf []byte, offset *int64) (int, error) {
			end := *offset + int64(len(buf))
			if end > int64(len(*store)) {
				grown := make([]byte, end)
				copy(grown, *store)
				*store = grown
			}
			n := copy((*store)[*offset:], buf)
			*offset += int64(n)
			return n, nil
		},
		Lseek: func(dev *device.Device, offset int64, whence device.Whence) (int64, error) {
			switch whence {
			case device.WhenceHead:
				return offset, nil
			case device.WhenceTail:
				return dev.Size + offset, nil
			default:
				return offset, nil
			}
		},
	}
}

func newTableWithMem(t *testing.T, name string, size int64) (*Table, *[]byte) {
	t.Helper()
	reg := devreg.New(devreg.Config{})
	store := make([]byte, size)
	_, err := reg.Register(name, memOps(&store), size, nil)
	require.NoError(t, err)
	return New(Config{Registry: reg}), &store
}

func TestOpenAllocatesAboveReserved(t *testing.T) {
	tbl, _ := newTableWithMem(t, "mem0", 16)
	fd, err := tbl.Open("mem0")
	require.NoError(t, err)
	require.GreaterOrEqual(t, fd, Reserved)
}

func TestOpenUnknownDeviceFails(t *testing.T) {
	reg := devreg.New(devreg.Config{})
	tbl := New(Config{Registry: reg})
	_, err := tbl.Open("nope")
	require.Error(t, err)
	require.Equal(t, dalerr.NotExist, dalerr.CodeOf(err))
}

func TestOpsOnUnopenedFDFail(t *testing.T) {
	tbl, _ := newTableWithMem(t, "mem0", 16)
	_, err := tbl.Read(0, make([]byte, 4))
	require.Error(t, err)
	require.Equal(t, dalerr.Invalid, dalerr.CodeOf(err))

	_, err = tbl.Read(Reserved, make([]byte, 4))
	require.Error(t, err)
	require.Equal(t, dalerr.Invalid, dalerr.CodeOf(err))
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	tbl, _ := newTableWithMem(t, "mem0", 16)
	fd, err := tbl.Open("mem0")
	require.NoError(t, err)

	n, err := tbl.Write(fd, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = tbl.Lseek(fd, 0, device.WhenceHead)
	require.NoError(t, err)

	out := make([]byte, 2)
	n, err = tbl.Read(fd, out)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "hi", string(out))
}

func TestCloseFreesDescriptorForReuse(t *testing.T) {
	tbl, _ := newTableWithMem(t, "mem0", 16)
	fd1, err := tbl.Open("mem0")
	require.NoError(t, err)

	require.NoError(t, tbl.Close(fd1))

	fd2, err := tbl.Open("mem0")
	require.NoError(t, err)
	require.Equal(t, fd1, fd2)
}

func TestCloseTwiceFails(t *testing.T) {
	tbl, _ := newTableWithMem(t, "mem0", 16)
	fd, err := tbl.Open("mem0")
	require.NoError(t, err)
	require.NoError(t, tbl.Close(fd))

	err = tbl.Close(fd)
	require.Error(t, err)
	require.Equal(t, dalerr.Invalid, dalerr.CodeOf(err))
}

func TestOpenFailureRollsBackAllocation(t *testing.T) {
	reg := devreg.New(devreg.Config{})
	boom := errors.New("open boom")
	_, err := reg.Register("bad", device.FileOps{
		Open: func(dev *device.Device) error { return boom },
	}, 0, nil)
	require.NoError(t, err)

	tbl := New(Config{Registry: reg, Capacity: Reserved + 1})
	_, err = tbl.Open("bad")
	require.Error(t, err)

	fd, err := tbl.Open("bad")
	require.Error(t, err)
	require.Equal(t, dalerr.Exception, dalerr.CodeOf(err))
	require.Equal(t, -1, fd)
}

func TestOverflowWhenNoSlotsFree(t *testing.T) {
	reg := devreg.New(devreg.Config{})
	_, _ = reg.Register("a", memOps(&[]byte{}), 0, nil)
	_, _ = reg.Register("b", memOps(&[]byte{}), 0, nil)

	tbl := New(Config{Registry: reg, Capacity: Reserved + 1})
	_, err := tbl.Open("a")
	require.NoError(t, err)

	_, err = tbl.Open("b")
	require.Error(t, err)
	require.Equal(t, dalerr.Overflow, dalerr.CodeOf(err))
}

func TestLseekHeadRejectsNegativeResult(t *testing.T) {
	tbl, _ := newTableWithMem(t, "mem0", 16)
	fd, err := tbl.Open("mem0")
	require.NoError(t, err)

	_, err = tbl.Lseek(fd, -1, device.WhenceHead)
	require.Error(t, err)
	require.Equal(t, dalerr.Invalid, dalerr.CodeOf(err))
}

func TestLseekBeyondSizeRejected(t *testing.T) {
	tbl, _ := newTableWithMem(t, "mem0", 16)
	fd, err := tbl.Open("mem0")
	require.NoError(t, err)

	_, err = tbl.Lseek(fd, 100, device.WhenceHead)
	require.Error(t, err)
	require.Equal(t, dalerr.Invalid, dalerr.CodeOf(err))
}

func TestMissingOpHookIsException(t *testing.T) {
	reg := devreg.New(devreg.Config{})
	_, _ = reg.Register("ro", device.FileOps{
		Open: func(dev *device.Device) error { return nil },
	}, 0, nil)
	tbl := New(Config{Registry: reg})
	fd, err := tbl.Open("ro")
	require.NoError(t, err)

	_, err = tbl.Write(fd, []byte("x"))
	require.Error(t, err)
	require.Equal(t, dalerr.Exception, dalerr.CodeOf(err))
}

func TestReservedDescriptorsAreNeverAllocated(t *testing.T) {
	reg := devreg.New(devreg.Config{})
	for i := 0; i < devreg.DefaultMaxDevices; i++ {
		name := string(rune('a' + i))
		_, err := reg.Register(name, memOps(&[]byte{}), 0, nil)
		require.NoError(t, err)
	}
	tbl := New(Config{Registry: reg})
	for i := 0; i < DefaultCapacity-Reserved; i++ {
		fd, err := tbl.Open(string(rune('a' + i)))
		require.NoError(t, err)
		require.GreaterOrEqual(t, fd, Reserved)
	}
}
