package vos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embeddedvos/vos/dalerr"
	"github.com/embeddedvos/vos/mberr"
)

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, Wrap("open", nil))
}

func TestWrapCarriesDALCode(t *testing.T) {
	inner := dalerr.New("open", dalerr.Occupied)
	err := Wrap("machine.open", inner)
	require.Error(t, err)
	require.Contains(t, err.Error(), "machine.open")

	code, ok := DALCode(err)
	require.True(t, ok)
	require.Equal(t, dalerr.Occupied, code)
}

func TestWrapCarriesModbusCode(t *testing.T) {
	inner := mberr.New("handle", mberr.Busy)
	err := Wrap("poll", inner)

	code, ok := ModbusCode(err)
	require.True(t, ok)
	require.Equal(t, mberr.Busy, code)
}

func TestDALCodeFalseForUnrelatedError(t *testing.T) {
	_, ok := DALCode(Wrap("op", mberr.New("handle", mberr.Busy)))
	require.False(t, ok)
}
