package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCeilDiv(t *testing.T) {
	require.Equal(t, uint64(0), CeilDiv(0, 4))
	require.Equal(t, uint64(1), CeilDiv(1, 4))
	require.Equal(t, uint64(1), CeilDiv(4, 4))
	require.Equal(t, uint64(2), CeilDiv(5, 4))
	require.Panics(t, func() { CeilDiv(1, 0) })
}

func TestParseIndexList(t *testing.T) {
	got, err := ParseIndexList(" 1, 4,7 ")
	require.Nil(t, err)
	require.Equal(t, []uint16{1, 4, 7}, got)

	got, err = ParseIndexList("")
	require.Nil(t, err)
	require.Nil(t, got)

	_, err = ParseIndexList("1,x")
	require.Error(t, err)
	_, err = ParseIndexList("70000")
	require.Error(t, err)
}

func TestHumanReadableThroughput(t *testing.T) {
	require.Equal(t, "", HumanReadableThroughput(0))
	require.Equal(t, "1.50KB/sec", HumanReadableThroughput(1500))
}
