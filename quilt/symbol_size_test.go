package quilt

import (
	"testing"

	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/stretchr/testify/require"
)

func matrixFor(t *testing.T, nShards uint16) (nRows, nCols int) {
	config, err := encoding.NewEncodingConfig(nShards)
	require.NoError(t, err)
	rows, err := config.SourceSymbols(encoding.RS2, encoding.Primary)
	require.NoError(t, err)
	cols, err := config.SourceSymbols(encoding.RS2, encoding.Secondary)
	require.NoError(t, err)
	return int(rows), int(cols)
}

func repeat(n int, size uint64) []uint64 {
	sizes := make([]uint64, n)
	for i := range sizes {
		sizes[i] = size
	}
	return sizes
}

func TestComputeSymbolSize(t *testing.T) {
	nRows, nCols := matrixFor(t, 1000)
	require.Equal(t, 334, nRows)
	require.Equal(t, 667, nCols)
	rows := uint64(nRows)

	cases := []struct {
		name  string
		sizes []uint64
		size  uint16
	}{
		{"single small blob", []uint64{100}, 2},
		{"single large blob", []uint64{1000000}, 300},
		{"equal sizes", repeat(5, 1000), 2},
		{"varying sizes", []uint64{100, 5000, 200, 10000, 500}, 2},
		{"powers of two", []uint64{1024, 2048, 4096, 8192}, 2},
		{"one blob per column", repeat(nCols, 10), 2},
		{"multiples of rows", []uint64{rows * 10, rows * 20, rows * 30}, 2},
		{"uneven large blobs", []uint64{
			1822, 2223620, 12027, 2453254, 10342, 3134443, 12059, 3946664, 12765,
			3043298, 12087, 3133711, 13003, 3383061, 12093, 3155563, 10893,
		}, 112},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			size, err := ComputeSymbolSize(c.sizes, nCols, nRows, MaxIndexColumns)
			require.NoError(t, err)
			require.Equal(t, c.size, size)
			require.True(t, fitsColumns(c.sizes, nCols, uint64(size)*rows))
		})
	}
}

func TestComputeSymbolSizeErrors(t *testing.T) {
	nRows, nCols := matrixFor(t, 1000)

	_, err := ComputeSymbolSize(nil, nCols, nRows, MaxIndexColumns)
	require.ErrorIs(t, err, wire_errors.EmptyInput)

	_, err = ComputeSymbolSize(repeat(nCols+1, 100), nCols, nRows, MaxIndexColumns)
	require.ErrorIs(t, err, wire_errors.QuiltOversize)

	_, err = ComputeSymbolSize([]uint64{100}, 0, nRows, MaxIndexColumns)
	require.ErrorIs(t, err, wire_errors.InvalidConfiguration)

	// 4 x 7 matrix: each blob gets three columns at most, one byte too few
	big := uint64(4*3*encoding.MaxSymbolSize + 1)
	_, err = ComputeSymbolSize([]uint64{10, big, big}, 7, 4, MaxIndexColumns)
	require.ErrorIs(t, err, wire_errors.QuiltOversize)
}
