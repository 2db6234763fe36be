package quilt

import (
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/utils"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

const symbolAlignment = 2

func fitsColumns(sizes []uint64, nColumns int, columnSize uint64) bool {
	var used uint64
	for _, size := range sizes {
		used += utils.CeilDiv(size, columnSize)
	}
	return used <= uint64(nColumns)
}

// ComputeSymbolSize finds the smallest even symbol size at which every entry
// of sizes gets its own run of whole columns in an nRows x nColumns matrix.
// sizes[0] is the quilt index, which may span at most maxIndexColumns
// columns.
func ComputeSymbolSize(sizes []uint64, nColumns, nRows, maxIndexColumns int) (uint16, error) {
	if len(sizes) == 0 {
		return 0, errors.Wrap(wire_errors.EmptyInput, "no blobs")
	}
	if nColumns <= 0 || nRows <= 0 || maxIndexColumns <= 0 {
		return 0, errors.Wrapf(wire_errors.InvalidConfiguration, "%d columns, %d rows, %d index columns", nColumns, nRows, maxIndexColumns)
	}
	if len(sizes) > nColumns {
		return 0, errors.Wrapf(wire_errors.QuiltOversize, "%d entries for %d columns", len(sizes), nColumns)
	}
	rows, cols := uint64(nRows), uint64(nColumns)

	var total, largest uint64
	for _, size := range sizes {
		total += size
		if size > largest {
			largest = size
		}
	}
	lo := utils.CeilDiv(total, cols*rows)
	if v := utils.CeilDiv(sizes[0], rows*uint64(maxIndexColumns)); v > lo {
		lo = v
	}
	if v := utils.CeilDiv(IndexPrefixSize, rows); v > lo {
		lo = v
	}
	// every entry fits into its equal share of the columns
	hi := utils.CeilDiv(utils.CeilDiv(largest, cols/uint64(len(sizes))), rows)

	for lo < hi {
		mid := (lo + hi) / 2
		if fitsColumns(sizes, nColumns, mid*rows) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	symbolSize := utils.CeilDiv(lo, symbolAlignment) * symbolAlignment
	if symbolSize > encoding.MaxSymbolSize {
		return 0, errors.Wrapf(wire_errors.QuiltOversize, "symbol size %d exceeds %d", symbolSize, encoding.MaxSymbolSize)
	}
	if !fitsColumns(sizes, nColumns, symbolSize*rows) {
		return 0, errors.Wrapf(wire_errors.QuiltOversize, "entries do not fit %d columns", nColumns)
	}
	return uint16(symbolSize), nil
}
