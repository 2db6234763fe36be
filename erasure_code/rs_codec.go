package erasure_code

import (
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/klauspost/reedsolomon"
	"github.com/pkg/errors"
)

// blockSize is the unit the GF(2^16) leopard codec works on: 32 field
// elements stored as 32 low bytes followed by 32 high bytes. Shards are
// repacked into this layout so that trailing zero padding only ever forms
// whole zero elements, which encode to zero parity and can be cut off.
const blockSize = 64

// ReedSolomon is immutable after construction and safe for concurrent use.
type ReedSolomon struct {
	dataShards   int
	parityShards int
	enc          reedsolomon.Encoder //nil when there is no parity
}

var _ ErasureCodec = (*ReedSolomon)(nil)

// NewReedSolomon returns a code with dataShards source shards out of
// totalShards. Up to 256 shards use GF(2^8), above that reedsolomon switches
// to leopard GF(2^16).
func NewReedSolomon(dataShards int, totalShards int) (*ReedSolomon, error) {
	if dataShards <= 0 || totalShards < dataShards {
		return nil, errors.Wrapf(wire_errors.InvalidConfiguration, "%d data shards out of %d", dataShards, totalShards)
	}
	rs := &ReedSolomon{
		dataShards:   dataShards,
		parityShards: totalShards - dataShards,
	}
	if rs.parityShards > 0 {
		enc, err := reedsolomon.New(dataShards, rs.parityShards)
		if err != nil {
			return nil, errors.Wrapf(wire_errors.InvalidConfiguration, "reedsolomon %d+%d: %v", dataShards, rs.parityShards, err)
		}
		rs.enc = enc
	}
	return rs, nil
}

func (rs *ReedSolomon) DataShards() int {
	return rs.dataShards
}

func (rs *ReedSolomon) TotalShards() int {
	return rs.dataShards + rs.parityShards
}

// Encode returns the source slices themselves followed by freshly allocated
// parity shards.
func (rs *ReedSolomon) Encode(source [][]byte) ([][]byte, error) {
	if len(source) != rs.dataShards {
		return nil, errors.Wrapf(wire_errors.SizeMismatch, "%d source shards, want %d", len(source), rs.dataShards)
	}
	size, err := shardSize(source)
	if err != nil {
		return nil, err
	}

	output := make([][]byte, rs.TotalShards())
	copy(output, source)
	if rs.parityShards == 0 {
		return output, nil
	}

	padded := paddedSize(size)
	work := make([][]byte, rs.TotalShards())
	for i := range work {
		work[i] = make([]byte, padded)
		if i < rs.dataShards {
			interleave(work[i], source[i])
		}
	}
	if err = rs.enc.Encode(work); err != nil {
		return nil, errors.WithStack(err)
	}
	for i := rs.dataShards; i < len(work); i++ {
		output[i] = make([]byte, size)
		deinterleave(output[i], work[i])
	}
	return output, nil
}

func (rs *ReedSolomon) Reconstruct(shards [][]byte) error {
	if len(shards) != rs.TotalShards() {
		return errors.Wrapf(wire_errors.SizeMismatch, "%d shards, want %d", len(shards), rs.TotalShards())
	}
	present := 0
	dataMissing := false
	for i := range shards {
		if len(shards[i]) == 0 {
			shards[i] = nil
			if i < rs.dataShards {
				dataMissing = true
			}
			continue
		}
		present++
	}
	if present < rs.dataShards {
		return errors.Wrapf(wire_errors.InsufficientShares, "%d shards present, need %d", present, rs.dataShards)
	}
	if !dataMissing {
		return nil
	}
	size, err := shardSize(shards)
	if err != nil {
		return err
	}

	padded := paddedSize(size)
	work := make([][]byte, len(shards))
	for i := range shards {
		if shards[i] == nil {
			continue
		}
		work[i] = make([]byte, padded)
		interleave(work[i], shards[i])
	}
	if err = rs.enc.ReconstructData(work); err != nil {
		return errors.WithStack(err)
	}
	for i := 0; i < rs.dataShards; i++ {
		if shards[i] == nil {
			shards[i] = make([]byte, size)
			deinterleave(shards[i], work[i])
		}
	}
	return nil
}

// shardSize checks that every non-nil shard has the same, even, non-zero
// length.
func shardSize(shards [][]byte) (int, error) {
	size := -1
	for i, s := range shards {
		if s == nil {
			continue
		}
		if size == -1 {
			size = len(s)
		} else if len(s) != size {
			return 0, errors.Wrapf(wire_errors.SizeMismatch, "shard %d has %d bytes, want %d", i, len(s), size)
		}
	}
	if size <= 0 || size%2 != 0 {
		return 0, errors.Wrapf(wire_errors.SizeMismatch, "shard size %d must be even and positive", size)
	}
	return size, nil
}

func paddedSize(size int) int {
	return (size + blockSize - 1) / blockSize * blockSize
}

//interleave packs 2-byte elements of src into dst (len paddedSize(len(src)),
//zeroed) as 32 low bytes + 32 high bytes per block.
func interleave(dst, src []byte) {
	half := blockSize / 2
	for e := 0; e < len(src)/2; e++ {
		pos := (e/half)*blockSize + e%half
		dst[pos] = src[2*e]
		dst[pos+half] = src[2*e+1]
	}
}

func deinterleave(dst, src []byte) {
	half := blockSize / 2
	for e := 0; e < len(dst)/2; e++ {
		pos := (e/half)*blockSize + e%half
		dst[2*e] = src[pos]
		dst[2*e+1] = src[pos+half]
	}
}
