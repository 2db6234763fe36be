package encoding

import (
	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/erasure_code"
	"github.com/journeymidnight/sliver/utils"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

// MaxSymbolSize is the largest even value that fits the u16 symbol size.
const MaxSymbolSize = 1<<16 - 2

// BlobEncoder encodes and decodes blobs for one shard count and encoding
// type. It holds no mutable state.
type BlobEncoder struct {
	config       *EncodingConfig
	encodingType EncodingType
	nPrimary     uint16 //rows of the source matrix
	nSecondary   uint16 //columns of the source matrix

	// primaryCodec extends the matrix columns to n rows, which yields the
	// primary slivers; secondaryCodec extends rows to n columns.
	primaryCodec   erasure_code.ErasureCodec
	secondaryCodec erasure_code.ErasureCodec
}

func newBlobEncoder(config *EncodingConfig, t EncodingType) (*BlobEncoder, error) {
	nPrimary, err := config.SourceSymbols(t, Primary)
	if err != nil {
		return nil, err
	}
	nSecondary, err := config.SourceSymbols(t, Secondary)
	if err != nil {
		return nil, err
	}
	n := int(config.NShards())
	primaryCodec, err := erasure_code.NewReedSolomon(int(nPrimary), n)
	if err != nil {
		return nil, err
	}
	secondaryCodec, err := erasure_code.NewReedSolomon(int(nSecondary), n)
	if err != nil {
		return nil, err
	}
	return &BlobEncoder{
		config:         config,
		encodingType:   t,
		nPrimary:       nPrimary,
		nSecondary:     nSecondary,
		primaryCodec:   primaryCodec,
		secondaryCodec: secondaryCodec,
	}, nil
}

func (be *BlobEncoder) Config() *EncodingConfig {
	return be.config
}

func (be *BlobEncoder) EncodingType() EncodingType {
	return be.encodingType
}

func (be *BlobEncoder) NShards() uint16 {
	return be.config.NShards()
}

// SourceSymbols is the reconstruction threshold of axis.
func (be *BlobEncoder) SourceSymbols(axis Axis) uint16 {
	if axis == Primary {
		return be.nPrimary
	}
	return be.nSecondary
}

// symbolSizeLimit is the largest even symbol size for which a sliver of
// nSymbols symbols still fits a canonical byte vector.
func symbolSizeLimit(nSymbols uint16) uint64 {
	limit := uint64(bcs.MaxSequenceLength) / uint64(nSymbols) &^ 1
	if limit > MaxSymbolSize {
		return MaxSymbolSize
	}
	return limit
}

// MaxBlobSize is bounded by the u16 symbol size and, for very large shard
// counts, by the length prefix of the longer (primary) sliver.
func (be *BlobEncoder) MaxBlobSize() uint64 {
	return uint64(be.nPrimary) * uint64(be.nSecondary) * symbolSizeLimit(be.nSecondary)
}

// SymbolSize returns the symbol size for a blob of length bytes.
func (be *BlobEncoder) SymbolSize(length uint64) (uint16, error) {
	if length > be.MaxBlobSize() {
		return 0, errors.Wrapf(wire_errors.BlobTooLarge, "%d bytes, max %d for %d shards", length, be.MaxBlobSize(), be.NShards())
	}
	if length == 0 {
		length = 1
	}
	size := utils.CeilDiv(length, uint64(be.nPrimary)*uint64(be.nSecondary))
	if size%2 == 1 {
		size++
	}
	return uint16(size), nil
}

// SliverSize returns the byte length of every sliver on axis. A primary
// sliver holds one symbol per source column and a secondary sliver one per
// source row.
func (be *BlobEncoder) SliverSize(axis Axis, length uint64) (int, error) {
	symbolSize, err := be.SymbolSize(length)
	if err != nil {
		return 0, err
	}
	return int(be.SourceSymbols(axis.Orthogonal())) * int(symbolSize), nil
}

// EncodedBlobLength is the total storage across all shards: the metadata
// replicated on every shard plus every sliver.
func (be *BlobEncoder) EncodedBlobLength(length uint64) (uint64, error) {
	symbolSize, err := be.SymbolSize(length)
	if err != nil {
		return 0, err
	}
	n := uint64(be.NShards())
	metadata := n * (n*32*2 + 32)
	slivers := (uint64(be.nPrimary) + uint64(be.nSecondary)) * uint64(symbolSize) * n
	return metadata + slivers, nil
}

// Encode turns blob into n sliver pairs. The pair at position i holds the
// primary and secondary sliver with index i.
func (be *BlobEncoder) Encode(blob []byte) ([]SliverPair, error) {
	pairs := make([]SliverPair, be.NShards())
	err := be.EncodeFunc(blob, func(s Sliver) error {
		if s.Axis == Primary {
			pairs[s.Index].Primary = s
		} else {
			pairs[s.Index].Secondary = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// EncodeFunc encodes blob and hands every sliver to visit, all primary
// slivers first, then all secondary slivers. The encoder keeps no reference
// to a sliver after visit returns, so callers that only need digests can
// drop the payload and keep memory bounded by one axis at a time.
func (be *BlobEncoder) EncodeFunc(blob []byte, visit func(Sliver) error) error {
	symbolSize, err := be.SymbolSize(uint64(len(blob)))
	if err != nil {
		return err
	}
	sym := int(symbolSize)
	rows, cols := int(be.nPrimary), int(be.nSecondary)

	// row-major rows x cols symbol matrix, zero padded
	matrix := make([]byte, rows*cols*sym)
	copy(matrix, blob)

	rowLen := cols * sym
	source := make([][]byte, rows)
	for r := 0; r < rows; r++ {
		source[r] = matrix[r*rowLen : (r+1)*rowLen]
	}
	extended, err := be.primaryCodec.Encode(source)
	if err != nil {
		return errors.WithMessage(err, "encode primary slivers")
	}
	for i, data := range extended {
		if i < rows {
			data = append([]byte(nil), data...)
		}
		if err = visit(Sliver{Axis: Primary, Index: uint16(i), SymbolSize: symbolSize, Data: data}); err != nil {
			return err
		}
	}

	colLen := rows * sym
	source = make([][]byte, cols)
	for c := 0; c < cols; c++ {
		column := make([]byte, colLen)
		for r := 0; r < rows; r++ {
			off := (r*cols + c) * sym
			copy(column[r*sym:], matrix[off:off+sym])
		}
		source[c] = column
	}
	extended, err = be.secondaryCodec.Encode(source)
	if err != nil {
		return errors.WithMessage(err, "encode secondary slivers")
	}
	for i, data := range extended {
		if err = visit(Sliver{Axis: Secondary, Index: uint16(i), SymbolSize: symbolSize, Data: data}); err != nil {
			return err
		}
	}
	return nil
}
