package quilt

import (
	"encoding/binary"
	"sort"

	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/utils"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/journeymidnight/sliver/xlog"
	"github.com/pkg/errors"
)

// layout is the row-major nRows x nColumns symbol matrix of the blob
// encoder. A column read top to bottom is exactly the data of the secondary
// sliver with the same index.
type layout struct {
	nRows      int
	nColumns   int
	symbolSize int
}

func newLayout(enc *encoding.BlobEncoder, symbolSize int) layout {
	return layout{
		nRows:      int(enc.SourceSymbols(encoding.Primary)),
		nColumns:   int(enc.SourceSymbols(encoding.Secondary)),
		symbolSize: symbolSize,
	}
}

func (l layout) rowSize() int    { return l.nColumns * l.symbolSize }
func (l layout) columnSize() int { return l.nRows * l.symbolSize }
func (l layout) size() int       { return l.nRows * l.rowSize() }

func (l layout) column(data []byte, col int) []byte {
	out := make([]byte, 0, l.columnSize())
	for r := 0; r < l.nRows; r++ {
		off := r*l.rowSize() + col*l.symbolSize
		out = append(out, data[off:off+l.symbolSize]...)
	}
	return out
}

// writeColumns spreads b over whole columns starting at col and returns the
// number of columns used.
func (l layout) writeColumns(data []byte, col int, b []byte) int {
	used := int(utils.CeilDiv(uint64(len(b)), uint64(l.columnSize())))
	for r := 0; len(b) > 0; r++ {
		c := col + r/l.nRows
		off := (r%l.nRows)*l.rowSize() + c*l.symbolSize
		b = b[copy(data[off:off+l.symbolSize], b):]
	}
	return used
}

// Quilt is an unencoded quilt. Data is what gets encoded as the blob.
type Quilt struct {
	Data       []byte
	Index      Index
	SymbolSize uint16
}

func patchPrefix(b *Blob) ([]byte, error) {
	identifier := stringBytes(b.Identifier)
	if len(identifier) > maxFieldSize {
		return nil, errors.Wrapf(wire_errors.QuiltOversize, "identifier of %d bytes", len(b.Identifier))
	}
	tags := tagsBytes(b.Tags)
	if len(tags) > maxFieldSize {
		return nil, errors.Wrapf(wire_errors.QuiltOversize, "tags of %q take %d bytes", b.Identifier, len(tags))
	}

	size := PatchHeaderSize + identifierSizeLength + len(identifier)
	var flags uint8
	if len(tags) > 0 {
		size += tagsSizeLength + len(tags)
		flags |= flagHasTags
	}
	length := uint64(size-PatchHeaderSize) + uint64(len(b.Contents))
	if length > 1<<32-1 {
		return nil, errors.Wrapf(wire_errors.QuiltOversize, "%q is %d bytes", b.Identifier, len(b.Contents))
	}

	e := bcs.NewEncoder(size)
	e.U8(Version)
	e.U32(uint32(length))
	e.U8(flags)
	e.U16(uint16(len(identifier)))
	e.Fixed(identifier)
	if len(tags) > 0 {
		e.U16(uint16(len(tags)))
		e.Fixed(tags)
	}
	return e.Bytes(), nil
}

func indexBytes(idx *Index) []byte {
	body := bcs.Marshal(idx)
	out := make([]byte, IndexPrefixSize, IndexPrefixSize+len(body))
	out[0] = Version
	binary.LittleEndian.PutUint32(out[1:], uint32(len(body)))
	return append(out, body...)
}

// Encode lays blobs out as a quilt for enc. Blobs are ordered by identifier;
// identifiers must be unique.
func Encode(enc *encoding.BlobEncoder, blobs []Blob) (*Quilt, error) {
	if len(blobs) == 0 {
		return nil, errors.Wrap(wire_errors.EmptyInput, "no blobs")
	}
	sorted := make([]*Blob, len(blobs))
	for i := range blobs {
		sorted[i] = &blobs[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Identifier < sorted[j].Identifier
	})

	idx := Index{Patches: make([]Patch, len(sorted))}
	prefixes := make([][]byte, len(sorted))
	for i, b := range sorted {
		if i > 0 && sorted[i-1].Identifier == b.Identifier {
			return nil, errors.Wrapf(wire_errors.DuplicateIdentifier, "%q", b.Identifier)
		}
		prefix, err := patchPrefix(b)
		if err != nil {
			return nil, err
		}
		prefixes[i] = prefix
		idx.Patches[i] = Patch{Identifier: b.Identifier, Tags: b.Tags}
	}

	// end indexes are fixed width, so the placeholder index has the final size
	sizes := make([]uint64, 0, len(sorted)+1)
	sizes = append(sizes, uint64(len(indexBytes(&idx))))
	for i, b := range sorted {
		sizes = append(sizes, uint64(len(prefixes[i])+len(b.Contents)))
	}
	l := newLayout(enc, 0)
	symbolSize, err := ComputeSymbolSize(sizes, l.nColumns, l.nRows, MaxIndexColumns)
	if err != nil {
		return nil, err
	}
	l.symbolSize = int(symbolSize)
	if uint64(l.size()) > enc.MaxBlobSize() {
		return nil, errors.Wrapf(wire_errors.QuiltOversize, "%d bytes, max %d", l.size(), enc.MaxBlobSize())
	}

	data := make([]byte, l.size())
	col := int(utils.CeilDiv(sizes[0], uint64(l.columnSize())))
	if col > MaxIndexColumns {
		return nil, errors.Wrapf(wire_errors.QuiltOversize, "index needs %d columns", col)
	}
	for i, b := range sorted {
		patch := make([]byte, 0, len(prefixes[i])+len(b.Contents))
		patch = append(append(patch, prefixes[i]...), b.Contents...)
		idx.Patches[i].StartIndex = uint16(col)
		col += l.writeColumns(data, col, patch)
		idx.Patches[i].EndIndex = uint16(col)
	}
	l.writeColumns(data, 0, indexBytes(&idx))

	xlog.Logger.Debugf("quilt of %d blobs: symbol size %d, %d of %d columns used", len(sorted), symbolSize, col, l.nColumns)
	return &Quilt{Data: data, Index: idx, SymbolSize: symbolSize}, nil
}
