package quilt

import (
	"encoding/binary"

	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

// Reader reads a quilt one column at a time, either out of the decoded quilt
// or straight from the secondary slivers of its source columns.
type Reader struct {
	nColumns   int
	columnSize int
	column     func(col int) ([]byte, error)
}

// NewReader reads from data, a whole decoded quilt.
func NewReader(enc *encoding.BlobEncoder, data []byte) (*Reader, error) {
	l := newLayout(enc, 0)
	cells := l.nRows * l.nColumns
	if len(data) == 0 || len(data)%cells != 0 || (len(data)/cells)%symbolAlignment != 0 {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "%d bytes is not a quilt for %d shards", len(data), enc.NShards())
	}
	l.symbolSize = len(data) / cells
	return &Reader{
		nColumns:   l.nColumns,
		columnSize: l.columnSize(),
		column: func(col int) ([]byte, error) {
			return l.column(data, col), nil
		},
	}, nil
}

// NewSliverReader reads from secondary slivers. Only the columns a read
// touches need to be present; slivers past the source columns are ignored.
func NewSliverReader(enc *encoding.BlobEncoder, slivers []encoding.Sliver) (*Reader, error) {
	nColumns := int(enc.SourceSymbols(encoding.Secondary))
	columnSize := -1
	columns := make(map[int][]byte, len(slivers))
	for i := range slivers {
		s := &slivers[i]
		if s.Axis != encoding.Secondary {
			return nil, errors.Wrapf(wire_errors.MalformedEncoding, "%s sliver %d, quilts read secondary slivers", s.Axis, s.Index)
		}
		if int(s.Index) >= nColumns {
			continue
		}
		if columnSize < 0 {
			columnSize = len(s.Data)
		}
		if len(s.Data) != columnSize || s.NumSymbols() != int(enc.SourceSymbols(encoding.Primary)) {
			return nil, errors.Wrapf(wire_errors.SizeMismatch, "sliver %d has %d bytes", s.Index, len(s.Data))
		}
		columns[int(s.Index)] = s.Data
	}
	if len(columns) == 0 {
		return nil, errors.Wrap(wire_errors.InsufficientShares, "no source column slivers")
	}
	return &Reader{
		nColumns:   nColumns,
		columnSize: columnSize,
		column: func(col int) ([]byte, error) {
			data, ok := columns[col]
			if !ok {
				return nil, errors.Wrapf(wire_errors.InsufficientShares, "missing secondary sliver %d", col)
			}
			return data, nil
		},
	}, nil
}

// readBytes reads length bytes that start offset bytes into column start.
func (r *Reader) readBytes(start, offset, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	col, skip := start+offset/r.columnSize, offset%r.columnSize
	for len(out) < length {
		if col >= r.nColumns {
			return nil, errors.Wrapf(wire_errors.MalformedEncoding, "read past column %d", r.nColumns)
		}
		data, err := r.column(col)
		if err != nil {
			return nil, err
		}
		data = data[skip:]
		if rest := length - len(out); len(data) > rest {
			data = data[:rest]
		}
		out = append(out, data...)
		col, skip = col+1, 0
	}
	return out, nil
}

// ReadIndex parses the quilt index and fills in the start of every patch.
func (r *Reader) ReadIndex() (*Index, error) {
	prefix, err := r.readBytes(0, 0, IndexPrefixSize)
	if err != nil {
		return nil, err
	}
	if prefix[0] != Version {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "quilt version %d", prefix[0])
	}
	size := int64(binary.LittleEndian.Uint32(prefix[1:]))
	if IndexPrefixSize+size > int64(MaxIndexColumns*r.columnSize) {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "quilt index of %d bytes", size)
	}
	body, err := r.readBytes(0, IndexPrefixSize, int(size))
	if err != nil {
		return nil, err
	}
	var idx Index
	if err = bcs.Unmarshal(body, &idx); err != nil {
		return nil, errors.WithMessage(err, "quilt index")
	}

	start := (IndexPrefixSize + int(size) + r.columnSize - 1) / r.columnSize
	for i := range idx.Patches {
		p := &idx.Patches[i]
		p.StartIndex = uint16(start)
		if int(p.EndIndex) <= start || int(p.EndIndex) > r.nColumns {
			return nil, errors.Wrapf(wire_errors.MalformedEncoding, "patch %q spans columns [%d, %d)", p.Identifier, start, p.EndIndex)
		}
		start = int(p.EndIndex)
	}
	return &idx, nil
}

// ReadPatch reads the blob stored in columns [StartIndex, EndIndex) of p.
func (r *Reader) ReadPatch(p Patch) (*Blob, error) {
	if p.StartIndex >= p.EndIndex || int(p.EndIndex) > r.nColumns {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "patch columns [%d, %d)", p.StartIndex, p.EndIndex)
	}
	start := int(p.StartIndex)
	limit := int(p.EndIndex-p.StartIndex) * r.columnSize

	header, err := r.readBytes(start, 0, PatchHeaderSize+identifierSizeLength)
	if err != nil {
		return nil, err
	}
	if header[0] != Version {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "patch version %d", header[0])
	}
	length := int64(binary.LittleEndian.Uint32(header[1:]))
	flags := header[5]
	if length < identifierSizeLength || PatchHeaderSize+length > int64(limit) {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "patch of %d bytes in %d columns", length, p.EndIndex-p.StartIndex)
	}
	offset := len(header)
	remaining := length - identifierSizeLength

	idLen := int(binary.LittleEndian.Uint16(header[PatchHeaderSize:]))
	if int64(idLen) > remaining {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "identifier of %d bytes", idLen)
	}
	raw, err := r.readBytes(start, offset, idLen)
	if err != nil {
		return nil, err
	}
	offset += idLen
	remaining -= int64(idLen)
	b := &Blob{}
	d := bcs.NewDecoder(raw)
	if b.Identifier, err = readString(d); err != nil {
		return nil, err
	}
	if err = d.Finish(); err != nil {
		return nil, err
	}

	if flags&flagHasTags != 0 {
		if remaining < tagsSizeLength {
			return nil, errors.Wrap(wire_errors.MalformedEncoding, "truncated tags")
		}
		sizeBytes, err := r.readBytes(start, offset, tagsSizeLength)
		if err != nil {
			return nil, err
		}
		tagsLen := int(binary.LittleEndian.Uint16(sizeBytes))
		offset += tagsSizeLength
		remaining -= tagsSizeLength
		if int64(tagsLen) > remaining {
			return nil, errors.Wrapf(wire_errors.MalformedEncoding, "tags of %d bytes", tagsLen)
		}
		raw, err = r.readBytes(start, offset, tagsLen)
		if err != nil {
			return nil, err
		}
		d = bcs.NewDecoder(raw)
		if b.Tags, err = unmarshalTags(d); err != nil {
			return nil, err
		}
		if err = d.Finish(); err != nil {
			return nil, err
		}
		offset += tagsLen
		remaining -= int64(tagsLen)
	}

	if b.Contents, err = r.readBytes(start, offset, int(remaining)); err != nil {
		return nil, err
	}
	if p.Identifier != "" && p.Identifier != b.Identifier {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "patch holds %q, index names %q", b.Identifier, p.Identifier)
	}
	return b, nil
}

// ReadByIdentifier reads the index, then the patch named identifier.
func (r *Reader) ReadByIdentifier(identifier string) (*Blob, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return nil, err
	}
	p, err := idx.Find(identifier)
	if err != nil {
		return nil, err
	}
	return r.ReadPatch(p)
}

// ReadPatchID reads the patch id names. The caller checks that the reader
// holds the quilt id.QuiltID.
func (r *Reader) ReadPatchID(id PatchID) (*Blob, error) {
	if id.Version != Version {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "patch id version %d", id.Version)
	}
	return r.ReadPatch(Patch{StartIndex: id.StartIndex, EndIndex: id.EndIndex})
}
