package encoding

import (
	"bytes"

	"github.com/google/btree"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/journeymidnight/sliver/xlog"
	"github.com/pkg/errors"
)

type sliverItem struct {
	*Sliver
}

func (a sliverItem) Less(than btree.Item) bool {
	return a.Index < than.(sliverItem).Index
}

// sliverSet collects the distinct slivers of one axis ordered by index.
type sliverSet struct {
	tree *btree.BTree
	axis Axis
}

func newSliverSet(axis Axis) *sliverSet {
	return &sliverSet{tree: btree.New(8), axis: axis}
}

// add keeps the first copy of an index. A byte-identical duplicate is
// ignored, a conflicting one is an error.
func (set *sliverSet) add(s *Sliver) error {
	item := sliverItem{s}
	if existing := set.tree.Get(item); existing != nil {
		if !bytes.Equal(existing.(sliverItem).Data, s.Data) || existing.(sliverItem).SymbolSize != s.SymbolSize {
			return errors.Wrapf(wire_errors.DuplicateShare, "%s sliver %d supplied twice with different content", set.axis, s.Index)
		}
		return nil
	}
	set.tree.ReplaceOrInsert(item)
	return nil
}

func (set *sliverSet) Len() int {
	return set.tree.Len()
}

// fill places the first k slivers, in index order, into shards.
func (set *sliverSet) fill(shards [][]byte, k int) {
	set.tree.Ascend(func(i btree.Item) bool {
		if k == 0 {
			return false
		}
		s := i.(sliverItem)
		shards[s.Index] = s.Data
		k--
		return true
	})
}

// Decode reconstructs a blob of length bytes from slivers of a single axis.
// Any SourceSymbols(axis) distinct slivers are enough.
//
// Decode only checks that the slivers are well formed and consistent. It does
// not check them against blob metadata; a sliver with valid shape but wrong
// content yields a wrong blob. Callers that cannot trust their slivers should
// verify them against the metadata hashes first or re-encode the result.
func (be *BlobEncoder) Decode(length uint64, slivers []Sliver) ([]byte, error) {
	if len(slivers) == 0 {
		return nil, errors.Wrapf(wire_errors.InsufficientShares, "no slivers, need %d primary or %d secondary", be.nPrimary, be.nSecondary)
	}
	axis := slivers[0].Axis
	if axis >= numAxes {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "invalid axis %d", axis)
	}
	symbolSize, err := be.SymbolSize(length)
	if err != nil {
		return nil, err
	}
	sliverSize, _ := be.SliverSize(axis, length)

	set := newSliverSet(axis)
	for i := range slivers {
		s := &slivers[i]
		if s.Axis != axis {
			return nil, errors.Wrapf(wire_errors.MalformedEncoding, "mixed axes: %s sliver %d among %s slivers", s.Axis, s.Index, axis)
		}
		if s.Index >= be.NShards() {
			return nil, errors.Wrapf(wire_errors.MalformedEncoding, "sliver index %d out of range for %d shards", s.Index, be.NShards())
		}
		if s.SymbolSize != symbolSize {
			return nil, errors.Wrapf(wire_errors.SizeMismatch, "%s sliver %d has symbol size %d, blob of %d bytes needs %d",
				axis, s.Index, s.SymbolSize, length, symbolSize)
		}
		if len(s.Data) != sliverSize {
			return nil, errors.Wrapf(wire_errors.SizeMismatch, "%s sliver %d has %d bytes, want %d", axis, s.Index, len(s.Data), sliverSize)
		}
		if err = set.add(s); err != nil {
			return nil, err
		}
	}

	k := int(be.SourceSymbols(axis))
	if set.Len() < k {
		return nil, errors.Wrapf(wire_errors.InsufficientShares, "%d distinct %s slivers, need %d", set.Len(), axis, k)
	}

	codec := be.primaryCodec
	if axis == Secondary {
		codec = be.secondaryCodec
	}
	shards := make([][]byte, be.NShards())
	set.fill(shards, k)
	if err = codec.Reconstruct(shards); err != nil {
		return nil, errors.WithMessagef(err, "reconstruct from %s slivers", axis)
	}

	rows, cols, sym := int(be.nPrimary), int(be.nSecondary), int(symbolSize)
	matrix := make([]byte, rows*cols*sym)
	if axis == Primary {
		for r := 0; r < rows; r++ {
			copy(matrix[r*cols*sym:], shards[r])
		}
	} else {
		for c := 0; c < cols; c++ {
			for r := 0; r < rows; r++ {
				off := (r*cols + c) * sym
				copy(matrix[off:off+sym], shards[c][r*sym:(r+1)*sym])
			}
		}
	}

	// Encoding pads with zeros. Anything else past length means the declared
	// length is shorter than what was encoded.
	for _, b := range matrix[length:] {
		if b != 0 {
			return nil, errors.Wrapf(wire_errors.SizeMismatch, "non-zero padding after %d bytes", length)
		}
	}
	xlog.Logger.Debugf("decoded %d bytes from %d %s slivers", length, set.Len(), axis)
	return matrix[:length:length], nil
}
