// Package blob is the entry point for callers: encode a blob into canonical
// sliver bytes plus metadata, compute only the identifiers, or decode a blob
// back from canonical sliver bytes.
package blob

import (
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/metadata"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/journeymidnight/sliver/xlog"
	"github.com/pkg/errors"
)

// Encoder is safe for concurrent use.
type Encoder struct {
	enc *encoding.BlobEncoder
}

func NewEncoder(nShards uint16) (*Encoder, error) {
	return NewEncoderWithType(nShards, encoding.RS2)
}

func NewEncoderWithType(nShards uint16, t encoding.EncodingType) (*Encoder, error) {
	enc, err := encoding.GetEncoder(nShards, t)
	if err != nil {
		return nil, err
	}
	return &Encoder{enc: enc}, nil
}

func (e *Encoder) BlobEncoder() *encoding.BlobEncoder {
	return e.enc
}

func (e *Encoder) NShards() uint16 {
	return e.enc.NShards()
}

type EncodedBlob struct {
	Pairs []encoding.SliverPair
	// SliverPairs[i] is the canonical encoding of Pairs[i]
	SliverPairs [][]byte
	Metadata    *metadata.VerifiedBlobMetadataWithID
	RootHash    metadata.MerkleNode
	BlobID      metadata.BlobID
}

// MetadataSummary is what registering a blob needs, without the per sliver
// hashes.
type MetadataSummary struct {
	BlobID          metadata.BlobID
	RootHash        metadata.MerkleNode
	UnencodedLength uint64
	EncodingType    encoding.EncodingType
}

func (e *Encoder) Encode(data []byte) (*EncodedBlob, error) {
	pairs, err := e.enc.Encode(data)
	if err != nil {
		return nil, err
	}
	md, err := metadata.FromSliverPairs(e.enc.EncodingType(), uint64(len(data)), pairs)
	if err != nil {
		return nil, err
	}
	out := &EncodedBlob{
		Pairs:       pairs,
		SliverPairs: make([][]byte, len(pairs)),
		Metadata:    md,
		RootHash:    md.RootHash(),
		BlobID:      md.BlobID(),
	}
	for i := range pairs {
		out.SliverPairs[i] = pairs[i].CanonicalBytes()
	}
	xlog.Logger.Debugf("encoded blob %s: %d bytes into %d sliver pairs", out.BlobID, len(data), len(pairs))
	return out, nil
}

// SliverDataSize is the length of one untagged canonical sliver on axis for
// a blob of length bytes.
func (e *Encoder) SliverDataSize(axis encoding.Axis, length uint64) (int, error) {
	size, err := e.enc.SliverSize(axis, length)
	if err != nil {
		return 0, err
	}
	s := encoding.Sliver{Data: make([]byte, size)}
	return len(s.DataBytes()), nil
}

// EncodeInto writes the untagged canonical bytes of every sliver into the
// caller's buffers, one per shard and axis. Each buffer must be exactly
// SliverDataSize bytes long.
func (e *Encoder) EncodeInto(data []byte, primary, secondary [][]byte) (*VerifiedMetadata, error) {
	n := int(e.NShards())
	if len(primary) != n || len(secondary) != n {
		return nil, errors.Wrapf(wire_errors.SizeMismatch, "%d primary and %d secondary buffers, want %d each",
			len(primary), len(secondary), n)
	}
	b := metadata.NewBuilder(e.enc.EncodingType(), uint64(len(data)), n)
	err := e.enc.EncodeFunc(data, func(s encoding.Sliver) error {
		buf := primary[s.Index]
		if s.Axis == encoding.Secondary {
			buf = secondary[s.Index]
		}
		canonical := s.DataBytes()
		if len(buf) != len(canonical) {
			return errors.Wrapf(wire_errors.SizeMismatch, "%s buffer %d has %d bytes, want %d", s.Axis, s.Index, len(buf), len(canonical))
		}
		copy(buf, canonical)
		return b.Add(&s)
	})
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// VerifiedMetadata is metadata whose blob id has been computed from it.
type VerifiedMetadata = metadata.VerifiedBlobMetadataWithID

// ComputeMetadata encodes data and hashes each sliver as it is produced.
// Sliver payloads are dropped right away, only the hashes are kept.
func (e *Encoder) ComputeMetadata(data []byte) (*MetadataSummary, error) {
	md, err := e.computeFullMetadata(data)
	if err != nil {
		return nil, err
	}
	return &MetadataSummary{
		BlobID:          md.BlobID(),
		RootHash:        md.RootHash(),
		UnencodedLength: uint64(len(data)),
		EncodingType:    e.enc.EncodingType(),
	}, nil
}

func (e *Encoder) computeFullMetadata(data []byte) (*VerifiedMetadata, error) {
	b := metadata.NewBuilder(e.enc.EncodingType(), uint64(len(data)), int(e.NShards()))
	err := e.enc.EncodeFunc(data, func(s encoding.Sliver) error {
		return b.Add(&s)
	})
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// Decode rebuilds a blob from axis-tagged canonical slivers, all of the same
// axis. blobID only labels the request: the slivers are not checked against
// it. Use DecodeAndVerify, or check each sliver with
// VerifiedBlobMetadataWithID.VerifySliver first, when the slivers come from
// untrusted shards.
func (e *Encoder) Decode(blobID metadata.BlobID, length uint64, canonical [][]byte) ([]byte, error) {
	slivers := make([]encoding.Sliver, len(canonical))
	for i, data := range canonical {
		s, err := encoding.UnmarshalSliver(data)
		if err != nil {
			return nil, errors.WithMessagef(err, "sliver %d of blob %s", i, blobID)
		}
		slivers[i] = s
	}
	return e.decode(blobID, length, slivers)
}

// DecodeSliverData is Decode for untagged slivers of a known axis.
func (e *Encoder) DecodeSliverData(blobID metadata.BlobID, axis encoding.Axis, length uint64, canonical [][]byte) ([]byte, error) {
	slivers := make([]encoding.Sliver, len(canonical))
	for i, data := range canonical {
		s, err := encoding.UnmarshalSliverData(axis, data)
		if err != nil {
			return nil, errors.WithMessagef(err, "sliver %d of blob %s", i, blobID)
		}
		slivers[i] = s
	}
	return e.decode(blobID, length, slivers)
}

func (e *Encoder) decode(blobID metadata.BlobID, length uint64, slivers []encoding.Sliver) ([]byte, error) {
	data, err := e.enc.Decode(length, slivers)
	if err != nil {
		return nil, errors.WithMessagef(err, "decode blob %s", blobID)
	}
	xlog.Logger.Debugf("decoded blob %s from %d slivers", blobID, len(slivers))
	return data, nil
}

// DecodeAndVerify decodes like Decode, then encodes the result again and
// requires it to hash to blobID. It catches any corrupted sliver that made it
// into the decode at the price of a full encode.
func (e *Encoder) DecodeAndVerify(blobID metadata.BlobID, length uint64, canonical [][]byte) ([]byte, error) {
	data, err := e.Decode(blobID, length, canonical)
	if err != nil {
		return nil, err
	}
	md, err := e.computeFullMetadata(data)
	if err != nil {
		return nil, err
	}
	if md.BlobID() != blobID {
		return nil, errors.Wrapf(wire_errors.BlobIDMismatch, "decoded data hashes to %s, expected %s", md.BlobID(), blobID)
	}
	return data, nil
}
