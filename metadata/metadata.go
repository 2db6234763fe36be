// Package metadata commits to an encoded blob: a hash per sliver, a Merkle
// root over the sliver pairs and the content addressed blob id.
package metadata

import (
	"encoding/base64"

	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

const maxShards = 1<<16 - 1

type SliverPairMetadata struct {
	PrimaryHash   MerkleNode
	SecondaryHash MerkleNode
}

func (m *SliverPairMetadata) MarshalBCS(e *bcs.Encoder) {
	m.PrimaryHash.MarshalBCS(e)
	m.SecondaryHash.MarshalBCS(e)
}

func (m *SliverPairMetadata) UnmarshalBCS(d *bcs.Decoder) error {
	if err := m.PrimaryHash.UnmarshalBCS(d); err != nil {
		return err
	}
	return m.SecondaryHash.UnmarshalBCS(d)
}

func (m *SliverPairMetadata) Hash(axis encoding.Axis) MerkleNode {
	if axis == encoding.Primary {
		return m.PrimaryHash
	}
	return m.SecondaryHash
}

type BlobMetadataV1 struct {
	EncodingType    encoding.EncodingType
	UnencodedLength uint64
	Hashes          []SliverPairMetadata
}

func (m *BlobMetadataV1) MarshalBCS(e *bcs.Encoder) {
	m.EncodingType.MarshalBCS(e)
	e.U64(m.UnencodedLength)
	e.ULEB128(uint32(len(m.Hashes)))
	for i := range m.Hashes {
		m.Hashes[i].MarshalBCS(e)
	}
}

func (m *BlobMetadataV1) UnmarshalBCS(d *bcs.Decoder) (err error) {
	if err = m.EncodingType.UnmarshalBCS(d); err != nil {
		return err
	}
	if m.UnencodedLength, err = d.U64(); err != nil {
		return err
	}
	n, err := d.ULEB128()
	if err != nil {
		return err
	}
	if n == 0 || n > maxShards {
		return errors.Wrapf(wire_errors.MalformedEncoding, "metadata for %d shards", n)
	}
	// every entry takes at least two bytes
	if int(n)*2 > d.Remaining() {
		return errors.Wrapf(wire_errors.MalformedEncoding, "%d hashes announced, %d bytes left", n, d.Remaining())
	}
	m.Hashes = make([]SliverPairMetadata, n)
	for i := range m.Hashes {
		if err = m.Hashes[i].UnmarshalBCS(d); err != nil {
			return errors.WithMessagef(err, "sliver pair %d", i)
		}
	}
	return nil
}

const (
	metadataV1 = iota

	numMetadataVersions
)

// BlobMetadata is versioned. A new layout gets a new enum tag and a new
// field here; V1 is the only one today.
type BlobMetadata struct {
	V1 *BlobMetadataV1
}

func NewBlobMetadata(t encoding.EncodingType, length uint64, hashes []SliverPairMetadata) BlobMetadata {
	return BlobMetadata{V1: &BlobMetadataV1{
		EncodingType:    t,
		UnencodedLength: length,
		Hashes:          hashes,
	}}
}

// v1 reads a zero BlobMetadata as an empty V1 layout.
func (m BlobMetadata) v1() *BlobMetadataV1 {
	if m.V1 == nil {
		return &BlobMetadataV1{}
	}
	return m.V1
}

func (m BlobMetadata) EncodingType() encoding.EncodingType {
	return m.v1().EncodingType
}

func (m BlobMetadata) UnencodedLength() uint64 {
	return m.v1().UnencodedLength
}

func (m BlobMetadata) Hashes() []SliverPairMetadata {
	return m.v1().Hashes
}

func (m BlobMetadata) NShards() uint16 {
	return uint16(len(m.v1().Hashes))
}

// RootHash is computed from the sliver hashes alone.
func (m BlobMetadata) RootHash() MerkleNode {
	return NewMerkleTree(m.v1().Hashes).Root()
}

func (m BlobMetadata) ComputeBlobID() BlobID {
	v1 := m.v1()
	return ComputeBlobID(v1.EncodingType, v1.UnencodedLength, m.RootHash())
}

func (m *BlobMetadata) MarshalBCS(e *bcs.Encoder) {
	e.Variant(metadataV1)
	m.v1().MarshalBCS(e)
}

func (m *BlobMetadata) UnmarshalBCS(d *bcs.Decoder) error {
	if _, err := d.Variant(numMetadataVersions); err != nil {
		return errors.WithMessage(err, "metadata version")
	}
	m.V1 = &BlobMetadataV1{}
	return m.V1.UnmarshalBCS(d)
}

func (m BlobMetadata) CanonicalBytes() []byte {
	return bcs.Marshal(&m)
}

func UnmarshalBlobMetadata(data []byte) (BlobMetadata, error) {
	var m BlobMetadata
	if err := bcs.Unmarshal(data, &m); err != nil {
		return BlobMetadata{}, err
	}
	return m, nil
}

type BlobID [DigestLength]byte

// ComputeBlobID hashes the canonical encoding type, the little endian
// unencoded length and the root hash.
func ComputeBlobID(t encoding.EncodingType, length uint64, root MerkleNode) BlobID {
	e := bcs.NewEncoder(1 + 8 + DigestLength)
	t.MarshalBCS(e)
	e.U64(length)
	e.Fixed(root.Bytes())
	return BlobID(hashParts(e.Bytes()))
}

// String is URL-safe base64 without padding.
func (id BlobID) String() string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func ParseBlobID(s string) (BlobID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return BlobID{}, errors.Wrapf(wire_errors.MalformedEncoding, "blob id %q: %v", s, err)
	}
	d, err := parseDigest(raw)
	if err != nil {
		return BlobID{}, errors.WithMessagef(err, "blob id %q", s)
	}
	return BlobID(d), nil
}

func (id BlobID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *BlobID) UnmarshalText(text []byte) error {
	parsed, err := ParseBlobID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// VerifiedBlobMetadataWithID pairs metadata with the id it hashes to. The
// only ways to get one check that relationship.
type VerifiedBlobMetadataWithID struct {
	blobID   BlobID
	metadata BlobMetadata
}

func NewVerifiedBlobMetadataWithID(id BlobID, m BlobMetadata) (*VerifiedBlobMetadataWithID, error) {
	if m.V1 == nil || len(m.V1.Hashes) == 0 {
		return nil, errors.Wrap(wire_errors.MalformedEncoding, "missing metadata")
	}
	if computed := m.ComputeBlobID(); computed != id {
		return nil, errors.Wrapf(wire_errors.BlobIDMismatch, "metadata hashes to %s, expected %s", computed, id)
	}
	return &VerifiedBlobMetadataWithID{blobID: id, metadata: m}, nil
}

// FromHashes computes the blob id for freshly computed hashes.
func FromHashes(t encoding.EncodingType, length uint64, hashes []SliverPairMetadata) *VerifiedBlobMetadataWithID {
	m := NewBlobMetadata(t, length, hashes)
	return &VerifiedBlobMetadataWithID{blobID: m.ComputeBlobID(), metadata: m}
}

// FromSliverPairs hashes every sliver of pairs. Each index in [0, len(pairs))
// must be present once.
func FromSliverPairs(t encoding.EncodingType, length uint64, pairs []encoding.SliverPair) (*VerifiedBlobMetadataWithID, error) {
	b := NewBuilder(t, length, len(pairs))
	for i := range pairs {
		if err := b.Add(&pairs[i].Primary); err != nil {
			return nil, err
		}
		if err := b.Add(&pairs[i].Secondary); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func (v *VerifiedBlobMetadataWithID) BlobID() BlobID {
	return v.blobID
}

func (v *VerifiedBlobMetadataWithID) Metadata() BlobMetadata {
	return v.metadata
}

func (v *VerifiedBlobMetadataWithID) RootHash() MerkleNode {
	return v.metadata.RootHash()
}

// VerifySliver checks s against the hash committed for its index and axis.
func (v *VerifiedBlobMetadataWithID) VerifySliver(s *encoding.Sliver) error {
	hashes := v.metadata.Hashes()
	if int(s.Index) >= len(hashes) {
		return errors.Wrapf(wire_errors.MalformedEncoding, "sliver index %d out of range for %d shards", s.Index, len(hashes))
	}
	expected := hashes[s.Index].Hash(s.Axis)
	if got := DigestNode(SliverHash(s)); got != expected {
		return errors.Wrapf(wire_errors.SliverHashMismatch, "%s sliver %d hashes to %s, committed %s", s.Axis, s.Index, got, expected)
	}
	return nil
}

func (v *VerifiedBlobMetadataWithID) MarshalBCS(e *bcs.Encoder) {
	e.Fixed(v.blobID[:])
	v.metadata.MarshalBCS(e)
}

func (v *VerifiedBlobMetadataWithID) CanonicalBytes() []byte {
	return bcs.Marshal(v)
}

// UnmarshalVerifiedBlobMetadataWithID parses {blob_id, metadata} and checks
// that the metadata hashes to the id.
func UnmarshalVerifiedBlobMetadataWithID(data []byte) (*VerifiedBlobMetadataWithID, error) {
	d := bcs.NewDecoder(data)
	var id BlobID
	if err := d.Fixed(id[:]); err != nil {
		return nil, err
	}
	var m BlobMetadata
	if err := m.UnmarshalBCS(d); err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return NewVerifiedBlobMetadataWithID(id, m)
}

// Builder collects sliver hashes one at a time, so the slivers themselves
// can be dropped as soon as they are hashed.
type Builder struct {
	encodingType encoding.EncodingType
	length       uint64
	hashes       []SliverPairMetadata
}

func NewBuilder(t encoding.EncodingType, length uint64, nShards int) *Builder {
	return &Builder{
		encodingType: t,
		length:       length,
		hashes:       make([]SliverPairMetadata, nShards),
	}
}

func (b *Builder) Add(s *encoding.Sliver) error {
	if int(s.Index) >= len(b.hashes) {
		return errors.Wrapf(wire_errors.MalformedEncoding, "sliver index %d out of range for %d shards", s.Index, len(b.hashes))
	}
	node := DigestNode(SliverHash(s))
	if s.Axis == encoding.Primary {
		b.hashes[s.Index].PrimaryHash = node
	} else {
		b.hashes[s.Index].SecondaryHash = node
	}
	return nil
}

func (b *Builder) Build() (*VerifiedBlobMetadataWithID, error) {
	if len(b.hashes) == 0 {
		return nil, errors.Wrap(wire_errors.InsufficientShares, "no sliver pairs")
	}
	for i := range b.hashes {
		if b.hashes[i].PrimaryHash.Kind == NodeEmpty || b.hashes[i].SecondaryHash.Kind == NodeEmpty {
			return nil, errors.Wrapf(wire_errors.InsufficientShares, "sliver pair %d not hashed", i)
		}
	}
	return FromHashes(b.encodingType, b.length, b.hashes), nil
}
