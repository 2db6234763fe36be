// Package quilt packs many small blobs into one encoded blob. Every blob
// becomes a patch that owns a run of whole source columns, so a single patch
// can be read back from a few secondary slivers without decoding the quilt.
//
// Column 0 onwards holds the quilt index: a version byte, a little endian u32
// index length and the canonical index. Each patch starts with a header
// (version, u32 length, flags) followed by the canonical identifier, the
// optional canonical tags and the blob contents.
package quilt

import (
	"bytes"
	"encoding/base64"
	"sort"
	"unicode/utf8"

	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/metadata"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

const (
	Version = 1

	IndexPrefixSize = 1 + 4
	PatchHeaderSize = 1 + 4 + 1
	// MaxIndexColumns bounds the columns the index may span.
	MaxIndexColumns = 10

	identifierSizeLength = 2
	tagsSizeLength       = 2
	maxFieldSize         = 1<<16 - 1

	flagHasTags = 1 << 0
)

// Blob is one member of a quilt.
type Blob struct {
	Identifier string
	Contents   []byte
	Tags       map[string]string
}

// Patch locates a blob inside the quilt: columns [StartIndex, EndIndex).
type Patch struct {
	Identifier string
	Tags       map[string]string
	StartIndex uint16
	EndIndex   uint16
}

type Index struct {
	Patches []Patch
}

// Find returns the patch named identifier.
func (idx *Index) Find(identifier string) (Patch, error) {
	for _, p := range idx.Patches {
		if p.Identifier == identifier {
			return p, nil
		}
	}
	return Patch{}, errors.Wrapf(wire_errors.PatchNotFound, "identifier %q", identifier)
}

// PatchIDs returns the id of every patch of the quilt stored as quiltID.
func (idx *Index) PatchIDs(quiltID metadata.BlobID) []PatchID {
	ids := make([]PatchID, len(idx.Patches))
	for i, p := range idx.Patches {
		ids[i] = PatchID{QuiltID: quiltID, Version: Version, StartIndex: p.StartIndex, EndIndex: p.EndIndex}
	}
	return ids
}

// MarshalBCS writes the on-quilt index. Start indexes are implied: the first
// patch follows the index columns, every other one follows its predecessor.
func (idx *Index) MarshalBCS(e *bcs.Encoder) {
	e.ULEB128(uint32(len(idx.Patches)))
	for i := range idx.Patches {
		p := &idx.Patches[i]
		e.U16(p.EndIndex)
		e.ByteVector([]byte(p.Identifier))
		marshalTags(e, p.Tags)
	}
}

func (idx *Index) UnmarshalBCS(d *bcs.Decoder) error {
	n, err := d.ULEB128()
	if err != nil {
		return err
	}
	// every patch takes at least four bytes
	if int(n)*4 > d.Remaining() {
		return errors.Wrapf(wire_errors.MalformedEncoding, "%d patches announced, %d bytes left", n, d.Remaining())
	}
	idx.Patches = make([]Patch, n)
	for i := range idx.Patches {
		p := &idx.Patches[i]
		if p.EndIndex, err = d.U16(); err != nil {
			return err
		}
		if p.Identifier, err = readString(d); err != nil {
			return errors.WithMessagef(err, "patch %d", i)
		}
		if p.Tags, err = unmarshalTags(d); err != nil {
			return errors.WithMessagef(err, "patch %d", i)
		}
	}
	return nil
}

func readString(d *bcs.Decoder) (string, error) {
	b, err := d.ByteVector()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.Wrap(wire_errors.MalformedEncoding, "string is not utf-8")
	}
	return string(b), nil
}

func stringBytes(s string) []byte {
	e := bcs.NewEncoder(bcs.UlebSize(uint64(len(s))) + len(s))
	e.ByteVector([]byte(s))
	return e.Bytes()
}

// Tags are a canonical map: entries ordered by the canonical bytes of the key.
func sortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(stringBytes(keys[i]), stringBytes(keys[j])) < 0
	})
	return keys
}

func marshalTags(e *bcs.Encoder, tags map[string]string) {
	e.ULEB128(uint32(len(tags)))
	for _, k := range sortedTagKeys(tags) {
		e.ByteVector([]byte(k))
		e.ByteVector([]byte(tags[k]))
	}
}

func unmarshalTags(d *bcs.Decoder) (map[string]string, error) {
	n, err := d.ULEB128()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if int(n)*2 > d.Remaining() {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "%d tags announced, %d bytes left", n, d.Remaining())
	}
	tags := make(map[string]string, n)
	var prev []byte
	for i := uint32(0); i < n; i++ {
		k, err := readString(d)
		if err != nil {
			return nil, err
		}
		v, err := readString(d)
		if err != nil {
			return nil, err
		}
		key := stringBytes(k)
		if prev != nil && bytes.Compare(prev, key) >= 0 {
			return nil, errors.Wrapf(wire_errors.MalformedEncoding, "tag %q out of order", k)
		}
		prev = key
		tags[k] = v
	}
	return tags, nil
}

func tagsBytes(tags map[string]string) []byte {
	if len(tags) == 0 {
		return nil
	}
	e := bcs.NewEncoder(0)
	marshalTags(e, tags)
	return e.Bytes()
}

const patchIDSize = metadata.DigestLength + 1 + 2 + 2

// PatchID names one patch of one stored quilt.
type PatchID struct {
	QuiltID    metadata.BlobID
	Version    uint8
	StartIndex uint16
	EndIndex   uint16
}

func (id *PatchID) MarshalBCS(e *bcs.Encoder) {
	e.Fixed(id.QuiltID[:])
	e.U8(id.Version)
	e.U16(id.StartIndex)
	e.U16(id.EndIndex)
}

func (id *PatchID) UnmarshalBCS(d *bcs.Decoder) (err error) {
	if err = d.Fixed(id.QuiltID[:]); err != nil {
		return err
	}
	if id.Version, err = d.U8(); err != nil {
		return err
	}
	if id.StartIndex, err = d.U16(); err != nil {
		return err
	}
	id.EndIndex, err = d.U16()
	return err
}

// String is URL-safe base64 without padding, like blob ids.
func (id PatchID) String() string {
	return base64.RawURLEncoding.EncodeToString(bcs.Marshal(&id))
}

func ParsePatchID(s string) (PatchID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return PatchID{}, errors.Wrapf(wire_errors.MalformedEncoding, "patch id %q: %v", s, err)
	}
	if len(raw) != patchIDSize {
		return PatchID{}, errors.Wrapf(wire_errors.MalformedEncoding, "patch id %q has %d bytes", s, len(raw))
	}
	var id PatchID
	if err = bcs.Unmarshal(raw, &id); err != nil {
		return PatchID{}, err
	}
	return id, nil
}
