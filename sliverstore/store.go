// Package sliverstore stages encoded blobs on local disk: one directory per
// blob holding a CBOR manifest and one checksummed file per sliver. It is a
// caller side staging area for tools, not a storage node engine.
package sliverstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgryski/go-farm"
	"github.com/fxamacker/cbor/v2"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/metadata"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/journeymidnight/sliver/xlog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"
)

const (
	manifestName    = "manifest.cbor"
	manifestVersion = 1
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("sliverstore: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("sliverstore: CBOR decoder initialization failed: " + err.Error())
	}
}

// Manifest describes one staged blob.
type Manifest struct {
	Version         uint8           `cbor:"1,keyasint"`
	BlobID          metadata.BlobID `cbor:"2,keyasint"`
	NShards         uint16          `cbor:"3,keyasint"`
	EncodingType    string          `cbor:"4,keyasint"`
	UnencodedLength uint64          `cbor:"5,keyasint"`
	Compressed      bool            `cbor:"6,keyasint"`
	// Metadata is the canonical {blob id, metadata} encoding.
	Metadata []byte `cbor:"7,keyasint"`
	// Checksum is blake3-256 of Metadata.
	Checksum []byte `cbor:"8,keyasint"`
	Name     string `cbor:"9,keyasint,omitempty"`
}

type Options struct {
	Compress bool
	// Workers bounds concurrent file operations, 0 means one per sliver.
	Workers int
}

type Store struct {
	baseDir string
	opts    Options
}

func Open(baseDir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Store{baseDir: baseDir, opts: opts}, nil
}

// BlobDir spreads blobs over 256 subdirectories by a hash of the id.
func (s *Store) BlobDir(id metadata.BlobID) string {
	h := farm.Hash32(id[:])
	return filepath.Join(s.baseDir, fmt.Sprintf("%02x", h&0xFF), id.String())
}

func (s *Store) newGroup(ctx context.Context) (*errgroup.Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	if s.opts.Workers > 0 {
		g.SetLimit(s.opts.Workers)
	}
	return g, ctx
}

// Put writes every sliver of pairs and then the manifest. A blob only shows
// up in List once its manifest exists.
func (s *Store) Put(ctx context.Context, md *metadata.VerifiedBlobMetadataWithID, pairs []encoding.SliverPair, name string) (*Manifest, error) {
	if len(pairs) != int(md.Metadata().NShards()) {
		return nil, errors.Wrapf(wire_errors.SizeMismatch, "%d sliver pairs for %d shards", len(pairs), md.Metadata().NShards())
	}
	dir := s.BlobDir(md.BlobID())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}

	g, gctx := s.newGroup(ctx)
	for i := range pairs {
		for _, sliver := range []*encoding.Sliver{&pairs[i].Primary, &pairs[i].Secondary} {
			sliver := sliver
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				path := filepath.Join(dir, sliverFileName(sliver.Axis, sliver.Index))
				return errors.WithStack(writeFileSync(path, encodeSliverFile(sliver, s.opts.Compress)))
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	canonical := md.CanonicalBytes()
	sum := blake3.Sum256(canonical)
	m := md.Metadata()
	manifest := &Manifest{
		Version:         manifestVersion,
		BlobID:          md.BlobID(),
		NShards:         m.NShards(),
		EncodingType:    m.EncodingType().String(),
		UnencodedLength: m.UnencodedLength(),
		Compressed:      s.opts.Compress,
		Metadata:        canonical,
		Checksum:        sum[:],
		Name:            name,
	}
	data, err := encMode.Marshal(manifest)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err = writeFileSync(filepath.Join(dir, manifestName), data); err != nil {
		return nil, errors.WithStack(err)
	}
	xlog.Logger.Infof("stored blob %s (%d bytes, %d shards) in %s", md.BlobID(), m.UnencodedLength(), m.NShards(), dir)
	return manifest, nil
}

// Get reads the manifest of id and checks its metadata.
func (s *Store) Get(id metadata.BlobID) (*Manifest, *metadata.VerifiedBlobMetadataWithID, error) {
	return readManifest(s.BlobDir(id))
}

func readManifest(dir string) (*Manifest, *metadata.VerifiedBlobMetadataWithID, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	var manifest Manifest
	if err = decMode.Unmarshal(data, &manifest); err != nil {
		return nil, nil, errors.Wrapf(wire_errors.MalformedEncoding, "manifest in %s: %v", dir, err)
	}
	if manifest.Version != manifestVersion {
		return nil, nil, errors.Wrapf(wire_errors.MalformedEncoding, "manifest version %d", manifest.Version)
	}
	sum := blake3.Sum256(manifest.Metadata)
	if !bytes.Equal(sum[:], manifest.Checksum) {
		return nil, nil, errors.Wrapf(wire_errors.MalformedEncoding, "manifest checksum mismatch in %s", dir)
	}
	md, err := metadata.UnmarshalVerifiedBlobMetadataWithID(manifest.Metadata)
	if err != nil {
		return nil, nil, err
	}
	if md.BlobID() != manifest.BlobID {
		return nil, nil, errors.Wrapf(wire_errors.BlobIDMismatch, "manifest names %s, metadata is %s", manifest.BlobID, md.BlobID())
	}
	return &manifest, md, nil
}

// LoadSlivers reads the slivers of axis, leaving out the indexes in exclude.
// Missing, corrupt or unauthentic files are logged and skipped; the decoder
// then has to make do with the rest.
func (s *Store) LoadSlivers(ctx context.Context, md *metadata.VerifiedBlobMetadataWithID, axis encoding.Axis, exclude []uint16) ([]encoding.Sliver, error) {
	dir := s.BlobDir(md.BlobID())
	skip := make(map[uint16]bool, len(exclude))
	for _, i := range exclude {
		skip[i] = true
	}

	n := md.Metadata().NShards()
	loaded := make([]*encoding.Sliver, n)
	g, gctx := s.newGroup(ctx)
	for i := uint16(0); i < n; i++ {
		if skip[i] {
			continue
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, sliverFileName(axis, i))
			data, err := os.ReadFile(path)
			if err != nil {
				xlog.Logger.Warnf("skip %s: %v", path, err)
				return nil
			}
			sliver, err := decodeSliverFile(data)
			if err != nil {
				xlog.Logger.Warnf("skip %s: %v", path, err)
				return nil
			}
			if sliver.Axis != axis || sliver.Index != i {
				xlog.Logger.Warnf("skip %s: holds %s sliver %d", path, sliver.Axis, sliver.Index)
				return nil
			}
			if err = md.VerifySliver(&sliver); err != nil {
				xlog.Logger.Warnf("skip %s: %v", path, err)
				return nil
			}
			loaded[i] = &sliver
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slivers := make([]encoding.Sliver, 0, n)
	for _, sliver := range loaded {
		if sliver != nil {
			slivers = append(slivers, *sliver)
		}
	}
	xlog.Logger.Debugf("loaded %d of %d %s slivers of %s", len(slivers), n, axis, md.BlobID())
	return slivers, nil
}

// List returns the ids of all blobs with a manifest.
func (s *Store) List() ([]metadata.BlobID, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, "*", "*", manifestName))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var ids []metadata.BlobID
	for _, m := range matches {
		id, err := metadata.ParseBlobID(filepath.Base(filepath.Dir(m)))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Delete(id metadata.BlobID) error {
	dir := s.BlobDir(id)
	if _, err := os.Stat(dir); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.RemoveAll(dir))
}

func isSliverFile(name string) bool {
	return strings.HasSuffix(name, ".sliver")
}

// Files returns the sliver file names present for id.
func (s *Store) Files(id metadata.BlobID) ([]string, error) {
	entries, err := os.ReadDir(s.BlobDir(id))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var names []string
	for _, e := range entries {
		if isSliverFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
