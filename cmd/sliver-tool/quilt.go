package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/journeymidnight/sliver/blob"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/quilt"
	"github.com/journeymidnight/sliver/utils"
	"github.com/journeymidnight/sliver/xlog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func parseTags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		kv := utils.SplitAndTrim(pair, "=")
		if len(kv) != 2 || len(kv[0]) == 0 {
			return nil, errors.Errorf("bad tag %q, want key=value", pair)
		}
		tags[kv[0]] = kv[1]
	}
	return tags, nil
}

func encodeQuilt(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return errors.New("no files")
	}
	tags, err := parseTags(c.StringSlice("tag"))
	if err != nil {
		return err
	}
	blobs := make([]quilt.Blob, 0, c.Args().Len())
	for _, fileName := range c.Args().Slice() {
		data, err := os.ReadFile(fileName)
		if err != nil {
			return errors.Errorf("read file %s: err: %s", fileName, err.Error())
		}
		blobs = append(blobs, quilt.Blob{Identifier: filepath.Base(fileName), Contents: data, Tags: tags})
	}

	enc, err := blob.NewEncoderWithType(uint16(config.NShards), config.encodingType())
	if err != nil {
		return err
	}
	q, err := quilt.Encode(enc.BlobEncoder(), blobs)
	if err != nil {
		return err
	}
	encoded, err := enc.Encode(q.Data)
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	if _, err = store.Put(c.Context, encoded.Metadata, encoded.Pairs, "quilt"); err != nil {
		return err
	}
	fmt.Printf("quilt id    : %s\n", encoded.BlobID)
	fmt.Printf("symbol size : %d\n", q.SymbolSize)
	for i, id := range q.Index.PatchIDs(encoded.BlobID) {
		p := q.Index.Patches[i]
		fmt.Printf("%s\t[%d, %d)\t%s\n", id, p.StartIndex, p.EndIndex, p.Identifier)
	}
	return nil
}

func readPatch(c *cli.Context) error {
	id, err := quilt.ParsePatchID(c.Args().First())
	if err != nil {
		return err
	}
	output := c.String("output")
	if len(output) == 0 {
		return errors.New("no output file")
	}
	drop, err := utils.ParseIndexList(c.String("drop"))
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	manifest, md, err := store.Get(id.QuiltID)
	if err != nil {
		return err
	}
	enc, err := encoding.GetEncoder(manifest.NShards, md.Metadata().EncodingType())
	if err != nil {
		return err
	}

	// only the columns of the patch are needed
	exclude := append([]uint16(nil), drop...)
	for i := uint16(0); i < manifest.NShards; i++ {
		if i < id.StartIndex || i >= id.EndIndex {
			exclude = append(exclude, i)
		}
	}
	var patch *quilt.Blob
	slivers, err := store.LoadSlivers(c.Context, md, encoding.Secondary, exclude)
	if err != nil {
		return err
	}
	r, err := quilt.NewSliverReader(enc, slivers)
	if err == nil {
		patch, err = r.ReadPatchID(id)
	}
	if err != nil {
		xlog.Logger.Infof("patch not readable from secondary slivers, decoding the quilt: %v", err)
		primary, err := store.LoadSlivers(c.Context, md, encoding.Primary, drop)
		if err != nil {
			return err
		}
		data, err := enc.Decode(md.Metadata().UnencodedLength(), primary)
		if err != nil {
			return err
		}
		if r, err = quilt.NewReader(enc, data); err != nil {
			return err
		}
		if patch, err = r.ReadPatchID(id); err != nil {
			return err
		}
	}

	if err = os.WriteFile(output, patch.Contents, 0644); err != nil {
		return errors.WithStack(err)
	}
	fmt.Printf("%s: %d bytes into %s\n", patch.Identifier, len(patch.Contents), output)
	keys := make([]string, 0, len(patch.Tags))
	for k := range patch.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s=%s\n", k, patch.Tags[k])
	}
	return nil
}
