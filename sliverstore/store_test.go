package sliverstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/journeymidnight/sliver/blob"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/metadata"
	"github.com/journeymidnight/sliver/utils"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/stretchr/testify/require"
)

func encodeRandom(t *testing.T, n uint16, size int) ([]byte, *blob.EncodedBlob, *blob.Encoder) {
	e, err := blob.NewEncoder(n)
	require.NoError(t, err)
	data := make([]byte, size)
	utils.SetRandStringBytes(data)
	encoded, err := e.Encode(data)
	require.NoError(t, err)
	return data, encoded, e
}

func TestSliverFile(t *testing.T) {
	s := encoding.Sliver{Axis: encoding.Secondary, Index: 12, SymbolSize: 4, Data: make([]byte, 400)}
	for _, compress := range []bool{false, true} {
		data := encodeSliverFile(&s, compress)
		back, err := decodeSliverFile(data)
		require.NoError(t, err)
		require.True(t, s.Equal(&back))

		for _, pos := range []int{0, 9, headerSize + 1, len(data) - 1} {
			bad := append([]byte(nil), data...)
			bad[pos] ^= 0x40
			_, err = decodeSliverFile(bad)
			require.ErrorIs(t, err, wire_errors.MalformedEncoding)
		}
		_, err = decodeSliverFile(data[:len(data)-3])
		require.ErrorIs(t, err, wire_errors.MalformedEncoding)
	}
	// zeros compress
	require.Less(t, len(encodeSliverFile(&s, true)), len(encodeSliverFile(&s, false)))
	require.Equal(t, "secondary-00012.sliver", sliverFileName(s.Axis, s.Index))
}

func TestPutLoadDecode(t *testing.T) {
	for _, compress := range []bool{false, true} {
		store, err := Open(t.TempDir(), Options{Compress: compress, Workers: 3})
		require.NoError(t, err)
		data, encoded, e := encodeRandom(t, 10, 3000)

		manifest, err := store.Put(context.Background(), encoded.Metadata, encoded.Pairs, "random.bin")
		require.NoError(t, err)
		require.Equal(t, encoded.BlobID, manifest.BlobID)
		require.Equal(t, "RS2", manifest.EncodingType)
		require.Equal(t, compress, manifest.Compressed)

		got, md, err := store.Get(encoded.BlobID)
		require.NoError(t, err)
		require.Equal(t, manifest, got)
		require.Equal(t, encoded.BlobID, md.BlobID())

		files, err := store.Files(encoded.BlobID)
		require.NoError(t, err)
		require.Len(t, files, 20)

		ids, err := store.List()
		require.NoError(t, err)
		require.Equal(t, []metadata.BlobID{encoded.BlobID}, ids)

		for _, axis := range []encoding.Axis{encoding.Primary, encoding.Secondary} {
			slivers, err := store.LoadSlivers(context.Background(), md, axis, []uint16{0, 1, 2})
			require.NoError(t, err)
			require.Len(t, slivers, 7)
			out, err := e.BlobEncoder().Decode(md.Metadata().UnencodedLength(), slivers)
			require.NoError(t, err)
			require.Equal(t, data, out)
		}

		require.NoError(t, store.Delete(encoded.BlobID))
		ids, err = store.List()
		require.NoError(t, err)
		require.Empty(t, ids)
	}
}

func TestCorruptSliversAreSkipped(t *testing.T) {
	store, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	data, encoded, e := encodeRandom(t, 7, 2000)
	_, err = store.Put(context.Background(), encoded.Metadata, encoded.Pairs, "")
	require.NoError(t, err)
	dir := store.BlobDir(encoded.BlobID)

	// flip a payload byte: caught by the file checksum
	path := filepath.Join(dir, sliverFileName(encoding.Primary, 0))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[headerSize+10] ^= 1
	require.NoError(t, os.WriteFile(path, raw, 0644))

	// a valid file with another blob's sliver: caught by the sliver hash
	_, other, _ := encodeRandom(t, 7, 2000)
	path = filepath.Join(dir, sliverFileName(encoding.Primary, 1))
	require.NoError(t, os.WriteFile(path, encodeSliverFile(&other.Pairs[1].Primary, false), 0644))

	require.NoError(t, os.Remove(filepath.Join(dir, sliverFileName(encoding.Primary, 2))))

	_, md, err := store.Get(encoded.BlobID)
	require.NoError(t, err)
	slivers, err := store.LoadSlivers(context.Background(), md, encoding.Primary, nil)
	require.NoError(t, err)
	require.Len(t, slivers, 4)
	for _, s := range slivers {
		require.True(t, s.Index > 2)
	}

	out, err := e.BlobEncoder().Decode(2000, slivers)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestCorruptManifest(t *testing.T) {
	store, err := Open(t.TempDir(), Options{})
	require.NoError(t, err)
	_, encoded, _ := encodeRandom(t, 4, 100)
	_, err = store.Put(context.Background(), encoded.Metadata, encoded.Pairs, "")
	require.NoError(t, err)

	path := filepath.Join(store.BlobDir(encoded.BlobID), manifestName)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 1
	require.NoError(t, os.WriteFile(path, raw, 0644))

	_, _, err = store.Get(encoded.BlobID)
	require.ErrorIs(t, err, wire_errors.MalformedEncoding)

	_, err = store.Put(context.Background(), encoded.Metadata, encoded.Pairs[:3], "")
	require.ErrorIs(t, err, wire_errors.SizeMismatch)
}
