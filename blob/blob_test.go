package blob

import (
	"testing"

	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/metadata"
	"github.com/journeymidnight/sliver/utils"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/stretchr/testify/require"
)

func tagged(pairs []encoding.SliverPair, axis encoding.Axis, indexes ...int) [][]byte {
	out := make([][]byte, 0, len(indexes))
	for _, i := range indexes {
		s := pairs[i].Primary
		if axis == encoding.Secondary {
			s = pairs[i].Secondary
		}
		out = append(out, s.CanonicalBytes())
	}
	return out
}

func TestNewEncoder(t *testing.T) {
	_, err := NewEncoder(0)
	require.ErrorIs(t, err, wire_errors.InvalidConfiguration)

	_, err = NewEncoderWithType(10, encoding.RedStuff)
	require.ErrorIs(t, err, wire_errors.UnsupportedEncodingType)

	e, err := NewEncoder(10)
	require.NoError(t, err)
	require.Equal(t, uint16(10), e.NShards())
}

// 1000 zero bytes over 10 shards.
func TestZeroBlobScenario(t *testing.T) {
	e, err := NewEncoder(10)
	require.NoError(t, err)
	blob := make([]byte, 1000)

	encoded, err := e.Encode(blob)
	require.NoError(t, err)
	require.Len(t, encoded.SliverPairs, 10)
	require.Equal(t, encoded.Metadata.BlobID(), encoded.BlobID)
	require.Equal(t, encoded.Metadata.RootHash(), encoded.RootHash)

	for _, set := range [][]int{{0, 1, 2, 3}, {2, 5, 7, 9}, {6, 7, 8, 9}} {
		got, err := e.Decode(encoded.BlobID, 1000, tagged(encoded.Pairs, encoding.Primary, set...))
		require.NoError(t, err)
		require.Equal(t, blob, got)
	}

	again, err := e.Encode(make([]byte, 1000))
	require.NoError(t, err)
	require.Equal(t, encoded.BlobID, again.BlobID)
	require.Equal(t, encoded.RootHash, again.RootHash)
}

func TestComputeMetadataMatchesEncode(t *testing.T) {
	e, err := NewEncoder(7)
	require.NoError(t, err)
	for _, size := range []int{0, 1, 100, 4096} {
		blob := make([]byte, size)
		utils.SetRandStringBytes(blob)

		encoded, err := e.Encode(blob)
		require.NoError(t, err)
		summary, err := e.ComputeMetadata(blob)
		require.NoError(t, err)

		require.Equal(t, encoded.BlobID, summary.BlobID)
		require.Equal(t, encoded.RootHash, summary.RootHash)
		require.Equal(t, uint64(size), summary.UnencodedLength)
		require.Equal(t, encoding.RS2, summary.EncodingType)
	}
}

func TestEncodedPairsAreCanonical(t *testing.T) {
	e, err := NewEncoder(4)
	require.NoError(t, err)
	blob := make([]byte, 321)
	utils.SetRandStringBytes(blob)
	encoded, err := e.Encode(blob)
	require.NoError(t, err)

	for i, data := range encoded.SliverPairs {
		pair, err := encoding.UnmarshalSliverPair(data)
		require.NoError(t, err)
		require.Equal(t, encoded.Pairs[i], pair)
		require.NoError(t, encoded.Metadata.VerifySliver(&pair.Primary))
		require.NoError(t, encoded.Metadata.VerifySliver(&pair.Secondary))
	}
}

func TestEncodeInto(t *testing.T) {
	e, err := NewEncoder(10)
	require.NoError(t, err)
	blob := make([]byte, 5000)
	utils.SetRandStringBytes(blob)

	primarySize, err := e.SliverDataSize(encoding.Primary, 5000)
	require.NoError(t, err)
	secondarySize, err := e.SliverDataSize(encoding.Secondary, 5000)
	require.NoError(t, err)

	primary := make([][]byte, 10)
	secondary := make([][]byte, 10)
	for i := range primary {
		primary[i] = make([]byte, primarySize)
		secondary[i] = make([]byte, secondarySize)
	}
	md, err := e.EncodeInto(blob, primary, secondary)
	require.NoError(t, err)

	summary, err := e.ComputeMetadata(blob)
	require.NoError(t, err)
	require.Equal(t, summary.BlobID, md.BlobID())

	got, err := e.DecodeSliverData(md.BlobID(), encoding.Primary, 5000, primary[5:9])
	require.NoError(t, err)
	require.Equal(t, blob, got)
	got, err = e.DecodeSliverData(md.BlobID(), encoding.Secondary, 5000, secondary[3:])
	require.NoError(t, err)
	require.Equal(t, blob, got)

	primary[2] = primary[2][:primarySize-1]
	_, err = e.EncodeInto(blob, primary, secondary)
	require.ErrorIs(t, err, wire_errors.SizeMismatch)
	_, err = e.EncodeInto(blob, primary[:9], secondary)
	require.ErrorIs(t, err, wire_errors.SizeMismatch)
}

func TestDecodeErrors(t *testing.T) {
	e, err := NewEncoder(10)
	require.NoError(t, err)
	blob := make([]byte, 1000)
	utils.SetRandStringBytes(blob)
	encoded, err := e.Encode(blob)
	require.NoError(t, err)

	_, err = e.Decode(encoded.BlobID, 1000, tagged(encoded.Pairs, encoding.Primary, 0, 1, 2))
	require.ErrorIs(t, err, wire_errors.InsufficientShares)

	slivers := tagged(encoded.Pairs, encoding.Secondary, 0, 1, 2, 3, 4, 5, 6)
	slivers[3] = slivers[3][:len(slivers[3])-1]
	_, err = e.Decode(encoded.BlobID, 1000, slivers)
	require.ErrorIs(t, err, wire_errors.MalformedEncoding)

	slivers = tagged(encoded.Pairs, encoding.Secondary, 0, 1, 2, 3, 4, 5)
	slivers = append(slivers, tagged(encoded.Pairs, encoding.Primary, 6)...)
	_, err = e.Decode(encoded.BlobID, 1000, slivers)
	require.ErrorIs(t, err, wire_errors.MalformedEncoding)

	_, err = e.Decode(encoded.BlobID, 1000, nil)
	require.ErrorIs(t, err, wire_errors.InsufficientShares)
}

func TestDecodeAndVerify(t *testing.T) {
	e, err := NewEncoder(10)
	require.NoError(t, err)
	blob := make([]byte, 1000)
	utils.SetRandStringBytes(blob)
	encoded, err := e.Encode(blob)
	require.NoError(t, err)

	got, err := e.DecodeAndVerify(encoded.BlobID, 1000, tagged(encoded.Pairs, encoding.Primary, 1, 3, 5, 7))
	require.NoError(t, err)
	require.Equal(t, blob, got)

	// a well formed but corrupted parity sliver decodes to garbage silently
	corrupt := encoded.Pairs[7].Primary
	corrupt.Data = append([]byte(nil), corrupt.Data...)
	corrupt.Data[0] ^= 0x01
	slivers := append(tagged(encoded.Pairs, encoding.Primary, 1, 3, 5), corrupt.CanonicalBytes())

	garbage, err := e.Decode(encoded.BlobID, 1000, slivers)
	if err == nil {
		require.NotEqual(t, blob, garbage)
	}
	_, err = e.DecodeAndVerify(encoded.BlobID, 1000, slivers)
	require.Error(t, err)

	var other metadata.BlobID
	_, err = e.DecodeAndVerify(other, 1000, tagged(encoded.Pairs, encoding.Primary, 1, 3, 5, 7))
	require.ErrorIs(t, err, wire_errors.BlobIDMismatch)
}
