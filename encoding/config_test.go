package encoding

import (
	"testing"

	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/stretchr/testify/require"
)

func TestNewEncodingConfig(t *testing.T) {
	_, err := NewEncodingConfig(0)
	require.ErrorIs(t, err, wire_errors.InvalidConfiguration)

	cases := []struct {
		n, f, primary, secondary uint16
	}{
		{1, 0, 1, 1},
		{4, 1, 2, 3},
		{7, 2, 3, 5},
		{10, 3, 4, 7},
		{1000, 333, 334, 667},
	}
	for _, c := range cases {
		config, err := NewEncodingConfig(c.n)
		require.NoError(t, err)
		require.Equal(t, c.f, config.MaxFaulty())
		require.Equal(t, c.n-c.f, config.MinCorrect())

		p, err := config.SourceSymbols(RS2, Primary)
		require.NoError(t, err)
		s, err := config.SourceSymbols(RS2, Secondary)
		require.NoError(t, err)
		require.Equal(t, c.primary, p, "n=%d", c.n)
		require.Equal(t, c.secondary, s, "n=%d", c.n)
	}
}

func TestQuorum(t *testing.T) {
	config, err := NewEncodingConfig(10)
	require.NoError(t, err)
	require.False(t, config.IsQuorum(6))
	require.True(t, config.IsQuorum(7))
	require.False(t, config.IsAboveValidity(3))
	require.True(t, config.IsAboveValidity(4))
}

func TestGetForType(t *testing.T) {
	config, err := NewEncodingConfig(10)
	require.NoError(t, err)

	_, err = config.GetForType(RedStuff)
	require.ErrorIs(t, err, wire_errors.UnsupportedEncodingType)
	_, err = config.GetForType(EncodingType(7))
	require.ErrorIs(t, err, wire_errors.UnsupportedEncodingType)

	enc, err := config.GetForType(RS2)
	require.NoError(t, err)
	require.Equal(t, RS2, enc.EncodingType())
	require.Equal(t, uint16(4), enc.SourceSymbols(Primary))
	require.Equal(t, uint16(7), enc.SourceSymbols(Secondary))
}

func TestSymbolSize(t *testing.T) {
	enc := newTestEncoder(t, 10)
	cases := []struct {
		length uint64
		size   uint16
	}{
		{0, 2},
		{1, 2},
		{28, 2},
		{56, 2},
		{57, 4},
		{1000, 36},
		{4 * 7 * MaxSymbolSize, MaxSymbolSize},
	}
	for _, c := range cases {
		size, err := enc.SymbolSize(c.length)
		require.NoError(t, err)
		require.Equal(t, c.size, size, "length %d", c.length)
	}

	require.Equal(t, uint64(4*7*MaxSymbolSize), enc.MaxBlobSize())
	_, err := enc.SymbolSize(enc.MaxBlobSize() + 1)
	require.ErrorIs(t, err, wire_errors.BlobTooLarge)
}

func TestSymbolSizeLimit(t *testing.T) {
	require.Equal(t, uint64(MaxSymbolSize), symbolSizeLimit(7))
	require.Equal(t, uint64(MaxSymbolSize), symbolSizeLimit(32768))

	// n = 65535 has 43691 secondary source symbols, so a primary sliver
	// holds 43691 symbols
	limit := symbolSizeLimit(43691)
	require.Equal(t, uint64(49150), limit)
	require.True(t, 43691*limit <= bcs.MaxSequenceLength)
	require.True(t, 43691*(limit+2) > bcs.MaxSequenceLength)
}

func TestSliverSizeAndEncodedLength(t *testing.T) {
	enc := newTestEncoder(t, 10)

	size, err := enc.SliverSize(Primary, 1000)
	require.NoError(t, err)
	require.Equal(t, 7*36, size)
	size, err = enc.SliverSize(Secondary, 1000)
	require.NoError(t, err)
	require.Equal(t, 4*36, size)

	total, err := enc.EncodedBlobLength(1000)
	require.NoError(t, err)
	require.Equal(t, uint64(10*(10*64+32)+(4+7)*36*10), total)

	_, err = enc.EncodedBlobLength(enc.MaxBlobSize() + 1)
	require.ErrorIs(t, err, wire_errors.BlobTooLarge)

	require.Equal(t, uint64(1), StorageUnits(total))
	require.Equal(t, uint64(2), StorageUnits(BytesPerStorageUnit+1))
}

func TestParseNames(t *testing.T) {
	et, err := ParseEncodingType("rs2")
	require.NoError(t, err)
	require.Equal(t, RS2, et)
	et, err = ParseEncodingType("RedStuff")
	require.NoError(t, err)
	require.Equal(t, RedStuff, et)
	_, err = ParseEncodingType("rs3")
	require.ErrorIs(t, err, wire_errors.UnsupportedEncodingType)

	axis, err := ParseAxis("secondary")
	require.NoError(t, err)
	require.Equal(t, Secondary, axis)
	require.Equal(t, Primary, axis.Orthogonal())
	_, err = ParseAxis("diagonal")
	require.ErrorIs(t, err, wire_errors.InvalidConfiguration)
}

func TestFactory(t *testing.T) {
	f, err := NewFactory(4)
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < 3; i++ {
		enc, err := f.Get(10, RS2)
		require.NoError(t, err)
		require.Equal(t, uint16(10), enc.NShards())
	}
	_, err = f.Get(0, RS2)
	require.ErrorIs(t, err, wire_errors.InvalidConfiguration)
	_, err = f.Get(10, RedStuff)
	require.ErrorIs(t, err, wire_errors.UnsupportedEncodingType)

	enc, err := GetEncoder(7, RS2)
	require.NoError(t, err)
	require.Equal(t, uint16(3), enc.SourceSymbols(Primary))
}

func TestRotation(t *testing.T) {
	blobID := make([]byte, 32)
	blobID[31] = 5
	shard, err := ShardIndex(7, blobID, 10)
	require.NoError(t, err)
	require.Equal(t, uint16(2), shard)
	pair, err := PairIndex(2, blobID, 10)
	require.NoError(t, err)
	require.Equal(t, uint16(7), pair)

	blobID[0] = 0xff
	blobID[17] = 0x3c
	for _, n := range []uint16{1, 7, 10, 1000} {
		config, err := NewEncodingConfig(n)
		require.NoError(t, err)
		seen := make(map[uint16]bool)
		for pair := uint16(0); pair < n; pair++ {
			shard, err := config.ShardIndex(pair, blobID)
			require.NoError(t, err)
			require.True(t, shard < n)
			require.False(t, seen[shard])
			seen[shard] = true
			back, err := config.PairIndex(shard, blobID)
			require.NoError(t, err)
			require.Equal(t, pair, back)
		}
	}
}

func TestRotationInvalidInput(t *testing.T) {
	blobID := make([]byte, 32)
	_, err := ShardIndex(0, blobID, 0)
	require.ErrorIs(t, err, wire_errors.InvalidConfiguration)
	_, err = PairIndex(0, blobID, 0)
	require.ErrorIs(t, err, wire_errors.InvalidConfiguration)

	_, err = ShardIndex(10, blobID, 10)
	require.ErrorIs(t, err, wire_errors.MalformedEncoding)
	_, err = PairIndex(11, blobID, 10)
	require.ErrorIs(t, err, wire_errors.MalformedEncoding)
}
