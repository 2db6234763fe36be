package encoding

import (
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

// Sliver pairs are assigned to shards with a per-blob rotation so that the
// systematic pairs of different blobs land on different shards.

func rotationOffset(blobID []byte, nShards uint16) uint32 {
	var acc uint32
	for _, b := range blobID {
		acc = (acc*256 + uint32(b)) % uint32(nShards)
	}
	return acc
}

func checkRotation(index uint16, nShards uint16) error {
	if nShards == 0 {
		return errors.Wrap(wire_errors.InvalidConfiguration, "number of shards must be positive")
	}
	if index >= nShards {
		return errors.Wrapf(wire_errors.MalformedEncoding, "index %d out of range for %d shards", index, nShards)
	}
	return nil
}

// ShardIndex returns the shard that stores pair pairIndex of blobID.
func ShardIndex(pairIndex uint16, blobID []byte, nShards uint16) (uint16, error) {
	if err := checkRotation(pairIndex, nShards); err != nil {
		return 0, err
	}
	offset := rotationOffset(blobID, nShards)
	return uint16((uint32(pairIndex) + offset) % uint32(nShards)), nil
}

// PairIndex is the inverse of ShardIndex.
func PairIndex(shardIndex uint16, blobID []byte, nShards uint16) (uint16, error) {
	if err := checkRotation(shardIndex, nShards); err != nil {
		return 0, err
	}
	offset := rotationOffset(blobID, nShards)
	return uint16((uint32(nShards) + uint32(shardIndex) - offset) % uint32(nShards)), nil
}

// ShardIndex is the package level ShardIndex for this configuration.
func (c *EncodingConfig) ShardIndex(pairIndex uint16, blobID []byte) (uint16, error) {
	return ShardIndex(pairIndex, blobID, c.NShards())
}

// PairIndex is the package level PairIndex for this configuration.
func (c *EncodingConfig) PairIndex(shardIndex uint16, blobID []byte) (uint16, error) {
	return PairIndex(shardIndex, blobID, c.NShards())
}
