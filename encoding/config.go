package encoding

import (
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

// EncodingConfig holds everything derived from the shard count alone. It is
// immutable and may be shared between goroutines.
type EncodingConfig struct {
	nShards   uint16
	maxFaulty uint16
}

func NewEncodingConfig(nShards uint16) (*EncodingConfig, error) {
	if nShards == 0 {
		return nil, errors.Wrap(wire_errors.InvalidConfiguration, "n_shards must be greater than 0")
	}
	return &EncodingConfig{
		nShards:   nShards,
		maxFaulty: (nShards - 1) / 3,
	}, nil
}

func (c *EncodingConfig) NShards() uint16 {
	return c.nShards
}

// MaxFaulty is f, the largest number of shards that may be byzantine or
// unavailable: 3f < n.
func (c *EncodingConfig) MaxFaulty() uint16 {
	return c.maxFaulty
}

// MinCorrect is n - f.
func (c *EncodingConfig) MinCorrect() uint16 {
	return c.nShards - c.maxFaulty
}

// IsQuorum reports whether count shards exceed 2f.
func (c *EncodingConfig) IsQuorum(count int) bool {
	return count > 2*int(c.maxFaulty)
}

// IsAboveValidity reports whether count shards exceed f, i.e. at least one of
// them is correct.
func (c *EncodingConfig) IsAboveValidity(count int) bool {
	return count > int(c.maxFaulty)
}

// SourceSymbols returns the number of source symbols along axis for the
// given encoding type, which is also that axis's reconstruction threshold.
func (c *EncodingConfig) SourceSymbols(t EncodingType, axis Axis) (uint16, error) {
	safety, err := decodingSafetyLimit(t, c.maxFaulty)
	if err != nil {
		return 0, err
	}
	if axis == Primary {
		return c.nShards - 2*c.maxFaulty - safety, nil
	}
	return c.nShards - c.maxFaulty - safety, nil
}

// GetForType returns the blob encoder for t. Only RS2 is implemented.
func (c *EncodingConfig) GetForType(t EncodingType) (*BlobEncoder, error) {
	switch t {
	case RS2:
		return newBlobEncoder(c, t)
	case RedStuff:
		return nil, errors.Wrapf(wire_errors.UnsupportedEncodingType, "%s", t)
	}
	return nil, errors.Wrapf(wire_errors.UnsupportedEncodingType, "tag %d", uint8(t))
}

func decodingSafetyLimit(t EncodingType, maxFaulty uint16) (uint16, error) {
	switch t {
	case RedStuff:
		limit := maxFaulty / 5
		if limit > 5 {
			limit = 5
		}
		return limit, nil
	case RS2:
		return 0, nil
	}
	return 0, errors.Wrapf(wire_errors.UnsupportedEncodingType, "tag %d", uint8(t))
}

// BytesPerStorageUnit is the granularity storage is paid for in.
const BytesPerStorageUnit = 1024 * 1024

// StorageUnits rounds an encoded length up to whole storage units.
func StorageUnits(encodedLength uint64) uint64 {
	return (encodedLength + BytesPerStorageUnit - 1) / BytesPerStorageUnit
}
