package encoding

import (
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
)

// Factory memoizes blob encoders per (shard count, encoding type). Building
// an encoder allocates the Reed-Solomon matrices, so callers that encode
// many blobs for the same committee should go through a Factory.
type Factory struct {
	cache *ristretto.Cache
}

// NewFactory returns a Factory holding at most maxEncoders encoders.
func NewFactory(maxEncoders int64) (*Factory, error) {
	if maxEncoders <= 0 {
		maxEncoders = 64
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEncoders * 10,
		MaxCost:     maxEncoders,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Factory{cache: cache}, nil
}

func factoryKey(nShards uint16, t EncodingType) uint64 {
	return uint64(nShards)<<8 | uint64(t)
}

// Get returns the encoder for nShards and t, creating it on a miss. The
// cache admits entries asynchronously, so two concurrent misses may both
// build an encoder; both are equivalent.
func (f *Factory) Get(nShards uint16, t EncodingType) (*BlobEncoder, error) {
	key := factoryKey(nShards, t)
	if v, ok := f.cache.Get(key); ok {
		return v.(*BlobEncoder), nil
	}
	config, err := NewEncodingConfig(nShards)
	if err != nil {
		return nil, err
	}
	enc, err := config.GetForType(t)
	if err != nil {
		return nil, err
	}
	f.cache.Set(key, enc, 1)
	return enc, nil
}

func (f *Factory) Close() {
	f.cache.Close()
}

var (
	defaultFactory     *Factory
	defaultFactoryErr  error
	defaultFactoryOnce sync.Once
)

// GetEncoder uses the process wide Factory.
func GetEncoder(nShards uint16, t EncodingType) (*BlobEncoder, error) {
	defaultFactoryOnce.Do(func() {
		defaultFactory, defaultFactoryErr = NewFactory(64)
	})
	if defaultFactoryErr != nil {
		return nil, defaultFactoryErr
	}
	return defaultFactory.Get(nShards, t)
}
