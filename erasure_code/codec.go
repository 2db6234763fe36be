package erasure_code

// ErasureCodec is a systematic one-dimensional code over TotalShards() shards
// of equal size, the first DataShards() of which carry the source data.
type ErasureCodec interface {
	// Encode takes DataShards() source shards and returns all TotalShards()
	// shards, source first.
	Encode(source [][]byte) ([][]byte, error)
	// Reconstruct fills in missing (nil) source shards in place. Parity
	// shards that are missing stay nil.
	Reconstruct(shards [][]byte) error
	DataShards() int
	TotalShards() int
}
