package metadata

import (
	"encoding/hex"

	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const DigestLength = blake2b.Size256

// Digest is a Blake2b-256 output.
type Digest [DigestLength]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func hashParts(parts ...[]byte) Digest {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var d Digest
	h.Sum(d[:0])
	return d
}

// SliverHash commits to a sliver's untagged canonical bytes. The payload is
// streamed into the hash instead of being copied into an encoding buffer.
func SliverHash(s *encoding.Sliver) Digest {
	prefix := bcs.NewEncoder(5)
	prefix.ULEB128(uint32(len(s.Data)))
	suffix := bcs.NewEncoder(4)
	suffix.U16(s.SymbolSize)
	suffix.U16(s.Index)
	return hashParts(prefix.Bytes(), s.Data, suffix.Bytes())
}

type NodeKind uint8

const (
	NodeEmpty NodeKind = iota
	NodeDigest

	numNodeKinds
)

// MerkleNode is either Empty or a Digest. Empty hashes as 32 zero bytes.
type MerkleNode struct {
	Kind   NodeKind
	Digest Digest
}

func EmptyNode() MerkleNode {
	return MerkleNode{Kind: NodeEmpty}
}

func DigestNode(d Digest) MerkleNode {
	return MerkleNode{Kind: NodeDigest, Digest: d}
}

// Bytes returns the 32 bytes the node contributes to parent hashes.
func (n MerkleNode) Bytes() []byte {
	if n.Kind == NodeEmpty {
		return make([]byte, DigestLength)
	}
	return n.Digest[:]
}

func (n MerkleNode) String() string {
	if n.Kind == NodeEmpty {
		return "Empty"
	}
	return n.Digest.String()
}

func (n *MerkleNode) MarshalBCS(e *bcs.Encoder) {
	e.Variant(uint32(n.Kind))
	if n.Kind == NodeDigest {
		e.Fixed(n.Digest[:])
	}
}

func (n *MerkleNode) UnmarshalBCS(d *bcs.Decoder) error {
	tag, err := d.Variant(uint32(numNodeKinds))
	if err != nil {
		return errors.WithMessage(err, "merkle node")
	}
	n.Kind = NodeKind(tag)
	n.Digest = Digest{}
	if n.Kind == NodeDigest {
		return d.Fixed(n.Digest[:])
	}
	return nil
}

func parseDigest(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestLength {
		return d, errors.Wrapf(wire_errors.MalformedEncoding, "digest of %d bytes", len(b))
	}
	copy(d[:], b)
	return d, nil
}
