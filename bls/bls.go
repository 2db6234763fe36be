// Package bls verifies and aggregates BLS12-381 signatures in the min-pk
// setting: public keys in G1 (48 bytes compressed), signatures in G2
// (96 bytes compressed). Curve arithmetic is gnark-crypto's.
package bls

import (
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const (
	PublicKeySize = bls12381.SizeOfG1AffineCompressed
	SignatureSize = bls12381.SizeOfG2AffineCompressed
)

// DST is the ciphersuite of the basic scheme with G2 signatures.
var DST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

var negG1 bls12381.G1Affine

func init() {
	_, _, g1, _ := bls12381.Generators()
	negG1.Neg(&g1)
}

func parsePublicKey(b []byte) (*bls12381.G1Affine, error) {
	if len(b) != PublicKeySize {
		return nil, errors.Wrapf(wire_errors.MalformedKey, "%d bytes, want %d", len(b), PublicKeySize)
	}
	var pk bls12381.G1Affine
	if _, err := pk.SetBytes(b); err != nil {
		return nil, errors.Wrapf(wire_errors.MalformedKey, "%v", err)
	}
	if pk.IsInfinity() {
		return nil, errors.Wrap(wire_errors.MalformedKey, "identity public key")
	}
	return &pk, nil
}

func parseSignature(b []byte) (*bls12381.G2Affine, error) {
	if len(b) != SignatureSize {
		return nil, errors.Wrapf(wire_errors.MalformedSignature, "%d bytes, want %d", len(b), SignatureSize)
	}
	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(b); err != nil {
		return nil, errors.Wrapf(wire_errors.MalformedSignature, "%v", err)
	}
	return &sig, nil
}

func verify(sig *bls12381.G2Affine, pk *bls12381.G1Affine, msg []byte) (bool, error) {
	h, err := bls12381.HashToG2(msg, DST)
	if err != nil {
		return false, errors.Wrapf(wire_errors.CryptoError, "hash to curve: %v", err)
	}
	// e(-g1, sig) * e(pk, H(m)) == 1
	ok, err := bls12381.PairingCheck([]bls12381.G1Affine{negG1, *pk}, []bls12381.G2Affine{*sig, h})
	if err != nil {
		return false, errors.Wrapf(wire_errors.CryptoError, "pairing: %v", err)
	}
	return ok, nil
}

// Verify reports whether signature is a valid signature of msg by publicKey.
func Verify(signature, publicKey, msg []byte) (bool, error) {
	pk, err := parsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	sig, err := parseSignature(signature)
	if err != nil {
		return false, err
	}
	return verify(sig, pk, msg)
}

// Aggregate sums signatures.
func Aggregate(signatures [][]byte) ([]byte, error) {
	if len(signatures) == 0 {
		return nil, errors.Wrap(wire_errors.EmptyInput, "no signatures to aggregate")
	}
	var acc, term bls12381.G2Jac
	for i, b := range signatures {
		sig, err := parseSignature(b)
		if err != nil {
			return nil, errors.WithMessagef(err, "signature %d", i)
		}
		if i == 0 {
			acc.FromAffine(sig)
			continue
		}
		term.FromAffine(sig)
		acc.AddAssign(&term)
	}
	var out bls12381.G2Affine
	out.FromJacobian(&acc)
	b := out.Bytes()
	return b[:], nil
}

// VerifyAggregate checks an aggregate of signatures over the same message.
// The keys must come with proofs of possession; this check alone does not
// stop rogue key attacks.
func VerifyAggregate(publicKeys [][]byte, msg []byte, aggregate []byte) (bool, error) {
	if len(publicKeys) == 0 {
		return false, errors.Wrap(wire_errors.EmptyInput, "no public keys")
	}
	var acc, term bls12381.G1Jac
	for i, b := range publicKeys {
		pk, err := parsePublicKey(b)
		if err != nil {
			return false, errors.WithMessagef(err, "public key %d", i)
		}
		if i == 0 {
			acc.FromAffine(pk)
			continue
		}
		term.FromAffine(pk)
		acc.AddAssign(&term)
	}
	sig, err := parseSignature(aggregate)
	if err != nil {
		return false, err
	}
	var pk bls12381.G1Affine
	pk.FromJacobian(&acc)
	if pk.IsInfinity() {
		return false, nil
	}
	return verify(sig, &pk, msg)
}

// SignersBitmap sets bit i%8 of byte i/8 for every signer index i.
func SignersBitmap(signers []uint16, committeeSize int) ([]byte, error) {
	bitmap := make([]byte, (committeeSize+7)/8)
	for _, s := range signers {
		if int(s) >= committeeSize {
			return nil, errors.Wrapf(wire_errors.InvalidConfiguration, "signer %d outside committee of %d", s, committeeSize)
		}
		bitmap[s/8] |= 1 << (s % 8)
	}
	return bitmap, nil
}

// SecretKey signs messages. It exists for tools and tests; production keys
// live with the shard operators.
type SecretKey struct {
	scalar big.Int
}

// NewSecretKey derives a key from seed.
func NewSecretKey(seed []byte) *SecretKey {
	digest := blake2b.Sum512(seed)
	sk := &SecretKey{}
	sk.scalar.SetBytes(digest[:])
	sk.scalar.Mod(&sk.scalar, fr.Modulus())
	if sk.scalar.Sign() == 0 {
		sk.scalar.SetInt64(1)
	}
	return sk
}

func (sk *SecretKey) PublicKey() []byte {
	_, _, g1, _ := bls12381.Generators()
	var pk bls12381.G1Affine
	pk.ScalarMultiplication(&g1, &sk.scalar)
	b := pk.Bytes()
	return b[:]
}

func (sk *SecretKey) Sign(msg []byte) ([]byte, error) {
	h, err := bls12381.HashToG2(msg, DST)
	if err != nil {
		return nil, errors.Wrapf(wire_errors.CryptoError, "hash to curve: %v", err)
	}
	var sig bls12381.G2Affine
	sig.ScalarMultiplication(&h, &sk.scalar)
	b := sig.Bytes()
	return b[:], nil
}
