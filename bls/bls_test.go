package bls

import (
	"fmt"
	"testing"

	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/stretchr/testify/require"
)

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil)
	require.ErrorIs(t, err, wire_errors.EmptyInput)
	_, err = VerifyAggregate(nil, []byte("msg"), make([]byte, SignatureSize))
	require.ErrorIs(t, err, wire_errors.EmptyInput)
}

func TestSingleSignature(t *testing.T) {
	sk := NewSecretKey([]byte("shard-0"))
	msg := []byte("blob certified")
	sig, err := sk.Sign(msg)
	require.NoError(t, err)
	require.Len(t, sig, SignatureSize)
	require.Len(t, sk.PublicKey(), PublicKeySize)

	ok, err := Verify(sig, sk.PublicKey(), msg)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Verify(sig, sk.PublicKey(), []byte("blob certifiee"))
	require.NoError(t, err)
	require.False(t, ok)

	agg, err := Aggregate([][]byte{sig})
	require.NoError(t, err)
	require.Equal(t, sig, agg)
	ok, err = VerifyAggregate([][]byte{sk.PublicKey()}, msg, agg)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAggregateCommittee(t *testing.T) {
	msg := []byte("confirmation")
	var pks, sigs [][]byte
	for i := 0; i < 5; i++ {
		sk := NewSecretKey([]byte(fmt.Sprintf("shard-%d", i)))
		sig, err := sk.Sign(msg)
		require.NoError(t, err)
		pks = append(pks, sk.PublicKey())
		sigs = append(sigs, sig)
	}
	agg, err := Aggregate(sigs)
	require.NoError(t, err)

	ok, err := VerifyAggregate(pks, msg, agg)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyAggregate(pks[:4], msg, agg)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMalformedInput(t *testing.T) {
	sk := NewSecretKey([]byte("k"))
	sig, err := sk.Sign([]byte("m"))
	require.NoError(t, err)

	_, err = Verify(sig, []byte{1, 2, 3}, []byte("m"))
	require.ErrorIs(t, err, wire_errors.MalformedKey)
	_, err = Verify(sig[:95], sk.PublicKey(), []byte("m"))
	require.ErrorIs(t, err, wire_errors.MalformedSignature)

	// a public key is no signature
	_, err = Aggregate([][]byte{sig, sk.PublicKey()})
	require.ErrorIs(t, err, wire_errors.MalformedSignature)

	bad := make([]byte, PublicKeySize)
	for i := range bad {
		bad[i] = 0xff
	}
	_, err = Verify(sig, bad, []byte("m"))
	require.ErrorIs(t, err, wire_errors.MalformedKey)
}

func TestSignersBitmap(t *testing.T) {
	bitmap, err := SignersBitmap([]uint16{0, 3, 8, 9}, 10)
	require.NoError(t, err)
	require.Equal(t, []byte{0x09, 0x03}, bitmap)

	_, err = SignersBitmap([]uint16{10}, 10)
	require.ErrorIs(t, err, wire_errors.InvalidConfiguration)
}
