package walletcore

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decred/melwalletd/types"
)

func testTx() *types.Transaction {
	return &types.Transaction{
		Kind: types.TxKindNormal,
		Inputs: []types.CoinID{
			{TxHash: types.TxHash{1, 2, 3}, Index: 0},
		},
		Outputs: []types.CoinData{
			{Covhash: types.Address{9}, Value: types.NewAmount(100), Denom: types.DenomMel},
		},
		Fee: types.NewAmount(10),
	}
}

// Signing is deterministic -- signing twice over the same candidate
// yields byte-identical transactions.
func TestSignTxDeterministic(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 7
	signer, err := NewEd25519Signer(seed)
	require.NoError(t, err)

	tx := testTx()
	signed1, err := signer.SignTx(tx, 0)
	require.NoError(t, err)
	signed2, err := signer.SignTx(tx, 0)
	require.NoError(t, err)

	require.Equal(t, signed1.Sigs, signed2.Sigs)
	require.True(t, VerifyCovenant(signer.Covenant(), tx.HashNoSigs(), signed1.Sigs[0]))
}

// Unlock; lock; unlock with the same seed produces a signer that signs
// identically to the original.
func TestSignerIdentityRoundTrip(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	seed[3] = 42

	s1, err := NewEd25519Signer(seed)
	require.NoError(t, err)
	s2, err := NewEd25519Signer(seed)
	require.NoError(t, err)

	require.Equal(t, s1.Covenant(), s2.Covenant())

	tx := testTx()
	sig1, err := s1.SignTx(tx, 0)
	require.NoError(t, err)
	sig2, err := s2.SignTx(tx, 0)
	require.NoError(t, err)
	require.Equal(t, sig1.Sigs, sig2.Sigs)
}

func TestSignTxExtendsSigsUpToIndex(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	signer, err := NewEd25519Signer(seed)
	require.NoError(t, err)

	tx := testTx()
	tx.Inputs = append(tx.Inputs, types.CoinID{TxHash: types.TxHash{4}, Index: 1})

	signed, err := signer.SignTx(tx, 1)
	require.NoError(t, err)
	require.Len(t, signed.Sigs, 2)
	require.Empty(t, signed.Sigs[0])
	require.NotEmpty(t, signed.Sigs[1])
}

func TestNewEd25519SignerRejectsBadSeed(t *testing.T) {
	_, err := NewEd25519Signer([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidSeed)
}
