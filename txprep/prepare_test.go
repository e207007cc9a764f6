package txprep

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decred/melwalletd/types"
	"github.com/decred/melwalletd/walletcore"
	"github.com/decred/melwalletd/walletdb"
)

func newTestWallet(t *testing.T) (*walletdb.Store, *types.Wallet, *walletcore.Ed25519Signer) {
	t.Helper()
	pool, err := walletdb.Open(filepath.Join(t.TempDir(), "wallet.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	store := walletdb.New(pool)

	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	signer, err := walletcore.NewEd25519Signer(seed)
	require.NoError(t, err)

	w, err := store.CreateWallet(context.Background(), "alice", signer.Covenant())
	require.NoError(t, err)

	return store, w, signer
}

func signAll(signer *walletcore.Ed25519Signer) SignFunc {
	return func(tx *types.Transaction) (*types.Transaction, error) {
		out := tx
		for i := range out.Inputs {
			var err error
			out, err = signer.SignTx(out, i)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	}
}

// micromel is the wire unit a "Mel" value is denominated in (matching
// the chain's own 1 Mel = 10^6 micromel convention).
const micromel = 1_000_000

// giveWalletCoin seeds addr with a single confirmed Mel coin via a full
// sync, exactly the write path the sync loop itself uses.
func giveWalletCoin(t *testing.T, store *walletdb.Store, addr types.Address, melValue uint64) types.CoinID {
	t.Helper()

	var h types.TxHash
	h[0] = byte(melValue)
	h[1] = byte(melValue >> 8)
	id := types.CoinID{TxHash: h, Index: 0}

	cdh := types.CoinDataHeight{
		CoinData: types.CoinData{Covhash: addr, Value: types.NewAmount(melValue * micromel), Denom: types.DenomMel},
		Height:   1,
	}
	require.NoError(t, store.ApplyFullSync(context.Background(), addr, 1,
		map[types.CoinID]types.CoinDataHeight{id: cdh}))
	return id
}

// Scenario 2: fee binary search converges for a wallet with a single
// 100-Mel coin and no custom denoms.
func TestPrepareFeeSearchConverges(t *testing.T) {
	store, wallet, signer := newTestWallet(t)
	giveWalletCoin(t, store, wallet.Address, 100)

	args := Args{
		Outputs: []types.CoinData{
			{Covhash: wallet.Address, Value: types.NewAmount(10 * micromel), Denom: types.DenomMel},
		},
		FeeMultiplier: 1000,
		Sign:          signAll(signer),
	}

	tx, err := Prepare(context.Background(), store, wallet, nil, args)
	require.NoError(t, err)

	required := tx.BaseFee(args.FeeMultiplier, 0)
	require.True(t, tx.Fee.Cmp(required.MulDivFloor(21, 20)) <= 0)

	total := types.NewAmount(0)
	for _, out := range tx.Outputs {
		if out.Denom.IsMel() {
			total = total.Add(out.Value)
		}
	}
	require.Equal(t, types.NewAmount(100*micromel).String(), total.Add(tx.Fee).String())
}

// Scenario 3: insufficient funds fails with InsufficientFundsError for
// Mel.
func TestPrepareInsufficientFunds(t *testing.T) {
	store, wallet, signer := newTestWallet(t)
	giveWalletCoin(t, store, wallet.Address, 1)

	args := Args{
		Outputs: []types.CoinData{
			{Covhash: wallet.Address, Value: types.NewAmount(10 * micromel), Denom: types.DenomMel},
		},
		FeeMultiplier: 1000,
		Sign:          signAll(signer),
	}

	_, err := Prepare(context.Background(), store, wallet, nil, args)
	var insufficient *InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	require.True(t, insufficient.Denom.IsMel())
}
