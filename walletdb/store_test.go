package walletdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decred/melwalletd/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.db")
	pool, err := Open(path, 4)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return New(pool)
}

func testCoinID(b byte, idx uint8) types.CoinID {
	var h types.TxHash
	h[0] = b
	return types.CoinID{TxHash: h, Index: idx}
}

// A newly created wallet round-trips through GetWallet.
func TestCreateAndGetWallet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	covenant := []byte("covenant bytes for alice")
	w, err := s.CreateWallet(ctx, "alice", covenant)
	require.NoError(t, err)
	require.Equal(t, types.AddressFromCovenant(covenant), w.Address)

	got, err := s.GetWallet(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, w.Address, got.Address)
	require.Equal(t, covenant, got.CovenantBytes)

	names, err := s.ListWallets(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, names)
}

// Name collisions fail with ErrWalletExists rather than silently
// overwriting.
func TestCreateWalletDuplicateName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateWallet(ctx, "alice", []byte("cov-a"))
	require.NoError(t, err)

	_, err = s.CreateWallet(ctx, "alice", []byte("cov-b"))
	require.ErrorIs(t, err, ErrWalletExists)
}

func TestGetWalletMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetWallet(context.Background(), "nobody")
	require.NoError(t, err)
	require.Nil(t, got)
}

func insertConfirmedCoin(t *testing.T, s *Store, id types.CoinID, addr types.Address, value uint64, height uint64) {
	t.Helper()
	h, err := s.pool.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()

	_, err = h.DB().Exec(
		`INSERT INTO coins (coinid, covhash, value, denom, additional_data) VALUES (?, ?, ?, ?, ?)`,
		encodeCoinID(id), encodeAddress(addr), types.NewAmount(value).String(), types.DenomMel.Bytes(), []byte{})
	require.NoError(t, err)
	_, err = h.DB().Exec(`INSERT INTO coin_confirmations (coinid, height) VALUES (?, ?)`, encodeCoinID(id), height)
	require.NoError(t, err)
}

func insertPendingCoin(t *testing.T, s *Store, id types.CoinID, addr types.Address, value uint64, txhash types.TxHash) {
	t.Helper()
	h, err := s.pool.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()

	_, err = h.DB().Exec(
		`INSERT INTO coins (coinid, covhash, value, denom, additional_data) VALUES (?, ?, ?, ?, ?)`,
		encodeCoinID(id), encodeAddress(addr), types.NewAmount(value).String(), types.DenomMel.Bytes(), []byte{})
	require.NoError(t, err)
	_, err = h.DB().Exec(`INSERT INTO pending_coins (coinid, txhash) VALUES (?, ?)`, encodeCoinID(id), encodeTxHash(txhash))
	require.NoError(t, err)
}

func markSpent(t *testing.T, s *Store, id types.CoinID, txhash types.TxHash) {
	t.Helper()
	h, err := s.pool.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()
	_, err = h.DB().Exec(`INSERT INTO spends (coinid, txhash) VALUES (?, ?)`, encodeCoinID(id), encodeTxHash(txhash))
	require.NoError(t, err)
}

func markPendingTx(t *testing.T, s *Store, txhash types.TxHash) {
	t.Helper()
	h, err := s.pool.Acquire(context.Background())
	require.NoError(t, err)
	defer h.Release()
	_, err = h.DB().Exec(`INSERT INTO pending (txhash, expires) VALUES (?, 1000)`, encodeTxHash(txhash))
	require.NoError(t, err)
}

// The coin visibility matrix: confirmed x ignore_pending.
func TestGetCoinMappingVisibilityMatrix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	addr := types.AddressFromCovenant([]byte("owner"))

	confirmedCoin := testCoinID(1, 0)
	insertConfirmedCoin(t, s, confirmedCoin, addr, 100, 10)

	pendingTxHash := types.TxHash{2}
	pendingCoin := testCoinID(2, 0)
	insertPendingCoin(t, s, pendingCoin, addr, 50, pendingTxHash)
	markPendingTx(t, s, pendingTxHash)

	// confirmed=true: only the already-confirmed coin is visible,
	// regardless of ignore_pending.
	mapping, err := s.GetCoinMapping(ctx, addr, true, true)
	require.NoError(t, err)
	require.Contains(t, mapping, confirmedCoin)
	require.NotContains(t, mapping, pendingCoin)

	// confirmed=false: both confirmed and pending-received coins are
	// visible.
	mapping, err = s.GetCoinMapping(ctx, addr, false, true)
	require.NoError(t, err)
	require.Contains(t, mapping, confirmedCoin)
	require.Contains(t, mapping, pendingCoin)

	// Now spend the confirmed coin via a still-pending transaction.
	spenderTxHash := types.TxHash{3}
	markSpent(t, s, confirmedCoin, spenderTxHash)
	markPendingTx(t, s, spenderTxHash)

	// ignore_pending=true: a coin whose only spend is still pending is
	// treated as not yet spent (optimistic balance).
	mapping, err = s.GetCoinMapping(ctx, addr, false, true)
	require.NoError(t, err)
	require.Contains(t, mapping, confirmedCoin)

	// ignore_pending=false: any recorded spend, pending or not, hides
	// the coin (conservative balance).
	mapping, err = s.GetCoinMapping(ctx, addr, false, false)
	require.NoError(t, err)
	require.NotContains(t, mapping, confirmedCoin)
}

func TestGetBalances(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	addr := types.AddressFromCovenant([]byte("owner"))

	insertConfirmedCoin(t, s, testCoinID(1, 0), addr, 100, 10)
	insertConfirmedCoin(t, s, testCoinID(2, 0), addr, 250, 11)

	balances, err := s.GetBalances(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, "350", balances[types.DenomMel].String())
}

// get_transaction_history excludes the canonical proposer-reward coin
// id for its confirming height -- but only that exact id, not every
// coin sharing its output index -- and sorts ascending by height,
// unconfirmed last.
func TestGetTransactionHistoryOrderingAndExclusion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	addr := types.AddressFromCovenant([]byte("owner"))

	insertConfirmedCoin(t, s, testCoinID(3, 0), addr, 10, 30)
	insertConfirmedCoin(t, s, testCoinID(1, 0), addr, 10, 10)

	reward := types.ProposerRewardCoinID(20)
	insertConfirmedCoin(t, s, reward, addr, 10, 20)

	// An ordinary coin at the reward's output index but with an
	// unrelated txhash is NOT a reward coin and stays in history.
	lookalike := testCoinID(4, reward.Index)
	insertConfirmedCoin(t, s, lookalike, addr, 10, 40)

	pendingTxHash := types.TxHash{9}
	insertPendingCoin(t, s, types.CoinID{TxHash: pendingTxHash, Index: 0}, addr, 5, pendingTxHash)

	hist, err := s.GetTransactionHistory(ctx, addr)
	require.NoError(t, err)

	require.Len(t, hist, 4)
	require.Equal(t, types.TxHash{1}, hist[0].TxHash)
	require.Equal(t, uint64(10), *hist[0].Height)
	require.Equal(t, types.TxHash{3}, hist[1].TxHash)
	require.Equal(t, uint64(30), *hist[1].Height)
	require.Equal(t, lookalike.TxHash, hist[2].TxHash)
	require.Equal(t, uint64(40), *hist[2].Height)
	require.Equal(t, pendingTxHash, hist[3].TxHash)
	require.Nil(t, hist[3].Height)
}

func sampleTx() *types.Transaction {
	return &types.Transaction{
		Kind:   types.TxKindNormal,
		Inputs: []types.CoinID{testCoinID(7, 0)},
		Outputs: []types.CoinData{
			{Covhash: types.AddressFromCovenant([]byte("recipient")), Value: types.NewAmount(42), Denom: types.DenomMel},
		},
		Fee: types.NewAmount(1),
	}
}

// CommitSent atomically records the spend, the new pending coin, and
// the pending-expiry row together, and is idempotent when replayed with
// the same transaction.
func TestCommitSent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := sampleTx()
	require.NoError(t, s.CommitSent(ctx, tx, 12345))
	// Replaying the same commit is a no-op, not an error.
	require.NoError(t, s.CommitSent(ctx, tx, 12345))

	txhash := tx.HashNoSigs()

	pending, err := s.IsPending(ctx, txhash)
	require.NoError(t, err)
	require.True(t, pending)

	blob, err := s.GetCachedTransaction(ctx, txhash)
	require.NoError(t, err)
	require.NotNil(t, blob)

	decoded, err := types.DecodeNoSigs(blob)
	require.NoError(t, err)
	require.Equal(t, txhash, decoded.HashNoSigs())

	outID := types.CoinID{TxHash: txhash, Index: 0}
	coin, err := s.GetOneCoin(ctx, outID)
	require.NoError(t, err)
	require.NotNil(t, coin)
	require.Equal(t, "42", coin.Value.String())

	mapping, err := s.GetCoinMapping(ctx, tx.Outputs[0].Covhash, false, true)
	require.NoError(t, err)
	require.Contains(t, mapping, outID)
}

// commit_sent must not create speculative coins for non-Normal
// transaction kinds, since the chain may rewrite their identity.
func TestCommitSentNonNormalSkipsCoins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := sampleTx()
	tx.Kind = types.TxKindSwapCreate
	require.NoError(t, s.CommitSent(ctx, tx, 999))

	txhash := tx.HashNoSigs()
	outID := types.CoinID{TxHash: txhash, Index: 0}
	coin, err := s.GetOneCoin(ctx, outID)
	require.NoError(t, err)
	require.Nil(t, coin)

	pending, err := s.IsPending(ctx, txhash)
	require.NoError(t, err)
	require.True(t, pending)
}

func TestGetCachedTransactionMiss(t *testing.T) {
	s := openTestStore(t)
	blob, err := s.GetCachedTransaction(context.Background(), types.TxHash{0xaa})
	require.NoError(t, err)
	require.Nil(t, blob)
}
