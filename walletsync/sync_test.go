package walletsync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/decred/melwalletd/nodetest"
	"github.com/decred/melwalletd/types"
	"github.com/decred/melwalletd/walletdb"
)

func newSyncTest(t *testing.T) (*walletdb.Store, types.Address, *nodetest.Fake) {
	t.Helper()

	pool, err := walletdb.Open(filepath.Join(t.TempDir(), "wallet.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	store := walletdb.New(pool)

	w, err := store.CreateWallet(context.Background(), "alice", []byte("alice covenant"))
	require.NoError(t, err)

	return store, w.Address, nodetest.New()
}

func syncCoinID(b byte) types.CoinID {
	var h types.TxHash
	h[0] = b
	return types.CoinID{TxHash: h, Index: 0}
}

func melCoin(addr types.Address, value uint64) types.CoinData {
	return types.CoinData{Covhash: addr, Value: types.NewAmount(value), Denom: types.DenomMel}
}

// spendTx builds a transaction spending in and returning value back to
// addr, the smallest shape commit_sent accepts.
func spendTx(in types.CoinID, addr types.Address, value uint64) *types.Transaction {
	return &types.Transaction{
		Kind:    types.TxKindNormal,
		Inputs:  []types.CoinID{in},
		Outputs: []types.CoinData{melCoin(addr, value)},
		Fee:     types.NewAmount(10),
	}
}

// A never-synced wallet against a node thousands of blocks ahead goes
// through the full-sync path and lands directly on the tip watermark.
func TestNetworkSyncFullFallbackFromZero(t *testing.T) {
	store, addr, fake := newSyncTest(t)
	ctx := context.Background()

	fake.SeedCoin(syncCoinID(1), melCoin(addr, 500), 1)
	fake.AdvanceHeight(4999)

	snap, err := fake.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, NetworkSync(ctx, store, addr, snap))

	height, err := store.GetSyncHeight(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), height)

	cdh, err := store.GetCoinConfirmation(ctx, syncCoinID(1))
	require.NoError(t, err)
	require.NotNil(t, cdh)
	require.Equal(t, uint64(1), cdh.Height)
}

// A wallet already at the tip syncs to a no-op without touching its
// watermark.
func TestNetworkSyncNoopAtTip(t *testing.T) {
	store, addr, fake := newSyncTest(t)
	ctx := context.Background()

	fake.SeedCoin(syncCoinID(1), melCoin(addr, 500), 1)
	snap, err := fake.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, NetworkSync(ctx, store, addr, snap))
	require.NoError(t, NetworkSync(ctx, store, addr, snap))

	height, err := store.GetSyncHeight(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1), height)
}

// Incremental sync confirms a locally-sent transaction: its pending row
// disappears, its output gains a confirmation, and the spent input
// leaves the unspent set.
func TestIncrementalSyncConfirmsSentTransaction(t *testing.T) {
	store, addr, fake := newSyncTest(t)
	ctx := context.Background()

	fake.SeedCoin(syncCoinID(1), melCoin(addr, 1000), 1)
	snap, err := fake.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, NetworkSync(ctx, store, addr, snap))

	tx := spendTx(syncCoinID(1), addr, 990)
	require.NoError(t, fake.SendTx(ctx, tx))
	require.NoError(t, store.CommitSent(ctx, tx, 100))

	txhash := tx.HashNoSigs()
	outID := types.CoinID{TxHash: txhash, Index: 0}

	// Immediately after commit_sent, the send is pending and its
	// output is visible as a pending coin.
	pending, err := store.IsPending(ctx, txhash)
	require.NoError(t, err)
	require.True(t, pending)
	mapping, err := store.GetCoinMapping(ctx, addr, false, false)
	require.NoError(t, err)
	require.Contains(t, mapping, outID)

	fake.AdvanceHeight(1)
	fake.ConfirmMempool(2)
	snap, err = fake.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, NetworkSync(ctx, store, addr, snap))

	height, err := store.GetSyncHeight(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(2), height)

	pending, err = store.IsPending(ctx, txhash)
	require.NoError(t, err)
	require.False(t, pending)

	cdh, err := store.GetCoinConfirmation(ctx, outID)
	require.NoError(t, err)
	require.NotNil(t, cdh)
	require.Equal(t, uint64(2), cdh.Height)

	mapping, err = store.GetCoinMapping(ctx, addr, false, false)
	require.NoError(t, err)
	require.Contains(t, mapping, outID)
	require.NotContains(t, mapping, syncCoinID(1))

	hist, err := store.GetTransactionHistory(ctx, addr)
	require.NoError(t, err)
	var found bool
	for _, e := range hist {
		if e.TxHash == txhash {
			found = true
			require.NotNil(t, e.Height)
			require.Equal(t, uint64(2), *e.Height)
		}
	}
	require.True(t, found)
}

// A pending transaction whose expiry passes without confirmation is
// evicted: its pending row, its provisional output, and the spend
// markers it placed on its inputs are all gone after the next sync.
func TestExpiredPendingEvicted(t *testing.T) {
	store, addr, fake := newSyncTest(t)
	ctx := context.Background()

	fake.SeedCoin(syncCoinID(1), melCoin(addr, 1000), 1)
	snap, err := fake.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, NetworkSync(ctx, store, addr, snap))

	tx := spendTx(syncCoinID(1), addr, 990)
	require.NoError(t, store.CommitSent(ctx, tx, 2))

	fake.AdvanceHeight(3)
	snap, err = fake.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, NetworkSync(ctx, store, addr, snap))

	txhash := tx.HashNoSigs()
	pending, err := store.IsPending(ctx, txhash)
	require.NoError(t, err)
	require.False(t, pending)

	// The input is spendable again; the provisional output is not.
	mapping, err := store.GetCoinMapping(ctx, addr, false, false)
	require.NoError(t, err)
	require.Contains(t, mapping, syncCoinID(1))
	require.NotContains(t, mapping, types.CoinID{TxHash: txhash, Index: 0})
}

// retransmit_pending resubmits every still-pending transaction to the
// node.
func TestRetransmitPendingResubmits(t *testing.T) {
	store, addr, fake := newSyncTest(t)
	ctx := context.Background()

	tx := spendTx(syncCoinID(1), addr, 990)
	require.NoError(t, store.CommitSent(ctx, tx, 100))

	require.NoError(t, RetransmitPending(ctx, store, fake))

	submitted := fake.Submitted()
	require.Len(t, submitted, 1)
	require.Equal(t, tx.HashNoSigs(), submitted[0].HashNoSigs())
}

// The background loop's first tick runs immediately on Start, so a
// freshly started loop catches registered wallets up without waiting a
// full pacer interval; Stop halts it cleanly.
func TestLoopStartStop(t *testing.T) {
	store, addr, fake := newSyncTest(t)

	fake.SeedCoin(syncCoinID(1), melCoin(addr, 500), 1)

	l := New(store, fake)
	l.Start(context.Background())
	defer l.Stop()

	require.Eventually(t, func() bool {
		height, err := store.GetSyncHeight(context.Background(), addr)
		return err == nil && height == fake.Tip()
	}, 5*time.Second, 10*time.Millisecond)
}
