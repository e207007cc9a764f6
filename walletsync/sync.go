// Package walletsync runs melwalletd's background chain-following loop:
// on a fixed pace it takes a chain snapshot, brings every registered
// wallet's coin set up to date with it (incrementally, or by full
// resync if it has fallen too far behind), and retransmits any
// transactions the wallet sent but has not yet seen confirm. Shaped
// after an SPV-sync lifecycle (a cancelable background goroutine
// started and stopped under a mutex, waited on by a WaitGroup), adapted
// here to sync wallet-local coin state against an already-trusted full
// node instead of following SPV headers directly.
package walletsync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/decred/melwalletd/node"
	"github.com/decred/melwalletd/types"
	"github.com/decred/melwalletd/walletdb"
)

const (
	// tickInterval paces one full pass over every wallet plus a
	// retransmit pass.
	tickInterval = 15 * time.Second

	// perWalletTimeout bounds how long a single wallet's sync step may
	// run before the loop gives up on it for this tick.
	perWalletTimeout = 120 * time.Second

	// retransmitTimeout bounds the whole retransmit-pending pass.
	retransmitTimeout = 10 * time.Second

	// fullResyncThreshold is how far behind the chain tip a wallet may
	// fall before incremental catch-up is abandoned for a full resync.
	fullResyncThreshold = 1000

	// diffConcurrency bounds how many per-block diff fetches an
	// incremental sync runs at once.
	diffConcurrency = 16
)

// Loop is the daemon's background sync task. The zero value is not
// usable; construct with New.
type Loop struct {
	store *walletdb.Store
	node  node.Node

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Loop over store's wallet set, driven by n.
func New(store *walletdb.Store, n node.Node) *Loop {
	return &Loop{store: store, node: n}
}

// Start launches the background loop if it is not already running.
// The loop runs until ctx is done or Stop is called.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(runCtx)
}

// Stop cancels the background loop and waits for it to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		l.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one pass: sync every wallet, then retransmit anything still
// pending. A snapshot or wallet-list failure is logged and ends the pass
// early, to be retried on the next tick; a single wallet's sync failure or
// timeout is logged and never aborts the rest of the pass.
func (l *Loop) tick(ctx context.Context) {
	snap, err := l.node.Snapshot(ctx)
	if err != nil {
		syncLog.Warnf("sync tick: snapshot unavailable: %v", err)
		return
	}

	names, err := l.store.ListWallets(ctx)
	if err != nil {
		syncLog.Errorf("sync tick: list wallets: %v", err)
		return
	}

	for _, name := range names {
		w, err := l.store.GetWallet(ctx, name)
		if err != nil {
			syncLog.Warnf("sync tick: load wallet %s: %v", name, err)
			continue
		}
		if w == nil {
			continue
		}

		func() {
			wctx, cancel := context.WithTimeout(ctx, perWalletTimeout)
			defer cancel()
			if err := NetworkSync(wctx, l.store, w.Address, snap); err != nil {
				syncLog.Warnf("sync tick: sync wallet %s: %v", name, err)
			}
		}()
	}

	func() {
		rctx, cancel := context.WithTimeout(ctx, retransmitTimeout)
		defer cancel()
		if err := RetransmitPending(rctx, l.store, l.node); err != nil {
			syncLog.Warnf("sync tick: retransmit pending: %v", err)
		}
	}()
}

// NetworkSync brings address's coin set up to date with snap: a full
// resync if the wallet has never synced or has fallen more than
// fullResyncThreshold blocks behind, otherwise an incremental catch-up
// over the blocks since its last watermark.
func NetworkSync(ctx context.Context, store *walletdb.Store, address types.Address, snap node.Snapshot) error {
	tip := snap.Header().Height

	latest, err := store.GetSyncHeight(ctx, address)
	if err != nil {
		return fmt.Errorf("walletsync: get sync height: %w", err)
	}

	if latest == 0 || tip < latest || tip-latest > fullResyncThreshold {
		return FullSync(ctx, store, address, snap)
	}
	if tip == latest {
		return nil
	}
	return incrementalSync(ctx, store, address, latest, tip, snap)
}

// FullSync replaces address's entire coin set with the node's
// authoritative view and resets its sync watermark to snap's tip.
func FullSync(ctx context.Context, store *walletdb.Store, address types.Address, snap node.Snapshot) error {
	coins, err := snap.GetCoins(ctx, address)
	if err != nil {
		return fmt.Errorf("walletsync: full sync: get coins: %w", err)
	}
	return store.ApplyFullSync(ctx, address, snap.Header().Height, coins)
}

// blockDiff is one height's contribution to an incremental sync: coins
// newly confirmed at that height, and coins newly observed spent there
// (alongside the spending transaction itself, fetched so it can be
// cached without another round trip later).
type blockDiff struct {
	added    map[types.CoinID]types.CoinDataHeight
	spenders map[types.CoinID]types.TxHash
	txs      []*types.Transaction
}

// incrementalSync collects, with bounded parallelism, the coin-add and
// coin-spend diff for address over every height in (latest, tip], then
// applies the merged result in a single store transaction.
func incrementalSync(ctx context.Context, store *walletdb.Store, address types.Address, latest, tip uint64, snap node.Snapshot) error {
	heights := make([]uint64, 0, tip-latest)
	for h := latest + 1; h <= tip; h++ {
		heights = append(heights, h)
	}

	results := make([]blockDiff, len(heights))
	errs := make([]error, len(heights))

	sem := make(chan struct{}, diffConcurrency)
	var wg sync.WaitGroup
	for i, height := range heights {
		i, height := i, height
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = collectBlockDiff(ctx, snap, address, height)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("walletsync: incremental sync: %w", err)
		}
	}

	added := make(map[types.CoinID]types.CoinDataHeight)
	spenders := make(map[types.CoinID]types.TxHash)
	for _, diff := range results {
		for id, cdh := range diff.added {
			added[id] = cdh
		}
		for id, txhash := range diff.spenders {
			spenders[id] = txhash
		}
		for _, tx := range diff.txs {
			if err := store.CacheTransaction(ctx, tx); err != nil {
				return fmt.Errorf("walletsync: cache spending transaction: %w", err)
			}
		}
	}

	return store.ApplyIncrementalSync(ctx, address, tip, added, spenders)
}

func collectBlockDiff(ctx context.Context, snap node.Snapshot, address types.Address, height uint64) (blockDiff, error) {
	var diff blockDiff

	older, err := snap.GetOlder(ctx, height)
	if err != nil {
		return diff, fmt.Errorf("get snapshot at %d: %w", height, err)
	}

	changes, err := older.GetCoinChanges(ctx, address)
	if err != nil {
		return diff, fmt.Errorf("get coin changes at %d: %w", height, err)
	}

	for _, change := range changes {
		switch change.Kind {
		case node.CoinChangeAdd:
			cdh, err := older.GetCoin(ctx, change.CoinID)
			if err != nil {
				return diff, fmt.Errorf("get coin %s at %d: %w", change.CoinID, height, err)
			}
			if cdh == nil {
				continue
			}
			if diff.added == nil {
				diff.added = make(map[types.CoinID]types.CoinDataHeight)
			}
			diff.added[change.CoinID] = *cdh

		case node.CoinChangeDelete:
			tx, err := older.GetTransaction(ctx, change.SpenderTxHash)
			if err != nil {
				return diff, fmt.Errorf("get spending tx %s at %d: %w", change.SpenderTxHash, height, err)
			}
			if diff.spenders == nil {
				diff.spenders = make(map[types.CoinID]types.TxHash)
			}
			diff.spenders[change.CoinID] = change.SpenderTxHash
			if tx != nil {
				diff.txs = append(diff.txs, tx)
			}
		}
	}

	return diff, nil
}

// RetransmitPending resubmits every transaction the wallet has sent but
// not yet seen confirmed or expire. A single transaction's send failure
// is logged and does not stop the rest from being retried.
func RetransmitPending(ctx context.Context, store *walletdb.Store, n node.Node) error {
	pending, err := store.ListPendingTransactions(ctx)
	if err != nil {
		return fmt.Errorf("walletsync: list pending: %w", err)
	}

	// Deterministic order makes retransmit behavior reproducible in
	// tests; real network order doesn't matter.
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].TxHash.String() < pending[j].TxHash.String()
	})

	for _, p := range pending {
		if p.Tx == nil {
			continue
		}
		if err := n.SendTx(ctx, p.Tx); err != nil {
			syncLog.Warnf("retransmit pending %s: %v", p.TxHash, err)
			continue
		}
		syncLog.Debugf("retransmitted pending %s", p.TxHash)
	}
	return nil
}
