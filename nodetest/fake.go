// Package nodetest provides an in-memory fake of the node.Node/
// node.Snapshot collaborator, so the sync loop, the transaction
// preparer, and the daemon orchestrator's RPC surface can be exercised
// end-to-end without a real full node. Shaped after an in-process test
// harness convention: a scriptable stand-in for an otherwise-networked
// collaborator.
package nodetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/decred/melwalletd/node"
	"github.com/decred/melwalletd/types"
)

// Fake is a scriptable in-memory full node: tests advance its height and
// confirm submitted (or directly seeded) coins, then hand it to the
// daemon/sync loop as a node.Node.
type Fake struct {
	mu sync.Mutex

	tip           uint64
	feeMultiplier uint64

	coins map[types.CoinID]types.CoinDataHeight
	txs   map[types.TxHash]*types.Transaction

	addsByHeight    map[uint64][]types.CoinID
	deletesByHeight map[uint64][]node.CoinChange

	mempool   []*types.Transaction
	sendErr   error
	submitted []*types.Transaction
}

// New constructs a Fake at height 1 with a fee multiplier of 1.
func New() *Fake {
	return &Fake{
		tip:             1,
		feeMultiplier:   1,
		coins:           make(map[types.CoinID]types.CoinDataHeight),
		txs:             make(map[types.TxHash]*types.Transaction),
		addsByHeight:    make(map[uint64][]types.CoinID),
		deletesByHeight: make(map[uint64][]node.CoinChange),
	}
}

// SetFeeMultiplier changes the fee multiplier reported by future
// snapshots' headers.
func (f *Fake) SetFeeMultiplier(m uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeMultiplier = m
}

// SetSendErr makes every future SendTx call fail with err. Pass nil to
// clear.
func (f *Fake) SetSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

// Tip returns the current chain height.
func (f *Fake) Tip() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tip
}

// AdvanceHeight increases the chain tip by n, without confirming
// anything new -- callers combine this with ConfirmMempool or
// SeedCoin to control exactly what lands at which height.
func (f *Fake) AdvanceHeight(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tip += n
}

// SeedCoin directly confirms cd as a coin at height, bypassing the
// mempool -- used to set up a wallet's starting balance in tests.
func (f *Fake) SeedCoin(id types.CoinID, cd types.CoinData, height uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.coins[id] = types.CoinDataHeight{CoinData: cd, Height: height}
	f.addsByHeight[height] = append(f.addsByHeight[height], id)
}

// ConfirmMempool confirms every transaction currently in the mempool at
// height: each output becomes a confirmed coin, each input becomes a
// recorded spend, and the mempool is drained.
func (f *Fake) ConfirmMempool(height uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, tx := range f.mempool {
		hash := tx.HashNoSigs()
		for i, out := range tx.Outputs {
			id := types.CoinID{TxHash: hash, Index: uint8(i)}
			f.coins[id] = types.CoinDataHeight{CoinData: out, Height: height}
			f.addsByHeight[height] = append(f.addsByHeight[height], id)
		}
		for _, in := range tx.Inputs {
			f.deletesByHeight[height] = append(f.deletesByHeight[height], node.CoinChange{
				Kind:          node.CoinChangeDelete,
				CoinID:        in,
				SpenderTxHash: hash,
			})
		}
	}
	f.mempool = nil
}

// Submitted returns every transaction ever handed to SendTx, in
// submission order.
func (f *Fake) Submitted() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.submitted...)
}

// Snapshot implements node.Node.
func (f *Fake) Snapshot(ctx context.Context) (node.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &fakeSnapshot{f: f, height: f.tip}, nil
}

// SendTx implements node.Node: it records tx in the mempool (pending
// confirmation by a future ConfirmMempool call) and caches it by hash.
func (f *Fake) SendTx(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}
	f.submitted = append(f.submitted, tx)
	f.mempool = append(f.mempool, tx)
	f.txs[tx.HashNoSigs()] = tx
	return nil
}

type fakeSnapshot struct {
	f      *Fake
	height uint64
}

func (s *fakeSnapshot) Header() node.Header {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	return node.Header{Height: s.height, FeeMultiplier: s.f.feeMultiplier}
}

func (s *fakeSnapshot) GetOlder(ctx context.Context, height uint64) (node.Snapshot, error) {
	if height > s.height {
		return nil, fmt.Errorf("nodetest: height %d is after snapshot height %d", height, s.height)
	}
	return &fakeSnapshot{f: s.f, height: height}, nil
}

func (s *fakeSnapshot) GetCoin(ctx context.Context, id types.CoinID) (*types.CoinDataHeight, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	cdh, ok := s.f.coins[id]
	if !ok || cdh.Height > s.height {
		return nil, nil
	}
	return &cdh, nil
}

func (s *fakeSnapshot) GetCoins(ctx context.Context, address types.Address) (map[types.CoinID]types.CoinDataHeight, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	out := make(map[types.CoinID]types.CoinDataHeight)
	for id, cdh := range s.f.coins {
		if cdh.Height <= s.height && cdh.Covhash == address {
			out[id] = cdh
		}
	}
	return out, nil
}

func (s *fakeSnapshot) GetCoinChanges(ctx context.Context, address types.Address) ([]node.CoinChange, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	var out []node.CoinChange
	for _, id := range s.f.addsByHeight[s.height] {
		if cdh, ok := s.f.coins[id]; ok && cdh.Covhash == address {
			out = append(out, node.CoinChange{Kind: node.CoinChangeAdd, CoinID: id})
		}
	}
	for _, change := range s.f.deletesByHeight[s.height] {
		cdh, ok := s.f.coins[change.CoinID]
		if ok && cdh.Covhash == address {
			out = append(out, change)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoinID.String() < out[j].CoinID.String() })
	return out, nil
}

func (s *fakeSnapshot) GetTransaction(ctx context.Context, txhash types.TxHash) (*types.Transaction, error) {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()

	tx, ok := s.f.txs[txhash]
	if !ok {
		return nil, nil
	}
	return tx, nil
}

var _ node.Node = (*Fake)(nil)
var _ node.Snapshot = (*fakeSnapshot)(nil)
