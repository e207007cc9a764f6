// Package node declares the external full-node collaborator the daemon
// requires: a source of chain snapshots, coin lookups, coin-change
// diffs, and transaction submission. melwalletd computes fees and
// constructs transactions but never re-validates consensus rules --
// that is the full node's job behind this interface, not the daemon's.
package node

import (
	"context"

	"github.com/decred/melwalletd/types"
)

// Header is the subset of a block header melwalletd's fee search and RPC
// surface need.
type Header struct {
	Height        uint64
	FeeMultiplier uint64
}

// CoinChangeKind distinguishes an added coin from a deleted (spent) one
// in a CoinChange diff entry.
type CoinChangeKind uint8

const (
	// CoinChangeAdd means the coin identified by CoinID newly exists as
	// of this snapshot.
	CoinChangeAdd CoinChangeKind = iota
	// CoinChangeDelete means the coin identified by CoinID was spent by
	// SpenderTxHash as of this snapshot.
	CoinChangeDelete
)

// CoinChange is one entry of the diff produced between a snapshot's
// previous height and its own.
type CoinChange struct {
	Kind          CoinChangeKind
	CoinID        types.CoinID
	SpenderTxHash types.TxHash // only meaningful when Kind == CoinChangeDelete
}

// Snapshot is a consistent view of chain state at one height.
type Snapshot interface {
	// Header returns this snapshot's block header.
	Header() Header

	// GetOlder returns a snapshot at a past height, for incremental
	// sync's per-block diff collection.
	GetOlder(ctx context.Context, height uint64) (Snapshot, error)

	// GetCoin looks up a single coin's confirmed data, if any.
	GetCoin(ctx context.Context, id types.CoinID) (*types.CoinDataHeight, error)

	// GetCoins returns the complete set of coins confirmed for address,
	// for full_sync.
	GetCoins(ctx context.Context, address types.Address) (map[types.CoinID]types.CoinDataHeight, error)

	// GetCoinChanges returns the coin-add/coin-delete diff for address
	// produced between this snapshot's previous height and this one.
	GetCoinChanges(ctx context.Context, address types.Address) ([]CoinChange, error)

	// GetTransaction looks up a confirmed transaction by its no-sigs
	// hash.
	GetTransaction(ctx context.Context, txhash types.TxHash) (*types.Transaction, error)
}

// Node is the daemon's handle onto the trusted full node.
type Node interface {
	// Snapshot returns a handle to the current chain tip.
	Snapshot(ctx context.Context) (Snapshot, error)

	// SendTx submits tx to the network. Errors may be transient
	// (resubmit later) or fatal (rejected); see melwalletd's error
	// taxonomy for how callers are expected to distinguish them.
	SendTx(ctx context.Context, tx *types.Transaction) error
}

// PoolInfo is a constant-product AMM pool's on-chain state, as returned
// by the melswap_info RPC passthrough.
type PoolInfo struct {
	PoolKey     string
	LeftDenom   types.Denom
	RightDenom  types.Denom
	LeftAmount  types.Amount
	RightAmount types.Amount
}

// SwapResult is the outcome of simulating a trade against a pool,
// without submitting anything.
type SwapResult struct {
	Result      types.Amount
	SlippagePPM int64
	PoolKey     string
}

// MelswapNode is an optional Node extension exposing constant-product
// AMM pool queries. Not every full-node client need implement it; the
// daemon type-asserts for it and treats its absence as the feature being
// unavailable on that connection, never as an error.
type MelswapNode interface {
	PoolState(ctx context.Context, poolKey string) (*PoolInfo, error)
	SimulateSwap(ctx context.Context, to, from types.Denom, value types.Amount) (*SwapResult, error)
}
