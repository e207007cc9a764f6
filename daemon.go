package melwalletd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/melwalletd/node"
	"github.com/decred/melwalletd/secrets"
	"github.com/decred/melwalletd/txprep"
	"github.com/decred/melwalletd/types"
	"github.com/decred/melwalletd/walletcore"
	"github.com/decred/melwalletd/walletdb"
	"github.com/decred/melwalletd/walletsync"
)

// pendingExpiryBlocks is how many blocks past the height a transaction
// was submitted at it remains pending before the sync loop gives up on
// it, for both send_tx and send_faucet.
const pendingExpiryBlocks = 288

// secretsFileName and the wallet-db file-name pattern are the two files
// the daemon owns inside WalletDir.
const secretsFileName = ".secrets.json"

// Daemon is the orchestrator: it owns the connection pool, the wallet
// store, the secret store, the node client, the map of unlocked
// signers, and the background sync task, and answers every RPC surface
// method. Shaped after an lnd-style server type that owns every
// subsystem and serves RPC on top of them.
type Daemon struct {
	cfg *Config

	pool        *walletdb.Pool
	store       *walletdb.Store
	secretStore *secrets.Store
	node        node.Node
	syncLoop    *walletsync.Loop
	poolCache   *poolCache

	mu      sync.Mutex
	signers map[string]walletcore.Signer
}

// NewDaemon opens (creating if necessary) the wallet directory, the
// SQLite-backed wallet store, and the secret store named in cfg, and
// wires them together with n. It does not start the background sync
// loop; call Start for that.
func NewDaemon(cfg *Config, n node.Node) (*Daemon, error) {
	if err := os.MkdirAll(cfg.WalletDir, 0700); err != nil {
		return nil, fmt.Errorf("melwalletd: create wallet dir: %w", err)
	}
	if err := os.Chmod(cfg.WalletDir, 0700); err != nil {
		return nil, fmt.Errorf("melwalletd: chmod wallet dir: %w", err)
	}

	dbPath := filepath.Join(cfg.WalletDir, fmt.Sprintf("%s-wallets.db", cfg.Network))
	pool, err := walletdb.Open(dbPath, walletdb.DefaultPoolSize)
	if err != nil {
		return nil, err
	}

	secretStore, err := secrets.Open(filepath.Join(cfg.WalletDir, secretsFileName))
	if err != nil {
		pool.Close()
		return nil, err
	}

	store := walletdb.New(pool)

	d := &Daemon{
		cfg:         cfg,
		pool:        pool,
		store:       store,
		secretStore: secretStore,
		node:        n,
		syncLoop:    walletsync.New(store, n),
		poolCache:   newPoolCache(),
		signers:     make(map[string]walletcore.Signer),
	}

	wltdLog.Infof("opened wallet store at %s (network %s)", dbPath, cfg.Network)
	return d, nil
}

// Start launches the background sync loop. It is safe to call once per
// daemon lifetime.
func (d *Daemon) Start(ctx context.Context) {
	d.syncLoop.Start(ctx)
	wltdLog.Infof("sync loop started")
}

// Stop halts the background sync loop and closes the connection pool.
func (d *Daemon) Stop() error {
	d.syncLoop.Stop()
	return d.pool.Close()
}

// ---- wallet registry ----------------------------------------------------

// ListWallets returns every registered wallet name.
func (d *Daemon) ListWallets(ctx context.Context) ([]string, error) {
	return d.store.ListWallets(ctx)
}

// CreateWallet registers a new wallet named name. If seed is nil, a
// fresh random 32-byte Ed25519 seed is generated. If password is
// non-empty the seed is sealed at rest via the secret store's Argon2id +
// ChaCha20-Poly1305 encryption; an empty password stores it in the
// clear. The freshly created signer is left unlocked.
func (d *Daemon) CreateWallet(ctx context.Context, name, password string, seed []byte) (*types.Wallet, error) {
	if seed == nil {
		seed = make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return nil, ErrCreateWalletOther(err)
		}
	}

	signer, err := walletcore.NewEd25519Signer(seed)
	if err != nil {
		return nil, ErrCreateWalletSecretKey(err)
	}

	wallet, err := d.store.CreateWallet(ctx, name, signer.Covenant())
	if err != nil {
		return nil, ErrCreateWalletOther(err)
	}

	var secret secrets.PersistentSecret
	if password == "" {
		secret = secrets.PersistentSecret{Plaintext: seed}
	} else {
		enc, err := secrets.Encrypt(seed, password)
		if err != nil {
			return nil, ErrCreateWalletOther(err)
		}
		secret = secrets.PersistentSecret{Encrypted: enc}
	}
	if err := d.secretStore.Store(name, secret); err != nil {
		return nil, ErrCreateWalletOther(err)
	}

	d.mu.Lock()
	d.signers[name] = signer
	d.mu.Unlock()

	wltdLog.Infof("created wallet %q", name)
	return wallet, nil
}

// GetWallet returns the named wallet, or a WalletNotFound error.
func (d *Daemon) GetWallet(ctx context.Context, name string) (*types.Wallet, error) {
	w, err := d.store.GetWallet(ctx, name)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound(name)
	}
	return w, nil
}

// ---- signer lifecycle -----------------------------------------------------

// Unlock loads name's persistent secret record and, for a
// password-encrypted one, decrypts it with password; on success the
// resulting signer is installed in the unlocked-signer map. A plaintext
// record ignores password entirely.
func (d *Daemon) Unlock(ctx context.Context, name, password string) error {
	if _, err := d.GetWallet(ctx, name); err != nil {
		return err
	}

	record, ok := d.secretStore.Load(name)
	if !ok {
		return ErrWalletNotFound(name)
	}

	var seed []byte
	if record.IsEncrypted() {
		var err error
		seed, err = secrets.Decrypt(record.Encrypted, password)
		if err != nil {
			return ErrInvalidPassword()
		}
	} else {
		seed = record.Plaintext
	}

	signer, err := walletcore.NewEd25519Signer(seed)
	if err != nil {
		return ErrInvalidPassword()
	}

	d.mu.Lock()
	d.signers[name] = signer
	d.mu.Unlock()
	return nil
}

// Lock removes name's signer from the unlocked-signer map, if present.
func (d *Daemon) Lock(name string) {
	d.mu.Lock()
	delete(d.signers, name)
	d.mu.Unlock()
}

// GetSigner returns the unlocked signer for name, if any.
func (d *Daemon) GetSigner(name string) (walletcore.Signer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.signers[name]
	return s, ok
}

// ExportSK decrypts (if necessary) and returns name's seed as a
// Crockford base32 string, without installing a signer.
func (d *Daemon) ExportSK(ctx context.Context, name, password string) (string, error) {
	if _, err := d.GetWallet(ctx, name); err != nil {
		return "", err
	}

	record, ok := d.secretStore.Load(name)
	if !ok {
		return "", ErrWalletNotFound(name)
	}

	var seed []byte
	if record.IsEncrypted() {
		var err error
		seed, err = secrets.Decrypt(record.Encrypted, password)
		if err != nil {
			return "", ErrInvalidPassword()
		}
	} else {
		seed = record.Plaintext
	}

	return EncodeSeedCrockford(seed), nil
}

// ---- summaries & dumps -----------------------------------------------------

// WalletSummary is the wallet_summary RPC's response shape.
type WalletSummary struct {
	TotalMicromel   string            `json:"total_micromel"`
	DetailedBalance map[string]string `json:"detailed_balance"`
	Network         string            `json:"network"`
	Address         string            `json:"address"`
	Locked          bool              `json:"locked"`
}

// WalletSummary computes name's balances, address, network, and lock
// state.
func (d *Daemon) WalletSummary(ctx context.Context, name string) (*WalletSummary, error) {
	wallet, err := d.GetWallet(ctx, name)
	if err != nil {
		return nil, err
	}

	balances, err := d.store.GetBalances(ctx, wallet.Address)
	if err != nil {
		return nil, err
	}

	detailed := make(map[string]string, len(balances))
	for denom, amt := range balances {
		detailed[hex.EncodeToString(denom.Bytes())] = amt.String()
	}

	total := balances[types.DenomMel]

	_, unlocked := d.GetSigner(name)

	return &WalletSummary{
		TotalMicromel:   total.String(),
		DetailedBalance: detailed,
		Network:         d.cfg.Network,
		Address:         wallet.Address.String(),
		Locked:          !unlocked,
	}, nil
}

// CoinEntry pairs a coin id with its data, for dump_coins.
type CoinEntry struct {
	CoinID types.CoinID
	Data   types.CoinData
}

// DumpCoins returns every coin (confirmed or pending, unspent) the named
// wallet controls.
func (d *Daemon) DumpCoins(ctx context.Context, name string) ([]CoinEntry, error) {
	wallet, err := d.GetWallet(ctx, name)
	if err != nil {
		return nil, err
	}

	mapping, err := d.store.GetCoinMapping(ctx, wallet.Address, false, false)
	if err != nil {
		return nil, err
	}

	out := make([]CoinEntry, 0, len(mapping))
	for id, data := range mapping {
		out = append(out, CoinEntry{CoinID: id, Data: data})
	}
	return out, nil
}

// DumpTransactions returns the named wallet's transaction history.
func (d *Daemon) DumpTransactions(ctx context.Context, name string) ([]walletdb.HistoryEntry, error) {
	wallet, err := d.GetWallet(ctx, name)
	if err != nil {
		return nil, err
	}
	return d.store.GetTransactionHistory(ctx, wallet.Address)
}

// ---- transaction preparation & submission ---------------------------------

// PrepareTxArgs bundles prepare_tx's RPC arguments.
type PrepareTxArgs struct {
	Kind            *types.TxKind
	Inputs          []types.CoinID
	Outputs         []types.CoinData
	Covenants       [][]byte
	Data            []byte
	NoBalance       []types.Denom
	FeeBallast      uint64
	SigningKeySeed  []byte
}

// PrepareTx builds, balances, and signs a transaction for the named
// wallet. If the wallet has no unlocked signer, args.SigningKeySeed must
// supply one for the duration of this call.
func (d *Daemon) PrepareTx(ctx context.Context, name string, args PrepareTxArgs) (*types.Transaction, error) {
	wallet, err := d.GetWallet(ctx, name)
	if err != nil {
		return nil, err
	}

	signer, ok := d.GetSigner(name)
	if !ok {
		if args.SigningKeySeed == nil {
			return nil, ErrPrepareTxFailedUnlock()
		}
		signer, err = walletcore.NewEd25519Signer(args.SigningKeySeed)
		if err != nil {
			return nil, ErrPrepareTxFailedUnlock()
		}
	}

	snap, err := d.node.Snapshot(ctx)
	if err != nil {
		return nil, ErrPrepareTxNetwork(err)
	}

	header := snap.Header()

	sign := func(tx *types.Transaction) (*types.Transaction, error) {
		if args.Kind != nil {
			tx.Kind = *args.Kind
		}
		if len(args.Covenants) > 0 {
			tx.Covenants = args.Covenants
		}
		tx.Data = args.Data

		cur := tx
		for i := range cur.Inputs {
			var err error
			cur, err = signer.SignTx(cur, i)
			if err != nil {
				return nil, err
			}
		}
		return cur, nil
	}

	tx, err := txprep.Prepare(ctx, d.store, wallet, snap, txprep.Args{
		MandatoryInputs: args.Inputs,
		Outputs:         args.Outputs,
		FeeMultiplier:   header.FeeMultiplier,
		FeeBallast:      args.FeeBallast,
		NoBalance:       args.NoBalance,
		Sign:            sign,
	})
	if err != nil {
		return nil, mapPrepareTxErr(err)
	}
	return tx, nil
}

func mapPrepareTxErr(err error) error {
	var insuff *txprep.InsufficientFundsError
	switch {
	case errors.As(err, &insuff):
		return ErrPrepareTxInsufficientFunds(insuff.Denom)
	case errors.Is(err, txprep.ErrTooManyInputs):
		return ErrPrepareTxTooManyInputs()
	case errors.Is(err, txprep.ErrNotWellFormed):
		return ErrPrepareTxNotWellFormed()
	case errors.Is(err, txprep.ErrInputNotFound):
		return ErrPrepareTxNetwork(err)
	default:
		return ErrPrepareTxInvalidSignature(err)
	}
}

// SendTx submits tx to the connected node and, on success, commits its
// local effect (spends, pending outputs, pending expiry) via
// commit_sent.
func (d *Daemon) SendTx(ctx context.Context, name string, tx *types.Transaction) (types.TxHash, error) {
	if _, err := d.GetWallet(ctx, name); err != nil {
		return types.TxHash{}, err
	}

	if err := d.node.SendTx(ctx, tx); err != nil {
		return types.TxHash{}, ErrTransactionSendFailed(err)
	}

	snap, err := d.node.Snapshot(ctx)
	if err != nil {
		return types.TxHash{}, ErrNetworkTransient(err)
	}

	expires := snap.Header().Height + pendingExpiryBlocks
	if err := d.store.CommitSent(ctx, tx, expires); err != nil {
		return types.TxHash{}, err
	}

	return tx.HashNoSigs(), nil
}

// SendFaucet mints a 1001-Mel coin to the named wallet on any non-mainnet
// network. It is a locally-constructed, input-free Normal transaction
// submitted and committed exactly like any other send.
func (d *Daemon) SendFaucet(ctx context.Context, name string) (types.TxHash, error) {
	if d.cfg.Network == "mainnet" {
		return types.TxHash{}, ErrTransactionInvalidFaucet()
	}

	wallet, err := d.GetWallet(ctx, name)
	if err != nil {
		return types.TxHash{}, err
	}

	tx := &types.Transaction{
		Kind: types.TxKindNormal,
		Outputs: []types.CoinData{
			{Covhash: wallet.Address, Value: types.NewAmount(1001_000_000), Denom: types.DenomMel},
		},
	}

	return d.SendTx(ctx, name, tx)
}

// ---- transaction inspection -------------------------------------------------

// TxBalance reports, for the named wallet's view of txhash, whether the
// wallet originated every input (self_originated), the transaction kind,
// and the signed per-denomination net flow (positive in, negative out).
// Flows are big integers: coin values are 128-bit, so an int64
// accumulator would silently truncate large balances.
func (d *Daemon) TxBalance(ctx context.Context, name string, txhash types.TxHash) (selfOriginated bool, kind types.TxKind, flows map[types.Denom]*big.Int, err error) {
	wallet, err := d.GetWallet(ctx, name)
	if err != nil {
		return false, 0, nil, err
	}

	snap, err := d.node.Snapshot(ctx)
	if err != nil {
		return false, 0, nil, ErrNetworkTransient(err)
	}

	tx, err := d.store.GetTransaction(ctx, txhash, snap)
	if err != nil {
		return false, 0, nil, err
	}
	if tx == nil {
		return false, 0, nil, ErrTransactionNotFound()
	}

	flows = make(map[types.Denom]*big.Int)
	flowFor := func(denom types.Denom) *big.Int {
		f, ok := flows[denom]
		if !ok {
			f = new(big.Int)
			flows[denom] = f
		}
		return f
	}
	selfOriginated = len(tx.Inputs) > 0

	for _, in := range tx.Inputs {
		cd, err := d.store.GetOneCoin(ctx, in)
		if err != nil {
			return false, 0, nil, err
		}
		if cd == nil || cd.Covhash != wallet.Address {
			selfOriginated = false
			continue
		}
		f := flowFor(cd.Denom)
		f.Sub(f, cd.Value.BigInt())
	}

	for _, out := range tx.Outputs {
		if out.Covhash != wallet.Address {
			continue
		}
		f := flowFor(out.Denom)
		f.Add(f, out.Value.BigInt())
	}

	return selfOriginated, tx.Kind, flows, nil
}

// TxStatusOutput is one output entry of a tx_status response.
type TxStatusOutput struct {
	CoinData types.CoinData
	IsChange bool
	CoinID   types.CoinID
}

// TxStatus is the tx_status RPC's response shape.
type TxStatus struct {
	Raw             *types.Transaction
	ConfirmedHeight *uint64
	Outputs         []TxStatusOutput
}

// TxStatus reports the named wallet's view of txhash: its raw body, its
// confirmation height if any, and each output annotated with whether it
// is change back to the wallet.
func (d *Daemon) TxStatus(ctx context.Context, name string, txhash types.TxHash) (*TxStatus, error) {
	wallet, err := d.GetWallet(ctx, name)
	if err != nil {
		return nil, err
	}

	snap, err := d.node.Snapshot(ctx)
	if err != nil {
		return nil, ErrNetworkTransient(err)
	}

	tx, err := d.store.GetTransaction(ctx, txhash, snap)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound()
	}

	var confirmedHeight *uint64
	if height, found, err := d.store.ConfirmedHeight(ctx, txhash); err != nil {
		return nil, err
	} else if found {
		confirmedHeight = &height
	}

	outputs := make([]TxStatusOutput, len(tx.Outputs))
	for i, out := range tx.Outputs {
		outputs[i] = TxStatusOutput{
			CoinData: out,
			IsChange: out.Covhash == wallet.Address,
			CoinID:   types.CoinID{TxHash: txhash, Index: uint8(i)},
		}
	}

	return &TxStatus{Raw: tx, ConfirmedHeight: confirmedHeight, Outputs: outputs}, nil
}

// LatestHeader returns the connected node's current block header.
func (d *Daemon) LatestHeader(ctx context.Context) (node.Header, error) {
	snap, err := d.node.Snapshot(ctx)
	if err != nil {
		return node.Header{}, ErrNetworkTransient(err)
	}
	return snap.Header(), nil
}

// ---- melswap passthrough ---------------------------------------------------

// MelswapInfo returns cached or freshly-fetched pool state for poolKey.
// It answers nil, nil when the connected node has no melswap support.
func (d *Daemon) MelswapInfo(ctx context.Context, poolKey string) (*PoolState, error) {
	if cached, ok := d.poolCache.get(poolKey); ok {
		return cached, nil
	}

	mn, ok := d.node.(node.MelswapNode)
	if !ok {
		return nil, nil
	}

	info, err := mn.PoolState(ctx, poolKey)
	if err != nil {
		return nil, ErrNetworkTransient(err)
	}
	if info == nil {
		return nil, nil
	}

	state := &PoolState{
		PoolKey:     info.PoolKey,
		LeftDenom:   info.LeftDenom.String(),
		RightDenom:  info.RightDenom.String(),
		LeftAmount:  info.LeftAmount.String(),
		RightAmount: info.RightAmount.String(),
	}
	if !info.RightAmount.IsZero() {
		state.Price = info.LeftAmount.Float64() / info.RightAmount.Float64()
	}
	d.poolCache.set(poolKey, state)
	return state, nil
}

// SwapSimulation is the response shape of simulate_swap.
type SwapSimulation struct {
	Result      string `json:"result"`
	SlippagePPM int64  `json:"slippage_ppm"`
	PoolKey     string `json:"poolkey"`
}

// SimulateSwap estimates the result of trading value units of from into
// to, without submitting anything. Answers nil, nil when the connected
// node has no melswap support.
func (d *Daemon) SimulateSwap(ctx context.Context, to, from types.Denom, value types.Amount) (*SwapSimulation, error) {
	mn, ok := d.node.(node.MelswapNode)
	if !ok {
		return nil, nil
	}

	result, err := mn.SimulateSwap(ctx, to, from, value)
	if err != nil {
		return nil, ErrNetworkTransient(err)
	}
	if result == nil {
		return nil, nil
	}

	return &SwapSimulation{
		Result:      result.Result.String(),
		SlippagePPM: result.SlippagePPM,
		PoolKey:     result.PoolKey,
	}, nil
}

// DebugStats returns the row count of every walletdb table, for an
// internal debug_stats RPC method.
func (d *Daemon) DebugStats(ctx context.Context) (map[string]int64, error) {
	return d.store.DebugStats(ctx)
}
