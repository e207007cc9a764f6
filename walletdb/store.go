// Package walletdb implements the per-wallet SQLite-backed ledger of
// coins, spends, pending transactions, and sync watermarks, built on
// plain database/sql (via sqlx for scanning) instead of an ORM, with
// explicit, hand-written queries rather than generated code.
package walletdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/decred/melwalletd/node"
	"github.com/decred/melwalletd/types"
)

// ErrWalletExists is returned by CreateWallet on a name collision.
var ErrWalletExists = errors.New("walletdb: wallet already exists")

// Store is the wallet state store: every per-wallet coin/spend/tx/pending
// operation, funneled exclusively through a Pool.
type Store struct {
	pool *Pool
}

// New wraps an already-open Pool as a Store.
func New(pool *Pool) *Store {
	return &Store{pool: pool}
}

func encodeCoinID(id types.CoinID) string {
	return id.String()
}

func decodeCoinID(s string) (types.CoinID, error) {
	id, err := types.ParseCoinID(s)
	if err != nil {
		return types.CoinID{}, fmt.Errorf("walletdb: %w", err)
	}
	return id, nil
}

func encodeAddress(a types.Address) string { return a.String() }

func encodeTxHash(h types.TxHash) string { return h.String() }

func decodeTxHash(s string) (types.TxHash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return types.TxHash{}, fmt.Errorf("walletdb: malformed txhash %q", s)
	}
	var h types.TxHash
	copy(h[:], raw)
	return h, nil
}

// ---- wallet registry -------------------------------------------------

type walletRow struct {
	Name     string `db:"name"`
	Covhash  string `db:"covhash"`
	Covenant []byte `db:"covenant"`
}

// ListWallets returns every registered wallet name.
func (s *Store) ListWallets(ctx context.Context) ([]string, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	var names []string
	err = h.DB().SelectContext(ctx, &names, `SELECT name FROM wallet_names ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("walletdb: list wallets: %w", err)
	}
	return names, nil
}

// CreateWallet registers a new wallet. The address is the hash of
// covenant. Fails with ErrWalletExists on a name collision.
func (s *Store) CreateWallet(ctx context.Context, name string, covenant []byte) (*types.Wallet, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	addr := types.AddressFromCovenant(covenant)

	err = h.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO wallet_names (name, covhash, covenant) VALUES (?, ?, ?)`,
			name, encodeAddress(addr), covenant)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrWalletExists
		}
		return nil, fmt.Errorf("walletdb: create wallet: %w", err)
	}

	wldbLog.Infof("created wallet %q at address %s", name, addr)
	return &types.Wallet{Name: name, Address: addr, CovenantBytes: covenant}, nil
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint violations with this
	// substring; checking text is unfortunate but is what the driver
	// exposes without pulling in its error-code constants here.
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "constraint failed"))
}

// GetWallet returns the named wallet, or nil if not registered.
func (s *Store) GetWallet(ctx context.Context, name string) (*types.Wallet, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	var row walletRow
	err = h.DB().GetContext(ctx, &row,
		`SELECT name, covhash, covenant FROM wallet_names WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walletdb: get wallet: %w", err)
	}

	addrBytes, err := hex.DecodeString(row.Covhash)
	if err != nil || len(addrBytes) != 32 {
		return nil, fmt.Errorf("walletdb: corrupt covhash for wallet %q", name)
	}
	var addr types.Address
	copy(addr[:], addrBytes)

	return &types.Wallet{Name: row.Name, Address: addr, CovenantBytes: row.Covenant}, nil
}

// ---- pure coin lookups -------------------------------------------------

type coinRow struct {
	CoinID         string `db:"coinid"`
	Covhash        string `db:"covhash"`
	Value          string `db:"value"`
	Denom          []byte `db:"denom"`
	AdditionalData []byte `db:"additional_data"`
}

func (r *coinRow) toCoinData() (types.CoinData, error) {
	var out types.CoinData
	addrBytes, err := hex.DecodeString(r.Covhash)
	if err != nil || len(addrBytes) != 32 {
		return out, fmt.Errorf("walletdb: corrupt covhash in coin row")
	}
	copy(out.Covhash[:], addrBytes)

	amt, err := types.ParseAmount(r.Value)
	if err != nil {
		return out, err
	}
	out.Value = amt

	denom, err := types.ParseDenom(r.Denom)
	if err != nil {
		return out, err
	}
	out.Denom = denom
	out.AdditionalData = r.AdditionalData
	return out, nil
}

// GetOneCoin is a pure lookup in the coins table, regardless of
// confirmation or spend status.
func (s *Store) GetOneCoin(ctx context.Context, id types.CoinID) (*types.CoinData, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	var row coinRow
	err = h.DB().GetContext(ctx, &row,
		`SELECT coinid, covhash, value, denom, additional_data FROM coins WHERE coinid = ?`,
		encodeCoinID(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walletdb: get one coin: %w", err)
	}

	cd, err := row.toCoinData()
	if err != nil {
		return nil, err
	}
	return &cd, nil
}

// GetCoinConfirmation joins coins and coin_confirmations for id.
func (s *Store) GetCoinConfirmation(ctx context.Context, id types.CoinID) (*types.CoinDataHeight, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	var row struct {
		coinRow
		Height uint64 `db:"height"`
	}
	err = h.DB().GetContext(ctx, &row, `
		SELECT c.coinid, c.covhash, c.value, c.denom, c.additional_data, cc.height
		FROM coins c JOIN coin_confirmations cc ON cc.coinid = c.coinid
		WHERE c.coinid = ?`, encodeCoinID(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walletdb: get coin confirmation: %w", err)
	}

	cd, err := row.toCoinData()
	if err != nil {
		return nil, err
	}
	return &types.CoinDataHeight{CoinData: cd, Height: row.Height}, nil
}

// ---- coin visibility matrix --------------------------------------------

// GetCoinMapping applies the confirmed/ignorePending coin visibility
// matrix for the given wallet address.
func (s *Store) GetCoinMapping(ctx context.Context, address types.Address, confirmed, ignorePending bool) (map[types.CoinID]types.CoinData, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	return s.getCoinMappingTx(ctx, h.DB(), address, confirmed, ignorePending)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func (s *Store) getCoinMappingTx(ctx context.Context, q queryer, address types.Address, confirmed, ignorePending bool) (map[types.CoinID]types.CoinData, error) {
	var existenceClause string
	if confirmed {
		existenceClause = `EXISTS (SELECT 1 FROM coin_confirmations cc WHERE cc.coinid = c.coinid)`
	} else {
		existenceClause = `(EXISTS (SELECT 1 FROM coin_confirmations cc WHERE cc.coinid = c.coinid)
			OR EXISTS (SELECT 1 FROM pending_coins pc WHERE pc.coinid = c.coinid))`
	}

	var spendClause string
	if ignorePending {
		spendClause = `NOT EXISTS (
			SELECT 1 FROM spends sp
			WHERE sp.coinid = c.coinid
			  AND sp.txhash NOT IN (SELECT txhash FROM pending)
		)`
	} else {
		spendClause = `NOT EXISTS (SELECT 1 FROM spends sp WHERE sp.coinid = c.coinid)`
	}

	query := fmt.Sprintf(`
		SELECT c.coinid, c.covhash, c.value, c.denom, c.additional_data
		FROM coins c
		WHERE c.covhash = ? AND %s AND %s`, existenceClause, spendClause)

	var rows []coinRow
	if err := q.SelectContext(ctx, &rows, query, encodeAddress(address)); err != nil {
		return nil, fmt.Errorf("walletdb: get coin mapping: %w", err)
	}

	out := make(map[types.CoinID]types.CoinData, len(rows))
	for _, r := range rows {
		id, err := decodeCoinID(r.CoinID)
		if err != nil {
			return nil, err
		}
		cd, err := r.toCoinData()
		if err != nil {
			return nil, err
		}
		out[id] = cd
	}
	return out, nil
}

// GetBalances sums unspent-including-pending coin values per denom for
// address.
func (s *Store) GetBalances(ctx context.Context, address types.Address) (map[types.Denom]types.Amount, error) {
	mapping, err := s.GetCoinMapping(ctx, address, false, false)
	if err != nil {
		return nil, err
	}
	out := make(map[types.Denom]types.Amount)
	for _, cd := range mapping {
		out[cd.Denom] = out[cd.Denom].Add(cd.Value)
	}
	return out, nil
}

// HistoryEntry is one row of a wallet's transaction history.
type HistoryEntry struct {
	TxHash types.TxHash
	Height *uint64 // nil if still pending
}

// GetTransactionHistory returns one entry per distinct txhash appearing in
// the wallet's coins, excluding proposer-reward coins, sorted ascending
// by height with unconfirmed entries last.
func (s *Store) GetTransactionHistory(ctx context.Context, address types.Address) ([]HistoryEntry, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	type txRef struct {
		CoinID string        `db:"coinid"`
		Height sql.NullInt64 `db:"height"`
	}
	var rows []txRef
	err = h.DB().SelectContext(ctx, &rows, `
		SELECT c.coinid AS coinid, cc.height AS height
		FROM coins c
		LEFT JOIN coin_confirmations cc ON cc.coinid = c.coinid
		WHERE c.covhash = ?`, encodeAddress(address))
	if err != nil {
		return nil, fmt.Errorf("walletdb: get transaction history: %w", err)
	}

	type entry struct {
		hash   types.TxHash
		height *uint64
	}
	seen := make(map[types.TxHash]*entry)
	var order []types.TxHash

	for _, r := range rows {
		id, err := decodeCoinID(r.CoinID)
		if err != nil {
			return nil, err
		}
		// The proposer reward at height h has a canonical coin id; only
		// an exact match against it (txhash derived from the confirming
		// height included) is a reward coin, so ordinary coins that
		// merely share its output index stay in the history.
		if r.Height.Valid && id == types.ProposerRewardCoinID(uint64(r.Height.Int64)) {
			continue
		}

		e, ok := seen[id.TxHash]
		if !ok {
			e = &entry{hash: id.TxHash}
			seen[id.TxHash] = e
			order = append(order, id.TxHash)
		}
		if r.Height.Valid {
			v := uint64(r.Height.Int64)
			if e.height == nil || v < *e.height {
				e.height = &v
			}
		}
	}

	out := make([]HistoryEntry, 0, len(order))
	for _, h := range order {
		e := seen[h]
		out = append(out, HistoryEntry{TxHash: e.hash, Height: e.height})
	}
	sort.SliceStable(out, func(i, j int) bool {
		hi, hj := out[i].Height, out[j].Height
		if hi == nil && hj == nil {
			return false
		}
		if hi == nil {
			return false
		}
		if hj == nil {
			return true
		}
		return *hi < *hj
	})
	return out, nil
}

// GetCachedTransaction returns the cached full transaction blob for
// txhash, if present.
func (s *Store) GetCachedTransaction(ctx context.Context, txhash types.TxHash) ([]byte, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	var blob []byte
	err = h.DB().GetContext(ctx, &blob, `SELECT txblob FROM transactions WHERE txhash = ?`,
		encodeTxHash(txhash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walletdb: get cached transaction: %w", err)
	}
	return blob, nil
}

// IsPending reports whether txhash currently has a pending row.
func (s *Store) IsPending(ctx context.Context, txhash types.TxHash) (bool, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer h.Release()

	var n int
	err = h.DB().GetContext(ctx, &n, `SELECT COUNT(1) FROM pending WHERE txhash = ?`, encodeTxHash(txhash))
	if err != nil {
		return false, fmt.Errorf("walletdb: is pending: %w", err)
	}
	return n > 0, nil
}

// findConfirmedOutputHeight fetches a coin-confirmation candidate used by
// GetTransaction's node fallback: the confirmation height of whichever of
// a transaction's first 11 outputs the store has seen confirmed. The
// search is not restricted to any one wallet's coins.
func (s *Store) findConfirmedOutputHeight(ctx context.Context, txhash types.TxHash) (uint64, bool, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, false, err
	}
	defer h.Release()

	for i := uint8(0); i < 11; i++ {
		id := types.CoinID{TxHash: txhash, Index: i}
		var height uint64
		err := h.DB().GetContext(ctx, &height,
			`SELECT height FROM coin_confirmations WHERE coinid = ?`, encodeCoinID(id))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, false, fmt.Errorf("walletdb: find confirmed output height: %w", err)
		}
		return height, true, nil
	}
	return 0, false, nil
}

// CacheTransaction records tx's canonical no-sigs blob under its hash.
func (s *Store) CacheTransaction(ctx context.Context, tx *types.Transaction) error {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()

	_, err = h.DB().ExecContext(ctx,
		`INSERT INTO transactions (txhash, txblob) VALUES (?, ?) ON CONFLICT(txhash) DO NOTHING`,
		encodeTxHash(tx.HashNoSigs()), tx.NoSigsBytes())
	if err != nil {
		return fmt.Errorf("walletdb: cache transaction: %w", err)
	}
	return nil
}

// ConfirmedHeight reports the height at which txhash confirmed, by the
// same first-11-output search GetTransaction's cache-miss path uses,
// without needing a node snapshot. Used by tx_status to answer
// confirmed_height without re-fetching the transaction body.
func (s *Store) ConfirmedHeight(ctx context.Context, txhash types.TxHash) (uint64, bool, error) {
	return s.findConfirmedOutputHeight(ctx, txhash)
}

// DebugStats returns the row count of every table in the schema, for the
// debug_stats RPC method.
func (s *Store) DebugStats(ctx context.Context) (map[string]int64, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	tables := []string{"coins", "coin_confirmations", "pending_coins", "spends",
		"pending", "transactions", "wallet_names", "sync_heights"}

	out := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(1) FROM %s", table)
		if err := h.DB().GetContext(ctx, &n, query); err != nil {
			return nil, fmt.Errorf("walletdb: debug stats %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

// GetTransaction returns the cached transaction for txhash, or, on a
// cache miss, walks the transaction's first 11 output indices for one the
// store has a confirmation for (from any wallet), fetches the full transaction from the node at
// that height, caches it, and returns it.
func (s *Store) GetTransaction(ctx context.Context, txhash types.TxHash, snap node.Snapshot) (*types.Transaction, error) {
	if blob, err := s.GetCachedTransaction(ctx, txhash); err != nil {
		return nil, err
	} else if blob != nil {
		return txFromCache(blob)
	}

	height, found, err := s.findConfirmedOutputHeight(ctx, txhash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	older, err := snap.GetOlder(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("walletdb: get older snapshot at %d: %w", height, err)
	}
	tx, err := older.GetTransaction(ctx, txhash)
	if err != nil {
		return nil, fmt.Errorf("walletdb: fetch transaction from node: %w", err)
	}
	if tx == nil {
		return nil, nil
	}

	if err := s.CacheTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// txFromCache reconstructs a Transaction from its cached no-sigs blob.
// Since Sigs are never cached (only the no-sigs serialization is), the
// returned transaction's Sigs holds one empty entry per input; callers only need
// it for its hash and structural fields.
func txFromCache(blob []byte) (*types.Transaction, error) {
	return types.DecodeNoSigs(blob)
}

// ---- commit_sent --------------------------------------------------------

// CommitSent writes the effect of locally submitting tx: caches it,
// records its inputs as spent, records its (Normal-only) outputs as
// pending coins, and inserts a pending row with the given expiry. All
// four steps run in one atomic transaction.
func (s *Store) CommitSent(ctx context.Context, tx *types.Transaction, expires uint64) error {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()

	txhash := tx.HashNoSigs()
	txhashStr := encodeTxHash(txhash)

	return h.WithTx(ctx, func(dbtx *sqlx.Tx) error {
		if _, err := dbtx.ExecContext(ctx,
			`INSERT INTO transactions (txhash, txblob) VALUES (?, ?) ON CONFLICT(txhash) DO NOTHING`,
			txhashStr, tx.NoSigsBytes()); err != nil {
			return fmt.Errorf("cache transaction: %w", err)
		}

		for _, in := range tx.Inputs {
			if _, err := dbtx.ExecContext(ctx,
				`INSERT INTO spends (coinid, txhash) VALUES (?, ?) ON CONFLICT(coinid) DO NOTHING`,
				encodeCoinID(in), txhashStr); err != nil {
				return fmt.Errorf("insert spend: %w", err)
			}
		}

		if tx.Kind == types.TxKindNormal {
			for i, out := range tx.Outputs {
				id := types.CoinID{TxHash: txhash, Index: uint8(i)}

				// A minted NewCustom output becomes addressable as
				// Custom(txhash) once the mint has a hash.
				if out.Denom.IsNewCustom() {
					out.Denom = types.DenomCustom(txhash)
				}

				if _, err := dbtx.ExecContext(ctx,
					`INSERT INTO coins (coinid, covhash, value, denom, additional_data)
					 VALUES (?, ?, ?, ?, ?) ON CONFLICT(coinid) DO NOTHING`,
					encodeCoinID(id), encodeAddress(out.Covhash), out.Value.String(),
					out.Denom.Bytes(), append([]byte{}, out.AdditionalData...)); err != nil {
					return fmt.Errorf("insert coin: %w", err)
				}
				if _, err := dbtx.ExecContext(ctx,
					`INSERT INTO pending_coins (coinid, txhash) VALUES (?, ?) ON CONFLICT(coinid) DO NOTHING`,
					encodeCoinID(id), txhashStr); err != nil {
					return fmt.Errorf("insert pending coin: %w", err)
				}
			}
		}

		if _, err := dbtx.ExecContext(ctx,
			`INSERT INTO pending (txhash, expires) VALUES (?, ?)
			 ON CONFLICT(txhash) DO UPDATE SET expires = excluded.expires`,
			txhashStr, expires); err != nil {
			return fmt.Errorf("insert pending: %w", err)
		}

		return nil
	})
}

// ---- sync write paths ---------------------------------------------------

// GetSyncHeight returns the wallet's persisted sync watermark, or 0 if
// it has never synced.
func (s *Store) GetSyncHeight(ctx context.Context, address types.Address) (uint64, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer h.Release()

	var height uint64
	err = h.DB().GetContext(ctx, &height, `SELECT height FROM sync_heights WHERE covhash = ?`, encodeAddress(address))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("walletdb: get sync height: %w", err)
	}
	return height, nil
}

func insertCoinAndConfirmation(ctx context.Context, dbtx *sqlx.Tx, id types.CoinID, cdh types.CoinDataHeight) error {
	if _, err := dbtx.ExecContext(ctx,
		`INSERT INTO coins (coinid, covhash, value, denom, additional_data)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(coinid) DO NOTHING`,
		encodeCoinID(id), encodeAddress(cdh.Covhash), cdh.Value.String(), cdh.Denom.Bytes(), append([]byte{}, cdh.AdditionalData...)); err != nil {
		return fmt.Errorf("insert coin: %w", err)
	}
	if _, err := dbtx.ExecContext(ctx,
		`INSERT INTO coin_confirmations (coinid, height) VALUES (?, ?) ON CONFLICT(coinid) DO NOTHING`,
		encodeCoinID(id), cdh.Height); err != nil {
		return fmt.Errorf("insert coin confirmation: %w", err)
	}
	return nil
}

// ApplyIncrementalSync writes one incremental sync step's effect for
// address: newly confirmed coins and their confirmations, newly
// observed spends, eviction of transactions that just confirmed or
// expired, and the wallet's sync watermark -- all in one transaction.
func (s *Store) ApplyIncrementalSync(ctx context.Context, address types.Address, tip uint64, added map[types.CoinID]types.CoinDataHeight, spenders map[types.CoinID]types.TxHash) error {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()

	return h.WithTx(ctx, func(dbtx *sqlx.Tx) error {
		for id, cdh := range added {
			if err := insertCoinAndConfirmation(ctx, dbtx, id, cdh); err != nil {
				return err
			}
		}

		for inputID, spenderTxHash := range spenders {
			if _, err := dbtx.ExecContext(ctx,
				`INSERT INTO spends (coinid, txhash) VALUES (?, ?) ON CONFLICT(coinid) DO NOTHING`,
				encodeCoinID(inputID), encodeTxHash(spenderTxHash)); err != nil {
				return fmt.Errorf("insert spend: %w", err)
			}
		}

		// A coin's own coinid embeds the txhash that created it; any
		// added coin's txhash is therefore now confirmed.
		for id := range added {
			if _, err := dbtx.ExecContext(ctx, `DELETE FROM pending WHERE txhash = ?`, encodeTxHash(id.TxHash)); err != nil {
				return fmt.Errorf("delete confirmed pending: %w", err)
			}
		}

		if _, err := dbtx.ExecContext(ctx,
			`DELETE FROM spends WHERE txhash IN (SELECT txhash FROM pending WHERE expires < ?)`, tip); err != nil {
			return fmt.Errorf("delete spends for expired pending: %w", err)
		}
		if _, err := dbtx.ExecContext(ctx, `DELETE FROM pending WHERE expires < ?`, tip); err != nil {
			return fmt.Errorf("delete expired pending: %w", err)
		}
		if _, err := dbtx.ExecContext(ctx,
			`DELETE FROM pending_coins WHERE txhash NOT IN (SELECT txhash FROM pending)`); err != nil {
			return fmt.Errorf("delete orphaned pending coins: %w", err)
		}

		if _, err := dbtx.ExecContext(ctx,
			`INSERT INTO sync_heights (covhash, height) VALUES (?, ?)
			 ON CONFLICT(covhash) DO UPDATE SET height = excluded.height`,
			encodeAddress(address), tip); err != nil {
			return fmt.Errorf("update sync height: %w", err)
		}
		return nil
	})
}

// ApplyFullSync replaces address's entire coin set with coins (the
// node's authoritative view) and sets the sync watermark to tip, in one
// transaction. Used when the wallet has never synced or has fallen too
// far behind for incremental catch-up.
func (s *Store) ApplyFullSync(ctx context.Context, address types.Address, tip uint64, coins map[types.CoinID]types.CoinDataHeight) error {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()

	return h.WithTx(ctx, func(dbtx *sqlx.Tx) error {
		var staleIDs []string
		if err := dbtx.SelectContext(ctx, &staleIDs, `SELECT coinid FROM coins WHERE covhash = ?`, encodeAddress(address)); err != nil {
			return fmt.Errorf("list stale coins: %w", err)
		}
		for _, id := range staleIDs {
			if _, err := dbtx.ExecContext(ctx, `DELETE FROM coin_confirmations WHERE coinid = ?`, id); err != nil {
				return fmt.Errorf("delete stale confirmation: %w", err)
			}
		}
		if _, err := dbtx.ExecContext(ctx, `DELETE FROM coins WHERE covhash = ?`, encodeAddress(address)); err != nil {
			return fmt.Errorf("delete stale coins: %w", err)
		}

		seenTxHashes := make(map[string]bool)
		for id := range coins {
			txhashStr := encodeTxHash(id.TxHash)
			if seenTxHashes[txhashStr] {
				continue
			}
			seenTxHashes[txhashStr] = true
			if _, err := dbtx.ExecContext(ctx, `DELETE FROM pending WHERE txhash = ?`, txhashStr); err != nil {
				return fmt.Errorf("delete confirmed pending: %w", err)
			}
		}

		for id, cdh := range coins {
			if err := insertCoinAndConfirmation(ctx, dbtx, id, cdh); err != nil {
				return err
			}
		}

		if _, err := dbtx.ExecContext(ctx,
			`INSERT INTO sync_heights (covhash, height) VALUES (?, ?)
			 ON CONFLICT(covhash) DO UPDATE SET height = excluded.height`,
			encodeAddress(address), tip); err != nil {
			return fmt.Errorf("update sync height: %w", err)
		}
		return nil
	})
}

// PendingTransaction pairs a pending transaction's hash with its cached
// body, for retransmit_pending.
type PendingTransaction struct {
	TxHash types.TxHash
	Tx     *types.Transaction
}

// ListPendingTransactions returns every row of pending joined with its
// cached transaction body.
func (s *Store) ListPendingTransactions(ctx context.Context) ([]PendingTransaction, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	type row struct {
		TxHash string `db:"txhash"`
		TxBlob []byte `db:"txblob"`
	}
	var rows []row
	err = h.DB().SelectContext(ctx, &rows, `
		SELECT p.txhash AS txhash, t.txblob AS txblob
		FROM pending p JOIN transactions t ON t.txhash = p.txhash`)
	if err != nil {
		return nil, fmt.Errorf("walletdb: list pending transactions: %w", err)
	}

	out := make([]PendingTransaction, 0, len(rows))
	for _, r := range rows {
		txhash, err := decodeTxHash(r.TxHash)
		if err != nil {
			return nil, err
		}
		tx, err := types.DecodeNoSigs(r.TxBlob)
		if err != nil {
			return nil, fmt.Errorf("walletdb: decode pending transaction %s: %w", r.TxHash, err)
		}
		out = append(out, PendingTransaction{TxHash: txhash, Tx: tx})
	}
	return out, nil
}
