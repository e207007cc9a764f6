package walletdb

import "github.com/jmoiron/sqlx"

// schema is the on-disk layout: tables for coins, confirmations, pending
// state, and per-wallet sync watermarks, applied as a single
// `CREATE TABLE IF NOT EXISTS` script run once at Open time.
const schema = `
CREATE TABLE IF NOT EXISTS coins (
	coinid          TEXT PRIMARY KEY,
	covhash         TEXT NOT NULL,
	value           TEXT NOT NULL,
	denom           BLOB NOT NULL,
	additional_data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_coins_covhash ON coins(covhash);

CREATE TABLE IF NOT EXISTS coin_confirmations (
	coinid TEXT PRIMARY KEY,
	height INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_coins (
	coinid TEXT PRIMARY KEY,
	txhash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_coins_txhash ON pending_coins(txhash);

CREATE TABLE IF NOT EXISTS spends (
	coinid TEXT PRIMARY KEY,
	txhash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_spends_txhash ON spends(txhash);

CREATE TABLE IF NOT EXISTS pending (
	txhash  TEXT PRIMARY KEY,
	expires INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	txhash TEXT PRIMARY KEY,
	txblob BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS wallet_names (
	name     TEXT PRIMARY KEY,
	covhash  TEXT NOT NULL,
	covenant BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_heights (
	covhash TEXT PRIMARY KEY,
	height  INTEGER NOT NULL
);
`

func initSchema(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	return err
}
