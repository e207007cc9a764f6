package walletdb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultPoolSize is the default capacity of a Pool.
const DefaultPoolSize = 64

// Pool is a fixed-capacity set of exclusive handles onto a single on-disk
// SQLite database. It is the only way any part of melwalletd is permitted
// to run SQL: acquiring a handle is the sole access path, and the
// underlying single-writer nature of SQLite (even under WAL) makes the
// pool a queueing discipline as much as a literal connection pool.
//
// It opens the file once with WAL+NORMAL pragmas baked into the DSN and
// sizes *sql.DB's own connection pool to the Pool's capacity; Pool adds a
// bounded-handle acquire/release discipline on top of that single *sql.DB.
type Pool struct {
	db *sqlx.DB

	handles chan *sqlx.DB
}

// Open opens (creating if necessary) the SQLite database at path with
// WAL journaling and NORMAL synchrony, and returns a Pool of capacity
// size handing out shared handles onto it.
func Open(path string, size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("walletdb: open %s: %w", path, err)
	}

	// SQLite allows exactly one writer regardless of how many
	// *sql.DB connections we open; the Pool above is what gives callers
	// the illusion of P independent handles, serialized underneath.
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("walletdb: ping %s: %w", path, err)
	}

	p := &Pool{
		db:      db,
		handles: make(chan *sqlx.DB, size),
	}
	for i := 0; i < size; i++ {
		p.handles <- db
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("walletdb: init schema: %w", err)
	}

	return p, nil
}

// Handle is an acquired, exclusive database handle. Callers must call
// Release exactly once, and must not hold a Handle across any call that
// suspends on the network.
type Handle struct {
	pool *Pool
	db   *sqlx.DB
}

// Acquire blocks until a handle is available or ctx is done. Acquisition
// never fails except under shutdown: a closed pool or a canceled
// context.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	select {
	case db, ok := <-p.handles:
		if !ok {
			return nil, fmt.Errorf("walletdb: pool closed")
		}
		return &Handle{pool: p, db: db}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns the handle to the pool.
func (h *Handle) Release() {
	h.pool.handles <- h.db
}

// DB returns the handle's *sqlx.DB, for issuing queries. All queries run
// through this single method so tests can substitute a mock if ever
// needed.
func (h *Handle) DB() *sqlx.DB { return h.db }

// WithTx runs fn inside a single SQL transaction on this handle,
// committing on success and rolling back if fn returns an error or
// panics. Every write path in walletdb (commit_sent, network_sync,
// full_sync) uses this to keep its writes atomic.
func (h *Handle) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("walletdb: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("walletdb: commit: %w", err)
	}
	return nil
}

// Close closes the underlying database. It is the caller's responsibility
// to ensure no handles are outstanding.
func (p *Pool) Close() error {
	close(p.handles)
	return p.db.Close()
}
