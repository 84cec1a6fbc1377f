package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	sqliteDefaultParams = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
)

// Store is a database/sql backed application.UnitOfWork. Every write is a compare-and-swap
// on the row version, so stale reads surface as version mismatches instead of lost updates.
type Store struct {
	db      *sql.DB
	driver  string
	txOpts  *sql.TxOptions
	nowFunc func() time.Time
}

// Open connects to driver ("sqlite" or "mysql") and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var txOpts *sql.TxOptions
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?" + sqliteDefaultParams
		}
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: parse mysql dsn: %w", err)
		}
		dsn = cfg.FormatDSN()
		// Retries must observe rows committed after the transaction started.
		txOpts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(4)
		db.SetConnMaxIdleTime(2 * time.Minute)
	} else {
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
	}

	s := &Store{db: db, driver: driver, txOpts: txOpts, nowFunc: func() time.Time { return time.Now().UTC() }}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlstore: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates missing tables. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == DriverMySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}

var _ application.UnitOfWork = (*Store)(nil)

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, s.txOpts)
	if err != nil {
		if isContention(err) {
			return fmt.Errorf("%w: sqlstore: begin tx: %w", application.ErrTxConflict, err)
		}
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &tx{tx: sqlTx, now: s.nowFunc}); err != nil {
		if isContention(err) {
			return fmt.Errorf("%w: %w", application.ErrTxConflict, err)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		if isDuplicate(err) || isContention(err) {
			return fmt.Errorf("%w: %w", application.ErrTxConflict, err)
		}
		return fmt.Errorf("%w: %w", application.ErrCommit, err)
	}
	return nil
}

type tx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *tx) Stock() inventory.Repository { return stockRepo{t} }
func (t *tx) Carts() cart.Repository      { return cartRepo{t} }
func (t *tx) Orders() order.Repository    { return orderRepo{t} }

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

// isContention reports lock waits the engine gave up on: SQLite busy or locked,
// MySQL deadlock (1213) or lock wait timeout (1205).
func isContention(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

func nanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }
