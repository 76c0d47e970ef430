package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by pgxpool.Pool, pgxpool.Conn and pgx.Tx, letting
// the stores run against whichever the caller holds.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Database struct {
	dsn            string
	ConnectionPool *pgxpool.Pool
}

func NewDatabase(dsn string) *Database {
	return &Database{dsn: dsn}
}

func (db *Database) Connect(ctx context.Context) error {
	var err error
	db.ConnectionPool, err = pgxpool.New(ctx, db.dsn)
	if err != nil {
		return fmt.Errorf("unable to connect: %w", err)
	}
	return nil
}

func (db *Database) Close() {
	if db.ConnectionPool != nil {
		db.ConnectionPool.Close()
	}
}

// GetConfig reads one key from the generic key/value configuration store.
// A missing key returns "" without error.
func (db *Database) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := db.ConnectionPool.QueryRow(ctx,
		`SELECT value FROM ldapsync_config WHERE name = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get config %q failed: %w", key, err)
	}
	return value, nil
}

func (db *Database) SetConfig(ctx context.Context, key, value string) error {
	_, err := db.ConnectionPool.Exec(ctx, `
		INSERT INTO ldapsync_config (name, value)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set config %q failed: %w", key, err)
	}
	return nil
}

// syncLockKey keys the advisory lock serializing sync passes. The task
// runner is not trusted to never overlap invocations; two concurrent
// passes would race on the staging table.
const syncLockKey = int64(0x6c64617073796e63) // "ldapsync"

// Session pins one pooled connection for the duration of a sync pass.
// The temporary staging table and the advisory lock both require
// connection affinity, which the pool does not otherwise guarantee.
type Session struct {
	conn *pgxpool.Conn
}

func (db *Database) AcquireSession(ctx context.Context) (*Session, error) {
	conn, err := db.ConnectionPool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection failed: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, syncLockKey); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire sync lock failed: %w", err)
	}
	return &Session{conn: conn}, nil
}

func (s *Session) Conn() Querier {
	return s.conn
}

// Release drops the advisory lock and returns the connection to the pool.
// Safe to defer alongside error paths.
func (s *Session) Release(ctx context.Context) {
	if s.conn == nil {
		return
	}
	if _, err := s.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, syncLockKey); err != nil {
		fmt.Printf("failed to release sync lock: %v\n", err)
	}
	s.conn.Release()
	s.conn = nil
}
