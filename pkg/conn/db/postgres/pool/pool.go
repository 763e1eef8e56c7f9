package pool

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// something sending query with SQL.
//
// this is extracted interface from `*pgxpool.Conn` and `pgx.Tx`.
type Queryer interface {
	// sending SQL Command which does not have any result rows.
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)

	// sending SQL Command which has result rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// sending SQL Command which has just single result row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// something begins SQL Transaction with options.
type BeginTx interface {
	Begin(ctx context.Context) (Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error)
}

// interface extracted from `pgx.Tx`
//
// This is JUST A SUBSET of `pgx.Tx`. When you need more, declare them.
type Tx interface {
	Queryer

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// interface extracted from `*pgxpool.Conn`
type Conn interface {
	BeginTx
	Queryer

	Release()
	Ping(ctx context.Context) error
}

// interface extracted from `*pgxpool.Pool`
//
// The pool is created once by the process' entrypoint and closed on shutdown.
type Pool interface {
	BeginTx

	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close()
}

// pgx.Tx satisfies Tx as it is.
var _ Tx = pgx.Tx(nil)

// conn overrides Begin/BeginTx of *pgxpool.Conn to return Tx.
type conn struct {
	*pgxpool.Conn
}

var _ Conn = conn{}

func (c conn) Begin(ctx context.Context) (Tx, error) {
	return asTx(c.Conn.Begin(ctx))
}

func (c conn) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error) {
	return asTx(c.Conn.BeginTx(ctx, txOptions))
}

type pool struct {
	*pgxpool.Pool
}

var _ Pool = pool{}

func (p pool) Begin(ctx context.Context) (Tx, error) {
	return asTx(p.Pool.Begin(ctx))
}

func (p pool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error) {
	return asTx(p.Pool.BeginTx(ctx, txOptions))
}

func (p pool) Acquire(ctx context.Context) (Conn, error) {
	c, err := p.Pool.Acquire(ctx)
	if c == nil {
		return nil, err
	}
	return conn{c}, err
}

// asTx keeps nil Tx nil (not a non-nil interface holding nil).
func asTx(tx pgx.Tx, err error) (Tx, error) {
	if tx == nil {
		return nil, err
	}
	return tx, err
}

func Wrap(p *pgxpool.Pool) Pool {
	return pool{p}
}

// Connect creates a bounded connection pool.
//
// maxConns <= 0 leaves pgxpool's default.
func Connect(ctx context.Context, url string, maxConns int32) (Pool, error) {
	conf, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	if 0 < maxConns {
		conf.MaxConns = maxConns
	}
	p, err := pgxpool.ConnectConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	return Wrap(p), nil
}

// WithConn acquires a connection for the duration of f.
//
// The connection goes back to the pool whatever f returns, or if it panics.
func WithConn[T any](ctx context.Context, p Pool, f func(Conn) (T, error)) (T, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return *new(T), err
	}
	defer conn.Release()
	return f(conn)
}

// WithTx runs f in a transaction on a connection acquired from p.
//
// When f returns nil, the transaction is committed.
// Otherwise (or on panic) it is rolled back and nothing f wrote is visible.
func WithTx[T any](ctx context.Context, p Pool, opts pgx.TxOptions, f func(Tx) (T, error)) (T, error) {
	return WithConn(ctx, p, func(conn Conn) (T, error) {
		tx, err := conn.BeginTx(ctx, opts)
		if err != nil {
			return *new(T), err
		}
		defer tx.Rollback(ctx)

		ret, err := f(tx)
		if err != nil {
			return *new(T), err
		}
		if err := tx.Commit(ctx); err != nil {
			return *new(T), err
		}
		return ret, nil
	})
}
