package testenv

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	kpgschema "github.com/pharmbio/pipeline-monitor/pkg/domain/schema/db/postgres"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	image    = "postgres:16-alpine"
	user     = "test-user"
	password = "test-pass"
	dbname   = "imagedb"
)

// SchemaRepository is the path to schema/postgres of this repository.
func SchemaRepository() string {
	_, file, _, _ := runtime.Caller(0)
	// pkg/conn/db/postgres/pool/testenv/testenv.go -> repository root
	root := filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "..", "..")
	return filepath.Join(root, "schema", "postgres")
}

// PoolBroaker is a interface to get a pool.
type PoolBroaker interface {
	// GetPool returns a pool.
	//
	// Tables are cleaned up before returning and after t.
	GetPool(ctx context.Context, t *testing.T) kpool.Pool

	// URL of the database.
	URL() string
}

type pg struct {
	url  string
	pool *pgxpool.Pool
}

func (p *pg) URL() string {
	return p.url
}

func (p *pg) GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Helper()
	t.Cleanup(func() {
		ClearTables(context.Background(), p.pool, t)
	})

	ClearTables(ctx, p.pool, t)
	return kpool.Wrap(p.pool)
}

// NewPoolBroaker starts a postgres container for t, and returns PoolBroaker on it.
//
// The database is upgraded to the latest version of SchemaRepository.
//
// When no container provider (docker, podman) is available, t is skipped.
func NewPoolBroaker(ctx context.Context, t *testing.T) PoolBroaker {
	t.Helper()
	return NewBarePoolBroaker(ctx, t, func(ctx context.Context, p kpool.Pool) error {
		return kpgschema.New(p, SchemaRepository()).Upgrade(ctx)
	})
}

// NewBarePoolBroaker is NewPoolBroaker with custom setup instead of the schema upgrade.
//
// setup is called once, before the first GetPool.
func NewBarePoolBroaker(ctx context.Context, t *testing.T, setup func(context.Context, kpool.Pool) error) PoolBroaker {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctr, err := tcpostgres.Run(
		ctx, image,
		tcpostgres.WithDatabase(dbname),
		tcpostgres.WithUsername(user),
		tcpostgres.WithPassword(password),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatal(err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if err := setup(ctx, kpool.Wrap(pool)); err != nil {
		t.Fatal(err)
	}

	return &pg{url: url, pool: pool}
}

// ClearTables truncates tables of the image database.
//
// Tables not created yet are left untouched.
func ClearTables(ctx context.Context, p *pgxpool.Pool, t *testing.T) {
	t.Helper()

	conn, err := p.Acquire(ctx)
	if err != nil {
		t.Errorf("fail to clean-up tables.: %v", err)
		return
	}
	defer conn.Release()

	var tables []string
	{
		rows, err := conn.Query(
			ctx,
			`select "tablename" from "pg_tables"
			where "schemaname" = 'public' and "tablename" <> 'schema_version'`,
		)
		if err != nil {
			t.Errorf("fail to clean-up tables.: %v", err)
			return
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				t.Errorf("fail to clean-up tables.: %v", err)
				return
			}
			tables = append(tables, pgx.Identifier{name}.Sanitize())
		}
		rows.Close()
	}
	if len(tables) == 0 {
		return
	}

	if _, err := conn.Exec(
		ctx, `truncate `+strings.Join(tables, ", ")+` restart identity cascade`,
	); err != nil {
		t.Errorf("fail to clean-up tables.: %v", err)
	}
}
