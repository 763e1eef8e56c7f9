package postgres_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	testenv "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool/testenv"
	kpgschema "github.com/pharmbio/pipeline-monitor/pkg/domain/schema/db/postgres"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/try"
)

func noSetup(context.Context, kpool.Pool) error { return nil }

func writeVersion(t *testing.T, repo string, version string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(repo, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPgSchema(t *testing.T) {
	ctx := context.Background()
	poolBroaker := testenv.NewBarePoolBroaker(ctx, t, noSetup)

	t.Run("database without schema_version is version 0, and Upgrade applies the repository", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		conn := try.To(pool.Acquire(ctx)).OrFatal(t)
		defer conn.Release()
		if _, err := conn.Exec(ctx, `drop schema public cascade; create schema public`); err != nil {
			t.Fatal(err)
		}

		testee := kpgschema.New(pool, testenv.SchemaRepository())
		if v := try.To(testee.Version(ctx)).OrFatal(t); v != 0 {
			t.Errorf("version before = %d, want 0", v)
		}
		if err := testee.Upgrade(ctx); err != nil {
			t.Fatal(err)
		}
		if v := try.To(testee.Version(ctx)).OrFatal(t); v != 1 {
			t.Errorf("version after = %d, want 1", v)
		}

		// upgrading the latest is a no-op.
		if err := testee.Upgrade(ctx); err != nil {
			t.Fatal(err)
		}
		var n int
		if err := conn.QueryRow(ctx, `select count(*) from "schema_version"`).Scan(&n); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("schema_version has %d rows", n)
		}
	})

	t.Run("a broken version rolls back the whole upgrade", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		conn := try.To(pool.Acquire(ctx)).OrFatal(t)
		defer conn.Release()
		if _, err := conn.Exec(ctx, `drop schema public cascade; create schema public`); err != nil {
			t.Fatal(err)
		}

		repo := t.TempDir()
		writeVersion(t, repo, "1", map[string]string{
			"001.sql": `create table "schema_version" ("version" integer not null); create table "foo" ("id" integer);`,
		})
		writeVersion(t, repo, "2", map[string]string{
			"001.sql": `create table "bar" ("id" integer);`,
			"002.sql": `this is not sql;`,
		})

		testee := kpgschema.New(pool, repo)
		if err := testee.Upgrade(ctx); err == nil {
			t.Fatal("no error")
		}
		if v := try.To(testee.Version(ctx)).OrFatal(t); v != 0 {
			t.Errorf("version = %d, want 0", v)
		}
		var exists bool
		if err := conn.QueryRow(
			ctx, `select exists (select 1 from "pg_tables" where "tablename" = 'foo')`,
		).Scan(&exists); err != nil {
			t.Fatal(err)
		}
		if exists {
			t.Error("table of version 1 is left")
		}
	})

	t.Run("Context is cancelled when a newer version appears in the repository", func(t *testing.T) {
		pool := poolBroaker.GetPool(ctx, t)
		conn := try.To(pool.Acquire(ctx)).OrFatal(t)
		defer conn.Release()
		if _, err := conn.Exec(ctx, `drop schema public cascade; create schema public`); err != nil {
			t.Fatal(err)
		}

		repo := t.TempDir()
		writeVersion(t, repo, "1", map[string]string{
			"001.sql": `create table "schema_version" ("version" integer not null);`,
		})
		testee := kpgschema.New(pool, repo)
		if err := testee.Upgrade(ctx); err != nil {
			t.Fatal(err)
		}

		sctx, cancel := testee.Context(ctx)
		defer cancel()
		if err := sctx.Err(); err != nil {
			t.Fatalf("cancelled at the latest version: %v", context.Cause(sctx))
		}

		writeVersion(t, repo, "2", map[string]string{"001.sql": `select 1;`})

		select {
		case <-sctx.Done():
			if cause := context.Cause(sctx); errors.Is(cause, context.Canceled) {
				t.Errorf("unexpected cause: %v", cause)
			}
		case <-time.After(5 * time.Second):
			t.Error("context is not cancelled")
		}
	})
}

func TestNull(t *testing.T) {
	ctx := context.Background()
	testee := kpgschema.Null()
	if err := testee.Upgrade(ctx); err == nil {
		t.Error("Upgrade of Null succeeds")
	}
	if v := try.To(testee.Version(ctx)).OrFatal(t); v != -1 {
		t.Errorf("version = %d", v)
	}
	sctx, cancel := testee.Context(ctx)
	defer cancel()
	if sctx.Err() != nil {
		t.Error("Null context is done")
	}
}
