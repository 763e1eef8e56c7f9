package postgres

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

type pgSchema struct {
	pool kpool.Pool

	// directory containing numbered version directories ("1", "2", ...).
	repository string
}

// New returns the schema of the database behind pool.
//
// repository is a directory whose numbered subdirectories hold *.sql files of each version.
func New(pool kpool.Pool, repository string) *pgSchema {
	return &pgSchema{pool: pool, repository: repository}
}

type version struct {
	Number int
	Root   string
}

// apply runs sql files in the version directory, in lexical order.
func (v version) apply(ctx context.Context, q kpool.Queryer) error {
	return filepath.WalkDir(v.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		query, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, string(query)); err != nil {
			return xe.WrapWithNote(fmt.Sprintf("applying %s", path), err)
		}
		return nil
	})
}

// currentVersion reads schema_version.
//
// It checks existence of the table first, so it does not abort the transaction q may be in.
func currentVersion(ctx context.Context, q kpool.Queryer) (int, error) {
	var exists bool
	if err := q.QueryRow(
		ctx, `select to_regclass('"schema_version"') is not null`,
	).Scan(&exists); err != nil {
		return -1, err
	}
	if !exists {
		return 0, nil
	}

	var v *int
	if err := q.QueryRow(
		ctx, `select max("version") from "schema_version"`,
	).Scan(&v); err != nil {
		return -1, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

func (s *pgSchema) Version(ctx context.Context) (int, error) {
	return kpool.WithConn(ctx, s.pool, func(conn kpool.Conn) (int, error) {
		return currentVersion(ctx, conn)
	})
}

func (s *pgSchema) Upgrade(ctx context.Context) error {
	versions, err := s.versions()
	if err != nil {
		return err
	}

	_, err = kpool.WithConn(ctx, s.pool, func(conn kpool.Conn) (struct{}, error) {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return struct{}{}, err
		}
		defer tx.Rollback(ctx)

		current, err := currentVersion(ctx, tx)
		if err != nil {
			return struct{}{}, err
		}

		for _, v := range versions {
			if v.Number <= current {
				continue
			}
			if err := v.apply(ctx, tx); err != nil {
				return struct{}{}, err
			}
			if _, err := tx.Exec(ctx, `delete from "schema_version"`); err != nil {
				return struct{}{}, err
			}
			if _, err := tx.Exec(
				ctx, `insert into "schema_version" ("version") values ($1)`, v.Number,
			); err != nil {
				return struct{}{}, err
			}
		}

		return struct{}{}, tx.Commit(ctx)
	})
	return err
}

func (s *pgSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return cctx, func() {}
	}
	if err := w.Add(s.repository); err != nil {
		w.Close()
		cancel(err)
		return cctx, func() {}
	}

	check := func() {
		vs, err := s.versions()
		if err != nil {
			cancel(fmt.Errorf("failed to read schema repository: %w", err))
			return
		}
		if len(vs) == 0 {
			return
		}

		current, err := s.Version(cctx)
		if err != nil {
			cancel(fmt.Errorf("failed to get current schema version: %w", err))
			return
		}

		if latest := vs[len(vs)-1].Number; current < latest {
			cancel(fmt.Errorf(
				"schema is outdated: %d (in db) < %d (in repository)", current, latest,
			))
		}
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				if filepath.Clean(s.repository) != filepath.Dir(ev.Name) {
					continue
				}
				check()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	check()
	return cctx, func() { cancel(nil) }
}

// versions lists numbered directories in the repository, in ascending order.
func (s *pgSchema) versions() ([]version, error) {
	entries, err := os.ReadDir(s.repository)
	if err != nil {
		return nil, err
	}

	vs := make([]version, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		vs = append(vs, version{Number: n, Root: filepath.Join(s.repository, e.Name())})
	}
	slices.SortFunc(vs, func(a, b version) int { return cmp.Compare(a.Number, b.Number) })
	return vs, nil
}

// Null is a schema without repository.
//
// It can not upgrade anything, and never says the database is outdated.
func Null() *nullSchema {
	return &nullSchema{}
}

type nullSchema struct{}

func (nullSchema) Upgrade(context.Context) error {
	return errors.New("no schema repository available")
}

func (nullSchema) Version(context.Context) (int, error) {
	return -1, nil
}

func (nullSchema) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return ctx, func() {}
}
