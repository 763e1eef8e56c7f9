package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	"github.com/pharmbio/pipeline-monitor/pkg/domain/errors/dberrors/postgres"
)

func TestMissing(t *testing.T) {
	err := fmt.Errorf("submitting: %w", postgres.Missing{Table: "analysis_pipelines", Identity: "std"})
	if !errors.Is(err, domerr.ErrNotFound) {
		t.Errorf("Missing is not ErrNotFound: %v", err)
	}
	if m := new(postgres.Missing); !errors.As(err, m) || m.Identity != "std" {
		t.Errorf("Missing is lost: %v", err)
	}
}

func TestAsTransient(t *testing.T) {
	for name, testcase := range map[string]struct {
		when      error
		transient bool
	}{
		"nil stays nil": {
			when: nil, transient: false,
		},
		"deadlock is transient": {
			when: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, transient: true,
		},
		"serialization failure is transient": {
			when: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, transient: true,
		},
		"connection failure is transient": {
			when: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, transient: true,
		},
		"too many connections is transient": {
			when: &pgconn.PgError{Code: pgerrcode.TooManyConnections}, transient: true,
		},
		"query canceled is transient": {
			when: &pgconn.PgError{Code: pgerrcode.QueryCanceled}, transient: true,
		},
		"timeout is transient": {
			when: fmt.Errorf("acquiring: %w", context.DeadlineExceeded), transient: true,
		},
		"unique violation is not transient": {
			when: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, transient: false,
		},
		"undefined table is not transient": {
			when: &pgconn.PgError{Code: pgerrcode.UndefinedTable}, transient: false,
		},
		"plain error is not transient": {
			when: errors.New("bad json"), transient: false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual := postgres.AsTransient(testcase.when)
			if testcase.when == nil {
				if actual != nil {
					t.Errorf("AsTransient(nil) = %v", actual)
				}
				return
			}
			if got := domerr.IsTransient(actual); got != testcase.transient {
				t.Errorf("IsTransient = %v, want %v", got, testcase.transient)
			}
			if !errors.Is(actual, testcase.when) {
				t.Errorf("cause is lost: %v", actual)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !postgres.IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation})) {
		t.Error("unique violation is not detected")
	}
	if postgres.IsUniqueViolation(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}) {
		t.Error("foreign key violation is detected as unique violation")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !postgres.IsForeignKeyViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})) {
		t.Error("foreign key violation is not detected")
	}
	if postgres.IsForeignKeyViolation(&pgconn.PgError{Code: pgerrcode.UniqueViolation}) {
		t.Error("unique violation is detected as foreign key violation")
	}
}
