package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
)

// requested data is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return domerr.ErrNotFound
}

// AsTransient marks err as transient when it is caused by
// connectivity, contention or server availability.
//
// Other errors (including nil) are returned as they are.
func AsTransient(err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return domerr.Transient(err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		// pool acquisition or statement timed out
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
		switch {
		case pgerrcode.IsConnectionException(pgerr.Code):
			return true
		case pgerrcode.IsTransactionRollback(pgerr.Code): // serialization failure, deadlock
			return true
		case pgerrcode.IsInsufficientResources(pgerr.Code): // too many connections
			return true
		case pgerrcode.IsOperatorIntervention(pgerr.Code): // query canceled, admin shutdown
			return true
		}
		return false
	}
	// dial failure, connection reset
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsUniqueViolation reports whether err is caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	pgerr := new(pgconn.PgError)
	return errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation
}

// IsForeignKeyViolation reports whether err is caused by a reference to a missing row.
func IsForeignKeyViolation(err error) bool {
	pgerr := new(pgconn.PgError)
	return errors.As(err, &pgerr) && pgerr.Code == pgerrcode.ForeignKeyViolation
}
