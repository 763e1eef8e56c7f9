package db

import (
	"context"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
)

type AcquisitionInterface interface {
	// Unsubmitted returns finished plate acquisitions which the automation has not seen yet.
	//
	// An acquisition is "seen" when it is recorded in the submission ledger,
	// or when any analysis for it exists.
	// Both are checked in one snapshot.
	//
	// Returns
	//
	// - []domain.PlateAcquisition: ordered by id, ascending.
	//
	// - error: failures of the database. Transient ones satisfy errors.ErrTransient.
	Unsubmitted(ctx context.Context) ([]domain.PlateAcquisition, error)
}
