package db

import (
	"context"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
)

type AnalysisInterface interface {
	// Submit creates an analysis for the acquisition and a chain of its sub-analyses.
	//
	// The pipeline is read, the analysis and all sub-analyses are written in one transaction.
	// On any error, nothing is written.
	//
	// Returns
	//
	// - domain.Submitted: ids of the new analysis and sub-analyses (in order of steps).
	//
	// - error: ErrInvalid when the request or the pipeline is malformed,
	// ErrNotFound when the pipeline or the acquisition does not exist,
	// or failures of the database (transient ones satisfy ErrTransient).
	Submit(ctx context.Context, req domain.SubmitRequest) (domain.Submitted, error)

	// MarkSubmitted records the acquisition in the submission ledger.
	//
	// Marking an acquisition twice is not an error.
	//
	// Returns
	//
	// - bool: true if the entry is newly created, false if it has been there.
	//
	// - error
	MarkSubmitted(ctx context.Context, plateAcqId int64) (bool, error)

	// Get returns the analysis and its sub-analyses ordered by sub id.
	//
	// When no analyses have the id, it returns ErrNotFound.
	Get(ctx context.Context, analysisId int64) (domain.Analysis, []domain.SubAnalysis, error)
}
