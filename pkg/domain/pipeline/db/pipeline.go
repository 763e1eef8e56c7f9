package db

import (
	"context"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
)

type PipelineInterface interface {
	// Get returns the pipeline definition named name.
	//
	// Returns
	//
	// - domain.PipelineDefinition
	//
	// - error: ErrNotFound when no pipelines have the name,
	// ErrInvalid when the stored definition is malformed.
	Get(ctx context.Context, name string) (domain.PipelineDefinition, error)
}
