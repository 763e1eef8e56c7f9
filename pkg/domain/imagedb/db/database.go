package db

import (
	"context"

	kacq "github.com/pharmbio/pipeline-monitor/pkg/domain/acquisition/db"
	kanalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db"
	kpipeline "github.com/pharmbio/pipeline-monitor/pkg/domain/pipeline/db"
	krule "github.com/pharmbio/pipeline-monitor/pkg/domain/rule/db"
	kschema "github.com/pharmbio/pipeline-monitor/pkg/domain/schema/db"
)

// ImageDatabase is the image database, seen from the automation.
type ImageDatabase interface {
	Acquisition() kacq.AcquisitionInterface
	Rule() krule.RuleInterface
	Pipeline() kpipeline.PipelineInterface
	Analysis() kanalysis.AnalysisInterface
	Schema() kschema.SchemaInterface

	// Ping checks the database is reachable.
	Ping(ctx context.Context) error

	Close() error
}
