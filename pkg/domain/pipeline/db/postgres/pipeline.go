package postgres

import (
	"context"

	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	dberr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors/dberrors/postgres"
	kpgintr "github.com/pharmbio/pipeline-monitor/pkg/domain/internal/db/postgres"
	kdbpipeline "github.com/pharmbio/pipeline-monitor/pkg/domain/pipeline/db"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

type pipelinePG struct {
	pool kpool.Pool
}

var _ kdbpipeline.PipelineInterface = &pipelinePG{}

func New(pool kpool.Pool) *pipelinePG {
	return &pipelinePG{pool: pool}
}

func (p *pipelinePG) Get(ctx context.Context, name string) (domain.PipelineDefinition, error) {
	def, err := kpool.WithConn(ctx, p.pool, func(conn kpool.Conn) (domain.PipelineDefinition, error) {
		return kpgintr.GetPipeline(ctx, conn, name)
	})
	if err != nil {
		return domain.PipelineDefinition{}, xe.Wrap(dberr.AsTransient(err))
	}
	return def, nil
}
