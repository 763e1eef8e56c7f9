package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	dberr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors/dberrors/postgres"
)

// GetPipeline reads a pipeline definition by name.
//
// # Returns
//
// - domain.PipelineDefinition
//
// - error: Missing (ErrNotFound) when there are no such pipelines,
// ErrInvalid when its meta is malformed, or errors from the database as they are.
func GetPipeline(ctx context.Context, conn kpool.Queryer, name string) (domain.PipelineDefinition, error) {
	var meta pgtype.JSONB
	if err := conn.QueryRow(
		ctx,
		`select "meta" from "analysis_pipelines" where "name" = $1`,
		name,
	).Scan(&meta); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PipelineDefinition{}, dberr.Missing{Table: "analysis_pipelines", Identity: name}
		}
		return domain.PipelineDefinition{}, err
	}

	if meta.Status != pgtype.Present {
		return domain.ParsePipeline(name, []byte("null"))
	}
	return domain.ParsePipeline(name, meta.Bytes)
}

// JSONB encodes v (by encoding/json) as a parameter for jsonb columns.
func JSONB(v any) (*pgtype.JSONB, error) {
	j := new(pgtype.JSONB)
	if err := j.Set(v); err != nil {
		return nil, err
	}
	return j, nil
}
