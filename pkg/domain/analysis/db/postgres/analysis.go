package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	kdbanalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db"
	dberr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors/dberrors/postgres"
	kpgintr "github.com/pharmbio/pipeline-monitor/pkg/domain/internal/db/postgres"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

type analysisPG struct {
	pool kpool.Pool
}

var _ kdbanalysis.AnalysisInterface = &analysisPG{}

func New(pool kpool.Pool) *analysisPG {
	return &analysisPG{pool: pool}
}

func (a *analysisPG) Submit(ctx context.Context, req domain.SubmitRequest) (domain.Submitted, error) {
	o, err := req.Overrides()
	if err != nil {
		return domain.Submitted{}, xe.Wrap(err)
	}

	submitted, err := kpool.WithTx(
		ctx, a.pool, pgx.TxOptions{},
		func(tx kpool.Tx) (domain.Submitted, error) {
			return submit(ctx, tx, req.AcquisitionId, req.PipelineName, o)
		},
	)
	if err != nil {
		return domain.Submitted{}, xe.Wrap(dberr.AsTransient(err))
	}
	return submitted, nil
}

func submit(ctx context.Context, tx kpool.Tx, plateAcqId int64, pipelineName string, o domain.Overrides) (domain.Submitted, error) {
	def, err := kpgintr.GetPipeline(ctx, tx, pipelineName)
	if err != nil {
		return domain.Submitted{}, err
	}

	analysisId, err := insertAnalysis(ctx, tx, plateAcqId, def.Name, o.AnalysisMeta(def.AnalysisMeta))
	if err != nil {
		return domain.Submitted{}, err
	}

	subIds, err := domain.ExpandChain(
		def.Steps, o,
		func(dependsOn []int64, meta domain.Meta) (int64, error) {
			return insertSubAnalysis(ctx, tx, analysisId, plateAcqId, meta, dependsOn, o.Priority)
		},
	)
	if err != nil {
		return domain.Submitted{}, err
	}

	return domain.Submitted{AnalysisId: analysisId, SubAnalysisIds: subIds}, nil
}

func insertAnalysis(ctx context.Context, tx kpool.Tx, plateAcqId int64, pipelineName string, meta domain.Meta) (int64, error) {
	jmeta, err := kpgintr.JSONB(meta)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRow(
		ctx,
		`insert into "image_analyses" ("plate_acquisition_id", "pipeline_name", "meta")
		values ($1, $2, $3)
		returning "id"`,
		plateAcqId, pipelineName, jmeta,
	).Scan(&id); err != nil {
		if dberr.IsForeignKeyViolation(err) {
			return 0, dberr.Missing{
				Table: "plate_acquisition", Identity: strconv.FormatInt(plateAcqId, 10),
			}
		}
		return 0, err
	}
	return id, nil
}

func insertSubAnalysis(
	ctx context.Context, tx kpool.Tx,
	analysisId int64, plateAcqId int64, meta domain.Meta, dependsOn []int64, priority *int,
) (int64, error) {
	jmeta, err := kpgintr.JSONB(meta)
	if err != nil {
		return 0, err
	}
	jdeps, err := kpgintr.JSONB(dependsOn)
	if err != nil {
		return 0, err
	}

	var subId int64
	if err := tx.QueryRow(
		ctx,
		`insert into "image_sub_analyses"
		("analysis_id", "plate_acquisition_id", "meta", "depends_on_sub_id", "priority")
		values ($1, $2, $3, $4, $5)
		returning "sub_id"`,
		analysisId, plateAcqId, jmeta, jdeps, priority,
	).Scan(&subId); err != nil {
		return 0, err
	}
	return subId, nil
}

func (a *analysisPG) MarkSubmitted(ctx context.Context, plateAcqId int64) (bool, error) {
	inserted, err := kpool.WithConn(ctx, a.pool, func(conn kpool.Conn) (bool, error) {
		tag, err := conn.Exec(
			ctx,
			`insert into "image_analyses_automation_submitted" ("plate_acq_id") values ($1)
			on conflict ("plate_acq_id") do nothing`,
			plateAcqId,
		)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() == 1, nil
	})
	if err != nil {
		return false, xe.Wrap(dberr.AsTransient(err))
	}
	return inserted, nil
}

func (a *analysisPG) Get(ctx context.Context, analysisId int64) (domain.Analysis, []domain.SubAnalysis, error) {
	type result struct {
		analysis domain.Analysis
		subs     []domain.SubAnalysis
	}

	r, err := kpool.WithTx(
		ctx, a.pool,
		pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly},
		func(tx kpool.Tx) (result, error) {
			an, err := getAnalysis(ctx, tx, analysisId)
			if err != nil {
				return result{}, err
			}
			subs, err := getSubAnalyses(ctx, tx, analysisId)
			if err != nil {
				return result{}, err
			}
			return result{analysis: an, subs: subs}, nil
		},
	)
	if err != nil {
		return domain.Analysis{}, nil, xe.Wrap(dberr.AsTransient(err))
	}
	return r.analysis, r.subs, nil
}

func getAnalysis(ctx context.Context, q kpool.Queryer, analysisId int64) (domain.Analysis, error) {
	an := domain.Analysis{}
	var meta pgtype.JSONB
	if err := q.QueryRow(
		ctx,
		`select "id", "plate_acquisition_id", "pipeline_name", "meta"
		from "image_analyses" where "id" = $1`,
		analysisId,
	).Scan(&an.Id, &an.PlateAcquisitionId, &an.PipelineName, &meta); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Analysis{}, dberr.Missing{
				Table: "image_analyses", Identity: strconv.FormatInt(analysisId, 10),
			}
		}
		return domain.Analysis{}, err
	}
	if err := json.Unmarshal(meta.Bytes, &an.Meta); err != nil {
		return domain.Analysis{}, err
	}
	return an, nil
}

func getSubAnalyses(ctx context.Context, q kpool.Queryer, analysisId int64) ([]domain.SubAnalysis, error) {
	rows, err := q.Query(
		ctx,
		`select "sub_id", "analysis_id", "plate_acquisition_id", "meta", "depends_on_sub_id", "priority"
		from "image_sub_analyses" where "analysis_id" = $1
		order by "sub_id"`,
		analysisId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []domain.SubAnalysis{}
	for rows.Next() {
		sub := domain.SubAnalysis{}
		var meta, deps pgtype.JSONB
		var priority pgtype.Int4
		if err := rows.Scan(
			&sub.SubId, &sub.AnalysisId, &sub.PlateAcquisitionId, &meta, &deps, &priority,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta.Bytes, &sub.Meta); err != nil {
			return nil, err
		}
		sub.DependsOn = []int64{}
		if err := json.Unmarshal(deps.Bytes, &sub.DependsOn); err != nil {
			return nil, err
		}
		if priority.Status == pgtype.Present {
			p := int(priority.Int)
			sub.Priority = &p
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}
