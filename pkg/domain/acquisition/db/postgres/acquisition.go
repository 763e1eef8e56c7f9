package postgres

import (
	"context"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	kdbacq "github.com/pharmbio/pipeline-monitor/pkg/domain/acquisition/db"
	dberr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors/dberrors/postgres"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

type acquisitionPG struct {
	pool kpool.Pool
}

var _ kdbacq.AcquisitionInterface = &acquisitionPG{}

func New(pool kpool.Pool) *acquisitionPG {
	return &acquisitionPG{pool: pool}
}

func (a *acquisitionPG) Unsubmitted(ctx context.Context) ([]domain.PlateAcquisition, error) {
	acqs, err := kpool.WithTx(
		ctx, a.pool,
		pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly},
		func(tx kpool.Tx) ([]domain.PlateAcquisition, error) {
			return unsubmitted(ctx, tx)
		},
	)
	if err != nil {
		return nil, xe.Wrap(dberr.AsTransient(err))
	}
	return acqs, nil
}

func unsubmitted(ctx context.Context, q kpool.Queryer) ([]domain.PlateAcquisition, error) {
	rows, err := q.Query(
		ctx,
		`
		select "id", "project", "name", "channel_map_id", "finished"
		from "plate_acquisition" as "pa"
		where "pa"."finished" is not null
			and not exists (
				select 1 from "image_analyses_automation_submitted" as "s"
				where "s"."plate_acq_id" = "pa"."id"
			)
			and not exists (
				select 1 from "image_analyses" as "ia"
				where "ia"."plate_acquisition_id" = "pa"."id"
			)
		order by "pa"."id"
		`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	acqs := []domain.PlateAcquisition{}
	for rows.Next() {
		var acq domain.PlateAcquisition
		var channelMap pgtype.Int8
		if err := rows.Scan(
			&acq.Id, &acq.Project, &acq.Name, &channelMap, &acq.Finished,
		); err != nil {
			return nil, err
		}
		if channelMap.Status == pgtype.Present {
			id := channelMap.Int
			acq.ChannelMapId = &id
		}
		acqs = append(acqs, acq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return acqs, nil
}
