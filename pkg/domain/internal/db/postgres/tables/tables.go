// Fixtures of the image database for tests.
//
// Build an Operation with rows to be inserted, and Apply it to a pool.
// Ids are given explicitly, so tests can refer rows by them.
package tables

import (
	"context"
	"time"

	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
)

type PlateAcquisition struct {
	Id           int64
	Project      string
	Name         string
	ChannelMapId *int64
	Finished     *time.Time
}

type Pipeline struct {
	Name string

	// json text of the pipeline meta
	Meta string
}

type Rule struct {
	Id           int64
	Project      string
	CellLine     string
	ChannelMapId int64
	PipelineName string

	// json text. Empty means sql null.
	Metadata string
}

type Ledger struct {
	PlateAcqId int64
	Time       time.Time
}

type Analysis struct {
	Id                 int64
	PlateAcquisitionId int64
	PipelineName       string

	// json text of the analysis meta
	Meta string
}

// Operation is a set of rows to be inserted.
type Operation struct {
	Acquisitions []PlateAcquisition
	Pipelines    []Pipeline
	Rules        []Rule
	Ledger       []Ledger
	Analyses     []Analysis
}

// Apply inserts rows in one transaction, and resets sequences beyond given ids.
func (op Operation) Apply(ctx context.Context, pool kpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, a := range op.Acquisitions {
		if _, err := tx.Exec(
			ctx,
			`insert into "plate_acquisition" ("id", "project", "name", "channel_map_id", "finished")
			values ($1, $2, $3, $4, $5)`,
			a.Id, a.Project, a.Name, a.ChannelMapId, a.Finished,
		); err != nil {
			return err
		}
	}

	for _, p := range op.Pipelines {
		if _, err := tx.Exec(
			ctx,
			`insert into "analysis_pipelines" ("name", "meta") values ($1, $2::jsonb)`,
			p.Name, p.Meta,
		); err != nil {
			return err
		}
	}

	for _, r := range op.Rules {
		var metadata *string
		if r.Metadata != "" {
			metadata = &r.Metadata
		}
		if _, err := tx.Exec(
			ctx,
			`insert into "image_analyses_automation"
			("id", "project", "cell_line", "channel_map", "pipeline_name", "metadata")
			values ($1, $2, $3, $4, $5, $6::jsonb)`,
			r.Id, r.Project, r.CellLine, r.ChannelMapId, r.PipelineName, metadata,
		); err != nil {
			return err
		}
	}

	for _, l := range op.Ledger {
		if _, err := tx.Exec(
			ctx,
			`insert into "image_analyses_automation_submitted" ("plate_acq_id", "time") values ($1, $2)`,
			l.PlateAcqId, l.Time,
		); err != nil {
			return err
		}
	}

	for _, a := range op.Analyses {
		if _, err := tx.Exec(
			ctx,
			`insert into "image_analyses" ("id", "plate_acquisition_id", "pipeline_name", "meta")
			values ($1, $2, $3, $4::jsonb)`,
			a.Id, a.PlateAcquisitionId, a.PipelineName, a.Meta,
		); err != nil {
			return err
		}
	}

	for table, column := range map[string]string{
		"plate_acquisition":         "id",
		"image_analyses_automation": "id",
		"image_analyses":            "id",
	} {
		if _, err := tx.Exec(
			ctx,
			`select setval(
				pg_get_serial_sequence('"`+table+`"', '`+column+`'),
				coalesce((select max("`+column+`") from "`+table+`"), 0) + 1,
				false
			)`,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Count returns the number of rows in the table.
func Count(ctx context.Context, q kpool.Queryer, table string) (int64, error) {
	var n int64
	err := q.QueryRow(ctx, `select count(*) from "`+table+`"`).Scan(&n)
	return n, err
}

// LedgerOf reads plate acquisition ids recorded in the ledger, in ascending order.
func LedgerOf(ctx context.Context, q kpool.Queryer) ([]int64, error) {
	rows, err := q.Query(
		ctx, `select "plate_acq_id" from "image_analyses_automation_submitted" order by "plate_acq_id"`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
