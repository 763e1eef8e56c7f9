package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgtype"
	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	dberr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors/dberrors/postgres"
	kdbrule "github.com/pharmbio/pipeline-monitor/pkg/domain/rule/db"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

type rulePG struct {
	pool kpool.Pool
}

var _ kdbrule.RuleInterface = &rulePG{}

func New(pool kpool.Pool) *rulePG {
	return &rulePG{pool: pool}
}

func (r *rulePG) Resolve(ctx context.Context, project string, cellLine string, channelMapId *int64) ([]domain.AutomationRule, error) {
	rules, err := kpool.WithConn(ctx, r.pool, func(conn kpool.Conn) ([]domain.AutomationRule, error) {
		return resolve(ctx, conn, project, cellLine, channelMapId)
	})
	if err != nil {
		return nil, xe.Wrap(dberr.AsTransient(err))
	}
	return rules, nil
}

func resolve(ctx context.Context, q kpool.Queryer, project string, cellLine string, channelMapId *int64) ([]domain.AutomationRule, error) {
	rows, err := q.Query(
		ctx,
		`
		select "id", "project", "cell_line", "channel_map", "pipeline_name", "metadata"
		from "image_analyses_automation"
		-- "channel_map" = NULL is never true: no channel map matches the wildcard only.
		where "project" = $1
			and ("cell_line" = $2 or "cell_line" = $3)
			and ("channel_map" = $4 or "channel_map" = $5)
		order by "id"
		`,
		project,
		cellLine, domain.CellLineWildcard,
		channelMapId, domain.ChannelMapWildcard,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []domain.AutomationRule{}
	for rows.Next() {
		var rule domain.AutomationRule
		var metadata pgtype.JSONB
		if err := rows.Scan(
			&rule.Id, &rule.Project, &rule.CellLine, &rule.ChannelMapId, &rule.PipelineName, &metadata,
		); err != nil {
			return nil, err
		}
		if metadata.Status == pgtype.Present {
			if err := json.Unmarshal(metadata.Bytes, &rule.Meta); err != nil {
				rule.Meta = domain.RuleMeta{}
				rule.MetaErr = domerr.Invalid("rule #%d: malformed metadata: %s", rule.Id, err)
			}
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}
