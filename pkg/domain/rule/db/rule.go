package db

import (
	"context"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
)

type RuleInterface interface {
	// Resolve finds automation rules applying to an acquisition.
	//
	// A rule applies when its project equals project,
	// its cell line is cellLine or the wildcard,
	// and its channel map is channelMapId or the wildcard.
	// When channelMapId is nil, only rules with the wildcard channel map apply.
	//
	// Returns
	//
	// - []domain.AutomationRule: ordered by rule id, ascending. Empty if none applies.
	// A rule with malformed metadata is returned too, with MetaErr (ErrInvalid) set,
	// so that the others are not blocked by it.
	//
	// - error: failures of the database.
	Resolve(ctx context.Context, project string, cellLine string, channelMapId *int64) ([]domain.AutomationRule, error)
}
