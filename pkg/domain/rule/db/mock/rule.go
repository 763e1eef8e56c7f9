package mocks

import (
	"context"
	"errors"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	dbmock "github.com/pharmbio/pipeline-monitor/pkg/domain/internal/db/mock"
	kdbrule "github.com/pharmbio/pipeline-monitor/pkg/domain/rule/db"
)

type RuleInterface struct {
	Impl struct {
		Resolve func(ctx context.Context, project string, cellLine string, channelMapId *int64) ([]domain.AutomationRule, error)
	}
	Calls struct {
		Resolve dbmock.CallLog[struct {
			Project      string
			CellLine     string
			ChannelMapId *int64
		}]
	}
}

func NewRuleInterface() *RuleInterface {
	return &RuleInterface{}
}

var _ kdbrule.RuleInterface = &RuleInterface{}

func (m *RuleInterface) Resolve(ctx context.Context, project string, cellLine string, channelMapId *int64) ([]domain.AutomationRule, error) {
	m.Calls.Resolve = append(m.Calls.Resolve, struct {
		Project      string
		CellLine     string
		ChannelMapId *int64
	}{
		Project: project, CellLine: cellLine, ChannelMapId: channelMapId,
	})
	if m.Impl.Resolve != nil {
		return m.Impl.Resolve(ctx, project, cellLine, channelMapId)
	}
	panic(errors.New("it should not be called"))
}
