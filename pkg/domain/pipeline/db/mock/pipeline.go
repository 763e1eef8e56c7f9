package mocks

import (
	"context"
	"errors"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	dbmock "github.com/pharmbio/pipeline-monitor/pkg/domain/internal/db/mock"
	kdbpipeline "github.com/pharmbio/pipeline-monitor/pkg/domain/pipeline/db"
)

type PipelineInterface struct {
	Impl struct {
		Get func(ctx context.Context, name string) (domain.PipelineDefinition, error)
	}
	Calls struct {
		Get dbmock.CallLog[struct{ Name string }]
	}
}

func NewPipelineInterface() *PipelineInterface {
	return &PipelineInterface{}
}

var _ kdbpipeline.PipelineInterface = &PipelineInterface{}

func (m *PipelineInterface) Get(ctx context.Context, name string) (domain.PipelineDefinition, error) {
	m.Calls.Get = append(m.Calls.Get, struct{ Name string }{Name: name})
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, name)
	}
	panic(errors.New("it should not be called"))
}
