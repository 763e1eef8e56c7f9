package mocks

import (
	"context"
	"errors"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	kdbanalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db"
	dbmock "github.com/pharmbio/pipeline-monitor/pkg/domain/internal/db/mock"
)

type AnalysisInterface struct {
	Impl struct {
		Submit        func(context.Context, domain.SubmitRequest) (domain.Submitted, error)
		MarkSubmitted func(context.Context, int64) (bool, error)
		Get           func(context.Context, int64) (domain.Analysis, []domain.SubAnalysis, error)
	}
	Calls struct {
		Submit        dbmock.CallLog[struct{ Request domain.SubmitRequest }]
		MarkSubmitted dbmock.CallLog[struct{ PlateAcqId int64 }]
		Get           dbmock.CallLog[struct{ AnalysisId int64 }]
	}
}

func NewAnalysisInterface() *AnalysisInterface {
	return &AnalysisInterface{}
}

var _ kdbanalysis.AnalysisInterface = &AnalysisInterface{}

func (m *AnalysisInterface) Submit(ctx context.Context, req domain.SubmitRequest) (domain.Submitted, error) {
	m.Calls.Submit = append(m.Calls.Submit, struct{ Request domain.SubmitRequest }{Request: req})
	if m.Impl.Submit != nil {
		return m.Impl.Submit(ctx, req)
	}
	panic(errors.New("it should not be called"))
}

func (m *AnalysisInterface) MarkSubmitted(ctx context.Context, plateAcqId int64) (bool, error) {
	m.Calls.MarkSubmitted = append(m.Calls.MarkSubmitted, struct{ PlateAcqId int64 }{PlateAcqId: plateAcqId})
	if m.Impl.MarkSubmitted != nil {
		return m.Impl.MarkSubmitted(ctx, plateAcqId)
	}
	panic(errors.New("it should not be called"))
}

func (m *AnalysisInterface) Get(ctx context.Context, analysisId int64) (domain.Analysis, []domain.SubAnalysis, error) {
	m.Calls.Get = append(m.Calls.Get, struct{ AnalysisId int64 }{AnalysisId: analysisId})
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, analysisId)
	}
	panic(errors.New("it should not be called"))
}
