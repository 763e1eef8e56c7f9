package mocks

import (
	"context"
	"errors"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	kdbacq "github.com/pharmbio/pipeline-monitor/pkg/domain/acquisition/db"
	dbmock "github.com/pharmbio/pipeline-monitor/pkg/domain/internal/db/mock"
)

type AcquisitionInterface struct {
	Impl struct {
		Unsubmitted func(context.Context) ([]domain.PlateAcquisition, error)
	}
	Calls struct {
		Unsubmitted dbmock.CallLog[struct{}]
	}
}

func NewAcquisitionInterface() *AcquisitionInterface {
	return &AcquisitionInterface{}
}

var _ kdbacq.AcquisitionInterface = &AcquisitionInterface{}

func (m *AcquisitionInterface) Unsubmitted(ctx context.Context) ([]domain.PlateAcquisition, error) {
	m.Calls.Unsubmitted = append(m.Calls.Unsubmitted, struct{}{})
	if m.Impl.Unsubmitted != nil {
		return m.Impl.Unsubmitted(ctx)
	}
	panic(errors.New("it should not be called"))
}
