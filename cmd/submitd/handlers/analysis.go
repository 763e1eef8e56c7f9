package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	kdbanalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db"
)

type AnalysisDetail struct {
	Id                 int64         `json:"id"`
	PlateAcquisitionId int64         `json:"plate_acquisition_id"`
	PipelineName       string        `json:"pipeline_name"`
	Meta               domain.Meta   `json:"meta"`
	SubAnalyses        []SubAnalysis `json:"sub_analyses"`
}

type SubAnalysis struct {
	SubId     int64       `json:"sub_id"`
	DependsOn []int64     `json:"depends_on_sub_id"`
	Priority  *int        `json:"priority"`
	Meta      domain.Meta `json:"meta"`
}

// GetAnalysisHandler makes a handler responding an analysis and its chain of sub-analyses.
func GetAnalysisHandler(db kdbanalysis.AnalysisInterface, analysisIdKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param(analysisIdKey), 10, 64)
		if err != nil {
			return NotFound("analysis is not found", err)
		}

		an, subs, err := db.Get(c.Request().Context(), id)
		if err != nil {
			return AsHTTPError(err)
		}

		resp := AnalysisDetail{
			Id:                 an.Id,
			PlateAcquisitionId: an.PlateAcquisitionId,
			PipelineName:       an.PipelineName,
			Meta:               an.Meta,
			SubAnalyses:        make([]SubAnalysis, 0, len(subs)),
		}
		for _, s := range subs {
			resp.SubAnalyses = append(resp.SubAnalyses, SubAnalysis{
				SubId: s.SubId, DependsOn: s.DependsOn, Priority: s.Priority, Meta: s.Meta,
			})
		}
		return c.JSON(http.StatusOK, resp)
	}
}
