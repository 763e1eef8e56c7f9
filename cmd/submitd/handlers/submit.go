package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
)

type Submitter interface {
	Submit(context.Context, domain.SubmitRequest) (domain.Submitted, error)
}

// SubmitRequest is the body of submission, as a form or JSON.
type SubmitRequest struct {
	PlateAcquisition textParam   `json:"plate_acquisition" form:"plate_acquisition"`
	PipelineName     textParam   `json:"analysis_pipeline_name" form:"analysis_pipeline_name"`
	ToolVersion      textParam   `json:"cellprofiler_version" form:"cellprofiler_version"`
	WellFilter       filterParam `json:"well_filter" form:"well_filter"`
	SiteFilter       filterParam `json:"site_filter" form:"site_filter"`
	ZPlane           textParam   `json:"z_plane" form:"z_plane"`
	Priority         textParam   `json:"priority" form:"priority"`
	RunOnUppmax      flagParam   `json:"run_on_uppmax" form:"run_on_uppmax"`
	RunOnPharmbio    flagParam   `json:"run_on_pharmbio" form:"run_on_pharmbio"`
	RunOnPelle       flagParam   `json:"run_on_pelle" form:"run_on_pelle"`
	RunOnHpcDev      flagParam   `json:"run_on_hpcdev" form:"run_on_hpcdev"`
	RunLocation      textParam   `json:"run_location" form:"run_location"`
	SubmittedBy      textParam   `json:"submitted_by" form:"submitted_by"`
}

// Request converts r into a request for the submission engine.
//
// Site filter can be written with ranges, like "1-3,5".
func (r SubmitRequest) Request() (domain.SubmitRequest, error) {
	acq, err := strconv.ParseInt(string(r.PlateAcquisition), 10, 64)
	if err != nil || acq <= 0 {
		return domain.SubmitRequest{}, domerr.Invalid(
			"plate_acquisition should be a positive number: %q", r.PlateAcquisition,
		)
	}
	if r.PipelineName == "" {
		return domain.SubmitRequest{}, domerr.Invalid("analysis_pipeline_name is required")
	}

	well, err := domain.ParseFilter(string(r.WellFilter))
	if err != nil {
		return domain.SubmitRequest{}, err
	}
	site, err := domain.ParseFilter(string(r.SiteFilter))
	if err != nil {
		return domain.SubmitRequest{}, err
	}
	if site, err = site.ExpandRanges(); err != nil {
		return domain.SubmitRequest{}, err
	}

	return domain.SubmitRequest{
		AcquisitionId: acq,
		PipelineName:  string(r.PipelineName),
		ToolVersion:   string(r.ToolVersion),
		WellFilter:    well,
		SiteFilter:    site,
		ZPlane:        string(r.ZPlane),
		PriorityText:  string(r.Priority),
		Flags: domain.RunFlags{
			Uppmax:   bool(r.RunOnUppmax),
			Pharmbio: bool(r.RunOnPharmbio),
			Pelle:    bool(r.RunOnPelle),
			HpcDev:   bool(r.RunOnHpcDev),
		},
		RunLocation: string(r.RunLocation),
		SubmittedBy: string(r.SubmittedBy),
	}, nil
}

// SubmitResponse is the body of a successful submission.
type SubmitResponse struct {
	AnalysisId     int64   `json:"analysis_id"`
	SubAnalysisIds []int64 `json:"sub_analysis_ids"`
}

// SubmitHandler makes a handler translating a request into one submission.
//
// Responses:
//
// - 200: submitted. body is SubmitResponse.
//
// - 400: malformed request, or invalid pipeline definition.
//
// - 404: pipeline or plate acquisition is not found.
//
// - 503: the database is unavailable for now.
//
// - 500: otherwise.
func SubmitHandler(submitter Submitter) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := SubmitRequest{}
		if err := c.Bind(&body); err != nil {
			return BadRequest("malformed request", err)
		}
		req, err := body.Request()
		if err != nil {
			return BadRequest(clientMessage(err, "invalid request"), err)
		}

		submitted, err := submitter.Submit(c.Request().Context(), req)
		if err != nil {
			return AsHTTPError(err)
		}

		subIds := submitted.SubAnalysisIds
		if subIds == nil {
			subIds = []int64{}
		}
		return c.JSON(http.StatusOK, SubmitResponse{
			AnalysisId: submitted.AnalysisId, SubAnalysisIds: subIds,
		})
	}
}
