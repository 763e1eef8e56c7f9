package main

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pharmbio/pipeline-monitor/cmd/submitd/handlers"
	kdbanalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db"
	kdbpipeline "github.com/pharmbio/pipeline-monitor/pkg/domain/pipeline/db"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/echoutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const API_ROOT = "/api"

func api(subpath string) string {
	return API_ROOT + "/" + strings.TrimPrefix(subpath, "/")
}

func BuildServer(
	submitter handlers.Submitter,
	analyses kdbanalysis.AnalysisInterface,
	pipelines kdbpipeline.PipelineInterface,
	registry *prometheus.Registry,
	loglevel string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	if err := echoutil.SetLevel(e, loglevel); err != nil {
		e.Logger.Warn(err)
	}

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		e.Logger.Error(err)
	}

	e.Use(echoutil.LogHandlerFunc)

	e.POST(api("analysis/submit"), handlers.SubmitHandler(submitter))
	e.GET(api("analysis/:analysisId"), handlers.GetAnalysisHandler(analyses, "analysisId"))
	e.GET(api("pipeline/:pipelineName"), handlers.GetPipelineHandler(pipelines, "pipelineName"))
	e.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	))

	return e
}
