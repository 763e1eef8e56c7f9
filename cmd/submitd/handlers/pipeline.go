package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	kdbpipeline "github.com/pharmbio/pipeline-monitor/pkg/domain/pipeline/db"
)

type PipelineDetail struct {
	Name         string        `json:"name"`
	AnalysisMeta domain.Meta   `json:"analysis_meta"`
	SubAnalyses  []domain.Meta `json:"sub_analyses"`
}

// GetPipelineHandler makes a handler responding a pipeline definition as it is used for submission.
//
// Operators can check that the pipeline is submittable before submitting it.
// A stored definition which can not be submitted is responded with 422.
func GetPipelineHandler(db kdbpipeline.PipelineInterface, nameKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.Param(nameKey)
		def, err := db.Get(c.Request().Context(), name)
		if errors.Is(err, domerr.ErrInvalid) {
			return newError(
				http.StatusUnprocessableEntity, clientMessage(err, "pipeline can not be submitted"),
				"fix meta of the pipeline in the image database.", err,
			)
		} else if err != nil {
			return AsHTTPError(err)
		}

		steps := def.Steps
		if steps == nil {
			steps = []domain.Meta{}
		}
		return c.JSON(http.StatusOK, PipelineDetail{
			Name: def.Name, AnalysisMeta: def.AnalysisMeta, SubAnalyses: steps,
		})
	}
}
