package domain

import (
	"bytes"
	"encoding/json"

	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
)

// PipelineDefinition is a template of analyses.
type PipelineDefinition struct {
	Name string

	// Steps are templates of sub-analyses, in order of execution.
	Steps []Meta

	// AnalysisMeta is the template of the analysis.
	AnalysisMeta Meta
}

type pipelineMeta struct {
	SubAnalyses  *[]json.RawMessage `json:"sub_analyses"`
	AnalysisMeta json.RawMessage    `json:"analysis_meta"`
}

// ParsePipeline reads the stored meta of a pipeline.
//
// meta should be a JSON object like
//
//	{"sub_analyses": [{"sub_type": "qc", ...}, ...], "analysis_meta": {...}}
//
// "sub_analyses" is required and each step should have "sub_type".
// "analysis_meta" is optional.
//
// Otherwise, it returns ErrInvalid.
func ParsePipeline(name string, meta []byte) (PipelineDefinition, error) {
	if _, err := decodeObject(meta); err != nil || isNull(meta) {
		return PipelineDefinition{}, domerr.Invalid("pipeline %s: meta should be a JSON object", name)
	}

	pm := pipelineMeta{}
	if err := json.Unmarshal(meta, &pm); err != nil {
		return PipelineDefinition{}, domerr.Invalid("pipeline %s: %s", name, err)
	}
	if pm.SubAnalyses == nil {
		return PipelineDefinition{}, domerr.Invalid("pipeline %s: sub_analyses is missing", name)
	}

	def := PipelineDefinition{Name: name, Steps: make([]Meta, 0, len(*pm.SubAnalyses))}
	for i, raw := range *pm.SubAnalyses {
		if !isObject(raw) {
			return PipelineDefinition{}, domerr.Invalid("pipeline %s: sub_analyses[%d] should be an object", name, i)
		}
		step := Meta{}
		if err := json.Unmarshal(raw, &step); err != nil {
			return PipelineDefinition{}, domerr.Invalid("pipeline %s: sub_analyses[%d]: %s", name, i, err)
		}
		if step.SubType() == "" {
			return PipelineDefinition{}, domerr.Invalid("pipeline %s: sub_analyses[%d] has no sub_type", name, i)
		}
		def.Steps = append(def.Steps, step)
	}

	if len(pm.AnalysisMeta) != 0 {
		if !isNull(pm.AnalysisMeta) && !isObject(pm.AnalysisMeta) {
			return PipelineDefinition{}, domerr.Invalid("pipeline %s: analysis_meta should be an object", name)
		}
		if err := json.Unmarshal(pm.AnalysisMeta, &def.AnalysisMeta); err != nil {
			return PipelineDefinition{}, domerr.Invalid("pipeline %s: analysis_meta: %s", name, err)
		}
	}

	return def, nil
}

func isObject(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	return 0 < len(t) && t[0] == '{'
}
