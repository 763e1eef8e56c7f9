package domain

type Analysis struct {
	Id                 int64
	PlateAcquisitionId int64

	// copy of the pipeline name at submission.
	PipelineName string
	Meta         Meta
}

type SubAnalysis struct {
	SubId              int64
	AnalysisId         int64
	PlateAcquisitionId int64
	Meta               Meta

	// empty for the first step, or the sub id of the previous step.
	DependsOn []int64

	// same as the priority of the analysis.
	Priority *int
}

// Submitted is the result of a submission.
type Submitted struct {
	AnalysisId     int64
	SubAnalysisIds []int64
}

// DependsOn is the dependency list of a step whose predecessor is prev.
//
// It is empty (not nil) for the first step.
func DependsOn(prev *int64) []int64 {
	if prev == nil {
		return []int64{}
	}
	return []int64{*prev}
}

// Link persists a step which depends on a list of sub-analyses, and returns its new sub id.
type Link func(dependsOn []int64, meta Meta) (int64, error)

// ExpandChain creates sub-analyses for steps in order.
//
// Each step is linked to the one created just before it,
// so the created sub-analyses make a chain, not a DAG.
//
// It returns sub ids in order of steps.
// When link fails, it stops and returns the error.
func ExpandChain(steps []Meta, o Overrides, link Link) ([]int64, error) {
	next := func(prev *int64, step Meta) (int64, error) {
		return link(DependsOn(prev), o.StepMeta(step))
	}

	ids := make([]int64, 0, len(steps))
	var prev *int64
	for _, step := range steps {
		id, err := next(prev, step)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		prev = &id
	}
	return ids, nil
}
