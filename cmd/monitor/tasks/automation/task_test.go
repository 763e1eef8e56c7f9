package automation_test

import (
	"context"
	"errors"
	"io"
	"log"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pharmbio/pipeline-monitor/cmd/monitor/tasks/automation"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	acqmock "github.com/pharmbio/pipeline-monitor/pkg/domain/acquisition/db/mock"
	analysismock "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db/mock"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	rulemock "github.com/pharmbio/pipeline-monitor/pkg/domain/rule/db/mock"
	"github.com/pharmbio/pipeline-monitor/pkg/metrics"
	"github.com/pharmbio/pipeline-monitor/pkg/submission"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/pointer"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/try"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var discard = log.New(io.Discard, "", 0)

type resolveCall struct {
	Project      string
	CellLine     string
	ChannelMapId *int64
}

type env struct {
	acq      *acqmock.AcquisitionInterface
	rule     *rulemock.RuleInterface
	analysis *analysismock.AnalysisInterface
	registry *prometheus.Registry
	testee   func(context.Context, automation.Tally) (automation.Tally, bool, error)
}

func setup(t *testing.T) *env {
	t.Helper()
	e := &env{
		acq:      acqmock.NewAcquisitionInterface(),
		rule:     rulemock.NewRuleInterface(),
		analysis: analysismock.NewAnalysisInterface(),
		registry: prometheus.NewPedanticRegistry(),
	}
	m := try.To(metrics.NewPollingMetrics(e.registry)).OrFatal(t)
	e.testee = automation.Task(
		discard,
		automation.Stores{Acquisition: e.acq, Rule: e.rule, Analysis: e.analysis},
		submission.New(e.analysis),
		m,
		time.Minute,
	)
	return e
}

func (e *env) resolveCalls() []resolveCall {
	ret := []resolveCall{}
	for _, c := range e.rule.Calls.Resolve {
		ret = append(ret, resolveCall{Project: c.Project, CellLine: c.CellLine, ChannelMapId: c.ChannelMapId})
	}
	return ret
}

func (e *env) marked() []int64 {
	ret := []int64{}
	for _, c := range e.analysis.Calls.MarkSubmitted {
		ret = append(ret, c.PlateAcqId)
	}
	return ret
}

func (e *env) submitted() []string {
	ret := []string{}
	for _, c := range e.analysis.Calls.Submit {
		ret = append(ret, c.Request.PipelineName)
	}
	return ret
}

var (
	acqU2OS = domain.PlateAcquisition{Id: 1, Project: "covid", Name: "P1-U2OS-24h", ChannelMapId: pointer.Ref[int64](3)}
	acqXYZ  = domain.PlateAcquisition{Id: 2, Project: "covid", Name: "P2-XYZ-24h", ChannelMapId: pointer.Ref[int64](5)}
)

func TestTask(t *testing.T) {
	t.Run("it submits every matching rule and marks every acquisition", func(t *testing.T) {
		e := setup(t)
		e.acq.Impl.Unsubmitted = func(context.Context) ([]domain.PlateAcquisition, error) {
			return []domain.PlateAcquisition{acqU2OS, acqXYZ}, nil
		}
		e.rule.Impl.Resolve = func(ctx context.Context, project, cellLine string, channelMapId *int64) ([]domain.AutomationRule, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("acquisition work has no deadline")
			}
			if cellLine != "U2OS" {
				return []domain.AutomationRule{}, nil
			}
			return []domain.AutomationRule{
				{Id: 10, Project: project, CellLine: "*", ChannelMapId: -1, PipelineName: "missing"},
				{Id: 11, Project: project, CellLine: "U2OS", ChannelMapId: 3, PipelineName: "std"},
			}, nil
		}
		e.analysis.Impl.Submit = func(_ context.Context, req domain.SubmitRequest) (domain.Submitted, error) {
			if req.PipelineName == "missing" {
				return domain.Submitted{}, domerr.ErrNotFound
			}
			if req.SubmittedBy != domain.SubmitterAutomation || req.RunLocation != domain.RunLocationUppmax {
				t.Errorf("unexpected request: %+v", req)
			}
			return domain.Submitted{AnalysisId: 100, SubAnalysisIds: []int64{1000, 1001}}, nil
		}
		e.analysis.Impl.MarkSubmitted = func(context.Context, int64) (bool, error) {
			return true, nil
		}

		tally, updated, err := e.testee(context.Background(), automation.Seed())
		if err != nil {
			t.Fatal(err)
		}
		if !updated {
			t.Error("not updated")
		}
		if want := (automation.Tally{Cycles: 1, Acquisitions: 2, Submitted: 1, Failed: 1}); tally != want {
			t.Errorf("tally = %+v, want %+v", tally, want)
		}

		if got, want := e.resolveCalls(), []resolveCall{
			{Project: "covid", CellLine: "U2OS", ChannelMapId: pointer.Ref[int64](3)},
			{Project: "covid", CellLine: "", ChannelMapId: pointer.Ref[int64](5)},
		}; !reflect.DeepEqual(got, want) {
			t.Errorf("resolve calls = %+v, want %+v", got, want)
		}
		// a failure of a rule does not stop the others, in order of rules.
		if got, want := e.submitted(), []string{"missing", "std"}; !reflect.DeepEqual(got, want) {
			t.Errorf("submitted = %v, want %v", got, want)
		}
		if got, want := e.marked(), []int64{1, 2}; !reflect.DeepEqual(got, want) {
			t.Errorf("marked = %v, want %v", got, want)
		}

		expected := `
# HELP pipeline_monitor_poll_cycles_total Total number of poll cycles, by result of fetching acquisitions
# TYPE pipeline_monitor_poll_cycles_total counter
pipeline_monitor_poll_cycles_total{result="ok"} 1
# HELP pipeline_monitor_unsubmitted_acquisitions Number of unsubmitted finished acquisitions found by the last poll
# TYPE pipeline_monitor_unsubmitted_acquisitions gauge
pipeline_monitor_unsubmitted_acquisitions 2
# HELP pipeline_monitor_acquisitions_marked_total Total number of acquisitions recorded in the submission ledger
# TYPE pipeline_monitor_acquisitions_marked_total counter
pipeline_monitor_acquisitions_marked_total 2
`
		if err := testutil.GatherAndCompare(
			e.registry, strings.NewReader(expected),
			"pipeline_monitor_poll_cycles_total",
			"pipeline_monitor_unsubmitted_acquisitions",
			"pipeline_monitor_acquisitions_marked_total",
		); err != nil {
			t.Error(err)
		}
	})

	t.Run("a rule with malformed metadata fails alone: the other rules are submitted and the acquisition is marked", func(t *testing.T) {
		e := setup(t)
		e.acq.Impl.Unsubmitted = func(context.Context) ([]domain.PlateAcquisition, error) {
			return []domain.PlateAcquisition{acqU2OS}, nil
		}
		e.rule.Impl.Resolve = func(ctx context.Context, project, cellLine string, channelMapId *int64) ([]domain.AutomationRule, error) {
			return []domain.AutomationRule{
				{Id: 11, Project: project, CellLine: "U2OS", ChannelMapId: 3, PipelineName: "std"},
				{
					Id: 12, Project: project, CellLine: "U2OS", ChannelMapId: 3, PipelineName: "broken",
					MetaErr: domerr.Invalid(`rule #12: malformed metadata: {"priority":[1]}`),
				},
			}, nil
		}
		e.analysis.Impl.Submit = func(context.Context, domain.SubmitRequest) (domain.Submitted, error) {
			return domain.Submitted{AnalysisId: 100}, nil
		}
		e.analysis.Impl.MarkSubmitted = func(context.Context, int64) (bool, error) {
			return true, nil
		}

		tally, updated, err := e.testee(context.Background(), automation.Seed())
		if err != nil || !updated {
			t.Fatalf("(updated, err) = (%v, %v)", updated, err)
		}
		if want := (automation.Tally{Cycles: 1, Acquisitions: 1, Submitted: 1, Failed: 1}); tally != want {
			t.Errorf("tally = %+v, want %+v", tally, want)
		}
		if got, want := e.submitted(), []string{"std"}; !reflect.DeepEqual(got, want) {
			t.Errorf("submitted = %v, want %v", got, want)
		}
		if got, want := e.marked(), []int64{1}; !reflect.DeepEqual(got, want) {
			t.Errorf("marked = %v, want %v", got, want)
		}
		if n := e.rule.Calls.Resolve.Times(); n != 1 {
			t.Errorf("resolved %d times", n)
		}
	})

	t.Run("when rules can not be resolved, the acquisition is not marked", func(t *testing.T) {
		e := setup(t)
		e.acq.Impl.Unsubmitted = func(context.Context) ([]domain.PlateAcquisition, error) {
			return []domain.PlateAcquisition{acqU2OS, acqXYZ}, nil
		}
		e.rule.Impl.Resolve = func(ctx context.Context, project, cellLine string, channelMapId *int64) ([]domain.AutomationRule, error) {
			if cellLine == "U2OS" {
				return nil, domerr.Transient(errors.New("connection reset"))
			}
			return []domain.AutomationRule{}, nil
		}
		e.analysis.Impl.MarkSubmitted = func(context.Context, int64) (bool, error) {
			return true, nil
		}

		_, updated, err := e.testee(context.Background(), automation.Seed())
		if err != nil || !updated {
			t.Fatalf("(updated, err) = (%v, %v)", updated, err)
		}
		if got, want := e.marked(), []int64{2}; !reflect.DeepEqual(got, want) {
			t.Errorf("marked = %v, want %v", got, want)
		}
		if n := e.analysis.Calls.Submit.Times(); n != 0 {
			t.Errorf("submitted %d times", n)
		}
	})

	t.Run("acquisitions already marked are not errors", func(t *testing.T) {
		e := setup(t)
		e.acq.Impl.Unsubmitted = func(context.Context) ([]domain.PlateAcquisition, error) {
			return []domain.PlateAcquisition{acqXYZ}, nil
		}
		e.rule.Impl.Resolve = func(context.Context, string, string, *int64) ([]domain.AutomationRule, error) {
			return []domain.AutomationRule{}, nil
		}
		e.analysis.Impl.MarkSubmitted = func(context.Context, int64) (bool, error) {
			return false, nil
		}

		_, _, err := e.testee(context.Background(), automation.Seed())
		if err != nil {
			t.Fatal(err)
		}
		expected := `
# HELP pipeline_monitor_acquisitions_marked_total Total number of acquisitions recorded in the submission ledger
# TYPE pipeline_monitor_acquisitions_marked_total counter
pipeline_monitor_acquisitions_marked_total 0
`
		if err := testutil.GatherAndCompare(
			e.registry, strings.NewReader(expected), "pipeline_monitor_acquisitions_marked_total",
		); err != nil {
			t.Error(err)
		}
	})

	t.Run("when fetching fails, it returns the error and does nothing more", func(t *testing.T) {
		e := setup(t)
		expectedErr := domerr.Transient(errors.New("connection refused"))
		e.acq.Impl.Unsubmitted = func(context.Context) ([]domain.PlateAcquisition, error) {
			return nil, expectedErr
		}

		tally, updated, err := e.testee(context.Background(), automation.Tally{Cycles: 3})
		if !errors.Is(err, expectedErr) || !domerr.IsTransient(err) {
			t.Errorf("err = %v, want %v", err, expectedErr)
		}
		if updated {
			t.Error("updated")
		}
		if tally.Cycles != 4 {
			t.Errorf("cycles = %d, want 4", tally.Cycles)
		}
		if e.rule.Calls.Resolve.Times() != 0 || e.analysis.Calls.MarkSubmitted.Times() != 0 {
			t.Error("it goes on after failure")
		}
	})

	t.Run("when nothing is unsubmitted, it is not updated", func(t *testing.T) {
		e := setup(t)
		e.acq.Impl.Unsubmitted = func(context.Context) ([]domain.PlateAcquisition, error) {
			return []domain.PlateAcquisition{}, nil
		}

		_, updated, err := e.testee(context.Background(), automation.Seed())
		if err != nil || updated {
			t.Errorf("(updated, err) = (%v, %v), want (false, nil)", updated, err)
		}
	})

	t.Run("cancellation stops the sweep between acquisitions, not in the middle of one", func(t *testing.T) {
		e := setup(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		e.acq.Impl.Unsubmitted = func(context.Context) ([]domain.PlateAcquisition, error) {
			return []domain.PlateAcquisition{acqU2OS, acqXYZ}, nil
		}
		e.rule.Impl.Resolve = func(context.Context, string, string, *int64) ([]domain.AutomationRule, error) {
			cancel()
			return []domain.AutomationRule{
				{Id: 11, Project: "covid", CellLine: "U2OS", ChannelMapId: 3, PipelineName: "std"},
			}, nil
		}
		e.analysis.Impl.Submit = func(ctx context.Context, req domain.SubmitRequest) (domain.Submitted, error) {
			if err := ctx.Err(); err != nil {
				t.Errorf("submission is cancelled: %v", err)
			}
			return domain.Submitted{AnalysisId: 100}, nil
		}
		e.analysis.Impl.MarkSubmitted = func(ctx context.Context, _ int64) (bool, error) {
			if err := ctx.Err(); err != nil {
				t.Errorf("marking is cancelled: %v", err)
			}
			return true, nil
		}

		tally, _, err := e.testee(ctx, automation.Seed())
		if err != nil {
			t.Fatal(err)
		}
		if got, want := e.marked(), []int64{1}; !reflect.DeepEqual(got, want) {
			t.Errorf("marked = %v, want %v", got, want)
		}
		if tally.Acquisitions != 1 || tally.Submitted != 1 {
			t.Errorf("tally = %+v", tally)
		}
	})
}
