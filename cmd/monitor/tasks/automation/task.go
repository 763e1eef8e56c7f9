// Package automation is the task of the polling loop.
//
// Each cycle fetches finished acquisitions which are not submitted yet,
// submits pipelines of matching rules, and marks acquisitions as submitted.
package automation

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	kdbacq "github.com/pharmbio/pipeline-monitor/pkg/domain/acquisition/db"
	kdbanalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db"
	kdbrule "github.com/pharmbio/pipeline-monitor/pkg/domain/rule/db"
	"github.com/pharmbio/pipeline-monitor/pkg/loop/recurring"
	"github.com/pharmbio/pipeline-monitor/pkg/metrics"
)

type Submitter interface {
	SubmitByRule(context.Context, domain.AutomationRule, domain.PlateAcquisition) (domain.Submitted, error)
}

// Tally counts what the loop has done so far.
type Tally struct {
	Cycles       uint64
	Acquisitions uint64
	Submitted    uint64
	Failed       uint64
}

// initial value for task
func Seed() Tally {
	return Tally{}
}

type Stores struct {
	Acquisition kdbacq.AcquisitionInterface
	Rule        kdbrule.RuleInterface
	Analysis    kdbanalysis.AnalysisInterface
}

// Task makes a cycle of the polling loop.
//
// Args:
//
// - logger
//
// - stores: for fetching acquisitions, resolving rules and marking acquisitions.
//
// - submitter: submits pipelines of rules.
//
// - m: may be nil.
//
// - timeout: budget of work for each acquisition.
// The work is not cancelled by the loop's context, so shutdown never cuts a submission in half.
//
// Return:
//
// - task: "updated" is true when it found acquisitions. Errors of fetching are returned as they are.
// Failures of each acquisition are logged, not returned.
func Task(
	logger *log.Logger,
	stores Stores,
	submitter Submitter,
	m *metrics.PollingMetrics,
	timeout time.Duration,
) recurring.Task[Tally] {
	return func(ctx context.Context, t Tally) (Tally, bool, error) {
		cycle := uuid.NewString()
		started := time.Now()
		defer func() { m.RecordCycle(time.Since(started)) }()
		t.Cycles += 1

		acqs, err := stores.Acquisition.Unsubmitted(ctx)
		m.RecordFetch(len(acqs), err)
		if err != nil {
			logger.Printf("[cycle %s] failed to fetch unsubmitted acquisitions: %v", cycle, err)
			return t, false, err
		}
		if len(acqs) == 0 {
			return t, false, nil
		}
		logger.Printf("[cycle %s] %d unsubmitted acquisitions", cycle, len(acqs))

		for _, acq := range acqs {
			if ctx.Err() != nil {
				// shutting down. the rest are left for the next run.
				logger.Printf("[cycle %s] stopped before acquisition #%d: %v", cycle, acq.Id, context.Cause(ctx))
				break
			}

			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			submitted, failed := process(wctx, logger, cycle, stores, submitter, m, acq)
			cancel()

			t.Acquisitions += 1
			t.Submitted += submitted
			t.Failed += failed
		}
		return t, true, nil
	}
}

// process submits rules for an acquisition, and marks it.
//
// Each rule is submitted on its own: a rule which fails (including one with malformed metadata)
// is counted as failed and does not stop the others. The acquisition is marked after all rules are tried.
//
// When rules can not be resolved at all (the database is unavailable),
// the acquisition is not marked, so it is tried again next cycle.
func process(
	ctx context.Context,
	logger *log.Logger,
	cycle string,
	stores Stores,
	submitter Submitter,
	m *metrics.PollingMetrics,
	acq domain.PlateAcquisition,
) (submitted uint64, failed uint64) {
	cellLine := acq.CellLine()
	rules, err := stores.Rule.Resolve(ctx, acq.Project, cellLine, acq.ChannelMapId)
	if err != nil {
		logger.Printf(
			"[cycle %s] acquisition #%d (project %s, cell line %q, channel map %s): failed to resolve rules: %v",
			cycle, acq.Id, acq.Project, cellLine, acq.ChannelMap(), err,
		)
		return 0, 0
	}

	if len(rules) == 0 {
		logger.Printf(
			"[cycle %s] acquisition #%d (project %s, cell line %q, channel map %s): no rules",
			cycle, acq.Id, acq.Project, cellLine, acq.ChannelMap(),
		)
	}
	for _, rule := range rules {
		s, err := submitter.SubmitByRule(ctx, rule, acq)
		if err != nil {
			logger.Printf(
				"[cycle %s] acquisition #%d: rule #%d (pipeline %s) failed: %v",
				cycle, acq.Id, rule.Id, rule.PipelineName, err,
			)
			failed += 1
			continue
		}
		logger.Printf(
			"[cycle %s] acquisition #%d: rule #%d (pipeline %s) -> analysis #%d",
			cycle, acq.Id, rule.Id, rule.PipelineName, s.AnalysisId,
		)
		submitted += 1
	}

	marked, err := stores.Analysis.MarkSubmitted(ctx, acq.Id)
	if err != nil {
		logger.Printf("[cycle %s] acquisition #%d: failed to mark as submitted: %v", cycle, acq.Id, err)
		return submitted, failed
	}
	if marked {
		m.RecordMarked()
	} else {
		logger.Printf("[cycle %s] acquisition #%d: already marked", cycle, acq.Id)
	}
	return submitted, failed
}
