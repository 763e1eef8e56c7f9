// Package submission is the entrypoint to submit analyses.
//
// Engine wraps the analysis store with hooks, metrics and logging.
// Every submitter (the automation, the operator API and CSV batches) goes through it.
package submission

import (
	"context"
	"errors"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	kdbanalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db"
	"github.com/pharmbio/pipeline-monitor/pkg/hook"
	"github.com/pharmbio/pipeline-monitor/pkg/metrics"
)

// Detail is the payload of hooks.
type Detail struct {
	AcquisitionId int64  `json:"plate_acquisition_id"`
	PipelineName  string `json:"pipeline_name"`
	SubmittedBy   string `json:"submitted_by,omitempty"`
	RunLocation   string `json:"run_location,omitempty"`

	// set when the submission is made by an automation rule.
	RuleId *int64 `json:"rule_id,omitempty"`

	// set for After hooks.
	AnalysisId     *int64  `json:"analysis_id,omitempty"`
	SubAnalysisIds []int64 `json:"sub_analysis_ids,omitempty"`
}

type Engine struct {
	db      kdbanalysis.AnalysisInterface
	hooks   hook.Hook[Detail, struct{}]
	metrics *metrics.SubmissionMetrics
	logger  *log.Logger
}

type Option func(*Engine) *Engine

// WithHooks sets hooks called around each submission.
//
// When a Before hook fails, the submission is not made.
func WithHooks(h hook.Hook[Detail, struct{}]) Option {
	return func(e *Engine) *Engine {
		e.hooks = h
		return e
	}
}

func WithMetrics(m *metrics.SubmissionMetrics) Option {
	return func(e *Engine) *Engine {
		e.metrics = m
		return e
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) *Engine {
		e.logger = l
		return e
	}
}

func New(db kdbanalysis.AnalysisInterface, options ...Option) *Engine {
	e := &Engine{
		db:     db,
		hooks:  hook.None[Detail]{},
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		e = opt(e)
	}
	return e
}

// Submit submits a pipeline for an acquisition.
//
// Errors of the store are returned as they are.
// When the Before hook fails, it returns an error satisfying hook.ErrHookFailed.
func (e *Engine) Submit(ctx context.Context, req domain.SubmitRequest) (domain.Submitted, error) {
	return e.submit(ctx, req, nil)
}

// SubmitByRule submits the pipeline of an automation rule for acq.
//
// A rule with malformed metadata (MetaErr) is not submitted; its MetaErr is returned.
func (e *Engine) SubmitByRule(ctx context.Context, rule domain.AutomationRule, acq domain.PlateAcquisition) (domain.Submitted, error) {
	id := rule.Id
	if rule.MetaErr != nil {
		e.logger.Printf(
			"pipeline %s is not submitted for acquisition #%d%s: %v",
			rule.PipelineName, acq.Id, by(&id), rule.MetaErr,
		)
		e.metrics.RecordSubmission(0, 0, rule.MetaErr)
		return domain.Submitted{}, rule.MetaErr
	}
	return e.submit(ctx, rule.SubmitRequest(acq), &id)
}

func (e *Engine) submit(ctx context.Context, req domain.SubmitRequest, ruleId *int64) (domain.Submitted, error) {
	detail := Detail{
		AcquisitionId: req.AcquisitionId,
		PipelineName:  req.PipelineName,
		SubmittedBy:   req.SubmittedBy,
		RunLocation:   req.RunLocation,
		RuleId:        ruleId,
	}

	if _, err := e.hooks.Before(ctx, detail); err != nil {
		e.logger.Printf(
			"before-hook failed. pipeline %s is not submitted for acquisition #%d%s: %v",
			req.PipelineName, req.AcquisitionId, by(ruleId), err,
		)
		e.metrics.RecordSubmission(0, 0, err)
		return domain.Submitted{}, err
	}

	started := time.Now()
	submitted, err := e.db.Submit(ctx, req)
	e.metrics.RecordSubmission(time.Since(started), len(submitted.SubAnalysisIds), err)
	if err != nil {
		e.logger.Printf(
			"failed to submit pipeline %s for acquisition #%d%s: %v",
			req.PipelineName, req.AcquisitionId, by(ruleId), err,
		)
		return domain.Submitted{}, err
	}

	e.logger.Printf(
		"submitted analysis #%d (pipeline %s, acquisition #%d%s, %d sub-analyses)",
		submitted.AnalysisId, req.PipelineName, req.AcquisitionId, by(ruleId), len(submitted.SubAnalysisIds),
	)

	analysisId := submitted.AnalysisId
	detail.AnalysisId = &analysisId
	detail.SubAnalysisIds = submitted.SubAnalysisIds
	if err := e.hooks.After(ctx, detail); err != nil {
		e.logger.Printf("after-hook failed for analysis #%d: %v", submitted.AnalysisId, err)
	}

	return submitted, nil
}

func by(ruleId *int64) string {
	if ruleId == nil {
		return ""
	}
	return ", rule #" + strconv.FormatInt(*ruleId, 10)
}

// IsHookFailure reports whether err is a failure of a Before hook.
func IsHookFailure(err error) bool {
	return errors.Is(err, hook.ErrHookFailed)
}
