package batch

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	"github.com/pharmbio/pipeline-monitor/pkg/loop"
)

type Submitter interface {
	Submit(context.Context, domain.SubmitRequest) (domain.Submitted, error)
}

// Summary is the result of a batch.
type Summary struct {
	RunId     string
	Submitted int
	Skipped   int
	Failed    int

	// ids of analyses created, in order of rows.
	AnalysisIds []int64
}

type Runner struct {
	submitter Submitter
	interval  time.Duration
	logger    *log.Logger
}

type Option func(*Runner) *Runner

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) *Runner {
		r.logger = l
		return r
	}
}

// NewRunner creates a Runner waiting interval between submissions.
//
// Negative interval is ErrInvalid. 0 is allowed.
func NewRunner(s Submitter, interval time.Duration, options ...Option) (*Runner, error) {
	if interval < 0 {
		return nil, domerr.Invalid("interval should not be negative: %s", interval)
	}
	r := &Runner{
		submitter: s,
		interval:  interval,
		logger:    log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		r = opt(r)
	}
	return r, nil
}

type progress struct {
	next    int
	summary Summary
}

// Run submits rows in order.
//
// It waits the interval between submitted rows, not before the first nor after the last.
// Rows with Err are skipped without waiting. A failed submission is logged and the batch goes on.
//
// When ctx is done while waiting, it stops and returns the summary so far with ctx.Err().
// A submission in progress is not interrupted by ctx.
func (r *Runner) Run(ctx context.Context, rows []Row) (Summary, error) {
	runId := uuid.NewString()
	r.logger.Printf("[batch %s] %d rows, interval %s", runId, len(rows), r.interval)

	init := progress{summary: Summary{RunId: runId, AnalysisIds: []int64{}}}
	init = r.skipInvalid(runId, rows, init)
	if len(rows) <= init.next {
		r.logger.Printf("[batch %s] nothing to submit", runId)
		return r.finish(init.summary, nil)
	}

	p, err := loop.Start(ctx, init, func(ctx context.Context, p progress) (progress, loop.Next) {
		row := rows[p.next]
		p.next += 1

		req := row.Request
		r.logger.Printf(
			"[batch %s] line %d: submitting pipeline %s (tool version %s) for acquisition #%d",
			runId, row.Line, req.PipelineName, req.ToolVersion, req.AcquisitionId,
		)
		submitted, err := r.submitter.Submit(context.WithoutCancel(ctx), req)
		if err != nil {
			r.logger.Printf(
				"[batch %s] line %d: failed to submit pipeline %s for acquisition #%d: %v",
				runId, row.Line, req.PipelineName, req.AcquisitionId, err,
			)
			p.summary.Failed += 1
		} else {
			r.logger.Printf("[batch %s] line %d: analysis #%d", runId, row.Line, submitted.AnalysisId)
			p.summary.Submitted += 1
			p.summary.AnalysisIds = append(p.summary.AnalysisIds, submitted.AnalysisId)
		}

		p = r.skipInvalid(runId, rows, p)
		if len(rows) <= p.next {
			return p, loop.Break(nil)
		}
		r.logger.Printf("[batch %s] next submission in %s", runId, r.interval)
		return p, loop.Continue(r.interval)
	})
	return r.finish(p.summary, err)
}

// skipInvalid advances p over rows with Err.
func (r *Runner) skipInvalid(runId string, rows []Row, p progress) progress {
	for p.next < len(rows) && rows[p.next].Err != nil {
		row := rows[p.next]
		r.logger.Printf("[batch %s] line %d: skipped: %v", runId, row.Line, row.Err)
		p.summary.Skipped += 1
		p.next += 1
	}
	return p
}

func (r *Runner) finish(s Summary, err error) (Summary, error) {
	if err != nil {
		r.logger.Printf(
			"[batch %s] stopped (%v): %d submitted, %d skipped, %d failed",
			s.RunId, err, s.Submitted, s.Skipped, s.Failed,
		)
		return s, err
	}
	r.logger.Printf(
		"[batch %s] finished: %d submitted, %d skipped, %d failed",
		s.RunId, s.Submitted, s.Skipped, s.Failed,
	)
	return s, nil
}
