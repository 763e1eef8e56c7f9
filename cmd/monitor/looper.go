package main

import (
	"context"
	"log"
	"time"

	"github.com/pharmbio/pipeline-monitor/cmd/monitor/tasks/automation"
	kdb "github.com/pharmbio/pipeline-monitor/pkg/domain/imagedb/db"
	"github.com/pharmbio/pipeline-monitor/pkg/loop"
	"github.com/pharmbio/pipeline-monitor/pkg/loop/recurring"
	"github.com/pharmbio/pipeline-monitor/pkg/metrics"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

func WithTimestamp() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetFlags(l.Flags() | log.Ldate | log.Ltime | log.Lmicroseconds)
		return l
	}
}

// monitor logs the start and the end of each cycle of task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X", counter)
		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s with value = %+v",
				counter, time.Since(timestamp), next, ret,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Manifest for starting a loop, which determines how the loop should behave.
type LoopManifest struct {
	Policy recurring.Policy

	// budget of work for each acquisition
	Timeout time.Duration
}

// StartAutomationLoop polls acquisitions and submits pipelines until ctx is done
// or the policy breaks the loop.
func StartAutomationLoop(
	ctx context.Context,
	logger *log.Logger,
	db kdb.ImageDatabase,
	submitter automation.Submitter,
	m *metrics.PollingMetrics,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[automation loop] "), WithTimestamp())
	_, err := loop.Start(
		ctx, automation.Seed(),
		monitor(
			l,
			automation.Task(
				l,
				automation.Stores{
					Acquisition: db.Acquisition(),
					Rule:        db.Rule(),
					Analysis:    db.Analysis(),
				},
				submitter,
				m,
				manifest.Timeout,
			).Applied(manifest.Policy),
		),
	)
	return err
}
