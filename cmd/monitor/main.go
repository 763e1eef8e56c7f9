package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfg_hook "github.com/pharmbio/pipeline-monitor/pkg/configs/hook"
	configs "github.com/pharmbio/pipeline-monitor/pkg/configs/monitor"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	kpg "github.com/pharmbio/pipeline-monitor/pkg/domain/imagedb/db/postgres"
	"github.com/pharmbio/pipeline-monitor/pkg/hook"
	"github.com/pharmbio/pipeline-monitor/pkg/loop/recurring"
	"github.com/pharmbio/pipeline-monitor/pkg/metrics"
	"github.com/pharmbio/pipeline-monitor/pkg/submission"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/args"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/filewatch"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/retry"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/try"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := log.Default()
	sigctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()
	ctx := sigctx

	pconfig := flag.String(
		"config", os.Getenv("PIPELINE_MONITOR_CONFIG"),
		"path to config file. If empty, database is configured by DB_* environment variables",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("PIPELINE_MONITOR_SCHEMA"),
		"schema repository path. If set, the monitor stops when the database schema is older than it",
	)
	phooks := flag.String(
		"hooks", os.Getenv("PIPELINE_MONITOR_HOOK_CONFIG"),
		"path to hook config file. It takes precedence over hooks in config file",
	)
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: interval:DURATION|forever[:COOLDOWN]|backlog).`+
			` "interval:DURATION" = wait DURATION after every cycle (default: interval of poll in config).`+
			` "forever[:COOLDOWN]" = restart immediately while acquisitions are found, otherwise wait COOLDOWN.`+
			` "backlog" = run until no acquisitions are found.`,
	)
	flag.Parse()

	conf := try.To(configs.LoadConfig(*pconfig)).OrFatal(logger)
	hookPath := *phooks
	if hookPath == "" {
		hookPath = conf.Hooks()
	}

	{
		// restart (by supervisor) when config or hooks are updated.
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig, hookPath)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	db := try.To(kpg.New(
		ctx, conf.Database().URL(),
		kpg.WithMaxConns(conf.Database().MaxConns()),
		kpg.WithSchemaRepository(*pSchemaRepo),
	)).OrFatal(logger)
	defer db.Close()

	try.To(retry.Blocking(
		ctx, retry.ExponentialBackoff(time.Second, 2, 30*time.Second),
		func() (struct{}, error) {
			if err := db.Ping(ctx); err != nil {
				logger.Printf("waiting for database (%s:%d): %v", conf.Database().Host(), conf.Database().Port(), err)
				return struct{}{}, errors.Join(retry.ErrRetry, err)
			}
			return struct{}{}, nil
		},
	)).OrFatal(logger)

	{
		ctx_, ccan := db.Schema().Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	hooks := cfg_hook.Config{}
	if hookPath != "" {
		hooks = try.To(cfg_hook.Load(hookPath)).OrFatal(logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sm := try.To(metrics.NewSubmissionMetrics(registry)).OrFatal(logger)
	pm := try.To(metrics.NewPollingMetrics(registry)).OrFatal(logger)

	engine := submission.New(
		db.Analysis(),
		submission.WithHooks(hook.Build[submission.Detail](hooks.Lifecycle)),
		submission.WithMetrics(sm),
		submission.WithLogger(byLogger(logger, Copied(), WithPrefix("[submission] "), WithTimestamp())),
	)

	p := recurring.Interval(conf.Poll().Interval())
	if policy.IsSet() {
		p = policy.Value()
	}
	manifest := LoopManifest{
		// transient errors (like losing connections) are left to the next cycle.
		Policy:  recurring.UntilFatal(p, domerr.IsTransient),
		Timeout: conf.Poll().Timeout(),
	}
	logger.Printf(`start automation loop /w policy "%s"`, manifest.Policy)

	eg, gctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})
	eg.Go(func() error {
		defer close(loopDone)
		return StartAutomationLoop(gctx, logger, db, engine, pm, manifest)
	})

	if listen := conf.Metrics().Listen(); listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		eg.Go(func() error {
			logger.Printf("metrics: listening %s", listen)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			select {
			case <-gctx.Done():
			case <-loopDone:
			}
			sctx, scan := context.WithTimeout(context.Background(), 5*time.Second)
			defer scan()
			return server.Shutdown(sctx)
		})
	}

	err := eg.Wait()
	if err == nil {
		logger.Println("automation loop is finished")
		return
	}
	if sigctx.Err() != nil {
		logger.Println("shutting down:", err)
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Fatal(err, " (loop context is cancelled by: ", context.Cause(ctx), ")")
	}
	logger.Fatal(err)
}
