package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	configs "github.com/pharmbio/pipeline-monitor/pkg/configs/monitor"
	kpg "github.com/pharmbio/pipeline-monitor/pkg/domain/imagedb/db/postgres"
	"github.com/pharmbio/pipeline-monitor/pkg/metrics"
	"github.com/pharmbio/pipeline-monitor/pkg/submission"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	pconfig := flag.String(
		"config", os.Getenv("PIPELINE_MONITOR_CONFIG"),
		"path to config file. If empty, database is configured by DB_* environment variables",
	)
	schemaRepo := flag.String(
		"schema-repo", os.Getenv("PIPELINE_MONITOR_SCHEMA"), "schema repository path",
	)
	loglevel := flag.String("loglevel", "warn", "log level. debug|info|warn|error|off")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conf, err := configs.LoadConfig(*pconfig)
	if err != nil {
		panic(err)
	}

	db, err := kpg.New(
		ctx, conf.Database().URL(),
		kpg.WithMaxConns(conf.Database().MaxConns()),
		kpg.WithSchemaRepository(*schemaRepo),
	)
	if err != nil {
		panic(err)
	}
	{
		ctx_, ccan := db.Schema().Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sm, err := metrics.NewSubmissionMetrics(registry)
	if err != nil {
		panic(err)
	}

	engine := submission.New(db.Analysis(), submission.WithMetrics(sm))

	server := BuildServer(engine, db.Analysis(), db.Pipeline(), registry, *loglevel)
	for _, r := range server.Routes() {
		server.Logger.Debugf("- mount handler: %s %s", strings.ToUpper(r.Method), r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := server.Start(fmt.Sprintf(":%d", conf.Submitd().Port())); err != nil && err != http.ErrServerClosed {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done():
		// signals end the server with status 0. schema changes do not.
		if cause := context.Cause(ctx); cause != context.Canceled {
			server.Logger.Infof("context has been done: %s, cause: %s", ctx.Err(), cause)
			exit = 1
		}
	case err := <-ch:
		if err != nil {
			server.Logger.Error("server stops with error:", err)
			exit = 1
		}
	}

	server.Logger.Info("shutting down...")
	qctx, qcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer qcancel()
	if err := server.Shutdown(qctx); err != nil {
		server.Logger.Errorf("shutdown with error: %+v", err)
		exit = 1
	}
	db.Close()
	os.Exit(exit)
}
