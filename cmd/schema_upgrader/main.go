package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"

	configs "github.com/pharmbio/pipeline-monitor/pkg/configs/monitor"
	kpg "github.com/pharmbio/pipeline-monitor/pkg/domain/imagedb/db/postgres"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Config string `flag:"config" help:"The path to config file. If empty, the database is configured by DB_* environment variables."`
	Schema string `flag:"schema" help:"The path to the schema repository directory."`
	DryRun bool   `flag:"dry-run" help:"Print versions of the database and the repository without upgrading."`
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer cancel()

	cmd := try.To(flarc.NewCommand(
		"database schema upgrader for pipeline-monitor",
		Flag{
			Config: os.Getenv("PIPELINE_MONITOR_CONFIG"),
			Schema: os.Getenv("PIPELINE_MONITOR_SCHEMA"),
			DryRun: false,
		},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[Flag], _ []any) error {
			flags := c.Flags()
			if flags.Schema == "" {
				return errors.New("schema repository is not given (--schema)")
			}

			conf, err := configs.LoadConfig(flags.Config)
			if err != nil {
				return err
			}

			db, err := kpg.New(
				ctx, conf.Database().URL(),
				kpg.WithMaxConns(1),
				kpg.WithSchemaRepository(flags.Schema),
			)
			if err != nil {
				return err
			}
			defer db.Close()

			before, err := db.Schema().Version(ctx)
			if err != nil {
				return err
			}
			if flags.DryRun {
				logger.Printf("schema version: %d (repository: %s)", before, flags.Schema)
				return nil
			}

			if err := db.Schema().Upgrade(ctx); err != nil {
				return err
			}
			after, err := db.Schema().Version(ctx)
			if err != nil {
				return err
			}
			if before == after {
				logger.Printf("schema is up to date (version %d)", after)
			} else {
				logger.Printf("schema is upgraded: version %d -> %d", before, after)
			}
			return nil
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
