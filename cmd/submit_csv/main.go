// submit_csv submits analyses listed in a CSV file, one row per interval.
//
//	submit_csv [-config path] [-interval 240m] <path/to/jobs.csv | s3://bucket/key>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pharmbio/pipeline-monitor/pkg/batch"
	configs "github.com/pharmbio/pipeline-monitor/pkg/configs/monitor"
	blobs3 "github.com/pharmbio/pipeline-monitor/pkg/conn/blob/s3"
	kpg "github.com/pharmbio/pipeline-monitor/pkg/domain/imagedb/db/postgres"
	"github.com/pharmbio/pipeline-monitor/pkg/submission"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/try"
)

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	pconfig := flag.String(
		"config", os.Getenv("PIPELINE_MONITOR_CONFIG"),
		"path to config file. If empty, database is configured by DB_* environment variables",
	)
	pinterval := flag.Duration(
		"interval", configs.DefaultBatchInterval,
		"wait between submissions. If not set, interval of batch in config is used",
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <path/to/jobs.csv | s3://bucket/key>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	source := flag.Arg(0)

	conf := try.To(configs.LoadConfig(*pconfig)).OrFatal(logger)
	interval := conf.Batch().Interval()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "interval" {
			interval = *pinterval
		}
	})
	if interval < 0 {
		logger.Fatalf("invalid -interval: %s (must be non-negative)", interval)
	}

	logger.Printf("reading jobs from %s", source)
	rows := try.To(readJobs(ctx, conf, source)).OrFatal(logger)
	if len(rows) == 0 {
		logger.Println("no jobs found. exiting")
		return
	}

	db := try.To(kpg.New(
		ctx, conf.Database().URL(), kpg.WithMaxConns(conf.Database().MaxConns()),
	)).OrFatal(logger)
	defer db.Close()

	engine := submission.New(db.Analysis(), submission.WithLogger(logger))
	runner := try.To(batch.NewRunner(engine, interval, batch.WithLogger(logger))).OrFatal(logger)

	summary, err := runner.Run(ctx, rows)
	if err != nil {
		logger.Fatalf("batch %s is interrupted: %v", summary.RunId, err)
	}
	if 0 < summary.Failed {
		os.Exit(1)
	}
}

// readJobs reads rows from a local file or an S3 object.
func readJobs(ctx context.Context, conf *configs.Config, source string) ([]batch.Row, error) {
	var r io.ReadCloser
	if blobs3.IsURI(source) {
		s3conf := blobs3.Config{}
		if c := conf.S3(); c != nil {
			id, secret, _ := c.StaticCredentials()
			s3conf = blobs3.Config{
				Region:          c.Region(),
				Endpoint:        c.Endpoint(),
				PathStyle:       c.PathStyle(),
				AccessKeyId:     id,
				SecretAccessKey: secret,
			}
		}
		reader, err := blobs3.New(ctx, s3conf)
		if err != nil {
			return nil, err
		}
		obj, err := reader.Open(ctx, source)
		if err != nil {
			return nil, err
		}
		r = obj
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, err
		}
		r = f
	}
	defer r.Close()
	return batch.Parse(r)
}
