package postgres

import (
	"context"

	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	kacq "github.com/pharmbio/pipeline-monitor/pkg/domain/acquisition/db"
	kpgacq "github.com/pharmbio/pipeline-monitor/pkg/domain/acquisition/db/postgres"
	kanalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db"
	kpganalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db/postgres"
	dbInterface "github.com/pharmbio/pipeline-monitor/pkg/domain/imagedb/db"
	kpipeline "github.com/pharmbio/pipeline-monitor/pkg/domain/pipeline/db"
	kpgpipeline "github.com/pharmbio/pipeline-monitor/pkg/domain/pipeline/db/postgres"
	krule "github.com/pharmbio/pipeline-monitor/pkg/domain/rule/db"
	kpgrule "github.com/pharmbio/pipeline-monitor/pkg/domain/rule/db/postgres"
	kschema "github.com/pharmbio/pipeline-monitor/pkg/domain/schema/db"
	kpgschema "github.com/pharmbio/pipeline-monitor/pkg/domain/schema/db/postgres"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

type imageDBPostgres struct {
	pool kpool.Pool

	acquisition kacq.AcquisitionInterface
	rule        krule.RuleInterface
	pipeline    kpipeline.PipelineInterface
	analysis    kanalysis.AnalysisInterface
	schema      kschema.SchemaInterface
}

type Config struct {
	// upper bound of connections. 0 is pgxpool's default.
	MaxConns int32

	// schema repository directory. Empty means "no repository".
	SchemaRepository string
}

type Option func(*Config) *Config

func WithMaxConns(n int32) Option {
	return func(c *Config) *Config {
		c.MaxConns = n
		return c
	}
}

func WithSchemaRepository(repository string) Option {
	return func(c *Config) *Config {
		c.SchemaRepository = repository
		return c
	}
}

// New connects to the database at url.
func New(ctx context.Context, url string, options ...Option) (dbInterface.ImageDatabase, error) {
	c := Config{}
	for _, option := range options {
		c = *option(&c)
	}

	pool, err := kpool.Connect(ctx, url, c.MaxConns)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return Attach(pool, options...), nil
}

// Attach builds the database on a pool connected already.
//
// MaxConns in options is ignored. Close closes pool.
func Attach(pool kpool.Pool, options ...Option) dbInterface.ImageDatabase {
	c := Config{}
	for _, option := range options {
		c = *option(&c)
	}

	var schema kschema.SchemaInterface = kpgschema.Null()
	if c.SchemaRepository != "" {
		schema = kpgschema.New(pool, c.SchemaRepository)
	}

	return &imageDBPostgres{
		pool:        pool,
		acquisition: kpgacq.New(pool),
		rule:        kpgrule.New(pool),
		pipeline:    kpgpipeline.New(pool),
		analysis:    kpganalysis.New(pool),
		schema:      schema,
	}
}

func (d *imageDBPostgres) Acquisition() kacq.AcquisitionInterface {
	return d.acquisition
}

func (d *imageDBPostgres) Rule() krule.RuleInterface {
	return d.rule
}

func (d *imageDBPostgres) Pipeline() kpipeline.PipelineInterface {
	return d.pipeline
}

func (d *imageDBPostgres) Analysis() kanalysis.AnalysisInterface {
	return d.analysis
}

func (d *imageDBPostgres) Schema() kschema.SchemaInterface {
	return d.schema
}

func (d *imageDBPostgres) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *imageDBPostgres) Close() error {
	d.pool.Close()
	return nil
}
