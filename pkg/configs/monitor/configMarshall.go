package monitor

import (
	"fmt"
	"strconv"
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

const (
	defaultDatabaseHost  = "localhost"
	defaultDatabasePort  = 5432
	defaultPollInterval  = 10 * time.Second
	defaultPollTimeout   = 5 * time.Minute
	DefaultBatchInterval = 240 * time.Minute
	defaultSubmitdPort   = 8080
)

type ConfigMarshall struct {
	Database *DatabaseConfigMarshall `yaml:"database"`
	Poll     *PollConfigMarshall     `yaml:"poll,omitempty"`
	Batch    *BatchConfigMarshall    `yaml:"batch,omitempty"`
	Metrics  *MetricsConfigMarshall  `yaml:"metrics,omitempty"`
	Submitd  *SubmitdConfigMarshall  `yaml:"submitd,omitempty"`
	S3       *S3ConfigMarshall       `yaml:"s3,omitempty"`
	Hooks    string                  `yaml:"hooks,omitempty"`
}

var _ Marshalled[*Config] = &ConfigMarshall{}

func (c *ConfigMarshall) trySeal(path string) *Config {
	var s3 *S3Config
	if c.S3 != nil {
		s3 = c.S3.trySeal(path + ".s3")
	}
	return &Config{
		database: nonnil(c.Database, path+".database").trySeal(path + ".database"),
		poll:     orEmpty(c.Poll).trySeal(path + ".poll"),
		batch:    orEmpty(c.Batch).trySeal(path + ".batch"),
		metrics:  orEmpty(c.Metrics).trySeal(path + ".metrics"),
		submitd:  orEmpty(c.Submitd).trySeal(path + ".submitd"),
		s3:       s3,
		hooks:    c.Hooks,
	}
}

type DatabaseConfigMarshall struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	MaxConns int32  `yaml:"maxConns,omitempty"`
}

// overrideByEnv replaces values with environment variables which are set.
//
// DB_PORT should be a number.
func (d *DatabaseConfigMarshall) overrideByEnv(getenv func(string) string) error {
	if v := getenv("DB_HOSTNAME"); v != "" {
		d.Host = v
	}
	if v := getenv("DB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT should be a number: %w", err)
		}
		d.Port = p
	}
	if v := getenv("DB_NAME"); v != "" {
		d.Name = v
	}
	if v := getenv("DB_USER"); v != "" {
		d.User = v
	}
	if v := getenv("DB_PASS"); v != "" {
		d.Password = v
	}
	return nil
}

func (d *DatabaseConfigMarshall) trySeal(path string) *DatabaseConfig {
	host := d.Host
	if host == "" {
		host = defaultDatabaseHost
	}
	port := d.Port
	if port == 0 {
		port = defaultDatabasePort
	}
	if port < 0 || 65535 < port {
		panic(fmt.Sprintf("%s.port is out of range: %d", path, port))
	}
	if d.MaxConns < 0 {
		panic(fmt.Sprintf("%s.maxConns should not be negative: %d", path, d.MaxConns))
	}
	return &DatabaseConfig{
		host:     host,
		port:     port,
		name:     required(d.Name, path+".name"),
		user:     required(d.User, path+".user"),
		password: d.Password,
		maxConns: d.MaxConns,
	}
}

type PollConfigMarshall struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

func (p *PollConfigMarshall) trySeal(path string) *PollConfig {
	return &PollConfig{
		interval: positiveOr(p.Interval, defaultPollInterval, path+".interval"),
		timeout:  positiveOr(p.Timeout, defaultPollTimeout, path+".timeout"),
	}
}

type BatchConfigMarshall struct {
	Interval *time.Duration `yaml:"interval,omitempty"`
}

func (b *BatchConfigMarshall) trySeal(path string) *BatchConfig {
	interval := DefaultBatchInterval
	if b.Interval != nil {
		// 0 is allowed: no wait between rows.
		if *b.Interval < 0 {
			panic(fmt.Sprintf("%s.interval should not be negative: %s", path, *b.Interval))
		}
		interval = *b.Interval
	}
	return &BatchConfig{interval: interval}
}

type MetricsConfigMarshall struct {
	Listen string `yaml:"listen,omitempty"`
}

func (m *MetricsConfigMarshall) trySeal(string) *MetricsConfig {
	return &MetricsConfig{listen: m.Listen}
}

type SubmitdConfigMarshall struct {
	Port int32 `yaml:"port,omitempty"`
}

func (s *SubmitdConfigMarshall) trySeal(path string) *SubmitdConfig {
	port := s.Port
	if port == 0 {
		port = defaultSubmitdPort
	}
	if port < 0 || 65535 < port {
		panic(fmt.Sprintf("%s.port is out of range: %d", path, port))
	}
	return &SubmitdConfig{port: port}
}

type S3ConfigMarshall struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	PathStyle       bool   `yaml:"pathStyle,omitempty"`
	AccessKeyId     string `yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `yaml:"secretAccessKey,omitempty"`
}

func (s *S3ConfigMarshall) trySeal(path string) *S3Config {
	if (s.AccessKeyId == "") != (s.SecretAccessKey == "") {
		panic(path + ".accessKeyId and .secretAccessKey should be set together")
	}
	return &S3Config{
		region:          required(s.Region, path+".region"),
		endpoint:        s.Endpoint,
		pathStyle:       s.PathStyle,
		accessKeyId:     s.AccessKeyId,
		secretAccessKey: s.SecretAccessKey,
	}
}

func orEmpty[T any](v *T) *T {
	if v == nil {
		return new(T)
	}
	return v
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func positiveOr(d time.Duration, def time.Duration, path string) time.Duration {
	if d < 0 {
		panic(fmt.Sprintf("%s should not be negative: %s", path, d))
	}
	if d == 0 {
		return def
	}
	return d
}
