// Package s3 reads job files from S3 (or S3 compatible storages like MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

const Scheme = "s3"

// IsURI reports whether s looks like "s3://...".
func IsURI(s string) bool {
	return strings.HasPrefix(s, Scheme+"://")
}

// ParseURI splits "s3://bucket/path/to/key" into bucket and key.
//
// Both of bucket and key are required.
func ParseURI(uri string) (bucket string, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", domerr.Invalid("malformed s3 uri %q: %s", uri, err)
	}
	if u.Scheme != Scheme {
		return "", "", domerr.Invalid("not a s3 uri: %q", uri)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", domerr.Invalid("s3 uri should be s3://BUCKET/KEY: %q", uri)
	}
	return bucket, key, nil
}

type Config struct {
	Region string

	// Endpoint is for S3 compatible storages. Empty means AWS.
	Endpoint  string
	PathStyle bool

	// When AccessKeyId is empty, the default credential chain is used.
	AccessKeyId     string
	SecretAccessKey string

	// HTTPClient replaces the transport. nil means the SDK's default.
	HTTPClient *http.Client
}

type Reader struct {
	client *s3.Client
}

func New(ctx context.Context, cfg Config) (*Reader, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyId != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	return &Reader{client: client}, nil
}

// Open starts reading the object at uri ("s3://bucket/key").
//
// Missing bucket or key is ErrNotFound. Caller should close the returned reader.
func (r *Reader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, xe.WrapWithNote(
				uri, fmt.Errorf("%w: %w", domerr.ErrNotFound, err),
			)
		}
		return nil, xe.WrapWithNote(uri, err)
	}
	return out.Body, nil
}
