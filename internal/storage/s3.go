package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config holds the connection settings for an S3-compatible object store.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Client wraps an S3-compatible object store. It backs both the seen set
// and the rendered digest file-drop.
type Client struct {
	s3     *s3.Client
	bucket string
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = true
	})

	return &Client{s3: client, bucket: cfg.Bucket}, nil
}

// PutDigest uploads a rendered digest under prefix/YYYY-MM-DD.html and
// returns the object key.
func (c *Client) PutDigest(ctx context.Context, prefix string, date time.Time, html []byte) (string, error) {
	key := strings.TrimSuffix(prefix, "/") + "/" + date.Format("2006-01-02") + ".html"
	contentType := "text/html; charset=utf-8"

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(html),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put digest %s: %w", key, err)
	}
	return key, nil
}

// S3Store keeps the seen set in an object, versioned by its ETag. Saves are
// conditional writes: IfMatch against the loaded ETag, or IfNoneMatch when
// creating, so a racing writer turns into ErrConflict instead of data loss.
type S3Store struct {
	client *Client
	key    string
}

func NewS3Store(client *Client, key string) *S3Store {
	return &S3Store{client: client, key: key}
}

func (s *S3Store) Load(ctx context.Context) (*SeenSet, string, error) {
	out, err := s.client.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.client.bucket,
		Key:    &s.key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return NewSeenSet(), "", nil
		}
		return nil, "", fmt.Errorf("storage: get %s: %w", s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("storage: read %s: %w", s.key, err)
	}

	version := ""
	if out.ETag != nil {
		version = *out.ETag
	}
	return ParseSeenSet(data), version, nil
}

func (s *S3Store) Save(ctx context.Context, set *SeenSet, version string) error {
	input := &s3.PutObjectInput{
		Bucket: &s.client.bucket,
		Key:    &s.key,
		Body:   bytes.NewReader(set.Encode()),
	}
	if version == "" {
		star := "*"
		input.IfNoneMatch = &star
	} else {
		input.IfMatch = &version
	}

	if _, err := s.client.s3.PutObject(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return ErrConflict
		}
		return fmt.Errorf("storage: put %s: %w", s.key, err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
	}
	return false
}
