// Package assets copies generated assets from short-lived provider URLs into
// an S3 bucket and returns a stable public URL.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/dmitrymomot/gengate/pkg/logger"
)

// S3Client is the subset of the S3 API the mirror uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Asset describes one generated file to mirror.
type Asset struct {
	UserID    int64
	Kind      string // image, video, music
	SourceURL string
}

// Mirror uploads assets into a bucket. Safe for concurrent use.
type Mirror struct {
	client  S3Client
	hc      *http.Client
	bucket  string
	baseURL string
	prefix  string
	max     int64
	log     *slog.Logger
}

type Option func(*options)

type options struct {
	s3Client   S3Client
	httpClient *http.Client
	logger     *slog.Logger
	awsOptions []func(*awsconfig.LoadOptions) error
}

// WithS3Client injects a pre-configured client. Used by tests.
func WithS3Client(c S3Client) Option {
	return func(o *options) { o.s3Client = c }
}

// WithHTTPClient sets the client used to download sources.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithAWSConfigOption(opt func(*awsconfig.LoadOptions) error) Option {
	return func(o *options) { o.awsOptions = append(o.awsOptions, opt) }
}

// NewMirror builds a Mirror. Without WithS3Client the AWS default config
// chain is used, with static credentials when both keys are set.
func NewMirror(ctx context.Context, cfg Config, opts ...Option) (*Mirror, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.s3Client
	if client == nil {
		loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		loadOpts = append(loadOpts, o.awsOptions...)

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Join(ErrFailedToLoadConfig, err)
		}
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
		})
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.DownloadTimeout}
	}
	log := o.logger
	if log == nil {
		log = logger.Discard()
	}

	return &Mirror{
		client:  client,
		hc:      hc,
		bucket:  cfg.Bucket,
		baseURL: publicBase(cfg),
		prefix:  strings.Trim(cfg.KeyPrefix, "/"),
		max:     cfg.MaxBytes,
		log:     log,
	}, nil
}

func publicBase(cfg Config) string {
	base := cfg.PublicURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// Mirror downloads the asset and stores it under
// <prefix>/<kind>/<user>/<uuid><ext>. It returns the public URL.
func (m *Mirror) Mirror(ctx context.Context, a Asset) (string, error) {
	src, err := url.Parse(a.SourceURL)
	if err != nil || (src.Scheme != "http" && src.Scheme != "https") || src.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, a.SourceURL)
	}

	body, contentType, err := m.download(ctx, src.String())
	if err != nil {
		return "", err
	}

	key := m.key(a, src.Path, contentType)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
			"user-id": strconv.FormatInt(a.UserID, 10),
			"source":  src.Host,
		},
	})
	if err != nil {
		return "", classifyS3Error(err, "upload asset")
	}

	m.log.DebugContext(ctx, "asset mirrored",
		logger.UserID(a.UserID),
		logger.Kind(a.Kind),
		slog.String("key", key),
		slog.Int("bytes", len(body)))

	return m.URL(key), nil
}

// Exists reports whether key is present in the bucket.
func (m *Mirror) Exists(ctx context.Context, key string) bool {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(strings.TrimPrefix(key, "/")),
	})
	return err == nil
}

// Healthcheck verifies the bucket is reachable.
func (m *Mirror) Healthcheck(ctx context.Context) error {
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)})
	return classifyS3Error(err, "head bucket")
}

// URL returns the public URL of key.
func (m *Mirror) URL(key string) string {
	return m.baseURL + strings.TrimPrefix(key, "/")
}

func (m *Mirror) download(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", errors.Join(ErrInvalidSource, err)
	}
	resp, err := m.hc.Do(req)
	if err != nil {
		return nil, "", errors.Join(ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode)
	}
	if m.max > 0 && resp.ContentLength > m.max {
		return nil, "", ErrTooLarge
	}

	r := io.Reader(resp.Body)
	if m.max > 0 {
		r = io.LimitReader(resp.Body, m.max+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.Join(ErrDownload, err)
	}
	if m.max > 0 && int64(len(body)) > m.max {
		return nil, "", ErrTooLarge
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}
	return body, contentType, nil
}

func (m *Mirror) key(a Asset, srcPath, contentType string) string {
	ext := path.Ext(srcPath)
	if ext == "" || len(ext) > 6 {
		ext = ""
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	kind := a.Kind
	if kind == "" {
		kind = "misc"
	}
	name := uuid.NewString() + strings.ToLower(ext)
	return path.Join(m.prefix, kind, strconv.FormatInt(a.UserID, 10), name)
}

func classifyS3Error(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrOperationTimeout, operation)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrOperationCanceled, operation)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %s", ErrAccessDenied, operation)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %s", ErrServiceUnavailable, operation)
		case "NoSuchBucket", "NotFound":
			return ErrBucketNotFound
		default:
			return fmt.Errorf("%w: %s (code %s): %w", ErrUpload, operation, apiErr.ErrorCode(), err)
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrUpload, operation, err)
}
