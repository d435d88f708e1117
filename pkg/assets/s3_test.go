package assets_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gengate/pkg/assets"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *mockS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

func (m *mockS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadBucketOutput), args.Error(1)
}

func sourceServer(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /files/{name}", func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("GET /missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newMirror(t *testing.T, client assets.S3Client, mutate ...func(*assets.Config)) *assets.Mirror {
	t.Helper()
	cfg := assets.Config{
		Bucket:    "gen-assets",
		Region:    "eu-west-1",
		KeyPrefix: "assets",
		MaxBytes:  1024,
		PublicURL: "https://cdn.example.com",
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	m, err := assets.NewMirror(context.Background(), cfg, assets.WithS3Client(client))
	require.NoError(t, err)
	return m
}

func TestNewMirror_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := assets.NewMirror(context.Background(), assets.Config{Region: "eu-west-1"})
	assert.ErrorIs(t, err, assets.ErrInvalidConfig)
	assert.False(t, assets.Config{}.Enabled())
	assert.True(t, assets.Config{Bucket: "b"}.Enabled())
}

func TestMirror_Upload(t *testing.T) {
	t.Parallel()

	srv := sourceServer(t, "image/jpeg", "jpeg-bytes")
	client := new(mockS3)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "gen-assets" &&
			strings.HasPrefix(*in.Key, "assets/image/42/") &&
			strings.HasSuffix(*in.Key, ".jpg") &&
			*in.ContentType == "image/jpeg" &&
			*in.ContentLength == int64(len("jpeg-bytes")) &&
			in.Metadata["user-id"] == "42"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	m := newMirror(t, client)
	got, err := m.Mirror(context.Background(), assets.Asset{
		UserID:    42,
		Kind:      "image",
		SourceURL: srv.URL + "/files/out.jpg",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "https://cdn.example.com/assets/image/42/"))
	client.AssertExpectations(t)
}

func TestMirror_ExtensionFromContentType(t *testing.T) {
	t.Parallel()

	srv := sourceServer(t, "", "\x89PNG\r\n\x1a\npayload")
	client := new(mockS3)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.ContentType == "image/png" && strings.HasSuffix(*in.Key, ".png")
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	m := newMirror(t, client)
	_, err := m.Mirror(context.Background(), assets.Asset{UserID: 1, Kind: "image", SourceURL: srv.URL + "/files/result"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestMirror_Failures(t *testing.T) {
	t.Parallel()

	srv := sourceServer(t, "audio/mpeg", strings.Repeat("x", 2048))

	t.Run("invalid source", func(t *testing.T) {
		t.Parallel()
		m := newMirror(t, new(mockS3))
		_, err := m.Mirror(context.Background(), assets.Asset{SourceURL: "ftp://nope"})
		assert.ErrorIs(t, err, assets.ErrInvalidSource)
	})

	t.Run("source missing", func(t *testing.T) {
		t.Parallel()
		m := newMirror(t, new(mockS3))
		_, err := m.Mirror(context.Background(), assets.Asset{SourceURL: srv.URL + "/missing"})
		assert.ErrorIs(t, err, assets.ErrDownload)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		m := newMirror(t, new(mockS3))
		_, err := m.Mirror(context.Background(), assets.Asset{SourceURL: srv.URL + "/files/song.mp3"})
		assert.ErrorIs(t, err, assets.ErrTooLarge)
	})

	t.Run("access denied", func(t *testing.T) {
		t.Parallel()
		client := new(mockS3)
		client.On("PutObject", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"})
		m := newMirror(t, client, func(c *assets.Config) { c.MaxBytes = 0 })
		_, err := m.Mirror(context.Background(), assets.Asset{SourceURL: srv.URL + "/files/song.mp3"})
		assert.ErrorIs(t, err, assets.ErrAccessDenied)
	})

	t.Run("throttled", func(t *testing.T) {
		t.Parallel()
		client := new(mockS3)
		client.On("PutObject", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "SlowDown"})
		m := newMirror(t, client, func(c *assets.Config) { c.MaxBytes = 0 })
		_, err := m.Mirror(context.Background(), assets.Asset{SourceURL: srv.URL + "/files/song.mp3"})
		assert.ErrorIs(t, err, assets.ErrServiceUnavailable)
	})

	t.Run("other", func(t *testing.T) {
		t.Parallel()
		client := new(mockS3)
		client.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("socket closed"))
		m := newMirror(t, client, func(c *assets.Config) { c.MaxBytes = 0 })
		_, err := m.Mirror(context.Background(), assets.Asset{SourceURL: srv.URL + "/files/song.mp3"})
		assert.ErrorIs(t, err, assets.ErrUpload)
	})
}

func TestMirror_ExistsAndHealth(t *testing.T) {
	t.Parallel()

	client := new(mockS3)
	client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return *in.Key == "assets/a.jpg"
	})).Return(&s3.HeadObjectOutput{}, nil)
	client.On("HeadObject", mock.Anything, mock.Anything).Return(nil, errors.New("not found"))
	client.On("HeadBucket", mock.Anything, mock.Anything).Return(&s3.HeadBucketOutput{}, nil)

	m := newMirror(t, client)
	assert.True(t, m.Exists(context.Background(), "/assets/a.jpg"))
	assert.False(t, m.Exists(context.Background(), "assets/b.jpg"))
	assert.NoError(t, m.Healthcheck(context.Background()))
	assert.Equal(t, "https://cdn.example.com/assets/a.jpg", m.URL("/assets/a.jpg"))
}

func TestMirror_DefaultPublicURL(t *testing.T) {
	t.Parallel()

	m := newMirror(t, new(mockS3), func(c *assets.Config) { c.PublicURL = "" })
	assert.Equal(t, "https://gen-assets.s3.eu-west-1.amazonaws.com/k", m.URL("k"))

	m = newMirror(t, new(mockS3), func(c *assets.Config) {
		c.PublicURL = ""
		c.Endpoint = "http://minio:9000/"
	})
	assert.Equal(t, "http://minio:9000/gen-assets/k", m.URL("k"))
}
