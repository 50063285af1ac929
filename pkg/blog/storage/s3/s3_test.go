package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blog/pkg/blog"
)

// TestS3Backend_BasicConfiguration tests the configuration and creation of S3 backend
func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
	})

	t.Run("InvalidSSEAlgorithm", func(t *testing.T) {
		_, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			EnableSSE:       true,
			SSEAlgorithm:    "rot13",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid SSE")
	})
}

func TestApplySSE(t *testing.T) {
	b := &Backend{config: Config{EnableSSE: true, SSEAlgorithm: "aws:kms", SSEKMSKeyID: "key-1"}}
	input := &s3.PutObjectInput{}
	b.applySSE(input)
	assert.Equal(t, "aws:kms", string(input.ServerSideEncryption))
	assert.Equal(t, "key-1", aws.ToString(input.SSEKMSKeyId))

	b = &Backend{config: Config{}}
	input = &s3.PutObjectInput{}
	b.applySSE(input)
	assert.Empty(t, input.ServerSideEncryption)
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		key      string
		expected string
	}{
		{
			name:     "aws virtual hosted",
			config:   Config{Bucket: "jellybearblog", Region: "ap-northeast-2"},
			key:      "upload/cat1700000000000.png",
			expected: "https://jellybearblog.s3.ap-northeast-2.amazonaws.com/upload/cat1700000000000.png",
		},
		{
			name:     "public base url",
			config:   Config{Bucket: "b", Region: "us-east-1", PublicBaseURL: "https://cdn.example.com/"},
			key:      "upload/a.png",
			expected: "https://cdn.example.com/upload/a.png",
		},
		{
			name:     "path style endpoint",
			config:   Config{Bucket: "blog", Endpoint: "http://localhost:9000", UsePathStyle: true},
			key:      "upload/a.png",
			expected: "http://localhost:9000/blog/upload/a.png",
		},
		{
			name:     "virtual hosted endpoint",
			config:   Config{Bucket: "blog", Endpoint: "https://storage.example.com"},
			key:      "upload/a.png",
			expected: "https://blog.storage.example.com/upload/a.png",
		},
		{
			name:     "key escaping",
			config:   Config{Bucket: "b", Region: "us-east-1"},
			key:      "upload/my cat#1.png",
			expected: "https://b.s3.us-east-1.amazonaws.com/upload/my%20cat%231.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, publicURL(tt.config, tt.key))
		})
	}
}

// TestS3Backend_Integration runs against a live S3-compatible endpoint
// (for example MinIO) when S3_TEST_ENDPOINT is set.
func TestS3Backend_Integration(t *testing.T) {
	endpoint := os.Getenv("S3_TEST_ENDPOINT")
	if endpoint == "" || testing.Short() {
		t.Skip("Skipping S3 integration test. Set S3_TEST_ENDPOINT to run")
	}

	backend, err := New(Config{
		Region:                 "us-east-1",
		Bucket:                 "simple-blog-test",
		AccessKeyID:            os.Getenv("S3_TEST_ACCESS_KEY"),
		SecretAccessKey:        os.Getenv("S3_TEST_SECRET_KEY"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	key := "upload/integration.txt"
	err = backend.UploadWithParams(ctx, bytes.NewReader([]byte("hello")), blog.UploadParams{
		ObjectKey: key,
		MimeType:  "text/plain",
	})
	require.NoError(t, err)

	out, err := backend.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(backend.bucket),
		Key:    aws.String(key),
	})
	require.NoError(t, err)
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, backend.Delete(ctx, key))
}
