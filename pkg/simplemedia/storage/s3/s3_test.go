package s3

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromURL(t *testing.T) {
	config, err := ConfigFromURL("s3://media-bucket/mirror/?region=eu-west-1&endpoint=http://localhost:9000&path_style=true&create_bucket=true&sse=AES256")
	require.NoError(t, err)
	assert.Equal(t, "media-bucket", config.Bucket)
	assert.Equal(t, "mirror", config.Prefix)
	assert.Equal(t, "eu-west-1", config.Region)
	assert.Equal(t, "http://localhost:9000", config.Endpoint)
	assert.True(t, config.UsePathStyle)
	assert.True(t, config.CreateBucketIfNotExist)
	assert.True(t, config.EnableSSE)
	assert.Equal(t, "AES256", config.SSEAlgorithm)
}

func TestConfigFromURL_Errors(t *testing.T) {
	for _, raw := range []string{
		"gs://bucket",
		"s3://",
		"s3://bucket?path_style=maybe",
		"s3://bucket?sse=rot13",
		"://bad",
	} {
		_, err := ConfigFromURL(raw)
		assert.Error(t, err, raw)
	}
}

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
		b, ok := backend.(*Backend)
		require.True(t, ok)
		assert.Equal(t, "us-east-1", b.config.Region)
	})
}

func testBackend(config Config) *Backend {
	return &Backend{bucket: config.Bucket, config: config}
}

func TestObjectKey_Prefix(t *testing.T) {
	assert.Equal(t, "general/a.jpg", testBackend(Config{}).objectKey("general/a.jpg"))
	assert.Equal(t, "mirror/general/a.jpg", testBackend(Config{Prefix: "mirror"}).objectKey("general/a.jpg"))
}

func TestPutInput(t *testing.T) {
	b := testBackend(Config{Bucket: "bkt", EnableSSE: true, SSEAlgorithm: "aws:kms", SSEKMSKeyID: "key-1"})

	input := b.putInput("general/a.png", "", strings.NewReader("x"))
	assert.Equal(t, "bkt", aws.ToString(input.Bucket))
	assert.Equal(t, "general/a.png", aws.ToString(input.Key))
	assert.Equal(t, "image/png", aws.ToString(input.ContentType))
	assert.Equal(t, types.ServerSideEncryptionAwsKms, input.ServerSideEncryption)
	assert.Equal(t, "key-1", aws.ToString(input.SSEKMSKeyId))

	input = b.putInput("general/a.jpg", "image/jpeg", strings.NewReader("x"))
	assert.Equal(t, "image/jpeg", aws.ToString(input.ContentType))

	input = testBackend(Config{}).putInput("general/a.unknownext", "", strings.NewReader("x"))
	assert.Equal(t, "application/octet-stream", aws.ToString(input.ContentType))
	assert.Empty(t, input.ServerSideEncryption)
}

func TestCountingReader(t *testing.T) {
	r := &countingReader{r: strings.NewReader("hello world")}
	_, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, int64(11), r.n)
}

func TestAPIErrorCode(t *testing.T) {
	err := &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "missing"}
	assert.Equal(t, "NoSuchBucket", apiErrorCode(err))
	assert.Equal(t, "NoSuchBucket", apiErrorCode(errors.Join(errors.New("wrapped"), err)))
	assert.Empty(t, apiErrorCode(errors.New("plain")))
}
