package media

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/replyflow/pkg/logging"
)

// S3API is the subset of the S3 client used by S3Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores voice notes under the relay's object keys.
type S3Archive struct {
	bucket string
	client S3API
	logger *logging.Logger
}

// NewS3Archive returns nil when bucket or client is missing.
func NewS3Archive(client S3API, bucket string, logger *logging.Logger) *S3Archive {
	if client == nil || bucket == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Archive{bucket: bucket, client: client, logger: logger}
}

func (a *S3Archive) Archive(ctx context.Context, key string, data []byte, mimeType string) error {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("media: s3 put %s: %w", key, err)
	}
	a.logger.Debug("archived voice note", "s3_key", key, "bytes", len(data))
	return nil
}
