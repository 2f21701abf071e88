package odatatable

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectPutter is the part of the S3 client used for exports.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores rendered pages in a bucket.
type S3Uploader struct {
	client ObjectPutter
	bucket string
	logger *zap.SugaredLogger
}

func NewS3Uploader(client ObjectPutter, bucket string, logger *zap.SugaredLogger) *S3Uploader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &S3Uploader{client: client, bucket: bucket, logger: logger}
}

func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if u.bucket == "" {
		return fmt.Errorf("upload %s: no bucket", key)
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", u.bucket, key, err)
	}
	u.logger.Infof("uploaded %d bytes to s3://%s/%s", len(data), u.bucket, key)
	return nil
}

// ExportPage renders page in the given format and uploads it.
func (u *S3Uploader) ExportPage(ctx context.Context, key string, outputType OutputType, columns []Column, page *Page) error {
	var buf bytes.Buffer
	if err := NewPageWriter(u.logger, &buf, outputType, columns).WritePage(page); err != nil {
		return err
	}
	return u.Upload(ctx, key, buf.Bytes(), outputType.ContentType())
}
