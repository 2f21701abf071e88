package odatatable

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3UploaderExportPage(t *testing.T) {
	putter := &fakePutter{}
	uploader := NewS3Uploader(putter, "reports", nil)

	require.NoError(t, uploader.ExportPage(context.Background(), "pages/products.ndjson", OTJSON, demoColumns(t), demoPage()))
	require.NotNil(t, putter.input)
	assert.Equal(t, "reports", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "pages/products.ndjson", aws.ToString(putter.input.Key))
	assert.Equal(t, "application/x-ndjson", aws.ToString(putter.input.ContentType))
	assert.Contains(t, string(putter.body), `"val":["Bread","4","2.5"]`)
}

func TestS3UploaderErrors(t *testing.T) {
	err := NewS3Uploader(&fakePutter{}, "", nil).Upload(context.Background(), "k", nil, "text/plain")
	assert.Error(t, err)

	denied := errors.New("access denied")
	err = NewS3Uploader(&fakePutter{err: denied}, "b", nil).Upload(context.Background(), "k", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, denied)
	assert.Contains(t, err.Error(), "s3://b/k")
}
