package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectURL(t *testing.T) {
	bucket, key, err := ParseObjectURL("https://t2d2-assets.s3.amazonaws.com/projects/44/images/a_abcdef.jpg")
	require.NoError(t, err)
	assert.Equal(t, "t2d2-assets", bucket)
	assert.Equal(t, "projects/44/images/a_abcdef.jpg", key)

	_, _, err = ParseObjectURL("projects/44/images/a.jpg")
	assert.Error(t, err)

	_, _, err = ParseObjectURL("https://bucket.s3.amazonaws.com/")
	assert.Error(t, err)
}

func TestBucketFromBaseURL(t *testing.T) {
	bucket, err := BucketFromBaseURL("https://t2d2-assets.s3.us-east-1.amazonaws.com")
	require.NoError(t, err)
	assert.Equal(t, "t2d2-assets", bucket)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "b", "projects/1/images/x.jpg", strings.NewReader("pixels"), 6, "image/jpeg"))

	var buf bytes.Buffer
	n, err := store.Get(ctx, "b", "projects/1/images/x.jpg", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 6, n)
	assert.Equal(t, "pixels", buf.String())
	assert.Equal(t, []string{"projects/1/images/x.jpg"}, store.Keys("b", "projects/1/"))

	_, err = store.Get(ctx, "b", "missing", &buf)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

type fakeS3 struct {
	put     *s3.PutObjectInput
	putBody []byte
	objects map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.putBody = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3StorePut(t *testing.T) {
	api := &fakeS3{}
	store := NewS3StoreWithClient(api, true, nil)

	err := store.Put(context.Background(), "bucket", "projects/1/reports/r.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	require.NotNil(t, api.put)
	assert.Equal(t, "bucket", aws.ToString(api.put.Bucket))
	assert.Equal(t, "projects/1/reports/r.pdf", aws.ToString(api.put.Key))
	assert.Equal(t, types.ObjectCannedACLPublicRead, api.put.ACL)
	assert.EqualValues(t, 4, aws.ToInt64(api.put.ContentLength))
	assert.Equal(t, "%PDF", string(api.putBody))
}

func TestS3StoreGet(t *testing.T) {
	api := &fakeS3{objects: map[string]string{"k": "value"}}
	store := NewS3StoreWithClient(api, false, nil)

	var buf bytes.Buffer
	n, err := store.Get(context.Background(), "bucket", "k", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.Equal(t, "value", buf.String())

	_, err = store.Get(context.Background(), "bucket", "missing", &buf)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
