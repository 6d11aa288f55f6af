package services

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input   *s3.PutObjectInput
	body    []byte
	err     error
	deleted []string
}

func (f *fakeS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestDataURICoverStore(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\n0000")
	uri, err := DataURICoverStore{}.Store(context.Background(), "cover.png", "image/png", png)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(png), uri)

	uri, err = DataURICoverStore{}.Store(context.Background(), "cover", "", png)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
}

func TestS3CoverStore(t *testing.T) {
	t.Parallel()

	client := &fakeS3{}
	store := &S3CoverStore{client: client, bucket: "covers-bucket", prefix: "covers", region: "ap-south-1"}

	url, err := store.Store(context.Background(), "Hero.JPG", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	key := aws.ToString(client.input.Key)
	assert.True(t, strings.HasPrefix(key, "covers/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.Equal(t, "covers-bucket", aws.ToString(client.input.Bucket))
	assert.Equal(t, "image/jpeg", aws.ToString(client.input.ContentType))
	assert.Equal(t, "jpeg-bytes", string(client.body))
	assert.Equal(t, "https://covers-bucket.s3.ap-south-1.amazonaws.com/"+key, url)

	store.publicURL = "https://cdn.example.com/"
	url, err = store.Store(context.Background(), "a.png", "image/png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/"+aws.ToString(client.input.Key), url)
}

func TestS3CoverStore_Remove(t *testing.T) {
	t.Parallel()

	client := &fakeS3{}
	store := &S3CoverStore{client: client, bucket: "covers-bucket", prefix: "covers", region: "ap-south-1"}

	url, err := store.Store(context.Background(), "hero.png", "image/png", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Remove(context.Background(), url))
	require.NoError(t, store.Remove(context.Background(), "data:image/png;base64,AAAA"))

	assert.Equal(t, []string{aws.ToString(client.input.Key)}, client.deleted)
}

func TestS3CoverStore_UploadError(t *testing.T) {
	t.Parallel()

	store := &S3CoverStore{client: &fakeS3{err: errors.New("access denied")}, bucket: "b", region: "r"}
	_, err := store.Store(context.Background(), "a.png", "image/png", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewCoverStoreFromConfig_DefaultsToDataURI(t *testing.T) {
	t.Parallel()

	store, err := NewCoverStoreFromConfig(context.Background(), map[string]string{})
	require.NoError(t, err)
	assert.IsType(t, DataURICoverStore{}, store)
}
