package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// CoverStore turns an uploaded cover image into the value stored in
// Blog.MainImage.
type CoverStore interface {
	Store(ctx context.Context, filename, contentType string, data []byte) (string, error)
	// Remove deletes a cover returned by Store.
	Remove(ctx context.Context, location string) error
}

// DataURICoverStore inlines the image as a base64 data URI.
type DataURICoverStore struct{}

func (DataURICoverStore) Store(_ context.Context, _ string, contentType string, data []byte) (string, error) {
	return "data:" + coverContentType(contentType, data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (DataURICoverStore) Remove(context.Context, string) error {
	return nil
}

type s3ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3CoverStore uploads covers to a bucket and stores their public URL.
type S3CoverStore struct {
	client    s3ObjectAPI
	bucket    string
	prefix    string
	region    string
	publicURL string
}

// NewCoverStoreFromConfig uploads to S3 when COVER_S3_BUCKET is set and falls
// back to data URIs otherwise.
func NewCoverStoreFromConfig(ctx context.Context, cfg map[string]string) (CoverStore, error) {
	bucket := config.GetString(cfg, "COVER_S3_BUCKET", "")
	if bucket == "" {
		return DataURICoverStore{}, nil
	}

	region := config.GetString(cfg, "AWS_REGION", "us-east-1")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3CoverStore{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    bucket,
		prefix:    config.GetString(cfg, "COVER_S3_PREFIX", "covers"),
		region:    region,
		publicURL: config.GetString(cfg, "COVER_PUBLIC_BASE_URL", ""),
	}, nil
}

func (s *S3CoverStore) Store(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	contentType = coverContentType(contentType, data)
	key := s.buildKey(filename, contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload cover %s: %w", key, err)
	}
	return s.objectURL(key), nil
}

// Remove deletes the object behind a URL produced by Store. URLs outside this
// store are ignored.
func (s *S3CoverStore) Remove(ctx context.Context, location string) error {
	base := s.objectURL("")
	if !strings.HasPrefix(location, base) {
		return nil
	}
	key := strings.TrimPrefix(location, base)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete cover %s: %w", key, err)
	}
	return nil
}

// buildKey returns {prefix}/{uuid}{ext}.
func (s *S3CoverStore) buildKey(filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	if ext == "" {
		ext = ".bin"
	}

	name := uuid.NewString() + ext
	if prefix := strings.Trim(s.prefix, "/ "); prefix != "" {
		return prefix + "/" + name
	}
	return name
}

func (s *S3CoverStore) objectURL(key string) string {
	if s.publicURL != "" {
		return strings.TrimSuffix(s.publicURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func coverContentType(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}
