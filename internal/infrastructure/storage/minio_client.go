package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"classifieds/internal/domain/service"
	"classifieds/pkg/logger"
)

// MinioClient stores objects in any S3-compatible bucket.
type MinioClient struct {
	client         *minio.Client
	bucket         string
	publicBaseURL  string
	bucketInitOnce sync.Once
	bucketInitErr  error
}

func NewMinioClient(endpoint string, useSSL bool, accessKey, secretKey, bucket, publicBaseURL string) (*MinioClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	client, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	base := strings.TrimSpace(publicBaseURL)
	if base == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		base = scheme + "://" + hostOf(endpoint)
	}

	return &MinioClient{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
	}, nil
}

func (c *MinioClient) UploadFile(ctx context.Context, file io.Reader, size int64, fileType, folder string) (string, error) {
	if err := c.ensureBucket(ctx); err != nil {
		return "", err
	}

	key := ObjectName(folder, fileType)
	if size <= 0 {
		size = -1
	}

	_, err := c.client.PutObject(ctx, c.bucket, key, file, size, minio.PutObjectOptions{
		ContentType:  fileType,
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, key), nil
}

func (c *MinioClient) DeleteFile(ctx context.Context, fileURL string) error {
	prefix := fmt.Sprintf("%s/%s/", c.publicBaseURL, c.bucket)
	if !strings.HasPrefix(fileURL, prefix) {
		return fmt.Errorf("s3: url does not belong to bucket %s", c.bucket)
	}

	if err := c.client.RemoveObject(ctx, c.bucket, strings.TrimPrefix(fileURL, prefix), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3: remove object: %w", err)
	}

	return nil
}

func (c *MinioClient) Close() error {
	return nil
}

func (c *MinioClient) ensureBucket(ctx context.Context) error {
	c.bucketInitOnce.Do(func() {
		exists, err := c.client.BucketExists(ctx, c.bucket)
		if err != nil {
			c.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			c.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, c.bucket)
		if err := c.client.SetBucketPolicy(ctx, c.bucket, policy); err != nil {
			c.bucketInitErr = fmt.Errorf("s3: set bucket policy: %w", err)
			return
		}
		logger.Info("Created public bucket %s", c.bucket)
	})
	return c.bucketInitErr
}

func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ service.FileUploadService = (*MinioClient)(nil)
