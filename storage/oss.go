package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSStorage Alibaba Cloud OSS archive
type OSSStorage struct {
	bucket *oss.Bucket
}

// NewOSSStorage create OSS archive
func NewOSSStorage(endpoint, accessKey, secretKey, bucketName string) (*OSSStorage, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" || bucketName == "" {
		return nil, ErrInvalid
	}

	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create oss client: %w", err)
	}

	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &OSSStorage{bucket: bucket}, nil
}

// Save put object
func (s *OSSStorage) Save(ctx context.Context, key string, data []byte) error {
	err := s.bucket.PutObject(key, bytes.NewReader(data), oss.ContentType("application/json"), oss.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to upload to oss: %w", err)
	}
	return nil
}

// Get get object
func (s *OSSStorage) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if ossErr, ok := err.(oss.ServiceError); ok && ossErr.StatusCode == 404 {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get from oss: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read oss object: %w", err)
	}
	return data, nil
}

// Exists check if object exists
func (s *OSSStorage) Exists(ctx context.Context, key string) bool {
	exists, err := s.bucket.IsObjectExist(key, oss.WithContext(ctx))
	if err != nil {
		return false
	}
	return exists
}
