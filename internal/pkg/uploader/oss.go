package uploader

import (
	"context"
	"fmt"
	"io"

	"blog_engine/internal/pkg/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// AliyunOSSStorage 阿里云 OSS 存储
type AliyunOSSStorage struct {
	bucket *oss.Bucket
	config config.OSSConfig
}

func NewAliyunOSSStorage(cfg config.OSSConfig) (*AliyunOSSStorage, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, err
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, err
	}

	return &AliyunOSSStorage{
		bucket: bucket,
		config: cfg,
	}, nil
}

func (s *AliyunOSSStorage) Put(ctx context.Context, key string, r io.Reader) error {
	return s.bucket.PutObject(key, r, oss.WithContext(ctx))
}

func (s *AliyunOSSStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if svcErr, ok := err.(oss.ServiceError); ok && svcErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return body, nil
}

func (s *AliyunOSSStorage) Delete(ctx context.Context, key string) error {
	return s.bucket.DeleteObject(key, oss.WithContext(ctx))
}

// URL 假设 bucket 为公共读或挂了 CDN，私有 bucket 需要签名 URL
func (s *AliyunOSSStorage) URL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.%s/%s", s.config.BucketName, s.config.Endpoint, key)
}
