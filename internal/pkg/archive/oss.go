package archive

import (
	"context"
	"fmt"
	"io"

	"coupon_hub/internal/pkg/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSArchiver 阿里云 OSS 归档
type OSSArchiver struct {
	bucket *oss.Bucket
	config config.OSSConfig
}

func NewOSSArchiver(cfg config.OSSConfig) (*OSSArchiver, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("create oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("open oss bucket: %w", err)
	}

	return &OSSArchiver{bucket: bucket, config: cfg}, nil
}

func (a *OSSArchiver) Archive(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	opts := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := a.bucket.PutObject(key, body, opts...); err != nil {
		return "", fmt.Errorf("failed to upload to oss: %w", err)
	}

	// 归档桶为私有读，地址仅用于审计记录
	return fmt.Sprintf("https://%s.%s/%s", a.config.BucketName, a.config.Endpoint, key), nil
}
