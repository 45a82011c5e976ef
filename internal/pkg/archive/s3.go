package archive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"coupon_hub/internal/pkg/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver S3 兼容存储归档 (AWS S3, Cloudflare R2, MinIO)
type S3Archiver struct {
	client        *s3.Client
	bucketName    string
	publicURL     string
	uploadTimeout time.Duration
}

func NewS3Archiver(ctx context.Context, cfg config.S3Config) (*S3Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &S3Archiver{
		client:        client,
		bucketName:    cfg.BucketName,
		publicURL:     strings.TrimSuffix(cfg.PublicURL, "/"),
		uploadTimeout: timeout,
	}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, a.uploadTimeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucketName),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := a.client.PutObject(uploadCtx, input); err != nil {
		return "", fmt.Errorf("failed to upload to s3: %w", err)
	}

	if a.publicURL == "" {
		return fmt.Sprintf("s3://%s/%s", a.bucketName, key), nil
	}
	return fmt.Sprintf("%s/%s", a.publicURL, key), nil
}
