package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"coupon_hub/internal/pkg/config"

	"github.com/google/uuid"
)

// Archiver 保存导入的原始文件，返回可访问的地址
type Archiver interface {
	Archive(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// New 根据 archive.provider 选择实现
func New(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Provider {
	case "", "none":
		return NopArchiver{}, nil
	case "oss":
		return NewOSSArchiver(cfg.OSS)
	case "s3":
		return NewS3Archiver(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}

// ObjectKey 生成对象键: prefix/YYYYMMDD/<scope>/<uuid><ext>
func ObjectKey(prefix, scope, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	parts := []string{}
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, now.Format("20060102"))
	if scope != "" {
		parts = append(parts, scope)
	}
	parts = append(parts, uuid.New().String()+ext)
	return strings.Join(parts, "/")
}

// NopArchiver 不做归档
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, io.Reader, string) (string, error) {
	return "", nil
}
