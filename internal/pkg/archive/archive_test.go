package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"coupon_hub/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	key := ObjectKey("/coupon-imports/", "campaign-1", "Spring.XLSX", now)
	assert.True(t, strings.HasPrefix(key, "coupon-imports/20250314/campaign-1/"), key)
	assert.True(t, strings.HasSuffix(key, ".xlsx"), key)

	key = ObjectKey("", "", "rows.csv", now)
	assert.Regexp(t, `^20250314/[0-9a-f-]{36}\.csv$`, key)
}

func TestNewSelectsProvider(t *testing.T) {
	a, err := New(context.Background(), config.ArchiveConfig{Provider: "none"})
	require.NoError(t, err)
	assert.IsType(t, NopArchiver{}, a)

	url, err := a.Archive(context.Background(), "k", strings.NewReader("x"), "text/csv")
	require.NoError(t, err)
	assert.Empty(t, url)

	_, err = New(context.Background(), config.ArchiveConfig{Provider: "ftp"})
	assert.Error(t, err)
}

func TestNewS3Archiver(t *testing.T) {
	a, err := New(context.Background(), config.ArchiveConfig{
		Provider: "s3",
		S3: config.S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "auto",
			AccessKeyID:     "minio",
			AccessKeySecret: "minio123",
			BucketName:      "imports",
			PublicURL:       "https://files.example.com/",
		},
	})
	require.NoError(t, err)

	s3a, ok := a.(*S3Archiver)
	require.True(t, ok)
	assert.Equal(t, "https://files.example.com", s3a.publicURL)
	assert.Equal(t, 30*time.Second, s3a.uploadTimeout)
}
