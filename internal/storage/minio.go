package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/grimoire/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

const (
	defaultObjectStoreTimeout = 5 * time.Second
	cacheExpiryRuleID         = "expire-reference-cache"
)

// cacheBucketAdmin is the part of *minio.Client used to prepare the
// reference cache bucket.
type cacheBucketAdmin interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, rules *lifecycle.Configuration) error
}

// NewMinIOClient builds the client behind the reference document cache. No
// request is made.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, ":") {
		endpoint += ":9000"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for cache bucket %q: %w", cfg.Bucket, err)
	}
	return client, nil
}

// PrepareCacheBucket creates the cache bucket when missing and installs a
// lifecycle rule expiring objects under prefix once they outlive the cache
// TTL. Reads still check the TTL themselves; the rule only reclaims space.
func PrepareCacheBucket(ctx context.Context, client cacheBucketAdmin, cfg config.MinIOConfig, prefix string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check cache bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return fmt.Errorf("create cache bucket %q: %w", cfg.Bucket, err)
		}
	}

	if err := client.SetBucketLifecycle(ctx, cfg.Bucket, cacheLifecycle(prefix, cfg.CacheTTL)); err != nil {
		return fmt.Errorf("set cache bucket lifecycle: %w", err)
	}
	return nil
}

func cacheLifecycle(prefix string, ttl time.Duration) *lifecycle.Configuration {
	return &lifecycle.Configuration{
		Rules: []lifecycle.Rule{{
			ID:         cacheExpiryRuleID,
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: prefix},
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(expiryDays(ttl))},
		}},
	}
}

// expiryDays rounds ttl up to whole days, the granularity of bucket
// lifecycle rules.
func expiryDays(ttl time.Duration) int {
	const day = 24 * time.Hour
	if ttl <= 0 {
		return 1
	}
	return int((ttl + day - 1) / day)
}
