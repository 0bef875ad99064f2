package dnd5

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

// ObjectPrefix is the object name prefix of every cached document.
const ObjectPrefix = "dnd5/"

// Cache stores raw reference documents by request path.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte) error
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NopCache) Put(context.Context, string, []byte) error { return nil }

type objectStore interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// MinIOCache keeps reference documents as objects in a bucket. Objects older
// than ttl are treated as misses and overwritten on the next Put.
type MinIOCache struct {
	store  objectStore
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// NewMinIOCache wraps client as a Cache over bucket.
func NewMinIOCache(client *minio.Client, bucket string, ttl time.Duration) *MinIOCache {
	return newMinIOCache(minioAdapter{client: client}, bucket, ttl)
}

func newMinIOCache(store objectStore, bucket string, ttl time.Duration) *MinIOCache {
	return &MinIOCache{store: store, bucket: bucket, ttl: ttl, now: time.Now}
}

func (c *MinIOCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	name := objectName(key)

	info, err := c.store.StatObject(ctx, c.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if isMissing(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat cached object: %w", err)
	}
	if c.ttl > 0 && c.now().Sub(info.LastModified) > c.ttl {
		return nil, false, nil
	}

	obj, err := c.store.GetObject(ctx, c.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("get cached object: %w", err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		if isMissing(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cached object: %w", err)
	}
	return body, true, nil
}

func (c *MinIOCache) Put(ctx context.Context, key string, body []byte) error {
	_, err := c.store.PutObject(ctx, c.bucket, objectName(key), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put cached object: %w", err)
	}
	return nil
}

func objectName(key string) string {
	return strings.TrimSuffix(ObjectPrefix, "/") + key + ".json"
}

func isMissing(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// minioAdapter narrows minio.Client to objectStore.
type minioAdapter struct {
	client *minio.Client
}

func (a minioAdapter) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.client.GetObject(ctx, bucketName, objectName, opts)
}

func (a minioAdapter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (a minioAdapter) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return a.client.StatObject(ctx, bucketName, objectName, opts)
}
