// Package storage keeps uploaded documents (signed delivery forms, dock
// photos) and hands back a stable reference string for them.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore stores files and resolves their references.
type ObjectStore interface {
	Put(ctx context.Context, folder, fileName string, r io.Reader, size int64, contentType string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
}

const refScheme = "minio://"

// objectName 按日期分目录，文件名取随机前缀保留扩展名
func objectName(folder, fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s%s", strings.Trim(folder, "/"), now.Format("2006/01/02"), uuid.New().String()[:8], filepath.Ext(fileName))
}

// ParseRef splits a reference into bucket and object name.
func ParseRef(ref string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(ref, refScheme)
	if !ok {
		return "", "", fmt.Errorf("invalid object reference %q", ref)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("invalid object reference %q", ref)
	}
	return bucket, object, nil
}

// MinIOStore 基于 MinIO 的文件存储
type MinIOStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIOStore 创建 MinIO 客户端
func NewMinIOStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, expiry time.Duration) (*MinIOStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &MinIOStore{client: client, bucket: bucket, expiry: expiry}, nil
}

// EnsureBucket 桶不存在时创建
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *MinIOStore) Put(ctx context.Context, folder, fileName string, r io.Reader, size int64, contentType string) (string, error) {
	name := objectName(folder, fileName, time.Now())
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", fileName, err)
	}
	return refScheme + s.bucket + "/" + name, nil
}

func (s *MinIOStore) URL(ctx context.Context, ref string) (string, error) {
	bucket, object, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, object, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", ref, err)
	}
	return u.String(), nil
}

// MemoryStore keeps objects in process, for tests and local runs without MinIO.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, folder, fileName string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	ref := refScheme + "memory/" + objectName(folder, fileName, time.Now())
	s.mu.Lock()
	s.objects[ref] = data
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) URL(_ context.Context, ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[ref]; !ok {
		return "", ErrObjectNotFound
	}
	return "memory:///" + strings.TrimPrefix(ref, refScheme), nil
}

// Open returns the stored bytes of ref.
func (s *MemoryStore) Open(ref string) (io.Reader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[ref]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return bytes.NewReader(data), nil
}
