package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"skillcert_backend/internal/config"
	"skillcert_backend/internal/util"
	"skillcert_backend/pkg/logger"
	"strings"
	"sync"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

var errUnsafeKey = errors.New("object key escapes the storage root")

// StorageProvider stores practical-answer files and screen recordings under
// slash-separated object keys and returns the URL graders open them from.
type StorageProvider interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	PutFile(ctx context.Context, key string, localPath string, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
	URL(key string) string
}

// PracticalKey is where one uploaded file of a practical answer lives.
func PracticalKey(submissionID string, questionID uint, filename string) string {
	return path.Join("submissions", submissionID, fmt.Sprint(questionID), util.SafeFilename(filename))
}

// RecordingKey keeps at most one recording per practical answer.
func RecordingKey(submissionID string, questionID uint, ext string) string {
	return path.Join("submissions", submissionID, fmt.Sprint(questionID), "recording"+strings.ToLower(ext))
}

// LocalStorageProvider writes under Root, which the router serves at /uploads.
type LocalStorageProvider struct {
	Root string
}

func (p *LocalStorageProvider) path(key string) (string, error) {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%q: %w", key, errUnsafeKey)
		}
	}
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("%q: %w", key, errUnsafeKey)
	}
	return filepath.Join(p.Root, filepath.FromSlash(clean)), nil
}

func (p *LocalStorageProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	dst, err := p.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return p.URL(key), nil
}

func (p *LocalStorageProvider) PutFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()
	return p.Put(ctx, key, src, -1, contentType)
}

func (p *LocalStorageProvider) Remove(ctx context.Context, key string) error {
	dst, err := p.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *LocalStorageProvider) URL(key string) string {
	return "/uploads/" + key
}

type MinioStorageProvider struct {
	Bucket string
	Client *minio.Client
}

// NewMinioStorageProvider connects and creates the bucket when it is missing.
func NewMinioStorageProvider(ctx context.Context, cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
	}
	return &MinioStorageProvider{Bucket: cfg.MinioBucket, Client: client}, nil
}

func (p *MinioStorageProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return p.URL(key), nil
}

func (p *MinioStorageProvider) PutFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	_, err := p.Client.FPutObject(ctx, p.Bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	return p.URL(key), nil
}

func (p *MinioStorageProvider) Remove(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Bucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) URL(key string) string {
	return "/" + p.Bucket + "/" + key
}

type OSSStorageProvider struct {
	Endpoint string
	Bucket   *oss.Bucket
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Endpoint: cfg.OSSEndpoint, Bucket: bucket}, nil
}

func (p *OSSStorageProvider) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := p.Bucket.PutObject(key, reader, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return p.URL(key), nil
}

func (p *OSSStorageProvider) PutFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	if err := p.Bucket.PutObjectFromFile(key, localPath, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return p.URL(key), nil
}

func (p *OSSStorageProvider) Remove(ctx context.Context, key string) error {
	return p.Bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (p *OSSStorageProvider) URL(key string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Bucket.BucketName, p.Endpoint, key)
}

type StorageService struct {
	Provider StorageProvider
}

// NewStorageService picks the configured provider and falls back to local disk
// when the remote one cannot be reached.
func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(context.Background(), &cfg.Storage)
		if err != nil {
			logger.Log.Error("minio storage unavailable, using local disk", zap.Error(err))
		} else {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err != nil {
			logger.Log.Error("oss storage unavailable, using local disk", zap.Error(err))
		} else {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Root: cfg.Storage.LocalPath}
	}
	return &StorageService{Provider: provider}
}

// Batch collects what one submission uploads so a failed submit can take it back.
func (s *StorageService) Batch() *UploadBatch {
	return &UploadBatch{provider: s.Provider}
}

// UploadBatch is safe for concurrent use.
type UploadBatch struct {
	provider StorageProvider

	mu   sync.Mutex
	keys []string
}

func (b *UploadBatch) record(key string) {
	b.mu.Lock()
	b.keys = append(b.keys, key)
	b.mu.Unlock()
}

func (b *UploadBatch) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	url, err := b.provider.Put(ctx, key, reader, size, contentType)
	if err == nil {
		b.record(key)
	}
	return url, err
}

func (b *UploadBatch) PutFile(ctx context.Context, key string, localPath string, contentType string) (string, error) {
	url, err := b.provider.PutFile(ctx, key, localPath, contentType)
	if err == nil {
		b.record(key)
	}
	return url, err
}

// Discard removes every stored object. Failures are logged; the submit error is what matters.
func (b *UploadBatch) Discard(ctx context.Context) {
	b.mu.Lock()
	keys := b.keys
	b.keys = nil
	b.mu.Unlock()

	for _, k := range keys {
		if err := b.provider.Remove(ctx, k); err != nil {
			logger.Log.Warn("failed to remove upload of a rejected submission", zap.String("key", k), zap.Error(err))
		}
	}
}
