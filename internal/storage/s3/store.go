// Package s3 keeps dataset snapshots in an S3-compatible bucket through
// minio-go.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/salesbot/salesbot/internal/config"
	"github.com/salesbot/salesbot/internal/storage"
)

// bucket is the slice of the minio API the store uses, bound to one bucket.
type bucket interface {
	put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (minio.UploadInfo, error)
	open(ctx context.Context, key string) (io.ReadCloser, minio.ObjectInfo, error)
	exists(ctx context.Context) (bool, error)
	create(ctx context.Context, region string) error
}

type Store struct {
	objects bucket
	name    string
	prefix  string
}

// New connects to cfg.Bucket. With AutoCreateBucket set a missing bucket is
// created in cfg.Region.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (*Store, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	endpoint, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	name := strings.TrimSpace(cfg.Bucket)
	store := newStore(&minioBucket{client: client, name: name}, name, cfg.Prefix)
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, region); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newStore(objects bucket, name, prefix string) *Store {
	return &Store{objects: objects, name: name, prefix: strings.Trim(strings.TrimSpace(prefix), "/")}
}

func validate(cfg config.ObjectStoreConfig) error {
	var missing []string
	if strings.TrimSpace(cfg.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("object store %s not configured", strings.Join(missing, " and "))
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	uploaded, err := s.objects.put(ctx, objectKey, body, size, opts.ContentType)
	if err != nil {
		return storage.ObjectInfo{}, s.wrap("put", objectKey, err)
	}
	return storage.ObjectInfo{Key: key, Size: uploaded.Size, ETag: uploaded.ETag, LastModified: uploaded.LastModified}, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	body, info, err := s.objects.open(ctx, objectKey)
	if err != nil {
		return nil, storage.ObjectInfo{}, s.wrap("open", objectKey, err)
	}
	return body, storage.ObjectInfo{Key: key, Size: info.Size, ETag: info.ETag, LastModified: info.LastModified}, nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	ok, err := s.objects.exists(ctx)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.name, err)
	}
	if ok {
		return nil
	}
	if err := s.objects.create(ctx, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.name, err)
	}
	return nil
}

// objectKey places a dataset-relative key under the store prefix. Empty,
// "." and ".." segments are rejected.
func (s *Store) objectKey(key string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return "", errors.New("object key is required")
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	if s.prefix == "" {
		return trimmed, nil
	}
	return s.prefix + "/" + trimmed, nil
}

func (s *Store) wrap(op, objectKey string, err error) error {
	if isNotFound(err) {
		err = storage.ErrObjectNotFound
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, s.name, objectKey, err)
}

func isNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return true
	}
	response := minio.ToErrorResponse(err)
	switch response.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return response.StatusCode == http.StatusNotFound
}

// splitEndpoint accepts host[:port] or a URL. An explicit scheme decides TLS;
// otherwise useSSL does.
func splitEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse object store endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("object store endpoint %q has no host", raw)
	}
	switch parsed.Scheme {
	case "https":
		return parsed.Host, true, nil
	case "http":
		return parsed.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported object store endpoint scheme %q", parsed.Scheme)
	}
}

type minioBucket struct {
	client *minio.Client
	name   string
}

func (b *minioBucket) put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	return b.client.PutObject(ctx, b.name, key, body, size, minio.PutObjectOptions{ContentType: contentType})
}

// open stats the object before handing it out so a missing key fails here
// instead of on the first Read.
func (b *minioBucket) open(ctx context.Context, key string) (io.ReadCloser, minio.ObjectInfo, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minio.ObjectInfo{}, err
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, minio.ObjectInfo{}, err
	}
	return obj, info, nil
}

func (b *minioBucket) exists(ctx context.Context) (bool, error) {
	return b.client.BucketExists(ctx, b.name)
}

func (b *minioBucket) create(ctx context.Context, region string) error {
	return b.client.MakeBucket(ctx, b.name, minio.MakeBucketOptions{Region: region})
}
