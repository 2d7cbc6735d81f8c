package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/salesbot/salesbot/internal/config"
	"github.com/salesbot/salesbot/internal/storage"
)

func TestPutPrefixesKeyAndReportsDatasetKey(t *testing.T) {
	fake := &fakeBucket{}
	store := newStore(fake, "salesbot", "/snapshots/prod/")

	info, err := store.Put(context.Background(), "/sales_data/date=2026-02-19/snapshot-1-00000.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{ContentType: storage.ParquetContentType})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.putKey != "snapshots/prod/sales_data/date=2026-02-19/snapshot-1-00000.parquet" {
		t.Fatalf("object key = %q", fake.putKey)
	}
	if fake.putContentType != storage.ParquetContentType || string(fake.putBody) != "abc" {
		t.Fatalf("content type/body = %q/%q", fake.putContentType, fake.putBody)
	}
	if info.Key != "/sales_data/date=2026-02-19/snapshot-1-00000.parquet" || info.Size != 3 || info.ETag != "etag-1" {
		t.Fatalf("info = %+v", info)
	}
}

func TestObjectKeyRejectsUnsafeSegments(t *testing.T) {
	store := newStore(&fakeBucket{}, "salesbot", "")
	for _, key := range []string{"", "  ", "../secrets.txt", "sales_data/../../etc", "sales_data//a.parquet", "./a.parquet"} {
		if _, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("Put(%q) expected key validation error", key)
		}
	}
}

func TestOpenReturnsBodyAndInfo(t *testing.T) {
	modified := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	fake := &fakeBucket{objects: map[string]string{"snapshots/sales_data/a.parquet": "PAR1"}, modified: modified}
	store := newStore(fake, "salesbot", "snapshots")

	body, info, err := store.Open(context.Background(), "sales_data/a.parquet")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "PAR1" {
		t.Fatalf("body = %q", data)
	}
	if info.Key != "sales_data/a.parquet" || info.Size != 4 || !info.LastModified.Equal(modified) {
		t.Fatalf("info = %+v", info)
	}
}

func TestOpenMapsMissingObjects(t *testing.T) {
	tests := map[string]error{
		"no such key":    minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound},
		"no such bucket": minio.ErrorResponse{Code: "NoSuchBucket"},
		"bare 404":       minio.ErrorResponse{StatusCode: http.StatusNotFound},
		"sentinel":       storage.ErrObjectNotFound,
	}
	for name, openErr := range tests {
		store := newStore(&fakeBucket{openErr: openErr}, "salesbot", "")
		_, _, err := store.Open(context.Background(), "sales_data/missing.parquet")
		if !errors.Is(err, storage.ErrObjectNotFound) {
			t.Fatalf("%s: Open() error = %v, want ErrObjectNotFound", name, err)
		}
	}
}

func TestOpenWrapsOtherErrors(t *testing.T) {
	cause := errors.New("connection reset")
	store := newStore(&fakeBucket{openErr: cause}, "salesbot", "snapshots")
	_, _, err := store.Open(context.Background(), "sales_data/a.parquet")
	if !errors.Is(err, cause) || errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Open() error = %v", err)
	}
	if !strings.Contains(err.Error(), "s3://salesbot/snapshots/sales_data/a.parquet") {
		t.Fatalf("Open() error = %v", err)
	}
}

func TestEnsureBucket(t *testing.T) {
	missing := &fakeBucket{}
	if err := newStore(missing, "salesbot", "").ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if missing.createdRegion != "us-east-1" {
		t.Fatalf("created region = %q", missing.createdRegion)
	}

	present := &fakeBucket{bucketExists: true}
	if err := newStore(present, "salesbot", "").ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if present.createdRegion != "" {
		t.Fatal("existing bucket should not be created")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), config.ObjectStoreConfig{})
	if err == nil || !strings.Contains(err.Error(), "endpoint and bucket") {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := New(context.Background(), config.ObjectStoreConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected bucket error")
	}
	if _, err := New(context.Background(), config.ObjectStoreConfig{Endpoint: "ftp://minio", Bucket: "salesbot"}); err == nil {
		t.Fatal("expected scheme error")
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"localhost:9000", false, "localhost:9000", false},
		{"minio.internal:9000", true, "minio.internal:9000", true},
		{"https://minio.example.com", false, "minio.example.com", true},
		{"http://minio.example.com:9000", true, "minio.example.com:9000", false},
	}
	for _, tt := range tests {
		host, secure, err := splitEndpoint(tt.raw, tt.useSSL)
		if err != nil {
			t.Fatalf("splitEndpoint(%q) error = %v", tt.raw, err)
		}
		if host != tt.wantHost || secure != tt.wantSecure {
			t.Fatalf("splitEndpoint(%q) = %q/%v", tt.raw, host, secure)
		}
	}
	if _, _, err := splitEndpoint("https://", false); err == nil {
		t.Fatal("expected missing host error")
	}
}

type fakeBucket struct {
	objects      map[string]string
	modified     time.Time
	openErr      error
	bucketExists bool

	putKey         string
	putBody        []byte
	putContentType string
	createdRegion  string
}

func (f *fakeBucket) put(_ context.Context, key string, body io.Reader, size int64, contentType string) (minio.UploadInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.putKey, f.putBody, f.putContentType = key, data, contentType
	return minio.UploadInfo{Bucket: "salesbot", Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeBucket) open(_ context.Context, key string) (io.ReadCloser, minio.ObjectInfo, error) {
	if f.openErr != nil {
		return nil, minio.ObjectInfo{}, f.openErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return io.NopCloser(strings.NewReader(data)), minio.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: f.modified}, nil
}

func (f *fakeBucket) exists(context.Context) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeBucket) create(_ context.Context, region string) error {
	f.createdRegion = region
	return nil
}
