// Package storage abstracts the object store that holds parquet snapshots of
// the sales dataset.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

const ParquetContentType = "application/vnd.apache.parquet"

// ObjectStore keys are dataset-relative. Implementations add their own
// prefix and report the dataset-relative key back in ObjectInfo.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	// Open returns the object body together with its metadata. Missing
	// objects yield an error wrapping ErrObjectNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}
