package storage

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// Object describes a single upload.
type Object struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
}

// Service stores audit exports in remote object storage.
type Service interface {
	// PutObject uploads obj and returns its s3:// location.
	PutObject(ctx context.Context, obj Object) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
