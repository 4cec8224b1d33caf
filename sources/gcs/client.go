package gcs

import (
	"context"
	"io"
)

// Client is an interface to the storage engine.
type Client interface {
	// NewObjectHandle returns a handle to a specified object in
	// the storage engine.
	NewObjectHandle(bucket, object string) ObjectHandle

	// List returns the names of the objects in bucket that start with
	// prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// ObjectHandle is an interface to the actual storage engine in use.
type ObjectHandle interface {
	// NewReader returns a reader for the whole content of the object.
	NewReader(ctx context.Context) (io.ReadCloser, error)
}
