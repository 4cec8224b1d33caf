// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gcs serves sample files stored in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/googlegenomics/cnvview/sources"
)

// Source reads the files of samples stored as objects under a common prefix
// of a bucket.  Objects named "<name>.gz" are used, and decompressed, when
// "<name>" does not exist.
type Source struct {
	client Client
	bucket string
	prefix string
}

// New returns a Source reading objects from bucket under prefix.
func New(client Client, bucket, prefix string) *Source {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Source{client: client, bucket: bucket, prefix: prefix}
}

// ParseLocation splits a "gs://bucket/prefix" or "bucket/prefix" location.
func ParseLocation(location string) (bucket, prefix string, err error) {
	location = strings.TrimPrefix(location, "gs://")
	bucket, prefix, _ = strings.Cut(location, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("no bucket in location %q", location)
	}
	return bucket, prefix, nil
}

// Bucket returns the bucket the source reads from.
func (s *Source) Bucket() string {
	return s.bucket
}

// Resolve implements sources.Source.
func (s *Source) Resolve(sample, algorithm string) sources.Files {
	return sources.Resolve(sample, algorithm)
}

// Open implements sources.Source.
func (s *Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	object := s.prefix + name
	r, err := s.client.NewObjectHandle(s.bucket, object).NewReader(ctx)
	if err == nil {
		return r, nil
	}
	err = newStorageError(fmt.Sprintf("opening gs://%s/%s", s.bucket, object), err)
	if !errors.Is(err, sources.ErrNotExist) {
		return nil, err
	}

	object = sources.Gzipped(object)
	r, gzErr := s.client.NewObjectHandle(s.bucket, object).NewReader(ctx)
	if gzErr != nil {
		if errors.Is(newStorageError("", gzErr), sources.ErrNotExist) {
			return nil, err
		}
		return nil, newStorageError(fmt.Sprintf("opening gs://%s/%s", s.bucket, object), gzErr)
	}
	gz, gzErr := pgzip.NewReader(r)
	if gzErr != nil {
		r.Close()
		return nil, fmt.Errorf("decompressing gs://%s/%s: %w", s.bucket, object, gzErr)
	}
	return &gzipReader{Reader: gz, object: r}, nil
}

type gzipReader struct {
	*pgzip.Reader
	object io.Closer
}

func (r *gzipReader) Close() error {
	err := r.Reader.Close()
	if objErr := r.object.Close(); err == nil {
		err = objErr
	}
	return err
}

// List implements sources.Source.
func (s *Source) List(ctx context.Context) ([]sources.Sample, error) {
	objects, err := s.client.List(ctx, s.bucket, s.prefix)
	if err != nil {
		return nil, newStorageError(fmt.Sprintf("listing gs://%s/%s", s.bucket, s.prefix), err)
	}
	var names []string
	for _, object := range objects {
		name := strings.TrimPrefix(object, s.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	return sources.Catalog(names), nil
}
