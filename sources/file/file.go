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

// Package file serves sample files from a local directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/brentp/xopen"

	"github.com/googlegenomics/cnvview/internal/cnv"
	"github.com/googlegenomics/cnvview/sources"
)

// Source reads files from a directory.  Gzipped files are decompressed
// transparently and "<name>.gz" is used when "<name>" does not exist.
type Source struct {
	root string
}

// New returns a Source reading from root.
func New(root string) *Source {
	return &Source{root: root}
}

// Resolve implements sources.Source.
func (s *Source) Resolve(sample, algorithm string) sources.Files {
	return sources.Resolve(sample, algorithm)
}

// Open implements sources.Source.
func (s *Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	path, err := s.locate(name)
	if err != nil {
		return nil, err
	}
	r, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return r, nil
}

func (s *Source) locate(name string) (string, error) {
	for _, candidate := range []string{name, sources.Gzipped(name)} {
		path := filepath.Join(s.root, candidate)
		info, err := os.Stat(path)
		switch {
		case err == nil && !info.IsDir():
			return path, nil
		case err == nil, errors.Is(err, fs.ErrNotExist):
			continue
		case errors.Is(err, fs.ErrPermission):
			return "", fmt.Errorf("%s: %w", path, sources.ErrPermissionDenied)
		default:
			return "", fmt.Errorf("checking %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%s: %w", filepath.Join(s.root, name), sources.ErrNotExist)
}

// List implements sources.Source.
func (s *Source) List(ctx context.Context) ([]sources.Sample, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return sources.Catalog(names), nil
}

// Algorithms returns the known algorithms that have a bins file for sample.
func (s *Source) Algorithms(sample string) []string {
	var found []string
	for _, algorithm := range cnv.Algorithms {
		if _, err := s.locate(cnv.BinsFileName(sample, algorithm)); err == nil {
			found = append(found, algorithm)
		}
	}
	return found
}
