// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package publish

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
)

// An FS is a write-only store of named objects.
type FS interface {
	// NewWriter returns a Writer for the named object. The object
	// is not visible until Close returns without error.
	NewWriter(ctx context.Context, name string, metadata map[string]string) (Writer, error)
}

// A Writer writes one object of an FS.
type Writer interface {
	io.Writer
	// Close finishes the object.
	Close() error
	// CloseWithError discards the object.
	CloseWithError(err error) error
}

// MemFS is an in-memory FS. The zero MemFS is ready to use.
type MemFS struct {
	mu      sync.Mutex
	content map[string]*memFile
}

type memFile struct {
	metadata map[string]string
	content  []byte
}

// NewWriter implements FS.
func (fs *MemFS) NewWriter(_ context.Context, name string, metadata map[string]string) (Writer, error) {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	return &memWriter{fs: fs, name: name, metadata: meta}, nil
}

// Files returns the names of the objects in fs, sorted.
func (fs *MemFS) Files() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var names []string
	for n := range fs.content {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Content returns the content and metadata of the named object.
func (fs *MemFS) Content(name string) ([]byte, map[string]string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.content[name]
	if !ok {
		return nil, nil, false
	}
	return f.content, f.metadata, true
}

type memWriter struct {
	bytes.Buffer
	fs       *MemFS
	name     string
	metadata map[string]string
}

func (w *memWriter) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	if w.fs.content == nil {
		w.fs.content = make(map[string]*memFile)
	}
	w.fs.content[w.name] = &memFile{w.metadata, w.Bytes()}
	return nil
}

func (w *memWriter) CloseWithError(error) error {
	return nil
}
