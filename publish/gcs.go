// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package publish

import (
	"context"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS is an FS backed by a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

// NewGCS returns a GCS writing objects to bucket. If the bucket name
// has the form bucket/prefix, object names are placed under prefix.
func NewGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	name, prefix, _ := strings.Cut(bucket, "/")
	return &GCS{client: client, bucket: client.Bucket(name), prefix: prefix}, nil
}

// NewWriter implements FS.
func (fs *GCS) NewWriter(ctx context.Context, name string, metadata map[string]string) (Writer, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := fs.bucket.Object(path.Join(fs.prefix, name)).NewWriter(ctx)
	w.Metadata = metadata
	w.ContentType = contentType(name)
	return &gcsWriter{Writer: w, cancel: cancel}, nil
}

// Close releases the client.
func (fs *GCS) Close() error {
	return fs.client.Close()
}

type gcsWriter struct {
	*storage.Writer
	cancel context.CancelFunc
}

func (w *gcsWriter) Close() error {
	defer w.cancel()
	return w.Writer.Close()
}

// CloseWithError aborts the upload. Canceling the writer's context
// before Close discards the object.
func (w *gcsWriter) CloseWithError(err error) error {
	w.cancel()
	w.Writer.Close()
	return nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	}
	return "text/plain; charset=utf-8"
}
