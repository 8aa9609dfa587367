// Copyright (C) 2021 Toitware ApS.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; version
// 2.1 only.
//
// This library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// The license can be found in the file `LICENSE` in the top level
// directory of this repository.

package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores blobs as objects in a Google Cloud Storage bucket, using a
// service-account JSON key for OAuth2 bearer-token authentication.
type GCS struct {
	mu     sync.RWMutex
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS builds the client from opts.CredentialsPath, falling back to
// GOOGLE_APPLICATION_CREDENTIALS and then to ambient application-default
// credentials.
func NewGCS(ctx context.Context, bucket, prefix string, opts Options) (*GCS, error) {
	var clientOpts []option.ClientOption
	credPath := opts.CredentialsPath
	if credPath == "" {
		credPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if credPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credPath))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("constructing gcs client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *GCS) SetPrefix(prefix string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prefix = prefix
}

func (g *GCS) key(cloudID string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.prefix == "" {
		return cloudID
	}
	return strings.TrimSuffix(g.prefix, "/") + "/" + cloudID
}

func (g *GCS) Fetch(ctx context.Context, cloudID string) ([]byte, error) {
	var data []byte
	err := withRetry(ctx, func() error {
		r, err := g.client.Bucket(g.bucket).Object(g.key(cloudID)).NewReader(ctx)
		if err != nil {
			return classifyGCSErr(err)
		}
		defer r.Close()
		buf, err := io.ReadAll(r)
		if err != nil {
			return classifyGCSErr(err)
		}
		data = buf
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", cloudID, err)
	}
	return data, nil
}

func (g *GCS) Upload(ctx context.Context, data []byte, cloudID string) (int64, error) {
	var n int64
	err := withRetry(ctx, func() error {
		w := g.client.Bucket(g.bucket).Object(g.key(cloudID)).NewWriter(ctx)
		w.ContentType = "application/x-tar"
		if _, err := w.Write(data); err != nil {
			w.Close()
			return classifyGCSErr(err)
		}
		if err := w.Close(); err != nil {
			return classifyGCSErr(err)
		}
		n = int64(len(data))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("uploading %q: %w", cloudID, err)
	}
	return n, nil
}

func (g *GCS) List(ctx context.Context) ([]string, error) {
	g.mu.RLock()
	prefix := g.prefix
	g.mu.RUnlock()

	var out []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing bucket %q: %w", g.bucket, err)
		}
		out = append(out, strings.TrimPrefix(attrs.Name, strings.TrimSuffix(prefix, "/")+"/"))
	}
	return out, nil
}

func (g *GCS) Updated(ctx context.Context, cloudID string) (*time.Time, error) {
	attrs, err := g.client.Bucket(g.bucket).Object(g.key(cloudID)).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", cloudID, err)
	}
	t := attrs.Updated.UTC()
	return &t, nil
}

func classifyGCSErr(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return backoff.Permanent(err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 401 || gerr.Code == 403 {
			return backoff.Permanent(err)
		}
		if gerr.Code < 500 && gerr.Code != 429 {
			return backoff.Permanent(err)
		}
	}
	return err
}
