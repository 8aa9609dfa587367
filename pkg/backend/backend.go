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

// Package backend implements the pluggable blob-store abstraction used to
// mirror and restore build dependencies: a uniform fetch/upload/list/
// updated contract over a filesystem directory, an S3-compatible bucket,
// Google Cloud Storage, or an Azure Blob container.
package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Backend is the contract every storage implementation exposes to the
// mirror and sync orchestrators. All methods must be safe to call
// concurrently from multiple goroutines.
type Backend interface {
	// Fetch returns the full object stored under cloudID. No partial
	// reads are exposed.
	Fetch(ctx context.Context, cloudID string) ([]byte, error)
	// Upload overwrites any prior object under cloudID and returns the
	// number of bytes written.
	Upload(ctx context.Context, data []byte, cloudID string) (int64, error)
	// List returns every key under the current prefix, without the
	// prefix itself. Callers must not assume any particular order.
	List(ctx context.Context) ([]string, error)
	// Updated returns the object's last-modified time in UTC, or nil if
	// the object does not exist.
	Updated(ctx context.Context, cloudID string) (*time.Time, error)
	// SetPrefix changes the prefix used by subsequent calls. Used by the
	// index flow to write under a sibling prefix from the crate blobs.
	SetPrefix(prefix string)
}

// Open constructs a Backend from a location URL. The scheme selects the
// implementation:
//
//	file://<path>
//	s3://<bucket>/<prefix>?region=<region>&host=<endpoint>
//	gs://<bucket>/<prefix>
//	blob://<container>/<prefix>
func Open(ctx context.Context, rawURL string, opts Options) (Backend, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", rawURL, err)
	}

	prefix := strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "file":
		root := u.Path
		if u.Host != "" {
			root = u.Host + u.Path
		}
		return NewFilesystem(root)
	case "s3":
		return NewS3(ctx, u.Host, prefix, u.Query(), opts)
	case "gs":
		return NewGCS(ctx, u.Host, prefix, opts)
	case "blob":
		return NewAzure(ctx, u.Host, prefix, opts)
	default:
		return nil, fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
}

// Options carries the ambient credentials and tuning shared by the cloud
// backends; each implementation only looks at the fields it needs.
type Options struct {
	// CredentialsPath points at a GCS service-account JSON file. Falls
	// back to GOOGLE_APPLICATION_CREDENTIALS when empty.
	CredentialsPath string
	// Timeout is carried from the --timeout flag; none of the backends in
	// this package applies it to its requests.
	Timeout time.Duration
}
