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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const imdsRoleURL = "http://169.254.169.254/latest/meta-data/iam/security-credentials/"

// S3 stores blobs in an S3-compatible bucket through the minio client,
// which signs each request with SigV4 headers; no presigned URLs are
// issued. Virtual host style addressing is used when the bucket name
// allows it.
type S3 struct {
	mu     sync.RWMutex
	client *minio.Client
	bucket string
	prefix string
}

// NewS3 builds the client from AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY,
// falling back to the EC2 instance metadata service unless both are set.
func NewS3(ctx context.Context, bucket, prefix string, query url.Values, opts Options) (*S3, error) {
	region := query.Get("region")
	endpoint := query.Get("host")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	secure := true
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		secure = u.Scheme != "http"
		endpoint = u.Host
	}

	creds, err := s3Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving s3 credentials: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing s3 client: %w", err)
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}, nil
}

func s3Credentials(ctx context.Context) (*credentials.Credentials, error) {
	if os.Getenv("AWS_ACCESS_KEY_ID") != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != "" {
		return credentials.NewEnvAWS(), nil
	}
	role, err := fetchIMDSRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("no static AWS credentials and EC2 IMDS fallback failed: %w", err)
	}
	return credentials.NewIAM(imdsRoleURL + role), nil
}

// fetchIMDSRole asks the EC2 instance metadata service which IAM role is
// attached to this instance, so the minio IAM credential provider knows
// which metadata sub-path to poll for temporary keys.
func fetchIMDSRole(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imdsRoleURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imds returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (s *S3) SetPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefix = prefix
}

func (s *S3) key(cloudID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prefix == "" {
		return cloudID
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + cloudID
}

func (s *S3) Fetch(ctx context.Context, cloudID string) ([]byte, error) {
	var data []byte
	err := withRetry(ctx, func() error {
		obj, err := s.client.GetObject(ctx, s.bucket, s.key(cloudID), minio.GetObjectOptions{})
		if err != nil {
			return classifyMinioErr(err)
		}
		defer obj.Close()
		buf, err := io.ReadAll(obj)
		if err != nil {
			return classifyMinioErr(err)
		}
		data = buf
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", cloudID, err)
	}
	return data, nil
}

func (s *S3) Upload(ctx context.Context, data []byte, cloudID string) (int64, error) {
	var n int64
	err := withRetry(ctx, func() error {
		info, err := s.client.PutObject(ctx, s.bucket, s.key(cloudID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: "application/x-tar",
		})
		if err != nil {
			return classifyMinioErr(err)
		}
		n = info.Size
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("uploading %q: %w", cloudID, err)
	}
	return n, nil
}

func (s *S3) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	prefix := s.prefix
	s.mu.RUnlock()

	var out []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing bucket %q: %w", s.bucket, obj.Err)
		}
		out = append(out, strings.TrimPrefix(obj.Key, strings.TrimSuffix(prefix, "/")+"/"))
	}
	return out, nil
}

func (s *S3) Updated(ctx context.Context, cloudID string) (*time.Time, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.key(cloudID), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %q: %w", cloudID, err)
	}
	t := info.LastModified.UTC()
	return &t, nil
}

func classifyMinioErr(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return backoff.Permanent(err)
	case "AccessDenied", "SignatureDoesNotMatch", "InvalidAccessKeyId":
		return backoff.Permanent(err)
	}
	if resp.StatusCode != 0 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}
