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

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	azblobErr "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/cenkalti/backoff/v4"
)

// Azure stores blobs in a container of an Azure Storage account, signed
// with the account's shared key. The azblob SDK performs the HMAC-SHA-256
// canonicalized-request signing itself; this backend only has to point
// it at the right account, key and container.
type Azure struct {
	mu        sync.RWMutex
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzure builds the client from STORAGE_ACCOUNT and STORAGE_MASTER_KEY.
func NewAzure(ctx context.Context, containerName, prefix string, opts Options) (*Azure, error) {
	account := os.Getenv("STORAGE_ACCOUNT")
	key := os.Getenv("STORAGE_MASTER_KEY")
	if account == "" || key == "" {
		return nil, fmt.Errorf("STORAGE_ACCOUNT and STORAGE_MASTER_KEY must both be set")
	}

	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("building shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("constructing azure blob client: %w", err)
	}
	return &Azure{client: client, container: containerName, prefix: prefix}, nil
}

func (a *Azure) SetPrefix(prefix string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prefix = prefix
}

func (a *Azure) key(cloudID string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.prefix == "" {
		return cloudID
	}
	return strings.TrimSuffix(a.prefix, "/") + "/" + cloudID
}

func (a *Azure) Fetch(ctx context.Context, cloudID string) ([]byte, error) {
	var data []byte
	err := withRetry(ctx, func() error {
		resp, err := a.client.DownloadStream(ctx, a.container, a.key(cloudID), nil)
		if err != nil {
			return classifyAzureErr(err)
		}
		defer resp.Body.Close()
		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return classifyAzureErr(err)
		}
		data = buf
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", cloudID, err)
	}
	return data, nil
}

func (a *Azure) Upload(ctx context.Context, data []byte, cloudID string) (int64, error) {
	contentType := "application/x-tar"
	err := withRetry(ctx, func() error {
		_, err := a.client.UploadBuffer(ctx, a.container, a.key(cloudID), data, &azblob.UploadBufferOptions{
			HTTPHeaders: &azblob.HTTPHeaders{BlobContentType: &contentType},
		})
		return classifyAzureErr(err)
	})
	if err != nil {
		return 0, fmt.Errorf("uploading %q: %w", cloudID, err)
	}
	return int64(len(data)), nil
}

func (a *Azure) List(ctx context.Context) ([]string, error) {
	a.mu.RLock()
	prefix := a.prefix
	a.mu.RUnlock()

	var out []string
	pager := a.client.NewListBlobsFlatPager(a.container, &container.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing container %q: %w", a.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			out = append(out, strings.TrimPrefix(*item.Name, strings.TrimSuffix(prefix, "/")+"/"))
		}
	}
	return out, nil
}

func (a *Azure) Updated(ctx context.Context, cloudID string) (*time.Time, error) {
	props, err := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(a.key(cloudID)).GetProperties(ctx, nil)
	if err != nil {
		if azblobErr.HasCode(err, azblobErr.BlobNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %q: %w", cloudID, err)
	}
	if props.LastModified == nil {
		return nil, nil
	}
	t := props.LastModified.UTC()
	return &t, nil
}

func classifyAzureErr(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == 401 || respErr.StatusCode == 403 {
			return backoff.Permanent(err)
		}
		if respErr.StatusCode < 500 && respErr.StatusCode != 429 {
			return backoff.Permanent(err)
		}
	}
	return err
}

