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
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Filesystem stores blobs as plain files under a root directory. The
// prefix is just a subdirectory; fetch/upload map directly to read/write,
// list filters to regular files directly under the prefix directory (keys
// uploaded into a subdirectory are not listed), and updated reads the
// file's mtime.
type Filesystem struct {
	mu     sync.RWMutex
	root   string
	prefix string
}

// NewFilesystem creates the backend and ensures root exists.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating backend root %q: %w", root, err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) dir() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.prefix == "" {
		return f.root
	}
	return filepath.Join(f.root, f.prefix)
}

func (f *Filesystem) SetPrefix(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefix = prefix
}

func (f *Filesystem) Fetch(ctx context.Context, cloudID string) ([]byte, error) {
	path := filepath.Join(f.dir(), cloudID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("fetching %q: %w", cloudID, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", cloudID, err)
	}
	return data, nil
}

// Upload writes data atomically: to a temp file in the same directory,
// then renamed into place, so a concurrent Fetch never observes a
// partially written object.
func (f *Filesystem) Upload(ctx context.Context, data []byte, cloudID string) (int64, error) {
	target := filepath.Join(f.dir(), cloudID)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating backend dir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("uploading %q: %w", cloudID, err)
	}
	defer os.Remove(tmp.Name())

	n, err := tmp.Write(data)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err != nil {
		return 0, fmt.Errorf("uploading %q: %w", cloudID, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("uploading %q: %w", cloudID, err)
	}
	return int64(n), nil
}

func (f *Filesystem) List(ctx context.Context) ([]string, error) {
	dir := f.dir()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

func (f *Filesystem) Updated(ctx context.Context, cloudID string) (*time.Time, error) {
	path := filepath.Join(f.dir(), cloudID)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", cloudID, err)
	}
	t := info.ModTime().UTC()
	return &t, nil
}
