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

package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
)

const lastUpdatedMarker = ".last-updated"

// MirrorIndex uploads a fresh git-index snapshot for reg, unless the
// backend copy is already within MaxStale. Sparse registries have no
// backend-side snapshot; the sparse index is only ever written directly
// to the local cache during sync, so this is a no-op for them.
func MirrorIndex(ctx context.Context, c *Ctx, reg *Registry) error {
	if reg.Protocol != ProtocolGit {
		return nil
	}

	cloudID := IndexCloudID(reg)
	c.Backend.SetPrefix(IndexPrefix(c.Prefix))
	defer c.Backend.SetPrefix(c.Prefix)

	updated, err := c.Backend.Updated(ctx, cloudID)
	if err != nil {
		return newErr(CategoryTransport, reg.ShortName(), "checking index staleness: %v", err)
	}
	if updated != nil && time.Since(*updated) < c.maxStale() {
		return nil
	}

	tmp, err := os.MkdirTemp("", "cargofetcher-index-*")
	if err != nil {
		return newErr(CategoryLayout, reg.ShortName(), "creating temp dir: %v", err)
	}
	defer os.RemoveAll(tmp)

	// Unlike the bare-db git-source fetch, the index snapshot is a full
	// (non-bare) clone: the package manager itself checks out the index
	// as an ordinary working directory, and the per-crate JSON-lines
	// files that feed generateCacheFiles only exist in that checkout.
	repo, err := gogit.PlainCloneContext(ctx, tmp, false, &gogit.CloneOptions{URL: reg.Index})
	if err != nil {
		return newErr(CategoryTransport, reg.ShortName(), "cloning index %q: %v", reg.Index, err)
	}
	head, err := repo.Head()
	if err != nil {
		return newErr(CategoryTransport, reg.ShortName(), "resolving index HEAD: %v", err)
	}

	if err := os.WriteFile(filepath.Join(tmp, lastUpdatedMarker), nil, 0644); err != nil {
		return newErr(CategoryLayout, reg.ShortName(), "writing %s: %v", lastUpdatedMarker, err)
	}

	if err := generateCacheFiles(head.Hash().String(), tmp); err != nil {
		c.ui().ReportWarning("could not generate .cache summaries for %s: %v", reg.ShortName(), err)
	}

	var buf bytes.Buffer
	if err := packTarZst(&buf, tmp); err != nil {
		return newErr(CategoryLayout, reg.ShortName(), "packing index snapshot: %v", err)
	}

	if _, err := c.Backend.Upload(ctx, buf.Bytes(), cloudID); err != nil {
		return newErr(CategoryTransport, reg.ShortName(), "uploading index snapshot: %v", err)
	}
	return nil
}

// generateCacheFiles walks the freshly cloned index working tree and
// writes ".cache/<prefix>/<name>" binary summaries for every crate entry
// it finds, so the package manager's first use of this index is not a
// cold start.
func generateCacheFiles(headHex string, indexRoot string) error {
	return filepath.Walk(indexRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(indexRoot, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(rel, ".git") || strings.HasPrefix(rel, ".cache") || rel == "config.json" || rel == lastUpdatedMarker {
			return nil
		}

		name := filepath.Base(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var entries []CacheVersionEntry
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			version, err := ParseVersionFromLine(line)
			if err != nil {
				continue
			}
			entries = append(entries, CacheVersionEntry{Version: version, Line: append([]byte(nil), line...)})
		}

		cachePath, err := cacheFileName(name)
		if err != nil {
			return nil
		}
		dest := filepath.Join(indexRoot, filepath.FromSlash(cachePath))
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		return os.WriteFile(dest, EncodeCacheFile(headHex, entries), 0644)
	})
}

// SyncIndex materializes reg's index locally, using whichever protocol
// reg is configured for.
func SyncIndex(ctx context.Context, c *Ctx, reg *Registry) error {
	dest := RegistryIndexPath(c.RootDir, reg)
	if reg.Protocol == ProtocolSparse {
		return syncSparseIndex(ctx, c, reg, dest)
	}
	return syncGitIndex(ctx, c, reg, dest)
}

func syncGitIndex(ctx context.Context, c *Ctx, reg *Registry, dest string) error {
	cloudID := IndexCloudID(reg)
	c.Backend.SetPrefix(IndexPrefix(c.Prefix))
	data, err := c.Backend.Fetch(ctx, cloudID)
	c.Backend.SetPrefix(c.Prefix)
	if err != nil {
		return newErr(CategoryNotFound, reg.ShortName(), "fetching index snapshot: %v", err)
	}
	if err := unpackTarZst(data, dest); err != nil {
		return newErr(CategoryIntegrity, reg.ShortName(), "unpacking index snapshot: %v", err)
	}
	return nil
}

// sparseHTTPClient is overridable in tests.
var sparseHTTPClient HTTPClient = defaultClient(0)

func syncSparseIndex(ctx context.Context, c *Ctx, reg *Registry, dest string) error {
	base := strings.TrimPrefix(reg.Index, "sparse+")
	if err := os.MkdirAll(dest, 0755); err != nil {
		return newErr(CategoryLayout, reg.ShortName(), "creating index dir: %v", err)
	}

	if err := fetchSparseFile(ctx, base+"/config.json", filepath.Join(dest, "config.json")); err != nil {
		c.ui().ReportWarning("could not fetch config.json for %s: %v", reg.ShortName(), err)
	}

	for _, k := range c.Krates {
		if k.Source.Kind != SourceRegistry || k.Source.Registry == nil || k.Source.Registry.Index != reg.Index {
			continue
		}
		if err := syncSparseCrate(ctx, base, dest, k.Name); err != nil {
			c.ui().ReportWarning("could not fetch sparse index entry for %s: %v", k.Name, err)
		}
	}
	return nil
}

func fetchSparseFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := sparseHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d fetching %s", resp.StatusCode, url)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}
	return os.WriteFile(dest, buf.Bytes(), 0644)
}

func syncSparseCrate(ctx context.Context, base, dest, name string) error {
	prefix, err := GetCratePrefix(name)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/%s", base, prefix, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("cargo-protocol", "version=1")
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Accept-Encoding", "gzip,identity")

	resp, err := sparseHTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d fetching %s", resp.StatusCode, url)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}

	indexVersion := resp.Header.Get("ETag")
	if indexVersion == "" {
		indexVersion = resp.Header.Get("Last-Modified")
	}
	if indexVersion == "" {
		indexVersion = "Unknown"
	}

	var entries []CacheVersionEntry
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		version, err := ParseVersionFromLine(line)
		if err != nil {
			continue
		}
		entries = append(entries, CacheVersionEntry{Version: version, Line: append([]byte(nil), line...)})
	}

	cachePath, err := cacheFileName(name)
	if err != nil {
		return err
	}
	full := filepath.Join(dest, filepath.FromSlash(cachePath))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, EncodeCacheFile(indexVersion, entries), 0644)
}
