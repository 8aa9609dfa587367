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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Sync restores the on-disk package-manager root for c.Krates from the
// backend: the directory skeleton is created up front, then every krate
// missing its completion marker is downloaded, verified, unpacked and
// marked complete, bounded to c.concurrency() in flight at once.
// Individual krate failures are reported through c.UI and do not abort
// the run. Registry indices for every used registry are materialized
// last, since nothing else depends on them being present first.
func Sync(ctx context.Context, c *Ctx) error {
	if err := ensureSkeleton(c.RootDir); err != nil {
		return newErr(CategoryLayout, "", "preparing root %q: %v", c.RootDir, err)
	}

	missing := make([]Krate, 0, len(c.Krates))
	for _, k := range c.Krates {
		if !krateComplete(c.RootDir, k) {
			missing = append(missing, k)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency())

	for _, k := range missing {
		k := k
		g.Go(func() error {
			syncOne(gctx, c, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if c.IncludeIndex {
		for _, reg := range c.UsedRegistries() {
			if err := SyncIndex(ctx, c, reg); err != nil {
				c.ui().ReportWarning("materializing index for %s: %v", reg.ShortName(), err)
			}
		}
	}
	return nil
}

func ensureSkeleton(root string) error {
	for _, dir := range []string{cacheDir, srcDir, gitDBDir, gitCheckouts, registryDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return err
		}
	}
	return nil
}

// krateComplete reports whether a krate's on-disk layout already has its
// completion marker, so a rerun of sync only does work for what's
// missing.
func krateComplete(root string, k Krate) bool {
	switch k.Source.Kind {
	case SourceGit:
		_, err := os.Stat(k.GitCheckoutOkPath(root))
		return err == nil
	default:
		_, err := os.Stat(filepath.Join(k.SrcPath(root), cargoOkMarker))
		return err == nil
	}
}

func syncOne(ctx context.Context, c *Ctx, k Krate) {
	switch k.Source.Kind {
	case SourceGit:
		syncGitKrate(ctx, c, k)
	default:
		syncRegistryKrate(ctx, c, k)
	}
}

func syncRegistryKrate(ctx context.Context, c *Ctx, k Krate) {
	data, err := c.Backend.Fetch(ctx, k.CloudID())
	if err != nil {
		c.ui().ReportError("fetching %s: %v", k, err)
		return
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != k.Source.Chksum {
		c.ui().ReportError("%v", newErr(CategoryIntegrity, k.String(), "checksum mismatch: want %s got %x", k.Source.Chksum, sum))
		return
	}

	cratePath := k.CratePath(c.RootDir)
	if err := os.MkdirAll(filepath.Dir(cratePath), 0755); err != nil {
		c.ui().ReportError("preparing cache dir for %s: %v", k, err)
		return
	}
	if err := os.WriteFile(cratePath, data, 0644); err != nil {
		c.ui().ReportError("writing %s: %v", k, err)
		return
	}

	srcPath := k.SrcPath(c.RootDir)
	if err := unpackCrate(data, srcPath); err != nil {
		c.ui().ReportError("unpacking %s: %v", k, err)
		return
	}
	if err := os.WriteFile(filepath.Join(srcPath, cargoOkMarker), nil, 0644); err != nil {
		c.ui().ReportError("marking %s complete: %v", k, err)
	}
}

func syncGitKrate(ctx context.Context, c *Ctx, k Krate) {
	dbData, err := c.Backend.Fetch(ctx, k.CloudID())
	if err != nil {
		c.ui().ReportError("fetching %s: %v", k, err)
		return
	}

	dbPath := k.GitDBPath(c.RootDir)
	if err := unpackTarZst(dbData, dbPath); err != nil {
		c.ui().ReportError("unpacking bare repository for %s: %v", k, err)
		return
	}

	checkoutPath := k.GitCheckoutPath(c.RootDir)
	if coData, err := c.Backend.Fetch(ctx, k.CloudIDCheckout()); err == nil {
		if err := unpackTarZst(coData, checkoutPath); err != nil {
			c.ui().ReportWarning("unpacking checkout bundle for %s, reconstructing instead: %v", k, err)
			if err := RestoreGitCheckout(ctx, dbPath, checkoutPath, k.Source.Rev, c.ui()); err != nil {
				c.ui().ReportError("reconstructing checkout for %s: %v", k, err)
				return
			}
		}
	} else {
		if err := RestoreGitCheckout(ctx, dbPath, checkoutPath, k.Source.Rev, c.ui()); err != nil {
			c.ui().ReportError("reconstructing checkout for %s: %v", k, err)
			return
		}
	}

	if err := os.WriteFile(k.GitCheckoutOkPath(c.RootDir), nil, 0644); err != nil {
		c.ui().ReportError("marking %s complete: %v", k, err)
	}
}
