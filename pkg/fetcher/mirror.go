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
	"sort"

	"golang.org/x/sync/errgroup"
)

// Mirror uploads every krate in c.Krates that the backend does not
// already have, plus a fresh index snapshot for every registry actually
// used, should that snapshot be stale. Individual krate failures are
// reported through c.UI and do not abort the run; only a failure
// listing the backend, or a context cancellation, returns an error.
func Mirror(ctx context.Context, c *Ctx) error {
	existing, err := c.Backend.List(ctx)
	if err != nil {
		return newErr(CategoryTransport, "", "listing backend contents: %v", err)
	}
	have := make(map[string]bool, len(existing))
	for _, id := range existing {
		have[id] = true
	}

	missing := make([]Krate, 0, len(c.Krates))
	for _, k := range c.Krates {
		if !have[k.CloudID()] {
			missing = append(missing, k)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Key() < missing[j].Key() })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency())

	for _, k := range missing {
		k := k
		g.Go(func() error {
			mirrorOne(gctx, c, k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.IncludeIndex {
		for _, reg := range c.UsedRegistries() {
			if err := MirrorIndex(ctx, c, reg); err != nil {
				c.ui().ReportWarning("mirroring index for %s: %v", reg.ShortName(), err)
			}
		}
	}
	return nil
}

// mirrorOne fetches and uploads a single krate, logging any failure
// through the UI rather than propagating it, so one bad krate never
// stops its siblings from mirroring.
func mirrorOne(ctx context.Context, c *Ctx, k Krate) {
	switch k.Source.Kind {
	case SourceGit:
		mirrorGitKrate(ctx, c, k)
	default:
		mirrorRegistryKrate(ctx, c, k)
	}
}

func mirrorRegistryKrate(ctx context.Context, c *Ctx, k Krate) {
	client := defaultClient(0)
	data, err := FetchRegistryCrate(ctx, client, k)
	if err != nil {
		c.ui().ReportError("fetching %s: %v", k, err)
		return
	}
	if _, err := c.Backend.Upload(ctx, data, k.CloudID()); err != nil {
		c.ui().ReportError("uploading %s: %v", k, err)
	}
}

func mirrorGitKrate(ctx context.Context, c *Ctx, k Krate) {
	bundle, err := FetchGit(ctx, k, c.ui())
	if err != nil {
		c.ui().ReportError("fetching %s: %v", k, err)
		return
	}
	if _, err := c.Backend.Upload(ctx, bundle.DB, k.CloudID()); err != nil {
		c.ui().ReportError("uploading %s: %v", k, err)
		return
	}
	if bundle.Checkout != nil {
		if _, err := c.Backend.Upload(ctx, bundle.Checkout, k.CloudIDCheckout()); err != nil {
			c.ui().ReportWarning("uploading checkout bundle for %s: %v", k, err)
		}
	}
}
