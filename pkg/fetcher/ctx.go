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
	"time"

	"github.com/cargofetcher/cargofetcher/pkg/backend"
)

// Ctx holds everything the orchestrators need: the backend handle, the
// krates to act on (UsedRegistries derives the registries they reference),
// and the local package-manager root. There is no other global mutable state; a
// Ctx is built once per invocation and passed explicitly.
type Ctx struct {
	Backend backend.Backend
	Krates  []Krate
	RootDir string

	// Prefix is the backend prefix crate/git blobs are stored under, as
	// parsed from the -u/--url location. Index snapshots are stored
	// under the sibling prefix IndexPrefix(Prefix) instead.
	Prefix string

	// MaxStale bounds how old a mirrored registry-index snapshot may be
	// before mirror refreshes it. Zero means use the default of one day.
	MaxStale time.Duration

	// Concurrency bounds the number of krates processed in parallel by
	// the mirror and sync orchestrators. Zero means use DefaultConcurrency.
	Concurrency int

	// IncludeIndex requests that Mirror/Sync also mirror or materialize
	// every used registry's index, matching -i/--include-index.
	IncludeIndex bool

	UI UI
}

// DefaultConcurrency is used when Ctx.Concurrency is unset.
const DefaultConcurrency = 8

// DefaultMaxStale is used when Ctx.MaxStale is unset.
const DefaultMaxStale = 24 * time.Hour

func (c *Ctx) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultConcurrency
}

func (c *Ctx) maxStale() time.Duration {
	if c.MaxStale > 0 {
		return c.MaxStale
	}
	return DefaultMaxStale
}

func (c *Ctx) ui() UI {
	if c.UI != nil {
		return c.UI
	}
	return FmtUI
}

// UsedRegistries returns the distinct registries referenced by at least
// one krate in Ctx.Krates.
func (c *Ctx) UsedRegistries() []*Registry {
	seen := map[string]bool{}
	var out []*Registry
	for _, k := range c.Krates {
		if k.Source.Kind != SourceRegistry || k.Source.Registry == nil {
			continue
		}
		if seen[k.Source.Registry.Index] {
			continue
		}
		seen[k.Source.Registry.Index] = true
		out = append(out, k.Source.Registry)
	}
	return out
}
