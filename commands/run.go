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

package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cargofetcher/cargofetcher/config"
	"github.com/cargofetcher/cargofetcher/pkg/backend"
	"github.com/cargofetcher/cargofetcher/pkg/fetcher"
)

// buildCtx resolves the flags shared by mirror and sync into a ready
// fetcher.Ctx: it opens the backend, loads the cargo config's registries,
// reads every lockfile, and wires in a UI bound to the chosen log level.
func buildCtx(ctx context.Context, f *commonFlags, cargoRoot string) (*fetcher.Ctx, error) {
	ui, err := newLogUI(f.logLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing --log-level: %w", err)
	}

	root, err := config.RootDir(cargoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving cargo root: %w", err)
	}

	var timeout time.Duration
	if f.timeout != "" {
		timeout, err = config.ParseDuration(f.timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing --timeout: %w", err)
		}
	}

	entries, err := config.LoadCargoRegistries(root)
	if err != nil {
		return nil, fmt.Errorf("loading cargo registries: %w", err)
	}
	configured := make([]*fetcher.Registry, 0, len(entries))
	for _, e := range entries {
		configured = append(configured, fetcher.NewRegistry(e.Index, e.DL))
	}

	be, err := backend.Open(ctx, f.url, backend.Options{CredentialsPath: f.credentials, Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening backend %q: %w", f.url, err)
	}

	krates, _, err := fetcher.ReadLockFiles(f.lockFiles, configured, ui)
	if err != nil {
		return nil, err
	}

	return &fetcher.Ctx{
		Backend: be,
		Krates:  krates,
		RootDir: root,
		Prefix:  backendPrefix(f.url),
		UI:      ui,
	}, nil
}

// backendPrefix mirrors backend.Open's own prefix derivation, so mirror's
// index snapshots land under the same sibling prefix the crate blobs are
// stored under. A file:// path is the filesystem backend's root, so it
// yields no prefix.
func backendPrefix(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "file" {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
