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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cargofetcher/cargofetcher/pkg/git"
)

// GitBundle is the result of fetching a git Krate: a packed bare
// repository bundle, and optionally a packed checkout bundle. The
// checkout is optional because restoration can always reconstruct it
// from the bare bundle; mirror attempts to upload both when it can.
type GitBundle struct {
	DB       []byte
	Checkout []byte // nil if the checkout pack step failed non-fatally.
}

// FetchGit clones a git Krate's source into scoped temp directories,
// verifies the pinned revision is reachable, resolves submodules
// recursively, and packs both the bare repository and the checked-out
// worktree into zstd tars. Temp directories are removed on every exit
// path.
func FetchGit(ctx context.Context, k Krate, ui UI) (*GitBundle, error) {
	if k.Source.Kind != SourceGit {
		return nil, fmt.Errorf("FetchGit called on non-git krate %s", k)
	}

	tmp, err := os.MkdirTemp("", "cargofetcher-git-*")
	if err != nil {
		return nil, newErr(CategoryLayout, k.String(), "creating temp dir: %v", err)
	}
	defer os.RemoveAll(tmp)

	bareDir := filepath.Join(tmp, "bare")
	workDir := filepath.Join(tmp, "workdir", k.Source.ShortRev())

	repo, err := git.BareClone(ctx, bareDir, git.CloneOptions{URL: k.Source.URL})
	if err != nil {
		return nil, newErr(CategoryTransport, k.String(), "cloning %q: %v", k.Source.URL, err)
	}

	if !git.HasCommit(repo, k.Source.Rev) {
		return nil, newErr(CategoryIntegrity, k.String(), "pinned revision %q not reachable from any ref", k.Source.Rev)
	}

	var dbBuf bytes.Buffer
	if err := packTarZst(&dbBuf, bareDir); err != nil {
		return nil, newErr(CategoryLayout, k.String(), "packing bare repository: %v", err)
	}

	checkoutBuf, err := packCheckout(ctx, bareDir, workDir, k.Source.Rev, ui)
	if err != nil {
		ui.ReportWarning("could not build checkout bundle for %s: %v", k, err)
		return &GitBundle{DB: dbBuf.Bytes()}, nil
	}

	return &GitBundle{DB: dbBuf.Bytes(), Checkout: checkoutBuf}, nil
}

// packCheckout performs a local clone of the bare repository into
// workDir, resets it to rev, recursively resolves submodules (skipping
// and warning about any that cannot be resolved), and packs the result
// into a zstd tar.
func packCheckout(ctx context.Context, bareDir, workDir, rev string, ui UI) ([]byte, error) {
	repo, err := git.Checkout(ctx, git.CheckoutOptions{BareDir: bareDir, WorkDir: workDir, Rev: rev})
	if err != nil {
		return nil, err
	}

	warnings, err := git.UpdateSubmodules(repo)
	if err != nil {
		return nil, fmt.Errorf("resolving submodules: %w", err)
	}
	for _, w := range warnings {
		ui.ReportWarning("skipping submodule %q: %v", w.Path, w.Err)
	}

	var buf bytes.Buffer
	if err := packTarZst(&buf, workDir); err != nil {
		return nil, fmt.Errorf("packing checkout: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreGitCheckout reconstructs a checkout from a bare repository when
// no checkout bundle was mirrored, by performing the same
// clone+reset+submodules sequence FetchGit uses, directly against the
// already-materialized db directory.
func RestoreGitCheckout(ctx context.Context, dbDir, checkoutDir, rev string, ui UI) error {
	repo, err := git.Checkout(ctx, git.CheckoutOptions{BareDir: dbDir, WorkDir: checkoutDir, Rev: rev})
	if err != nil {
		return err
	}
	warnings, err := git.UpdateSubmodules(repo)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		ui.ReportWarning("skipping submodule %q: %v", w.Path, w.Err)
	}
	return nil
}
