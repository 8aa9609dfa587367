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

// Package git is a thin wrapper around go-git for the bare-mirror-clone
// plus pinned-worktree-checkout sequence the fetch pipeline needs.
package git

import (
	"context"
	"fmt"
	"net/url"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// CloneOptions configures BareClone.
type CloneOptions struct {
	URL     string
	SSHPath string
}

func convertURLToSSH(str string) (string, error) {
	u, err := url.Parse(str)
	if err != nil {
		return "", err
	}
	return "ssh://git@" + u.Host + u.Path + ".git", nil
}

// BareClone initializes a bare repository at dir, configures an "origin"
// remote with the refspecs the reference tool uses
// (+refs/heads/*:refs/remotes/origin/* and +HEAD:refs/remotes/origin/HEAD),
// enables tag auto-follow, and fetches everything.
func BareClone(ctx context.Context, dir string, options CloneOptions) (*gogit.Repository, error) {
	repo, err := gogit.PlainInit(dir, true)
	if err != nil {
		return nil, fmt.Errorf("initializing bare repo at %q: %w", dir, err)
	}

	cloneURL := options.URL
	var auth transport.AuthMethod
	if options.SSHPath != "" {
		sshURL, err := convertURLToSSH(cloneURL)
		if err != nil {
			return nil, fmt.Errorf("invalid url %q: %w", cloneURL, err)
		}
		cloneURL = sshURL
		a, err := ssh.NewPublicKeysFromFile("git", options.SSHPath, "")
		if err != nil {
			return nil, err
		}
		auth = a
	}

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{cloneURL},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring remote for %q: %w", cloneURL, err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return nil, err
	}

	fetchOpts := &gogit.FetchOptions{
		RefSpecs: []config.RefSpec{
			"+refs/heads/*:refs/remotes/origin/*",
			"+HEAD:refs/remotes/origin/HEAD",
		},
		Tags: gogit.TagFollowing,
		Auth: auth,
	}
	err = remote.FetchContext(ctx, fetchOpts)
	if err == transport.ErrAuthenticationRequired && options.SSHPath == "" {
		sshURL, sshErr := convertURLToSSH(cloneURL)
		if sshErr == nil {
			repo.DeleteRemote("origin")
			_, _ = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{sshURL}})
			remote, _ = repo.Remote("origin")
			err = remote.FetchContext(ctx, fetchOpts)
		}
	}
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return nil, fmt.Errorf("fetching %q: %w", cloneURL, err)
	}
	return repo, nil
}

// HasCommit reports whether rev is reachable as a commit object in repo.
func HasCommit(repo *gogit.Repository, rev string) bool {
	_, err := repo.CommitObject(plumbing.NewHash(rev))
	return err == nil
}

// CheckoutOptions configures Checkout.
type CheckoutOptions struct {
	// BareDir is the local bare repository cloned by BareClone.
	BareDir string
	// WorkDir is the destination working tree.
	WorkDir string
	// Rev is the commit to reset the worktree to.
	Rev string
}

// Checkout clones BareDir locally into WorkDir, sets core.autocrlf=false
// and a placeholder committer identity, and hard-resets the worktree to
// Rev. Returns the resolved *gogit.Repository so the caller can resolve
// submodules against it.
func Checkout(ctx context.Context, opts CheckoutOptions) (*gogit.Repository, error) {
	repo, err := gogit.PlainCloneContext(ctx, opts.WorkDir, false, &gogit.CloneOptions{
		URL:        opts.BareDir,
		NoCheckout: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %q into %q: %w", opts.BareDir, opts.WorkDir, err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return nil, err
	}
	cfg.Raw.Section("core").SetOption("autocrlf", "false")
	cfg.User.Name = "cargo-fetcher"
	cfg.User.Email = "cargo-fetcher@localhost"
	if err := repo.SetConfig(cfg); err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	if err := wt.Reset(&gogit.ResetOptions{
		Commit: plumbing.NewHash(opts.Rev),
		Mode:   gogit.HardReset,
	}); err != nil {
		return nil, fmt.Errorf("resetting %q to %q: %w", opts.WorkDir, opts.Rev, err)
	}
	return repo, nil
}

// SubmoduleWarning is returned (never as a Go error) for a submodule that
// could not be resolved, so the caller can report it as a warning rather
// than fail the whole checkout.
type SubmoduleWarning struct {
	Path string
	Err  error
}

// UpdateSubmodules recursively initializes and updates every submodule of
// repo's worktree. A submodule whose pinned commit cannot be fetched (for
// example because it was force-pushed away) is skipped and reported
// rather than aborting the others, matching the reference tool's
// "missing submodule is a warning, not fatal" behavior. A repository with
// no .gitmodules file simply has no submodules and is not an error.
func UpdateSubmodules(repo *gogit.Repository) ([]SubmoduleWarning, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	subs, err := wt.Submodules()
	if err != nil {
		return nil, fmt.Errorf("reading submodules: %w", err)
	}

	var warnings []SubmoduleWarning
	for _, sub := range subs {
		err := sub.Update(&gogit.SubmoduleUpdateOptions{
			Init:              true,
			RecurseSubmodules: gogit.DefaultSubmoduleRecursionDepth,
		})
		if err != nil {
			warnings = append(warnings, SubmoduleWarning{Path: sub.Config().Path, Err: err})
		}
	}
	return warnings, nil
}
