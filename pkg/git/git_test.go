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

package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedSourceRepo creates a small non-bare repository on disk with one
// commit, and returns its path and the commit hash, so BareClone can be
// exercised against a real local remote without any network access.
func seedSourceRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\nname = \"demo\"\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Cargo.toml")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)

	return dir, hash.String()
}

func Test_BareClone_and_HasCommit(t *testing.T) {
	srcDir, commit := seedSourceRepo(t)

	bareDir := filepath.Join(t.TempDir(), "bare")
	repo, err := BareClone(context.Background(), bareDir, CloneOptions{URL: srcDir})
	require.NoError(t, err)

	assert.True(t, HasCommit(repo, commit))
	assert.False(t, HasCommit(repo, "0000000000000000000000000000000000000000"))
}

func Test_Checkout_resetsToRev(t *testing.T) {
	srcDir, commit := seedSourceRepo(t)

	bareDir := filepath.Join(t.TempDir(), "bare")
	_, err := BareClone(context.Background(), bareDir, CloneOptions{URL: srcDir})
	require.NoError(t, err)

	workDir := filepath.Join(t.TempDir(), "work")
	_, err = Checkout(context.Background(), CheckoutOptions{BareDir: bareDir, WorkDir: workDir, Rev: commit})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(workDir, "Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name = \"demo\"")
}

func Test_UpdateSubmodules_noSubmodulesIsNotAnError(t *testing.T) {
	srcDir, commit := seedSourceRepo(t)

	bareDir := filepath.Join(t.TempDir(), "bare")
	_, err := BareClone(context.Background(), bareDir, CloneOptions{URL: srcDir})
	require.NoError(t, err)

	workDir := filepath.Join(t.TempDir(), "work")
	repo, err := Checkout(context.Background(), CheckoutOptions{BareDir: bareDir, WorkDir: workDir, Rev: commit})
	require.NoError(t, err)

	warnings, err := UpdateSubmodules(repo)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
