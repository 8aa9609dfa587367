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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Filesystem_uploadFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	n, err := fs.Upload(ctx, []byte("payload"), "crates/foo-1.0.0.crate")
	require.NoError(t, err)
	assert.EqualValues(t, len("payload"), n)

	data, err := fs.Fetch(ctx, "crates/foo-1.0.0.crate")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func Test_Filesystem_fetchMissingIsNotExist(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Fetch(ctx, "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func Test_Filesystem_updatedMissingIsNil(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	updated, err := fs.Updated(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func Test_Filesystem_updatedAfterUpload(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	before := time.Now().Add(-time.Minute).UTC()
	_, err = fs.Upload(ctx, []byte("x"), "foo")
	require.NoError(t, err)

	updated, err := fs.Updated(ctx, "foo")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.After(before))
	assert.Equal(t, time.UTC, updated.Location())
}

func Test_Filesystem_listRespectsPrefix(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFilesystem(root)
	require.NoError(t, err)

	fs.SetPrefix("rust-lang/crates.io-index")
	_, err = fs.Upload(ctx, []byte("a"), "ansi_term-0.11.0.crate")
	require.NoError(t, err)
	_, err = fs.Upload(ctx, []byte("b"), "uuid-0.7.4.crate")
	require.NoError(t, err)

	keys, err := fs.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ansi_term-0.11.0.crate", "uuid-0.7.4.crate"}, keys)

	fs.SetPrefix("other-prefix")
	keys, err = fs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func Test_Filesystem_listOnMissingPrefixIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	fs.SetPrefix("never-created")

	keys, err := fs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func Test_Filesystem_uploadOverwritesExisting(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFilesystem(dir)
	require.NoError(t, err)

	_, err = fs.Upload(ctx, []byte("first"), "foo")
	require.NoError(t, err)
	_, err = fs.Upload(ctx, []byte("second"), "foo")
	require.NoError(t, err)

	data, err := fs.Fetch(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp files after upload")
}

func Test_NewFilesystem_createsRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	_, err := NewFilesystem(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
