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
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_packTarZst_unpackTarZst_roundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("world"), 0o644))

	var buf bytes.Buffer
	require.NoError(t, packTarZst(&buf, src))

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, unpackTarZst(buf.Bytes(), dest))

	a, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(a))

	b, err := os.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(b))
}

func Test_unpackTarZst_cleansUpOnError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	err := unpackTarZst([]byte("not a zstd stream"), dest)
	require.Error(t, err)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func buildCrateArchive(t *testing.T, topLevel string, files map[string]string) []byte {
	t.Helper()
	var gzBuf bytes.Buffer
	gz := gzip.NewWriter(&gzBuf)
	tw := tar.NewWriter(gz)
	for name, contents := range files {
		hdr := &tar.Header{
			Name: topLevel + "/" + name,
			Mode: 0o644,
			Size: int64(len(contents)),
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return gzBuf.Bytes()
}

func Test_unpackCrate_stripsTopLevelDirectory(t *testing.T) {
	data := buildCrateArchive(t, "serde-1.0.104", map[string]string{
		"Cargo.toml": "[package]\nname = \"serde\"\n",
		"src/lib.rs": "pub fn noop() {}\n",
	})

	dest := t.TempDir()
	require.NoError(t, unpackCrate(data, dest))

	contents, err := os.ReadFile(filepath.Join(dest, "Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(contents), "name = \"serde\"")

	_, err = os.Stat(filepath.Join(dest, "src", "lib.rs"))
	assert.NoError(t, err)
}

func Test_stripTopLevel(t *testing.T) {
	assert.Equal(t, "Cargo.toml", stripTopLevel("serde-1.0.104/Cargo.toml"))
	assert.Equal(t, "src/lib.rs", stripTopLevel("serde-1.0.104/src/lib.rs"))
	assert.Equal(t, "", stripTopLevel("serde-1.0.104"))
}

