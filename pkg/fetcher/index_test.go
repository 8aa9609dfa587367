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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cargofetcher/cargofetcher/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_generateCacheFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "se", "rd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "se", "rd", "serde"), []byte(
		`{"name":"serde","vers":"1.0.103","cksum":"a"}`+"\n"+
			`{"name":"serde","vers":"1.0.104","cksum":"b"}`+"\n",
	), 0o644))

	require.NoError(t, generateCacheFiles("deadbeef", root))

	encoded, err := os.ReadFile(filepath.Join(root, ".cache", "se", "rd", "serde"))
	require.NoError(t, err)

	head, entries, err := DecodeCacheFile(encoded)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", head)
	require.Len(t, entries, 2)
	assert.Equal(t, "1.0.103", entries[0].Version)
	assert.Equal(t, "1.0.104", entries[1].Version)
}

func Test_generateCacheFiles_skipsGitAndConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/master\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.json"), []byte(`{"dl":"x"}`), 0o644))

	require.NoError(t, generateCacheFiles("deadbeef", root))

	_, err := os.Stat(filepath.Join(root, ".cache", "co", "nf", "config.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, ".cache", "HE", "AD", "HEAD"))
	assert.True(t, os.IsNotExist(err))
}

func Test_syncGitIndex(t *testing.T) {
	fs, err := backend.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	reg := DefaultRegistry()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "config.json"), []byte(`{"dl":"x"}`), 0o644))
	var buf bytes.Buffer
	require.NoError(t, packTarZst(&buf, src))

	fs.SetPrefix(IndexPrefix(""))
	_, err = fs.Upload(context.Background(), buf.Bytes(), IndexCloudID(reg))
	require.NoError(t, err)
	fs.SetPrefix("")

	dest := filepath.Join(t.TempDir(), "index")
	require.NoError(t, syncGitIndex(context.Background(), &Ctx{Backend: fs}, reg, dest))

	data, err := os.ReadFile(filepath.Join(dest, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"dl":"x"}`, string(data))
}

func Test_syncSparseIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/config.json":
			w.Write([]byte(`{"dl":"https://sparse.example.com/{crate}-{version}.crate"}`))
		case "/se/rd/serde":
			w.Header().Set("ETag", `"v1"`)
			w.Write([]byte(`{"name":"serde","vers":"1.0.104","cksum":"a"}` + "\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	prior := sparseHTTPClient
	sparseHTTPClient = srv.Client()
	defer func() { sparseHTTPClient = prior }()

	reg := NewRegistry("sparse+"+srv.URL, "")
	krate := Krate{Name: "serde", Version: "1.0.104", Source: Source{Kind: SourceRegistry, Registry: reg}}
	c := &Ctx{Krates: []Krate{krate}, UI: NullUI}

	dest := t.TempDir()
	require.NoError(t, syncSparseIndex(context.Background(), c, reg, dest))

	config, err := os.ReadFile(filepath.Join(dest, "config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(config), "sparse.example.com")

	cacheData, err := os.ReadFile(filepath.Join(dest, ".cache", "se", "rd", "serde"))
	require.NoError(t, err)
	head, entries, err := DecodeCacheFile(cacheData)
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, head)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.0.104", entries[0].Version)
}
