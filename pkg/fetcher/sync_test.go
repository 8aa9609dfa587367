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
	"sync/atomic"
	"testing"

	"github.com/cargofetcher/cargofetcher/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend wraps a backend.Backend and counts Fetch calls, so a
// test can assert a second Sync of an already-complete root does no
// further downloads.
type countingBackend struct {
	backend.Backend
	fetches int64
}

func (c *countingBackend) Fetch(ctx context.Context, cloudID string) ([]byte, error) {
	atomic.AddInt64(&c.fetches, 1)
	return c.Backend.Fetch(ctx, cloudID)
}

// crateArchiveAndChecksum builds the same fake .crate archive
// syncRegistryKrate expects and returns it alongside its real SHA-256, so
// callers can seed a krate whose checksum actually verifies.
func crateArchiveAndChecksum(t *testing.T, name, version string) ([]byte, string) {
	t.Helper()
	data := buildCrateArchive(t, name+"-"+version, map[string]string{
		"Cargo.toml": "[package]\nname = \"" + name + "\"\nversion = \"" + version + "\"\n",
		"src/lib.rs": "pub fn noop() {}\n",
	})
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:])
}

func seedRegistryKrate(t *testing.T, be backend.Backend, k Krate, data []byte) {
	t.Helper()
	_, err := be.Upload(context.Background(), data, k.CloudID())
	require.NoError(t, err)
}

func Test_Sync_registryKrate_roundTrip(t *testing.T) {
	fs, err := backend.NewFilesystem(t.TempDir())
	require.NoError(t, err)
	be := &countingBackend{Backend: fs}

	reg := DefaultRegistry()
	data, chksum := crateArchiveAndChecksum(t, "ansi_term", "0.11.0")
	krate := Krate{
		Name:    "ansi_term",
		Version: "0.11.0",
		Source:  Source{Kind: SourceRegistry, Registry: reg, Chksum: chksum},
	}
	seedRegistryKrate(t, be, krate, data)

	root := t.TempDir()
	c := &Ctx{Backend: be, Krates: []Krate{krate}, RootDir: root, UI: NullUI}

	require.NoError(t, Sync(context.Background(), c))

	marker := filepath.Join(krate.SrcPath(root), cargoOkMarker)
	_, err = os.Stat(marker)
	require.NoError(t, err, "sync should leave a completion marker")

	toml, err := os.ReadFile(filepath.Join(krate.SrcPath(root), "Cargo.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(toml), "ansi_term")

	_, err = os.Stat(krate.CratePath(root))
	require.NoError(t, err, "sync should leave the packed .crate around too")

	assert.EqualValues(t, 1, be.fetches)

	// S2: a second Sync of an already-complete root must not re-fetch.
	require.NoError(t, Sync(context.Background(), c))
	assert.EqualValues(t, 1, be.fetches, "second sync should skip already-complete krates")
}

func Test_Sync_multipleRegistryKrates(t *testing.T) {
	fs, err := backend.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	reg := DefaultRegistry()
	names := []struct{ name, version string }{
		{"ansi_term", "0.11.0"},
		{"base64", "0.10.1"},
		{"uuid", "0.7.4"},
	}
	krates := make([]Krate, 0, len(names))
	for _, nv := range names {
		data, chksum := crateArchiveAndChecksum(t, nv.name, nv.version)
		k := Krate{Name: nv.name, Version: nv.version, Source: Source{Kind: SourceRegistry, Registry: reg, Chksum: chksum}}
		seedRegistryKrate(t, fs, k, data)
		krates = append(krates, k)
	}

	root := t.TempDir()
	c := &Ctx{Backend: fs, Krates: krates, RootDir: root, UI: NullUI}
	require.NoError(t, Sync(context.Background(), c))

	for _, k := range krates {
		_, err := os.Stat(filepath.Join(k.SrcPath(root), cargoOkMarker))
		assert.NoError(t, err, "missing completion marker for %s", k)
	}
}

func Test_Sync_checksumMismatchIsReportedNotFatalAndLeavesNoMarker(t *testing.T) {
	fs, err := backend.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	data, _ := crateArchiveAndChecksum(t, "ansi_term", "0.11.0")
	krate := Krate{
		Name:    "ansi_term",
		Version: "0.11.0",
		Source:  Source{Kind: SourceRegistry, Registry: DefaultRegistry(), Chksum: "0000000000000000000000000000000000000000000000000000000000000000"},
	}
	seedRegistryKrate(t, fs, krate, data)

	root := t.TempDir()
	c := &Ctx{Backend: fs, Krates: []Krate{krate}, RootDir: root, UI: NullUI}

	require.NoError(t, Sync(context.Background(), c), "a checksum mismatch must not fail the whole Sync")

	_, statErr := os.Stat(filepath.Join(krate.SrcPath(root), cargoOkMarker))
	assert.True(t, os.IsNotExist(statErr), "a tampered blob must not be marked complete")
	_, statErr = os.Stat(krate.CratePath(root))
	assert.True(t, os.IsNotExist(statErr), "a tampered blob must not be written to the crate cache")
}

func Test_Sync_failedFetchIsReportedNotFatal(t *testing.T) {
	fs, err := backend.NewFilesystem(t.TempDir())
	require.NoError(t, err)

	krate := Krate{
		Name:    "missing-crate",
		Version: "1.0.0",
		Source:  Source{Kind: SourceRegistry, Registry: DefaultRegistry(), Chksum: "x"},
	}

	root := t.TempDir()
	c := &Ctx{Backend: fs, Krates: []Krate{krate}, RootDir: root, UI: NullUI}

	err = Sync(context.Background(), c)
	require.NoError(t, err, "a single missing krate should not fail the whole Sync")

	_, statErr := os.Stat(filepath.Join(krate.SrcPath(root), cargoOkMarker))
	assert.True(t, os.IsNotExist(statErr))
}

func Test_ensureSkeleton_createsExpectedDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, ensureSkeleton(root))

	for _, dir := range []string{"cache", "src", "git/db", "git/checkouts", "registry"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func Test_krateComplete(t *testing.T) {
	root := t.TempDir()
	krate := Krate{
		Name:    "foo",
		Version: "1.0.0",
		Source:  Source{Kind: SourceRegistry, Registry: DefaultRegistry()},
	}
	assert.False(t, krateComplete(root, krate))

	require.NoError(t, os.MkdirAll(krate.SrcPath(root), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(krate.SrcPath(root), cargoOkMarker), nil, 0o644))
	assert.True(t, krateComplete(root, krate))
}
