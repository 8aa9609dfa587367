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

// Package config locates the CLI's settings file and the user's cargo
// root, and resolves the registries a cargo config.toml declares.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// RegistryEntry is a single [registries.<name>] table from a cargo
// config.toml.
type RegistryEntry struct {
	Name  string
	Index string
	DL    string // resolved from RegistryDLOverride when the file sets none.
}

type cargoConfigFile struct {
	Registries map[string]struct {
		Index string `toml:"index"`
	} `toml:"registries"`
}

// LoadCargoRegistries reads <cargoRoot>/config.toml's [registries] table,
// if present, and applies the CARGO_FETCHER_<UPPER_NAME>_DL env override
// for any entry that declares no "dl" itself (cargo's config.toml never
// carries that field; it lives in the index's own config.json, which
// mirror/sync would otherwise have to fetch before it could resolve any
// download URL for a fresh lockfile).
func LoadCargoRegistries(cargoRoot string) ([]RegistryEntry, error) {
	path := filepath.Join(cargoRoot, "config.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	var cfg cargoConfigFile
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}

	out := make([]RegistryEntry, 0, len(cfg.Registries))
	for name, reg := range cfg.Registries {
		entry := RegistryEntry{Name: name, Index: reg.Index}
		if dl, ok := RegistryDLOverride(name); ok {
			entry.DL = dl
		}
		out = append(out, entry)
	}
	return out, nil
}
