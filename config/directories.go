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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// CargoHomeEnv, when set, picks the package-manager root sync
	// restores into. Falls back to "~/.cargo", matching the reference
	// tool.
	CargoHomeEnv = "CARGO_HOME"
	// UserConfigDirEnv, if set, is the directory the CLI's own settings
	// file is loaded from.
	UserConfigDirEnv = "CARGO_FETCHER_CONFIG_DIR"
	// dlOverrideEnvPrefix/Suffix bracket a registry's upper-cased
	// configured name to look up a per-registry download-URL override,
	// e.g. CARGO_FETCHER_MY-REGISTRY_DL.
	dlOverrideEnvPrefix = "CARGO_FETCHER_"
	dlOverrideEnvSuffix = "_DL"
)

func EnsureDirectory(dir string, err error) (string, error) {
	if err != nil {
		return dir, err
	}
	return dir, os.MkdirAll(dir, 0755)
}

// RootDir determines the local package-manager root sync restores into
// and mirror may read local state from: an explicit path wins, then
// CARGO_HOME, then "~/.cargo".
func RootDir(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env, ok := os.LookupEnv(CargoHomeEnv); ok && env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining cargo root: %w", err)
	}
	return filepath.Join(home, ".cargo"), nil
}

// UserConfigPath is the directory the CLI's own settings file lives in.
func UserConfigPath() (string, error) {
	if path, ok := os.LookupEnv(UserConfigDirEnv); ok {
		return path, nil
	}
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, ".config", "cargo-fetcher"), nil
}

// UserConfigFile returns the settings file in the user config directory.
func UserConfigFile() (string, bool) {
	if dir, err := EnsureDirectory(UserConfigPath()); err == nil {
		return filepath.Join(dir, "config.yaml"), true
	}
	return "", false
}

// RegistryDLOverride looks up CARGO_FETCHER_<UPPER_NAME>_DL, where name is
// the registry's name as configured in .cargo/config.toml's [registries]
// table (not its derived short-name). cargo itself has no config.toml
// field for a registry's "dl" template; that property only lives in the
// index's own config.json, which mirror/sync must not have to fetch
// before it can resolve download URLs for a fresh lockfile. This env
// override lets an operator supply it out of band instead.
func RegistryDLOverride(name string) (string, bool) {
	key := dlOverrideEnvPrefix + strings.ToUpper(name) + dlOverrideEnvSuffix
	return os.LookupEnv(key)
}
