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
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// lockFile is the struct-level view of a Cargo.lock TOML document. The
// TOML parser itself is out of scope for this package; only the shape
// below is assumed.
type lockFile struct {
	Package  []lockPackage     `toml:"package"`
	Metadata map[string]string `toml:"metadata"`
}

type lockPackage struct {
	Name     string `toml:"name"`
	Version  string `toml:"version"`
	Source   string `toml:"source"`
	Checksum string `toml:"checksum"`
}

// ReadLockFiles parses one or more Cargo.lock files, resolves every
// package with a registry+ or git+ source against the configured
// registries, deduplicates by identity, and returns the krates plus the
// subset of registries at least one krate actually references.
//
// I/O or parse errors on a lockfile are fatal (CategoryConfig). Per
// package problems (unknown registry, missing checksum, malformed rev)
// are reported as warnings and the package is skipped.
func ReadLockFiles(paths []string, configured []*Registry, ui UI) ([]Krate, []*Registry, error) {
	regs := newRegistries(configured)

	seen := map[string]bool{}
	var krates []Krate
	usedRegistries := map[string]*Registry{}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, newErr(CategoryConfig, "", "reading lockfile %q: %v", path, err)
		}

		var lf lockFile
		if err := toml.Unmarshal(data, &lf); err != nil {
			return nil, nil, newErr(CategoryConfig, "", "parsing lockfile %q: %v", path, err)
		}

		for _, pkg := range lf.Package {
			krate, reg, ok, err := resolvePackage(pkg, lf.Metadata, regs, ui)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			if seen[krate.Key()] {
				continue
			}
			seen[krate.Key()] = true
			krates = append(krates, krate)
			if reg != nil {
				usedRegistries[reg.Index] = reg
			}
		}
	}

	out := make([]*Registry, 0, len(usedRegistries))
	for _, reg := range usedRegistries {
		out = append(out, reg)
	}
	return krates, out, nil
}

// resolvePackage converts a single lockfile package entry into a Krate.
// ok is false when the entry should be silently or warningly skipped
// (path dependency, unknown registry, missing checksum).
func resolvePackage(pkg lockPackage, metadata map[string]string, regs *registries, ui UI) (Krate, *Registry, bool, error) {
	if pkg.Source == "" {
		// Workspace members have no source. [[patch.unused]] entries are
		// not part of the package array and are never decoded.
		return Krate{}, nil, false, nil
	}

	switch {
	case strings.HasPrefix(pkg.Source, "registry+"):
		suffix := strings.TrimPrefix(pkg.Source, "registry+")
		reg := regs.matchSuffix(suffix)
		if reg == nil {
			ui.ReportWarning("skipping %s %s: unknown registry %q", pkg.Name, pkg.Version, suffix)
			return Krate{}, nil, false, nil
		}

		chksum := pkg.Checksum
		if chksum == "" {
			key := fmt.Sprintf("checksum %s %s (%s)", pkg.Name, pkg.Version, pkg.Source)
			chksum = metadata[key]
		}
		if chksum == "" {
			ui.ReportWarning("skipping %s %s: no checksum available", pkg.Name, pkg.Version)
			return Krate{}, nil, false, nil
		}

		return Krate{
			Name:    pkg.Name,
			Version: pkg.Version,
			Source: Source{
				Kind:     SourceRegistry,
				Registry: reg,
				Chksum:   strings.ToLower(chksum),
			},
		}, reg, true, nil

	case strings.HasPrefix(pkg.Source, "git+"):
		raw := strings.TrimPrefix(pkg.Source, "git+")
		u, err := url.Parse(raw)
		if err != nil {
			ui.ReportWarning("skipping %s %s: invalid git url %q: %v", pkg.Name, pkg.Version, raw, err)
			return Krate{}, nil, false, nil
		}
		rev := u.Query().Get("rev")
		if len(rev) < 7 {
			ui.ReportWarning("skipping %s %s: git source missing a usable ?rev=", pkg.Name, pkg.Version)
			return Krate{}, nil, false, nil
		}

		withoutQuery := *u
		withoutQuery.RawQuery = ""
		withoutQuery.Fragment = ""
		canonical, err := CanonicalizeURL(withoutQuery.String())
		if err != nil {
			ui.ReportWarning("skipping %s %s: %v", pkg.Name, pkg.Version, err)
			return Krate{}, nil, false, nil
		}

		return Krate{
			Name:    pkg.Name,
			Version: pkg.Version,
			Source: Source{
				Kind:  SourceGit,
				URL:   canonical,
				Rev:   rev,
				Ident: Ident(canonical),
			},
		}, nil, true, nil

	case strings.HasPrefix(pkg.Source, "path+"):
		return Krate{}, nil, false, nil

	default:
		ui.ReportWarning("skipping %s %s: unrecognized source %q", pkg.Name, pkg.Version, pkg.Source)
		return Krate{}, nil, false, nil
	}
}
