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
	"net/url"
	"strings"
)

// Protocol selects how a Registry's index is materialized.
type Protocol int

const (
	ProtocolGit Protocol = iota
	ProtocolSparse
)

// DefaultIndexURL is the canonical public registry index, matching the
// reference package manager's built-in default.
const DefaultIndexURL = "https://github.com/rust-lang/crates.io-index"

// DefaultDL is the download template for the public registry.
const DefaultDL = "https://static.crates.io/crates/{crate}/{crate}-{version}.crate"

// Registry is a crate catalog with a stable index URL and an optional
// download URL template. Equality and hashing depend only on Index; two
// Registry values with the same Index are interchangeable.
type Registry struct {
	Index    string
	DL       string
	Protocol Protocol
}

// NewRegistry builds a Registry from an index URL, inferring the protocol
// from a leading "sparse+" marker the way the package manager's own
// Cargo.toml/config.toml registry entries do.
func NewRegistry(index string, dl string) *Registry {
	proto := ProtocolGit
	if strings.HasPrefix(index, "sparse+") {
		proto = ProtocolSparse
	}
	return &Registry{Index: index, DL: dl, Protocol: proto}
}

// DefaultRegistry is the sentinel representing the central public registry.
func DefaultRegistry() *Registry {
	return &Registry{Index: DefaultIndexURL, DL: DefaultDL, Protocol: ProtocolGit}
}

// DownloadURL builds the URL a registry crate should be fetched from,
// substituting {crate}, {version}, {prefix} and {lowerprefix} into the
// registry's DL template, or falling back to "{index}/{name}/{version}/download"
// when no template is configured.
func (r *Registry) DownloadURL(name, version string) (string, error) {
	if r.DL == "" {
		return strings.TrimSuffix(r.Index, "/") + "/" + name + "/" + version + "/download", nil
	}

	dl := r.DL
	dl = strings.ReplaceAll(dl, "{crate}", name)
	dl = strings.ReplaceAll(dl, "{version}", version)

	if strings.Contains(dl, "{prefix}") || strings.Contains(dl, "{lowerprefix}") {
		prefix, err := GetCratePrefix(name)
		if err != nil {
			return "", err
		}
		dl = strings.ReplaceAll(dl, "{prefix}", prefix)
		dl = strings.ReplaceAll(dl, "{lowerprefix}", strings.ToLower(prefix))
	}
	return dl, nil
}

// ShortName returns "<host>-<16-hex-siphash-of-registry>", the same
// directory name the package manager itself uses for this registry's
// on-disk cache.
func (r *Registry) ShortName() string {
	host := "index"
	if u, err := url.Parse(strings.TrimPrefix(r.Index, "sparse+")); err == nil && u.Host != "" {
		host = u.Host
	}
	return host + "-" + registryHash(r.Index)
}

// registries is a lookup table from lockfile registry URL suffixes to the
// configured Registry, built once per invocation from CLI/config input.
type registries struct {
	byIndex map[string]*Registry
}

func newRegistries(configured []*Registry) *registries {
	r := &registries{byIndex: map[string]*Registry{}}
	for _, reg := range configured {
		r.byIndex[canonicalRegistryKey(reg.Index)] = reg
	}
	if _, ok := r.byIndex[canonicalRegistryKey(DefaultIndexURL)]; !ok {
		def := DefaultRegistry()
		r.byIndex[canonicalRegistryKey(def.Index)] = def
	}
	return r
}

// matchSuffix finds the configured registry whose index URL matches the
// suffix stripped of the lockfile's "registry+" prefix.
func (r *registries) matchSuffix(suffix string) *Registry {
	key := canonicalRegistryKey(suffix)
	if reg, ok := r.byIndex[key]; ok {
		return reg
	}
	for k, reg := range r.byIndex {
		if strings.HasSuffix(k, key) || strings.HasSuffix(key, k) {
			return reg
		}
	}
	return nil
}

func canonicalRegistryKey(index string) string {
	return strings.TrimSuffix(strings.TrimPrefix(index, "sparse+"), "/")
}

func (r *registries) all() []*Registry {
	out := make([]*Registry, 0, len(r.byIndex))
	for _, reg := range r.byIndex {
		out = append(out, reg)
	}
	return out
}
