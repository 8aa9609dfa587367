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

// Package fetcher implements the artifact-identity, fetch, index and
// orchestration logic shared by the mirror and sync commands.
package fetcher

import "fmt"

// SourceKind distinguishes the two ways a Krate can be pinned.
type SourceKind int

const (
	SourceRegistry SourceKind = iota
	SourceGit
)

// Source is the pinning information for a single Krate. Exactly one of
// the Registry or Git fields is meaningful, selected by Kind.
type Source struct {
	Kind SourceKind

	// Registry source.
	Registry *Registry
	Chksum   string // lowercase hex SHA-256, from the lockfile.

	// Git source.
	URL   string // canonicalized.
	Rev   string // 40-hex-or-short, as found in the lockfile query string.
	Ident string // stable short identifier, see Ident().
}

// ShortRev returns the first 7 hex characters of Rev. The reference tool
// truncates to 7 even when handed a full 40-char revision; that truncation
// is preserved here rather than "fixed" to use the full hash.
func (s Source) ShortRev() string {
	if len(s.Rev) < 7 {
		return s.Rev
	}
	return s.Rev[:7]
}

// Krate is a single pinned dependency entry from the lockfile. It is
// immutable after construction and compared by (Name, Version, Source).
type Krate struct {
	Name    string
	Version string
	Source  Source
}

// Key identifies a Krate uniquely for deduplication and map storage.
func (k Krate) Key() string {
	switch k.Source.Kind {
	case SourceGit:
		return fmt.Sprintf("git:%s:%s:%s:%s", k.Name, k.Version, k.Source.Ident, k.Source.Rev)
	default:
		reg := ""
		if k.Source.Registry != nil {
			reg = k.Source.Registry.Index
		}
		return fmt.Sprintf("registry:%s:%s:%s", reg, k.Name, k.Version)
	}
}

func (k Krate) String() string {
	switch k.Source.Kind {
	case SourceGit:
		return fmt.Sprintf("%s (%s#%s)", k.Name, k.Source.URL, k.Source.ShortRev())
	default:
		return fmt.Sprintf("%s-%s", k.Name, k.Version)
	}
}
