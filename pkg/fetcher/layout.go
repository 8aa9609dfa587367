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
	"path/filepath"
)

const (
	cacheDir      = "cache"
	srcDir        = "src"
	gitDBDir      = "git/db"
	gitCheckouts  = "git/checkouts"
	registryDir   = "registry"
	indexDiscrim  = "index"
	cargoOkMarker = ".cargo-ok"
)

// CloudID returns the key this Krate is stored under in the backend,
// relative to the configured prefix.
func (k Krate) CloudID() string {
	switch k.Source.Kind {
	case SourceGit:
		return fmt.Sprintf("%s-%s.tar.zst", k.Source.Ident, k.Source.ShortRev())
	default:
		return fmt.Sprintf("%s-%s.crate", k.Name, k.Version)
	}
}

// CloudIDCheckout returns the checkout-bundle key for a git Krate. Only
// meaningful when Source.Kind == SourceGit.
func (k Krate) CloudIDCheckout() string {
	return fmt.Sprintf("%s-%s.co.tar.zst", k.Source.Ident, k.Source.ShortRev())
}

// IndexCloudID returns the snapshot key for a registry's index, stored
// under the IndexPrefix sibling of the crate prefix.
func IndexCloudID(reg *Registry) string {
	return fmt.Sprintf("%s.tar.zst", reg.ShortName())
}

// IndexPrefix returns the sibling backend prefix indices are mirrored
// under, derived from the crate prefix by appending an "-index" suffix.
func IndexPrefix(cratePrefix string) string {
	return fmt.Sprintf("%s-%s", cratePrefix, indexDiscrim)
}

// CratePath returns the local on-disk path of a downloaded, still-packed
// registry crate blob.
func (k Krate) CratePath(root string) string {
	return filepath.Join(root, cacheDir, k.Source.Registry.ShortName(), fmt.Sprintf("%s-%s.crate", k.Name, k.Version))
}

// SrcPath returns the local on-disk path of the unpacked crate source tree.
func (k Krate) SrcPath(root string) string {
	return filepath.Join(root, srcDir, k.Source.Registry.ShortName(), fmt.Sprintf("%s-%s", k.Name, k.Version))
}

// GitDBPath returns the local path of a git Krate's bare repository.
func (k Krate) GitDBPath(root string) string {
	return filepath.Join(root, gitDBDir, k.Source.Ident)
}

// GitCheckoutPath returns the local path of a git Krate's checked-out
// working tree for its pinned short-rev.
func (k Krate) GitCheckoutPath(root string) string {
	return filepath.Join(root, gitCheckouts, k.Source.Ident, k.Source.ShortRev())
}

// GitCheckoutOkPath returns the zero-length marker file that signals the
// checkout at GitCheckoutPath is fully extracted.
func (k Krate) GitCheckoutOkPath(root string) string {
	return filepath.Join(k.GitCheckoutPath(root), cargoOkMarker)
}

// RegistryIndexPath returns the directory a registry's materialized
// index (git clone or sparse `.cache/` tree) lives under.
func RegistryIndexPath(root string, reg *Registry) string {
	return filepath.Join(root, registryDir, reg.ShortName())
}
