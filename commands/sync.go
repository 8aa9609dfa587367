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

package commands

import (
	"github.com/cargofetcher/cargofetcher/pkg/fetcher"
	"github.com/spf13/cobra"
)

// Sync builds the "sync" subcommand: it restores a local package-manager
// root from the backend, so a build can proceed without talking to
// upstream at all.
func Sync(wrap func(CobraErrorCommand) CobraCommand) *cobra.Command {
	flags := &commonFlags{}
	var cargoRoot string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Restore build dependencies from a backend into a local cargo root",
		Run: wrap(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := buildCtx(ctx, flags, cargoRoot)
			if err != nil {
				return err
			}
			c.IncludeIndex = flags.includeIndex

			return fetcher.Sync(ctx, c)
		}),
	}

	addCommonFlags(cmd, flags)
	cmd.Flags().StringVar(&cargoRoot, "cargo-root", "", "local package-manager root, default $CARGO_HOME or ~/.cargo")
	return cmd
}
