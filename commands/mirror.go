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
	"fmt"

	"github.com/cargofetcher/cargofetcher/config"
	"github.com/cargofetcher/cargofetcher/pkg/fetcher"
	"github.com/spf13/cobra"
)

// Mirror builds the "mirror" subcommand: it reads the lockfiles, fetches
// whatever the backend doesn't already have from upstream, and uploads it.
func Mirror(wrap func(CobraErrorCommand) CobraCommand) *cobra.Command {
	flags := &commonFlags{}
	var maxStale string

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror build dependencies from upstream into a backend",
		Run: wrap(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := buildCtx(ctx, flags, "")
			if err != nil {
				return err
			}
			c.IncludeIndex = flags.includeIndex

			if maxStale != "" {
				d, err := config.ParseDuration(maxStale)
				if err != nil {
					return fmt.Errorf("parsing --max-stale: %w", err)
				}
				c.MaxStale = d
			}

			return fetcher.Mirror(ctx, c)
		}),
	}

	addCommonFlags(cmd, flags)
	cmd.Flags().StringVar(&maxStale, "max-stale", "", "max age before a mirrored index is refreshed, default 1d")
	return cmd
}
