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

// Package commands wires the mirror and sync operations to cobra
// subcommands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// CobraCommand is what cobra.Command.Run expects.
type CobraCommand func(cmd *cobra.Command, args []string)

// CobraErrorCommand is the error-returning shape every subcommand here is
// actually written as; DefaultRunWrapper adapts it to CobraCommand so a
// fatal error becomes a logged message and a process exit code.
type CobraErrorCommand func(cmd *cobra.Command, args []string) error

// WithExitCode lets an error pick its own process exit code instead of
// the default of 1.
type WithExitCode interface {
	ExitCode() int
}

// WithSilent marks an error that has already been reported (e.g. through
// the UI) and should not also be printed to stderr by the run wrapper.
type WithSilent interface {
	Silent() bool
}

// DefaultRunWrapper adapts a CobraErrorCommand into the Run signature
// cobra.Command expects, printing unhandled errors to stderr and setting
// the process exit code.
func DefaultRunWrapper(f CobraErrorCommand) CobraCommand {
	return func(cmd *cobra.Command, args []string) {
		err := f(cmd, args)
		if err == nil {
			return
		}
		if _, ok := err.(WithSilent); !ok {
			fmt.Fprintf(os.Stderr, "Unhandled error: %v\n", err)
		}
		if e, ok := err.(WithExitCode); ok {
			os.Exit(e.ExitCode())
		}
		os.Exit(1)
	}
}
