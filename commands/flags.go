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

import "github.com/spf13/cobra"

// commonFlags holds the flags shared by mirror and sync.
type commonFlags struct {
	url          string
	lockFiles    []string
	logLevel     string
	includeIndex bool
	timeout      string
	credentials  string
}

func addCommonFlags(cmd *cobra.Command, f *commonFlags) {
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "backend location (file://, s3://, gs://, blob://)")
	cmd.Flags().StringSliceVarP(&f.lockFiles, "lock-file", "l", []string{"Cargo.lock"}, "lockfile to read (repeatable)")
	cmd.Flags().StringVarP(&f.logLevel, "log-level", "L", "info", "off|error|warn|info|debug|trace")
	cmd.Flags().BoolVarP(&f.includeIndex, "include-index", "i", false, "also mirror/sync registry indices")
	cmd.Flags().StringVar(&f.timeout, "timeout", "", "HTTP timeout, e.g. 30s (validated; not applied by the backends)")
	cmd.Flags().StringVarP(&f.credentials, "credentials", "c", "", "path to GCS service-account credentials")
	cmd.MarkFlagRequired("url")
}
