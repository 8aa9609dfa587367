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

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/cargofetcher/cargofetcher/commands"
	"github.com/cargofetcher/cargofetcher/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:              "cargofetcher",
	Short:            "Mirror and restore cargo build dependencies through a cloud backend",
	TraverseChildren: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	rootCmd.Flags().MarkHidden("config")

	rootCmd.AddCommand(commands.Mirror(commands.DefaultRunWrapper))
	rootCmd.AddCommand(commands.Sync(commands.DefaultRunWrapper))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.ExecuteContext(ctx)
}

func initConfig() {
	if cfgFile == "" {
		cfgFile, _ = config.UserConfigFile()
	}
	viper.SetConfigFile(cfgFile)
	viper.ReadInConfig()
}
