// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"runtime"

	"github.com/Thermoquad/powerstat/pkg/models"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and supported models",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "powerstat %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		for _, name := range models.Names() {
			m, err := models.Lookup(name)
			if err != nil {
				continue
			}
			fmt.Fprintf(out, "  %-10s %s\n", m.Name, m.Description)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
